package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic-booking/internal/events"
)

// Administrative configuration: weekly schedule, vacations and clinic
// settings. Schedule and vacation changes affect an unbounded range of
// dates, so each mutation flushes the whole availability cache via its
// config event.

func (s *Service) GetSchedule(ctx context.Context, actor Actor) ([]ScheduleDay, error) {
	if !s.isAdmin(actor) {
		return nil, &UnauthorizedError{Role: actor.Role, Action: "read schedule"}
	}
	return s.repo.ListScheduleDays(ctx)
}

// ReplaceSchedule swaps the full weekly template. One entry per weekday at
// most; each entry is validated before anything is written.
func (s *Service) ReplaceSchedule(ctx context.Context, actor Actor, days []ScheduleDay) error {
	if !s.isAdmin(actor) {
		return &UnauthorizedError{Role: actor.Role, Action: "replace schedule"}
	}

	seen := map[time.Weekday]bool{}
	for _, d := range days {
		if err := d.Validate(); err != nil {
			return err
		}
		if seen[d.Weekday] {
			return validationErrorf("schedule: duplicate entry for %s", d.Weekday)
		}
		seen[d.Weekday] = true
	}

	if err := s.repo.ReplaceSchedule(ctx, days); err != nil {
		return fmt.Errorf("replace schedule: %w", err)
	}

	s.dispatcher.Dispatch(ctx, events.Event{Type: events.ScheduleChanged})
	return nil
}

func (s *Service) ListVacations(ctx context.Context, actor Actor) ([]Vacation, error) {
	if !s.isAdmin(actor) {
		return nil, &UnauthorizedError{Role: actor.Role, Action: "list vacations"}
	}
	return s.repo.ListVacations(ctx)
}

func (s *Service) CreateVacation(ctx context.Context, actor Actor, v Vacation) (*Vacation, error) {
	if !s.isAdmin(actor) {
		return nil, &UnauthorizedError{Role: actor.Role, Action: "create vacation"}
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	v.StartDate = DateOf(v.StartDate)
	v.EndDate = DateOf(v.EndDate)

	created, err := s.repo.CreateVacation(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("create vacation: %w", err)
	}

	s.dispatcher.Dispatch(ctx, events.Event{Type: events.VacationChanged})
	return created, nil
}

func (s *Service) DeleteVacation(ctx context.Context, actor Actor, id uuid.UUID) error {
	if !s.isAdmin(actor) {
		return &UnauthorizedError{Role: actor.Role, Action: "delete vacation"}
	}
	if err := s.repo.DeleteVacation(ctx, id); err != nil {
		return err
	}

	s.dispatcher.Dispatch(ctx, events.Event{Type: events.VacationChanged})
	return nil
}

func (s *Service) GetSettings(ctx context.Context, actor Actor) (ClinicSettings, error) {
	if !s.isAdmin(actor) {
		return ClinicSettings{}, &UnauthorizedError{Role: actor.Role, Action: "read settings"}
	}
	return s.repo.GetClinicSettings(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, actor Actor, settings ClinicSettings) error {
	if !s.isAdmin(actor) {
		return &UnauthorizedError{Role: actor.Role, Action: "update settings"}
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := s.repo.UpdateClinicSettings(ctx, settings); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}

	s.dispatcher.Dispatch(ctx, events.Event{Type: events.SettingsChanged})
	return nil
}

func (s *Service) isAdmin(actor Actor) bool {
	return actor.Role == RoleAdmin
}
