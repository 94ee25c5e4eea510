package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicbook/clinic-booking/internal/events"
	redisclient "github.com/clinicbook/clinic-booking/internal/redis"
)

// Service runs the appointment lifecycle: create, confirm, complete, cancel
// and no-show, with the actor and time-window rules each transition carries.
// Creation uses a per-slot distributed lock plus a transactional capacity
// recheck so two requests for the last unit of capacity cannot both succeed.
type Service struct {
	repo       Repository
	calc       *Calculator
	locker     redisclient.Locker
	dispatcher events.Dispatcher
	loc        *time.Location
	now        func() time.Time
	log        zerolog.Logger
}

func NewService(repo Repository, calc *Calculator, locker redisclient.Locker, dispatcher events.Dispatcher, loc *time.Location, now func() time.Time, log zerolog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:       repo,
		calc:       calc,
		locker:     locker,
		dispatcher: dispatcher,
		loc:        loc,
		now:        now,
		log:        log,
	}
}

// SlotsForDate exposes the calculator through the service boundary.
func (s *Service) SlotsForDate(ctx context.Context, date time.Time) ([]Slot, error) {
	settings, err := s.repo.GetClinicSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return s.calc.SlotsForDate(ctx, settings, date)
}

// AvailableDates lists dates with at least one open slot. A zero from starts
// at today in the clinic's timezone; a non-positive horizon falls back to the
// configured booking horizon.
func (s *Service) AvailableDates(ctx context.Context, from time.Time, horizonDays int) ([]DateAvailability, error) {
	settings, err := s.repo.GetClinicSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if from.IsZero() {
		from = DateOf(s.now().In(s.loc))
	}
	if horizonDays <= 0 || horizonDays > settings.AdvanceBookingDays {
		horizonDays = settings.AdvanceBookingDays
	}
	return s.calc.AvailableDates(ctx, settings, from, horizonDays)
}

// CreateAppointment books a slot for a patient. Patients book only for
// themselves. The requested slot is re-validated inside the per-slot
// critical section; the client's earlier availability fetch is never
// trusted.
func (s *Service) CreateAppointment(ctx context.Context, actor Actor, patientID uuid.UUID, date time.Time, slotTime TimeOfDay, reason, notes string) (*Appointment, error) {
	if actor.Role != RolePatient {
		return nil, &UnauthorizedError{Role: actor.Role, Action: "create appointment"}
	}
	if actor.ID != patientID {
		return nil, ErrBookingForOther
	}

	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	settings, err := s.repo.GetClinicSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	date = DateOf(date)
	today := DateOf(s.now().In(s.loc))
	if date.After(today.AddDate(0, 0, settings.AdvanceBookingDays)) {
		return nil, &SlotNotAvailableError{Reason: ReasonOutsideHours}
	}

	var created *Appointment

	lockKey := fmt.Sprintf("%s:%s", date.Format("2006-01-02"), slotTime)
	err = s.locker.WithSlotLock(ctx, lockKey, func(lockCtx context.Context) error {
		// Inside the critical section, validate the slot against current
		// schedule, vacation and capacity state.
		if err := s.calc.CheckSlot(lockCtx, settings, date, slotTime); err != nil {
			return err
		}

		appt, err := s.repo.CreateAppointment(lockCtx, CreateParams{
			PatientID:          patientID,
			Date:               date,
			SlotTime:           slotTime,
			EndTime:            slotTime.Add(settings.SlotDurationMinutes),
			Reason:             reason,
			Notes:              notes,
			MaxPatientsPerSlot: settings.MaxPatientsPerSlot,
		})
		if err != nil {
			return err
		}

		created = appt
		return nil
	})

	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			return nil, ErrSlotBeingBooked
		case errors.Is(err, ErrSlotFull), errors.Is(err, ErrDuplicateBooking):
			return nil, &SlotNotAvailableError{Reason: ReasonSlotTaken}
		default:
			return nil, err
		}
	}

	s.dispatcher.Dispatch(ctx, events.Event{
		Type:          events.AppointmentCreated,
		AppointmentID: created.ID,
		PatientID:     created.PatientID,
		Date:          created.Date,
		Payload: map[string]any{
			"slot_time": created.SlotTime.String(),
			"reason":    created.Reason,
		},
	})

	return created, nil
}

// ConfirmAppointment moves a pending appointment to confirmed. Staff only.
func (s *Service) ConfirmAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	if !actor.IsStaff() {
		return nil, &UnauthorizedError{Role: actor.Role, Action: "confirm appointment"}
	}
	return s.transition(ctx, id, StatusPending, StatusConfirmed, StatusChange{}, events.AppointmentConfirmed)
}

// CompleteAppointment moves a confirmed appointment to completed. Staff
// only. A pending appointment cannot be completed directly; the clinic
// confirms first, then completes.
func (s *Service) CompleteAppointment(ctx context.Context, actor Actor, id uuid.UUID, adminNotes string) (*Appointment, error) {
	if !actor.IsStaff() {
		return nil, &UnauthorizedError{Role: actor.Role, Action: "complete appointment"}
	}
	return s.transition(ctx, id, StatusConfirmed, StatusCompleted, StatusChange{AdminNotes: adminNotes}, events.AppointmentCompleted)
}

// CancelAppointment cancels a pending or confirmed appointment. Patients may
// cancel only their own, only up to the configured lead time before the
// scheduled start, and must give a reason. Staff and the system sweep bypass
// the lead-time rule.
func (s *Service) CancelAppointment(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// The state check runs before any actor-specific precondition: a
	// terminal appointment reports the transition conflict, not a stale
	// reason or lead-time failure.
	if !CanTransition(appt.Status, StatusCancelled) {
		return nil, &InvalidTransitionError{From: appt.Status, Attempted: StatusCancelled}
	}

	switch actor.Role {
	case RolePatient:
		if actor.ID != appt.PatientID {
			return nil, &UnauthorizedError{Role: actor.Role, Action: "cancel another patient's appointment"}
		}
		if reason == "" {
			return nil, ErrReasonRequired
		}
		settings, err := s.repo.GetClinicSettings(ctx)
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		remaining := appt.StartAt(s.loc).Sub(s.now()).Hours()
		if remaining < float64(settings.CancellationHours) {
			return nil, &CancellationNotAllowedError{
				HoursRemaining: remaining,
				HoursRequired:  settings.CancellationHours,
			}
		}
	case RoleAdmin, RoleSecretary, RoleSystem:
		// no lead-time rule
	default:
		return nil, &UnauthorizedError{Role: actor.Role, Action: "cancel appointment"}
	}

	change := StatusChange{
		From:               appt.Status,
		To:                 StatusCancelled,
		CancelledBy:        cancelledBy(actor),
		CancellationReason: reason,
	}
	return s.applyChange(ctx, appt, change, events.AppointmentCancelled)
}

// MarkNoShow moves a confirmed appointment to no_show. Staff only, and only
// once the scheduled start time has passed.
func (s *Service) MarkNoShow(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	if !actor.IsStaff() && actor.Role != RoleSystem {
		return nil, &UnauthorizedError{Role: actor.Role, Action: "mark no-show"}
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, StatusNoShow) {
		return nil, &InvalidTransitionError{From: appt.Status, Attempted: StatusNoShow}
	}
	if appt.StartAt(s.loc).After(s.now()) {
		return nil, ErrAppointmentNotDue
	}

	return s.applyChange(ctx, appt, StatusChange{From: StatusConfirmed, To: StatusNoShow}, events.AppointmentNoShow)
}

// SweepNoShows marks every confirmed appointment whose start elapsed more
// than the grace period ago as no_show, attributed to the system actor.
// Intended to be called periodically by the worker.
func (s *Service) SweepNoShows(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := s.now().In(s.loc).Add(-grace)
	candidates, err := s.repo.FindElapsedConfirmed(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find elapsed confirmed appointments: %w", err)
	}

	swept := 0
	for _, appt := range candidates {
		a := appt
		if _, err := s.applyChange(ctx, &a, StatusChange{From: StatusConfirmed, To: StatusNoShow}, events.AppointmentNoShow); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue // lost the race to a staff transition
			}
			s.log.Error().Err(err).Stringer("appointment_id", appt.ID).Msg("no-show sweep failed for appointment")
			continue
		}
		swept++
	}
	return swept, nil
}

// GetAppointment returns one appointment. Patients see only their own.
func (s *Service) GetAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == RolePatient && actor.ID != appt.PatientID {
		return nil, ErrAppointmentNotFound
	}
	return appt, nil
}

// ListAppointments lists appointments. Patients are always scoped to their
// own regardless of the requested filter.
func (s *Service) ListAppointments(ctx context.Context, actor Actor, f AppointmentFilter) ([]Appointment, error) {
	if actor.Role == RolePatient {
		f.PatientID = &actor.ID
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.ListAppointments(ctx, f)
}

// transition is the simple CAS path shared by confirm and complete.
func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to Status, change StatusChange, eventType string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != from {
		return nil, &InvalidTransitionError{From: appt.Status, Attempted: to}
	}
	change.From = from
	change.To = to
	return s.applyChange(ctx, appt, change, eventType)
}

func (s *Service) applyChange(ctx context.Context, appt *Appointment, change StatusChange, eventType string) (*Appointment, error) {
	change.At = s.now()

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, change)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The CAS lost a race; reload to report the real current state.
			current, loadErr := s.repo.GetAppointmentByID(ctx, appt.ID)
			if loadErr != nil {
				return nil, loadErr
			}
			return nil, &InvalidTransitionError{From: current.Status, Attempted: change.To}
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	ev := events.Event{
		Type:          eventType,
		AppointmentID: updated.ID,
		PatientID:     updated.PatientID,
		Date:          updated.Date,
		Payload:       map[string]any{"from": string(change.From), "to": string(change.To)},
	}
	if change.CancelledBy != "" {
		ev.Payload["cancelled_by"] = string(change.CancelledBy)
	}
	s.dispatcher.Dispatch(ctx, ev)

	return updated, nil
}

func cancelledBy(actor Actor) CancelledBy {
	switch actor.Role {
	case RolePatient:
		return CancelledByPatient
	case RoleSystem:
		return CancelledBySystem
	default:
		return CancelledByAdmin
	}
}
