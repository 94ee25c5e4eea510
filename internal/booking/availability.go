package booking

import (
	"context"
	"fmt"
	"time"
)

// SlotCache memoizes computed slot lists per date. Implementations must be
// safe for concurrent use and treat their own failures as misses; a broken
// cache never fails an availability query.
//
// Cached entries hold capacity-derived availability only. The same-day
// past-start exclusion is applied after the cache read, so entries stay
// valid for a full day and only appointment/configuration changes force
// invalidation.
type SlotCache interface {
	GetSlots(ctx context.Context, date time.Time) ([]Slot, bool)
	SetSlots(ctx context.Context, date time.Time, slots []Slot)
	InvalidateDate(ctx context.Context, date time.Time)
	InvalidateAll(ctx context.Context)
}

// Calculator computes bookable slots from the weekly schedule, vacations and
// booked appointments. It holds no mutable state of its own: every call
// reads the store, so results always reflect the configuration at call time.
type Calculator struct {
	repo  Repository
	cache SlotCache
	loc   *time.Location
	now   func() time.Time
}

func NewCalculator(repo Repository, cache SlotCache, loc *time.Location, now func() time.Time) *Calculator {
	if now == nil {
		now = time.Now
	}
	return &Calculator{repo: repo, cache: cache, loc: loc, now: now}
}

// SlotsForDate returns the ordered slot list for one date. A closed day or a
// vacation date yields an empty list. Out-of-horizon dates are not rejected
// here; range enforcement belongs to booking validation.
func (c *Calculator) SlotsForDate(ctx context.Context, settings ClinicSettings, date time.Time) ([]Slot, error) {
	date = DateOf(date)

	if slots, ok := c.cache.GetSlots(ctx, date); ok {
		return c.maskElapsed(date, slots), nil
	}

	slots, err := c.computeSlots(ctx, settings, date)
	if err != nil {
		return nil, err
	}

	c.cache.SetSlots(ctx, date, slots)
	return c.maskElapsed(date, slots), nil
}

func (c *Calculator) computeSlots(ctx context.Context, settings ClinicSettings, date time.Time) ([]Slot, error) {
	day, err := c.repo.GetScheduleDay(ctx, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load schedule day: %w", err)
	}
	if day == nil || !day.Active {
		return []Slot{}, nil
	}

	vac, err := c.repo.VacationCovering(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("check vacations: %w", err)
	}
	if vac != nil {
		return []Slot{}, nil
	}

	counts, err := c.repo.CountActiveBySlot(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("count booked slots: %w", err)
	}

	windows := slotWindows(*day, settings.SlotDurationMinutes)
	slots := make([]Slot, 0, len(windows))
	for _, w := range windows {
		remaining := settings.MaxPatientsPerSlot - counts[w.start]
		if remaining < 0 {
			remaining = 0
		}
		slots = append(slots, Slot{
			Start:     w.start,
			End:       w.end,
			Available: remaining > 0,
			Remaining: remaining,
		})
	}
	return slots, nil
}

// maskElapsed marks slots whose start has already passed as unavailable when
// the date is today. Past slots are never bookable even with capacity left.
func (c *Calculator) maskElapsed(date time.Time, slots []Slot) []Slot {
	now := c.now().In(c.loc)
	if !SameDate(date, now) {
		return slots
	}
	elapsed := TimeOfDay(now.Hour()*60 + now.Minute())
	out := make([]Slot, len(slots))
	copy(out, slots)
	for i := range out {
		if out[i].Start <= elapsed {
			out[i].Available = false
			out[i].Remaining = 0
		}
	}
	return out
}

// AvailableDates lists every date in [from, from+horizonDays] that has at
// least one open slot, with its open-slot count, ordered by date.
func (c *Calculator) AvailableDates(ctx context.Context, settings ClinicSettings, from time.Time, horizonDays int) ([]DateAvailability, error) {
	from = DateOf(from)

	var out []DateAvailability
	for i := 0; i <= horizonDays; i++ {
		date := from.AddDate(0, 0, i)
		slots, err := c.SlotsForDate(ctx, settings, date)
		if err != nil {
			return nil, err
		}
		open := 0
		for _, s := range slots {
			if s.Available {
				open++
			}
		}
		if open > 0 {
			out = append(out, DateAvailability{Date: date, OpenSlots: open})
		}
	}
	return out, nil
}

// CheckSlot validates one (date, time) pair for booking and reports the
// precise reason it cannot be booked. Capacity is deliberately rechecked
// again inside the insert transaction; this pass exists to classify the
// failure for the caller.
func (c *Calculator) CheckSlot(ctx context.Context, settings ClinicSettings, date time.Time, t TimeOfDay) error {
	date = DateOf(date)

	now := c.now().In(c.loc)
	if !t.At(date, c.loc).After(now) {
		return &SlotNotAvailableError{Reason: ReasonPastTime}
	}

	day, err := c.repo.GetScheduleDay(ctx, date.Weekday())
	if err != nil {
		return fmt.Errorf("load schedule day: %w", err)
	}
	if day == nil || !day.Active {
		return &SlotNotAvailableError{Reason: ReasonOutsideHours}
	}

	vac, err := c.repo.VacationCovering(ctx, date)
	if err != nil {
		return fmt.Errorf("check vacations: %w", err)
	}
	if vac != nil {
		return &SlotNotAvailableError{Reason: ReasonVacation}
	}

	found := false
	for _, w := range slotWindows(*day, settings.SlotDurationMinutes) {
		if w.start == t {
			found = true
			break
		}
	}
	if !found {
		return &SlotNotAvailableError{Reason: ReasonOutsideHours}
	}

	counts, err := c.repo.CountActiveBySlot(ctx, date)
	if err != nil {
		return fmt.Errorf("count booked slots: %w", err)
	}
	if settings.MaxPatientsPerSlot-counts[t] <= 0 {
		return &SlotNotAvailableError{Reason: ReasonSlotTaken}
	}

	return nil
}

type window struct {
	start TimeOfDay
	end   TimeOfDay
}

// slotWindows steps from the day's start to its end in slot-duration
// increments. A window overlapping the break in any way is excluded, as is
// a final window that would extend past the end of the day.
func slotWindows(day ScheduleDay, durationMinutes int) []window {
	var out []window
	for t := day.Start; t.Add(durationMinutes) <= day.End; t = t.Add(durationMinutes) {
		end := t.Add(durationMinutes)
		if day.BreakStart != nil && t < *day.BreakEnd && end > *day.BreakStart {
			continue
		}
		out = append(out, window{start: t, end: end})
	}
	return out
}
