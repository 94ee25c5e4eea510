package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbook/clinic-booking/internal/booking"
	"github.com/clinicbook/clinic-booking/internal/cache"
)

// 2026-03-01 is a Sunday.
var (
	sunday   = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	settings = booking.ClinicSettings{
		SlotDurationMinutes: 30,
		MaxPatientsPerSlot:  1,
		AdvanceBookingDays:  30,
		CancellationHours:   24,
	}
)

func mustTime(t *testing.T, s string) booking.TimeOfDay {
	t.Helper()
	tod, err := booking.ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func openSunday(t *testing.T, repo *booking.MemoryRepository, withBreak bool) {
	t.Helper()
	day := booking.ScheduleDay{
		Weekday: time.Sunday,
		Start:   mustTime(t, "09:00"),
		End:     mustTime(t, "17:00"),
		Active:  true,
	}
	if withBreak {
		bs := mustTime(t, "13:00")
		be := mustTime(t, "14:00")
		day.BreakStart = &bs
		day.BreakEnd = &be
	}
	require.NoError(t, repo.ReplaceSchedule(context.Background(), []booking.ScheduleDay{day}))
}

func newCalculator(repo *booking.MemoryRepository, now time.Time) *booking.Calculator {
	return booking.NewCalculator(repo, cache.NewNoop(), time.UTC, func() time.Time { return now })
}

func TestSlotsForDateFullOpenDay(t *testing.T) {
	repo := booking.NewMemoryRepository()
	openSunday(t, repo, false)
	calc := newCalculator(repo, time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC))

	slots, err := calc.SlotsForDate(context.Background(), settings, sunday)
	require.NoError(t, err)
	require.Len(t, slots, 16)

	assert.Equal(t, mustTime(t, "09:00"), slots[0].Start)
	assert.Equal(t, mustTime(t, "09:30"), slots[0].End)
	assert.Equal(t, mustTime(t, "16:30"), slots[15].Start)
	assert.Equal(t, mustTime(t, "17:00"), slots[15].End)

	for _, s := range slots {
		assert.True(t, s.Available)
		assert.Equal(t, 1, s.Remaining)
	}
}

func TestSlotsForDateBreakExclusion(t *testing.T) {
	repo := booking.NewMemoryRepository()
	openSunday(t, repo, true)
	calc := newCalculator(repo, time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC))

	slots, err := calc.SlotsForDate(context.Background(), settings, sunday)
	require.NoError(t, err)

	starts := make(map[booking.TimeOfDay]bool)
	for _, s := range slots {
		starts[s.Start] = true
	}

	assert.True(t, starts[mustTime(t, "12:30")])
	assert.False(t, starts[mustTime(t, "13:00")])
	assert.False(t, starts[mustTime(t, "13:30")])
	assert.True(t, starts[mustTime(t, "14:00")])
	assert.Len(t, slots, 14)
}

func TestSlotsForDateClosedDay(t *testing.T) {
	repo := booking.NewMemoryRepository()
	openSunday(t, repo, false)
	calc := newCalculator(repo, time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC))

	// Monday has no schedule entry at all.
	monday := sunday.AddDate(0, 0, 1)
	slots, err := calc.SlotsForDate(context.Background(), settings, monday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlotsForDateVacationDominance(t *testing.T) {
	repo := booking.NewMemoryRepository()
	openSunday(t, repo, false)
	_, err := repo.CreateVacation(context.Background(), booking.Vacation{
		StartDate: sunday.AddDate(0, 0, -2),
		EndDate:   sunday.AddDate(0, 0, 2),
		Reason:    "renovation",
	})
	require.NoError(t, err)

	calc := newCalculator(repo, time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC))
	slots, err := calc.SlotsForDate(context.Background(), settings, sunday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlotsForDatePastTimeExclusion(t *testing.T) {
	repo := booking.NewMemoryRepository()
	openSunday(t, repo, false)

	// Clock pinned to 10:15 on the queried date.
	calc := newCalculator(repo, time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC))
	slots, err := calc.SlotsForDate(context.Background(), settings, sunday)
	require.NoError(t, err)

	byStart := make(map[booking.TimeOfDay]booking.Slot)
	for _, s := range slots {
		byStart[s.Start] = s
	}

	assert.False(t, byStart[mustTime(t, "10:00")].Available)
	assert.Equal(t, 0, byStart[mustTime(t, "10:00")].Remaining)
	assert.True(t, byStart[mustTime(t, "10:30")].Available)
}

func TestSlotsForDateBookedSlot(t *testing.T) {
	repo := booking.NewMemoryRepository()
	openSunday(t, repo, false)

	_, err := repo.CreateAppointment(context.Background(), booking.CreateParams{
		PatientID:          uuid.New(),
		Date:               sunday,
		SlotTime:           mustTime(t, "10:00"),
		EndTime:            mustTime(t, "10:30"),
		MaxPatientsPerSlot: 1,
	})
	require.NoError(t, err)

	calc := newCalculator(repo, time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC))
	slots, err := calc.SlotsForDate(context.Background(), settings, sunday)
	require.NoError(t, err)

	for _, s := range slots {
		if s.Start == mustTime(t, "10:00") {
			assert.False(t, s.Available)
			assert.Equal(t, 0, s.Remaining)
		} else {
			assert.True(t, s.Available, "slot %s should be unaffected", s.Start)
			assert.Equal(t, 1, s.Remaining)
		}
	}
}

func TestSlotsForDateUnevenFinalWindowDropped(t *testing.T) {
	repo := booking.NewMemoryRepository()
	day := booking.ScheduleDay{
		Weekday: time.Sunday,
		Start:   mustTime(t, "09:00"),
		End:     mustTime(t, "10:15"),
		Active:  true,
	}
	require.NoError(t, repo.ReplaceSchedule(context.Background(), []booking.ScheduleDay{day}))

	calc := newCalculator(repo, time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC))
	slots, err := calc.SlotsForDate(context.Background(), settings, sunday)
	require.NoError(t, err)

	// 09:00 and 09:30 fit; a 10:00-10:30 window would extend past 10:15.
	require.Len(t, slots, 2)
	assert.Equal(t, mustTime(t, "09:30"), slots[1].Start)
}

func TestAvailableDates(t *testing.T) {
	repo := booking.NewMemoryRepository()
	openSunday(t, repo, false)
	calc := newCalculator(repo, time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC))

	from := time.Date(2026, 2, 26, 0, 0, 0, 0, time.UTC)
	dates, err := calc.AvailableDates(context.Background(), settings, from, 10)
	require.NoError(t, err)

	// Only Sundays are open: 2026-03-01 and 2026-03-08 fall in the window.
	require.Len(t, dates, 2)
	assert.Equal(t, sunday, dates[0].Date)
	assert.Equal(t, 16, dates[0].OpenSlots)
	assert.Equal(t, sunday.AddDate(0, 0, 7), dates[1].Date)
	assert.True(t, dates[0].Date.Before(dates[1].Date))
}

func TestCheckSlotReasons(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC)

	t.Run("outside hours", func(t *testing.T) {
		repo := booking.NewMemoryRepository()
		openSunday(t, repo, false)
		calc := newCalculator(repo, now)

		err := calc.CheckSlot(ctx, settings, sunday, mustTime(t, "08:00"))
		var slotErr *booking.SlotNotAvailableError
		require.ErrorAs(t, err, &slotErr)
		assert.Equal(t, booking.ReasonOutsideHours, slotErr.Reason)

		// Misaligned time inside working hours is also not a real slot.
		err = calc.CheckSlot(ctx, settings, sunday, mustTime(t, "09:15"))
		require.ErrorAs(t, err, &slotErr)
		assert.Equal(t, booking.ReasonOutsideHours, slotErr.Reason)
	})

	t.Run("vacation", func(t *testing.T) {
		repo := booking.NewMemoryRepository()
		openSunday(t, repo, false)
		_, err := repo.CreateVacation(ctx, booking.Vacation{StartDate: sunday, EndDate: sunday})
		require.NoError(t, err)
		calc := newCalculator(repo, now)

		var slotErr *booking.SlotNotAvailableError
		err = calc.CheckSlot(ctx, settings, sunday, mustTime(t, "10:00"))
		require.ErrorAs(t, err, &slotErr)
		assert.Equal(t, booking.ReasonVacation, slotErr.Reason)
	})

	t.Run("past time", func(t *testing.T) {
		repo := booking.NewMemoryRepository()
		openSunday(t, repo, false)
		calc := newCalculator(repo, time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC))

		var slotErr *booking.SlotNotAvailableError
		err := calc.CheckSlot(ctx, settings, sunday, mustTime(t, "10:00"))
		require.ErrorAs(t, err, &slotErr)
		assert.Equal(t, booking.ReasonPastTime, slotErr.Reason)

		assert.NoError(t, calc.CheckSlot(ctx, settings, sunday, mustTime(t, "10:30")))
	})

	t.Run("slot taken", func(t *testing.T) {
		repo := booking.NewMemoryRepository()
		openSunday(t, repo, false)
		_, err := repo.CreateAppointment(ctx, booking.CreateParams{
			PatientID:          uuid.New(),
			Date:               sunday,
			SlotTime:           mustTime(t, "10:00"),
			EndTime:            mustTime(t, "10:30"),
			MaxPatientsPerSlot: 1,
		})
		require.NoError(t, err)
		calc := newCalculator(repo, now)

		var slotErr *booking.SlotNotAvailableError
		err = calc.CheckSlot(ctx, settings, sunday, mustTime(t, "10:00"))
		require.ErrorAs(t, err, &slotErr)
		assert.Equal(t, booking.ReasonSlotTaken, slotErr.Reason)
	})
}
