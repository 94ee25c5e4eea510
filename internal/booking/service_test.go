package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbook/clinic-booking/internal/booking"
	"github.com/clinicbook/clinic-booking/internal/cache"
	"github.com/clinicbook/clinic-booking/internal/events"
)

// inlineLocker serializes all booking critical sections in-process, standing
// in for the Redis slot lock.
type inlineLocker struct {
	mu sync.Mutex
}

func (l *inlineLocker) WithSlotLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

type fixture struct {
	repo    *booking.MemoryRepository
	svc     *booking.Service
	patient booking.Actor
	admin   booking.Actor
	now     time.Time
}

// newFixture pins the clock to Wednesday 2026-02-25 12:00 UTC with Sundays
// open 09:00-17:00 and one registered patient.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := booking.NewMemoryRepository()
	openSunday(t, repo, false)
	require.NoError(t, repo.UpdateClinicSettings(context.Background(), settings))

	patientID := uuid.New()
	repo.AddPatient(booking.Patient{ID: patientID, Name: "Test Patient"})

	now := time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	noop := cache.NewNoop()
	dispatcher := events.NewFanout(booking.NewEventRecorder(repo), noop, zerolog.Nop())
	calc := booking.NewCalculator(repo, noop, time.UTC, clock)
	svc := booking.NewService(repo, calc, &inlineLocker{}, dispatcher, time.UTC, clock, zerolog.Nop())

	return &fixture{
		repo:    repo,
		svc:     svc,
		patient: booking.Actor{ID: patientID, Role: booking.RolePatient},
		admin:   booking.Actor{ID: uuid.New(), Role: booking.RoleAdmin},
		now:     now,
	}
}

func (f *fixture) book(t *testing.T, slot string) *booking.Appointment {
	t.Helper()
	appt, err := f.svc.CreateAppointment(context.Background(), f.patient, f.patient.ID, sunday, mustTime(t, slot), "checkup", "")
	require.NoError(t, err)
	return appt
}

func TestCreateAppointment(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		f := newFixture(t)

		appt := f.book(t, "10:00")
		assert.Equal(t, booking.StatusPending, appt.Status)
		assert.Equal(t, f.patient.ID, appt.PatientID)
		assert.Equal(t, mustTime(t, "10:30"), appt.EndTime)

		evs := f.repo.Events()
		require.Len(t, evs, 1)
		assert.Equal(t, events.AppointmentCreated, evs[0].EventType)
	})

	t.Run("staff may not book", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.CreateAppointment(ctx, f.admin, f.patient.ID, sunday, mustTime(t, "10:00"), "x", "")
		var authErr *booking.UnauthorizedError
		require.ErrorAs(t, err, &authErr)
	})

	t.Run("patient may not book for another patient", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.CreateAppointment(ctx, f.patient, uuid.New(), sunday, mustTime(t, "10:00"), "x", "")
		assert.ErrorIs(t, err, booking.ErrBookingForOther)
	})

	t.Run("unknown patient", func(t *testing.T) {
		f := newFixture(t)
		stranger := booking.Actor{ID: uuid.New(), Role: booking.RolePatient}

		_, err := f.svc.CreateAppointment(ctx, stranger, stranger.ID, sunday, mustTime(t, "10:00"), "x", "")
		assert.ErrorIs(t, err, booking.ErrPatientNotFound)
	})

	t.Run("outside schedule hours", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.CreateAppointment(ctx, f.patient, f.patient.ID, sunday, mustTime(t, "08:00"), "x", "")
		var slotErr *booking.SlotNotAvailableError
		require.ErrorAs(t, err, &slotErr)
		assert.Equal(t, booking.ReasonOutsideHours, slotErr.Reason)
	})

	t.Run("beyond booking horizon", func(t *testing.T) {
		f := newFixture(t)

		farSunday := sunday.AddDate(0, 0, 7*10)
		_, err := f.svc.CreateAppointment(ctx, f.patient, f.patient.ID, farSunday, mustTime(t, "10:00"), "x", "")
		var slotErr *booking.SlotNotAvailableError
		require.ErrorAs(t, err, &slotErr)
		assert.Equal(t, booking.ReasonOutsideHours, slotErr.Reason)
	})

	t.Run("capacity exhausted", func(t *testing.T) {
		f := newFixture(t)
		f.book(t, "10:00")

		other := booking.Actor{ID: uuid.New(), Role: booking.RolePatient}
		f.repo.AddPatient(booking.Patient{ID: other.ID, Name: "Other"})

		_, err := f.svc.CreateAppointment(ctx, other, other.ID, sunday, mustTime(t, "10:00"), "x", "")
		var slotErr *booking.SlotNotAvailableError
		require.ErrorAs(t, err, &slotErr)
		assert.Equal(t, booking.ReasonSlotTaken, slotErr.Reason)
	})

	t.Run("same patient duplicate in freed capacity", func(t *testing.T) {
		f := newFixture(t)

		// Two patients per slot, but the same patient still cannot hold
		// the slot twice.
		multi := settings
		multi.MaxPatientsPerSlot = 2
		require.NoError(t, f.repo.UpdateClinicSettings(ctx, multi))

		f.book(t, "10:00")
		_, err := f.svc.CreateAppointment(ctx, f.patient, f.patient.ID, sunday, mustTime(t, "10:00"), "again", "")
		var slotErr *booking.SlotNotAvailableError
		require.ErrorAs(t, err, &slotErr)
		assert.Equal(t, booking.ReasonSlotTaken, slotErr.Reason)
	})
}

func TestCreateAppointmentConcurrentCapacity(t *testing.T) {
	f := newFixture(t)

	multi := settings
	multi.MaxPatientsPerSlot = 3
	require.NoError(t, f.repo.UpdateClinicSettings(context.Background(), multi))

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		actor := booking.Actor{ID: uuid.New(), Role: booking.RolePatient}
		f.repo.AddPatient(booking.Patient{ID: actor.ID})

		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateAppointment(context.Background(), actor, actor.ID, sunday, mustTime(t, "10:00"), "x", "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 3, succeeded)

	counts, err := f.repo.CountActiveBySlot(context.Background(), sunday)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[mustTime(t, "10:00")])
}

func TestConfirmAppointment(t *testing.T) {
	ctx := context.Background()

	t.Run("staff confirms pending", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, "10:00")

		confirmed, err := f.svc.ConfirmAppointment(ctx, f.admin, appt.ID)
		require.NoError(t, err)
		assert.Equal(t, booking.StatusConfirmed, confirmed.Status)
		require.NotNil(t, confirmed.ConfirmedAt)
		assert.Equal(t, f.now, *confirmed.ConfirmedAt)
	})

	t.Run("patient may not confirm", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, "10:00")

		_, err := f.svc.ConfirmAppointment(ctx, f.patient, appt.ID)
		var authErr *booking.UnauthorizedError
		require.ErrorAs(t, err, &authErr)
	})

	t.Run("confirm from wrong state", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, "10:00")
		_, err := f.svc.ConfirmAppointment(ctx, f.admin, appt.ID)
		require.NoError(t, err)

		_, err = f.svc.ConfirmAppointment(ctx, f.admin, appt.ID)
		var transErr *booking.InvalidTransitionError
		require.ErrorAs(t, err, &transErr)
		assert.Equal(t, booking.StatusConfirmed, transErr.From)
		assert.Equal(t, booking.StatusConfirmed, transErr.Attempted)
	})
}

func TestCompleteAppointment(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmed completes", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, "10:00")
		_, err := f.svc.ConfirmAppointment(ctx, f.admin, appt.ID)
		require.NoError(t, err)

		done, err := f.svc.CompleteAppointment(ctx, f.admin, appt.ID, "routine visit")
		require.NoError(t, err)
		assert.Equal(t, booking.StatusCompleted, done.Status)
		assert.Equal(t, "routine visit", done.AdminNotes)
		require.NotNil(t, done.CompletedAt)
	})

	t.Run("pending cannot complete directly", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, "10:00")

		_, err := f.svc.CompleteAppointment(ctx, f.admin, appt.ID, "")
		var transErr *booking.InvalidTransitionError
		require.ErrorAs(t, err, &transErr)
		assert.Equal(t, booking.StatusPending, transErr.From)
		assert.Equal(t, booking.StatusCompleted, transErr.Attempted)
	})
}

func TestCancelAppointment(t *testing.T) {
	ctx := context.Background()

	// insert puts an appointment at an exact lead time from the fixture
	// clock, bypassing booking validation.
	insert := func(t *testing.T, f *fixture, lead time.Duration) *booking.Appointment {
		t.Helper()
		at := f.now.Add(lead)
		appt, err := f.repo.CreateAppointment(ctx, booking.CreateParams{
			PatientID:          f.patient.ID,
			Date:               booking.DateOf(at),
			SlotTime:           booking.TimeOfDay(at.Hour()*60 + at.Minute()),
			EndTime:            booking.TimeOfDay(at.Hour()*60 + at.Minute() + 30),
			MaxPatientsPerSlot: 1,
		})
		require.NoError(t, err)
		return appt
	}

	t.Run("patient cancels with enough lead time", func(t *testing.T) {
		f := newFixture(t)
		appt := insert(t, f, 25*time.Hour)

		cancelled, err := f.svc.CancelAppointment(ctx, f.patient, appt.ID, "conflict")
		require.NoError(t, err)
		assert.Equal(t, booking.StatusCancelled, cancelled.Status)
		assert.Equal(t, booking.CancelledByPatient, cancelled.CancelledBy)
		assert.Equal(t, "conflict", cancelled.CancellationReason)
		require.NotNil(t, cancelled.CancelledAt)
	})

	t.Run("patient too late", func(t *testing.T) {
		f := newFixture(t)
		appt := insert(t, f, 23*time.Hour)

		_, err := f.svc.CancelAppointment(ctx, f.patient, appt.ID, "conflict")
		var cancelErr *booking.CancellationNotAllowedError
		require.ErrorAs(t, err, &cancelErr)
		assert.Equal(t, 24, cancelErr.HoursRequired)
		assert.InDelta(t, 23.0, cancelErr.HoursRemaining, 0.01)
	})

	t.Run("staff bypasses lead time", func(t *testing.T) {
		f := newFixture(t)
		appt := insert(t, f, 23*time.Hour)

		cancelled, err := f.svc.CancelAppointment(ctx, f.admin, appt.ID, "")
		require.NoError(t, err)
		assert.Equal(t, booking.CancelledByAdmin, cancelled.CancelledBy)
	})

	t.Run("patient reason required", func(t *testing.T) {
		f := newFixture(t)
		appt := insert(t, f, 48*time.Hour)

		_, err := f.svc.CancelAppointment(ctx, f.patient, appt.ID, "")
		assert.ErrorIs(t, err, booking.ErrReasonRequired)
	})

	t.Run("patient may not cancel someone else's", func(t *testing.T) {
		f := newFixture(t)
		appt := insert(t, f, 48*time.Hour)
		stranger := booking.Actor{ID: uuid.New(), Role: booking.RolePatient}

		_, err := f.svc.CancelAppointment(ctx, stranger, appt.ID, "x")
		var authErr *booking.UnauthorizedError
		require.ErrorAs(t, err, &authErr)
	})

	t.Run("re-cancel inside the lead-time window reports the transition conflict", func(t *testing.T) {
		f := newFixture(t)
		appt := insert(t, f, 23*time.Hour)
		_, err := f.svc.CancelAppointment(ctx, f.admin, appt.ID, "")
		require.NoError(t, err)

		// Terminal state wins over the lead-time rule and the reason
		// requirement.
		var transErr *booking.InvalidTransitionError
		_, err = f.svc.CancelAppointment(ctx, f.patient, appt.ID, "changed my mind")
		require.ErrorAs(t, err, &transErr)
		assert.Equal(t, booking.StatusCancelled, transErr.From)

		_, err = f.svc.CancelAppointment(ctx, f.patient, appt.ID, "")
		assert.ErrorAs(t, err, &transErr)
	})

	t.Run("cancelling frees the slot", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, "10:00")

		_, err := f.svc.CancelAppointment(ctx, f.admin, appt.ID, "")
		require.NoError(t, err)

		other := booking.Actor{ID: uuid.New(), Role: booking.RolePatient}
		f.repo.AddPatient(booking.Patient{ID: other.ID})
		_, err = f.svc.CreateAppointment(ctx, other, other.ID, sunday, mustTime(t, "10:00"), "x", "")
		assert.NoError(t, err)
	})
}

func TestMarkNoShow(t *testing.T) {
	ctx := context.Background()

	// confirmedAt inserts a confirmed appointment at the given offset from
	// the fixture clock.
	confirmedAt := func(t *testing.T, f *fixture, lead time.Duration) *booking.Appointment {
		t.Helper()
		at := f.now.Add(lead)
		appt, err := f.repo.CreateAppointment(ctx, booking.CreateParams{
			PatientID:          f.patient.ID,
			Date:               booking.DateOf(at),
			SlotTime:           booking.TimeOfDay(at.Hour()*60 + at.Minute()),
			EndTime:            booking.TimeOfDay(at.Hour()*60 + at.Minute() + 30),
			MaxPatientsPerSlot: 1,
		})
		require.NoError(t, err)
		confirmed, err := f.repo.UpdateAppointmentStatus(ctx, appt.ID, booking.StatusChange{
			From: booking.StatusPending, To: booking.StatusConfirmed, At: f.now,
		})
		require.NoError(t, err)
		return confirmed
	}

	t.Run("elapsed confirmed becomes no_show", func(t *testing.T) {
		f := newFixture(t)
		appt := confirmedAt(t, f, -3*time.Hour)

		marked, err := f.svc.MarkNoShow(ctx, f.admin, appt.ID)
		require.NoError(t, err)
		assert.Equal(t, booking.StatusNoShow, marked.Status)
	})

	t.Run("future appointment cannot be marked", func(t *testing.T) {
		f := newFixture(t)
		appt := confirmedAt(t, f, 3*time.Hour)

		_, err := f.svc.MarkNoShow(ctx, f.admin, appt.ID)
		assert.ErrorIs(t, err, booking.ErrAppointmentNotDue)
	})

	t.Run("patient may not mark", func(t *testing.T) {
		f := newFixture(t)
		appt := confirmedAt(t, f, -3*time.Hour)

		_, err := f.svc.MarkNoShow(ctx, f.patient, appt.ID)
		var authErr *booking.UnauthorizedError
		require.ErrorAs(t, err, &authErr)
	})

	t.Run("pending cannot be marked", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, "10:00")

		_, err := f.svc.MarkNoShow(ctx, f.admin, appt.ID)
		var transErr *booking.InvalidTransitionError
		require.ErrorAs(t, err, &transErr)
	})

	t.Run("sweep marks only elapsed", func(t *testing.T) {
		f := newFixture(t)
		past := confirmedAt(t, f, -2*time.Hour)
		future := confirmedAt(t, f, 5*time.Hour)

		swept, err := f.svc.SweepNoShows(ctx, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 1, swept)

		got, err := f.repo.GetAppointmentByID(ctx, past.ID)
		require.NoError(t, err)
		assert.Equal(t, booking.StatusNoShow, got.Status)

		got, err = f.repo.GetAppointmentByID(ctx, future.ID)
		require.NoError(t, err)
		assert.Equal(t, booking.StatusConfirmed, got.Status)
	})
}

func TestTerminalStatesAreFinal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	appt := f.book(t, "10:00")
	_, err := f.svc.CancelAppointment(ctx, f.admin, appt.ID, "closed early")
	require.NoError(t, err)

	var transErr *booking.InvalidTransitionError

	_, err = f.svc.ConfirmAppointment(ctx, f.admin, appt.ID)
	require.ErrorAs(t, err, &transErr)

	_, err = f.svc.CompleteAppointment(ctx, f.admin, appt.ID, "")
	require.ErrorAs(t, err, &transErr)

	_, err = f.svc.CancelAppointment(ctx, f.admin, appt.ID, "")
	require.ErrorAs(t, err, &transErr)

	_, err = f.svc.MarkNoShow(ctx, f.admin, appt.ID)
	require.ErrorAs(t, err, &transErr)
}

func TestListAppointmentsScoping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	mine := f.book(t, "10:00")

	other := booking.Actor{ID: uuid.New(), Role: booking.RolePatient}
	f.repo.AddPatient(booking.Patient{ID: other.ID})
	_, err := f.svc.CreateAppointment(ctx, other, other.ID, sunday, mustTime(t, "11:00"), "x", "")
	require.NoError(t, err)

	// Patient listing is always scoped to themselves, even when the filter
	// asks for someone else.
	listed, err := f.svc.ListAppointments(ctx, f.patient, booking.AppointmentFilter{PatientID: &other.ID})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, mine.ID, listed[0].ID)

	// Staff see everything for the date.
	all, err := f.svc.ListAppointments(ctx, f.admin, booking.AppointmentFilter{Date: &sunday})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Patients cannot fetch someone else's appointment by ID either.
	_, err = f.svc.GetAppointment(ctx, other, mine.ID)
	assert.ErrorIs(t, err, booking.ErrAppointmentNotFound)
}
