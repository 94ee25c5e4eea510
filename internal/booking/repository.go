package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CreateParams carries everything the repository needs to insert a pending
// appointment. The capacity recheck happens inside the insert transaction,
// so MaxPatientsPerSlot travels with the request.
type CreateParams struct {
	PatientID          uuid.UUID
	Date               time.Time
	SlotTime           TimeOfDay
	EndTime            TimeOfDay
	Reason             string
	Notes              string
	MaxPatientsPerSlot int
}

// StatusChange is a compare-and-swap status update: the row moves From -> To
// only if it is still in From, otherwise ErrAppointmentNotFound is returned
// and the caller reloads to find out what happened.
type StatusChange struct {
	From               Status
	To                 Status
	At                 time.Time
	CancelledBy        CancelledBy // cancel only
	CancellationReason string      // cancel only
	AdminNotes         string      // optional, staff transitions
}

// AppointmentFilter narrows staff listings.
type AppointmentFilter struct {
	Date      *time.Time
	PatientID *uuid.UUID
	Status    *Status
	Limit     int
	Offset    int
}

// Repository contains all store interactions needed by the calculator and
// the lifecycle service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Weekly schedule, vacations, settings: administrative configuration,
	// read-only to the calculator.
	GetScheduleDay(ctx context.Context, weekday time.Weekday) (*ScheduleDay, error)
	ListScheduleDays(ctx context.Context) ([]ScheduleDay, error)
	ReplaceSchedule(ctx context.Context, days []ScheduleDay) error

	ListVacations(ctx context.Context) ([]Vacation, error)
	VacationCovering(ctx context.Context, date time.Time) (*Vacation, error)
	CreateVacation(ctx context.Context, v Vacation) (*Vacation, error)
	DeleteVacation(ctx context.Context, id uuid.UUID) error

	GetClinicSettings(ctx context.Context) (ClinicSettings, error)
	UpdateClinicSettings(ctx context.Context, s ClinicSettings) error

	// CountActiveBySlot returns, for one date, the number of non-cancelled
	// appointments per slot start time.
	CountActiveBySlot(ctx context.Context, date time.Time) (map[TimeOfDay]int, error)

	// CreateAppointment inserts a pending appointment after rechecking, in
	// the same transaction, that capacity remains and the patient does not
	// already hold the slot. Returns ErrSlotFull or ErrDuplicateBooking.
	CreateAppointment(ctx context.Context, p CreateParams) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, change StatusChange) (*Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error)

	// FindElapsedConfirmed returns confirmed appointments whose scheduled
	// start is at or before the cutoff, which is clinic-local wall time.
	// Used by the no-show sweep.
	FindElapsedConfirmed(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
