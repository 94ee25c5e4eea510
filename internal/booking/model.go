package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// transitions lists, per current status, the statuses an appointment may
// move to. Terminal statuses have no entry.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// IsActive reports whether an appointment in this status still occupies
// slot capacity. Cancelled appointments release their slot; completed and
// no_show ones are in the past and never contend with bookable slots.
func (s Status) IsActive() bool {
	return s != StatusCancelled
}

type Role string

const (
	RolePatient   Role = "patient"
	RoleSecretary Role = "secretary"
	RoleAdmin     Role = "admin"
	RoleSystem    Role = "system"
)

// Actor is whoever is invoking a lifecycle operation. The system actor is
// used by automated sweeps (no HTTP principal behind it).
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleSecretary
}

// SystemActor is the principal recorded for worker-initiated transitions.
var SystemActor = Actor{Role: RoleSystem}

type CancelledBy string

const (
	CancelledByPatient CancelledBy = "patient"
	CancelledByAdmin   CancelledBy = "admin"
	CancelledBySystem  CancelledBy = "system"
)

// ScheduleDay is one weekly working-hours entry. At most one exists per
// weekday; an inactive or missing entry means the clinic is closed that day.
type ScheduleDay struct {
	Weekday    time.Weekday
	Start      TimeOfDay
	End        TimeOfDay
	BreakStart *TimeOfDay
	BreakEnd   *TimeOfDay
	Active     bool
}

func (d ScheduleDay) Validate() error {
	if d.Start >= d.End {
		return validationErrorf("schedule %s: start %s must be before end %s", d.Weekday, d.Start, d.End)
	}
	if (d.BreakStart == nil) != (d.BreakEnd == nil) {
		return validationErrorf("schedule %s: break start and end must be set together", d.Weekday)
	}
	if d.BreakStart != nil {
		if *d.BreakStart >= *d.BreakEnd {
			return validationErrorf("schedule %s: break start %s must be before break end %s", d.Weekday, *d.BreakStart, *d.BreakEnd)
		}
		if *d.BreakStart < d.Start || *d.BreakEnd > d.End {
			return validationErrorf("schedule %s: break must fall within working hours", d.Weekday)
		}
	}
	return nil
}

// Vacation is a closed date interval during which no slots are offered,
// whatever the weekly schedule says.
type Vacation struct {
	ID        uuid.UUID
	StartDate time.Time
	EndDate   time.Time
	Reason    string
	CreatedAt time.Time
}

func (v Vacation) Validate() error {
	if v.EndDate.Before(v.StartDate) {
		return validationErrorf("vacation: end date %s before start date %s",
			v.EndDate.Format("2006-01-02"), v.StartDate.Format("2006-01-02"))
	}
	return nil
}

func (v Vacation) Contains(date time.Time) bool {
	d := DateOf(date)
	return !d.Before(DateOf(v.StartDate)) && !d.After(DateOf(v.EndDate))
}

// ClinicSettings is the singleton booking configuration. It is loaded per
// operation and passed explicitly; nothing in this package holds it as
// process state.
type ClinicSettings struct {
	SlotDurationMinutes int
	MaxPatientsPerSlot  int
	AdvanceBookingDays  int
	CancellationHours   int
}

func (s ClinicSettings) Validate() error {
	if s.SlotDurationMinutes <= 0 {
		return validationErrorf("settings: slot duration must be positive, got %d", s.SlotDurationMinutes)
	}
	if s.MaxPatientsPerSlot <= 0 {
		return validationErrorf("settings: max patients per slot must be positive, got %d", s.MaxPatientsPerSlot)
	}
	if s.AdvanceBookingDays < 0 {
		return validationErrorf("settings: advance booking days must not be negative, got %d", s.AdvanceBookingDays)
	}
	if s.CancellationHours < 0 {
		return validationErrorf("settings: cancellation hours must not be negative, got %d", s.CancellationHours)
	}
	return nil
}

// Slot is a derived bookable window on a specific date. Never persisted.
type Slot struct {
	Start     TimeOfDay `json:"start"`
	End       TimeOfDay `json:"end"`
	Available bool      `json:"available"`
	Remaining int       `json:"remaining"`
}

// DateAvailability is one entry of the booking-horizon listing.
type DateAvailability struct {
	Date      time.Time `json:"date"`
	OpenSlots int       `json:"open_slots"`
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID                 uuid.UUID
	PatientID          uuid.UUID
	Date               time.Time // date-only, midnight UTC
	SlotTime           TimeOfDay
	EndTime            TimeOfDay
	Status             Status
	Reason             string
	Notes              string
	AdminNotes         string
	CancellationReason string
	CancelledBy        CancelledBy
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StartAt is the appointment's scheduled start as a wall-clock instant in
// the clinic's timezone.
func (a *Appointment) StartAt(loc *time.Location) time.Time {
	return a.SlotTime.At(a.Date, loc)
}

// EventLog is one persisted domain-event row, the outbound feed consumed by
// notification senders.
type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
