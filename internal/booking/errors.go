package booking

import (
	"errors"
	"fmt"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrVacationNotFound    = errors.New("vacation not found")
	ErrSettingsNotFound    = errors.New("clinic settings not found")

	// ErrSlotFull and ErrDuplicateBooking are returned by the repository's
	// guarded insert; the service maps them onto the caller-facing taxonomy.
	ErrSlotFull         = errors.New("slot capacity exhausted")
	ErrDuplicateBooking = errors.New("patient already holds this slot")

	ErrReasonRequired      = errors.New("cancellation reason is required")
	ErrAppointmentNotDue   = errors.New("appointment time has not elapsed yet")
	ErrSlotBeingBooked     = errors.New("slot is currently being booked, please retry")
	ErrBookingForOther     = errors.New("patients may only book for themselves")
)

// ValidationError reports malformed administrative input (schedule,
// vacation or settings values that violate their invariants).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// UnavailableReason is the sub-reason attached to a failed booking attempt.
type UnavailableReason string

const (
	ReasonSlotTaken    UnavailableReason = "slot_taken"
	ReasonVacation     UnavailableReason = "vacation"
	ReasonOutsideHours UnavailableReason = "outside_hours"
	ReasonPastTime     UnavailableReason = "past_time"
)

// SlotNotAvailableError reports a booking attempt against a slot that cannot
// be booked, with the precise reason so callers can render it distinctly.
type SlotNotAvailableError struct {
	Reason UnavailableReason
}

func (e *SlotNotAvailableError) Error() string {
	return fmt.Sprintf("slot not available: %s", e.Reason)
}

// CancellationNotAllowedError reports a patient cancellation attempted too
// close to the appointment time.
type CancellationNotAllowedError struct {
	HoursRemaining float64
	HoursRequired  int
}

func (e *CancellationNotAllowedError) Error() string {
	return fmt.Sprintf("cancellation not allowed: %.1f hours remain, %d required", e.HoursRemaining, e.HoursRequired)
}

// InvalidTransitionError reports a lifecycle operation invoked against a
// status that does not permit it.
type InvalidTransitionError struct {
	From      Status
	Attempted Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.Attempted)
}

// UnauthorizedError reports an actor lacking permission for an action.
type UnauthorizedError struct {
	Role   Role
	Action string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("role %s may not %s", e.Role, e.Action)
}
