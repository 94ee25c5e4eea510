package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/clinicbook/clinic-booking/internal/booking"
	redisclient "github.com/clinicbook/clinic-booking/internal/redis"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps the booking error taxonomy onto HTTP statuses with
// structured reason codes, so clients can render precise messages. Anything
// outside the taxonomy is an infrastructure failure and surfaces as an
// opaque 500.
func writeDomainError(w http.ResponseWriter, err error) {
	var slotErr *booking.SlotNotAvailableError
	var cancelErr *booking.CancellationNotAllowedError
	var transitionErr *booking.InvalidTransitionError
	var authErr *booking.UnauthorizedError
	var validationErr *booking.ValidationError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "invalid_input", validationErr.Error())
	case errors.As(err, &slotErr):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "slot_not_available",
			Details: slotErr.Error(),
			Context: map[string]any{"reason": string(slotErr.Reason)},
		})
	case errors.As(err, &cancelErr):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "cancellation_not_allowed",
			Details: cancelErr.Error(),
			Context: map[string]any{
				"hours_remaining": fmt.Sprintf("%.1f", cancelErr.HoursRemaining),
				"hours_required":  cancelErr.HoursRequired,
			},
		})
	case errors.As(err, &transitionErr):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "invalid_transition",
			Details: transitionErr.Error(),
			Context: map[string]any{
				"from":      string(transitionErr.From),
				"attempted": string(transitionErr.Attempted),
			},
		})
	case errors.As(err, &authErr):
		writeError(w, http.StatusForbidden, "forbidden", authErr.Error())
	case errors.Is(err, booking.ErrBookingForOther):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound),
		errors.Is(err, booking.ErrPatientNotFound),
		errors.Is(err, booking.ErrVacationNotFound),
		errors.Is(err, booking.ErrSettingsNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, booking.ErrReasonRequired):
		writeError(w, http.StatusBadRequest, "reason_required", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotDue):
		writeError(w, http.StatusConflict, "appointment_not_due", err.Error())
	case errors.Is(err, booking.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
