package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic-booking/internal/booking"
)

type CreateAppointmentRequest struct {
	Date     string `json:"date"`      // YYYY-MM-DD
	SlotTime string `json:"slot_time"` // HH:MM
	Reason   string `json:"reason"`
	Notes    string `json:"notes,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason,omitempty"`
}

type CompleteAppointmentRequest struct {
	AdminNotes string `json:"admin_notes,omitempty"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	PatientID          uuid.UUID  `json:"patient_id"`
	Date               string     `json:"date"`
	SlotTime           string     `json:"slot_time"`
	EndTime            string     `json:"end_time"`
	Status             string     `json:"status"`
	Reason             string     `json:"reason,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	AdminNotes         string     `json:"admin_notes,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancelledBy        string     `json:"cancelled_by,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		Date:               a.Date.Format("2006-01-02"),
		SlotTime:           a.SlotTime.String(),
		EndTime:            a.EndTime.String(),
		Status:             string(a.Status),
		Reason:             a.Reason,
		Notes:              a.Notes,
		AdminNotes:         a.AdminNotes,
		CancellationReason: a.CancellationReason,
		CancelledBy:        string(a.CancelledBy),
		ConfirmedAt:        a.ConfirmedAt,
		CancelledAt:        a.CancelledAt,
		CompletedAt:        a.CompletedAt,
		CreatedAt:          a.CreatedAt,
	}
}

type SlotsResponse struct {
	Date  string         `json:"date"`
	Slots []booking.Slot `json:"slots"`
}

type AvailableDateResponse struct {
	Date      string `json:"date"`
	OpenSlots int    `json:"open_slots"`
}

type ScheduleDayDTO struct {
	Weekday    int     `json:"weekday"` // 0 = Sunday
	Start      string  `json:"start"`
	End        string  `json:"end"`
	BreakStart *string `json:"break_start,omitempty"`
	BreakEnd   *string `json:"break_end,omitempty"`
	Active     bool    `json:"active"`
}

type VacationRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason,omitempty"`
}

type VacationResponse struct {
	ID        uuid.UUID `json:"id"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Reason    string    `json:"reason,omitempty"`
}

type SettingsDTO struct {
	SlotDurationMinutes int `json:"slot_duration_minutes"`
	MaxPatientsPerSlot  int `json:"max_patients_per_slot"`
	AdvanceBookingDays  int `json:"advance_booking_days"`
	CancellationHours   int `json:"cancellation_hours"`
}

type TokenRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

type ErrorResponse struct {
	Error   string         `json:"error"`
	Details string         `json:"details,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}
