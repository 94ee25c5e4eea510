package booking

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic-booking/internal/events"
)

// EventRecorder persists dispatched events as event_logs rows, which serve
// as the outbound feed for the notification subsystem.
type EventRecorder struct {
	repo Repository
}

func NewEventRecorder(repo Repository) *EventRecorder {
	return &EventRecorder{repo: repo}
}

func (r *EventRecorder) Record(ctx context.Context, ev events.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	var apptID *uuid.UUID
	if ev.AppointmentID != uuid.Nil {
		id := ev.AppointmentID
		apptID = &id
	}

	return r.repo.InsertEvent(ctx, EventLog{
		EventType:     ev.Type,
		AppointmentID: apptID,
		Payload:       payload,
		CreatedAt:     ev.OccurredAt,
	})
}
