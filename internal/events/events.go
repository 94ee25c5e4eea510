// Package events carries domain events out of the booking core. Lifecycle
// operations hand each successful transition to a Dispatcher; side effects
// like cache invalidation and the persisted notification feed live behind
// it instead of being wired into the service.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	AppointmentCreated   = "appointment.created"
	AppointmentConfirmed = "appointment.confirmed"
	AppointmentCancelled = "appointment.cancelled"
	AppointmentCompleted = "appointment.completed"
	AppointmentNoShow    = "appointment.no_show"

	ScheduleChanged = "schedule.changed"
	VacationChanged = "vacation.changed"
	SettingsChanged = "settings.changed"
)

// Event is one domain event. Date is set for appointment events so the
// affected availability entry can be invalidated precisely.
type Event struct {
	Type          string
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	Date          time.Time
	Payload       map[string]any
	OccurredAt    time.Time
}

type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event)
}

// Sink receives events for durable recording (the event_logs feed).
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

// Invalidator is the slice of the availability cache the dispatcher needs.
type Invalidator interface {
	InvalidateDate(ctx context.Context, date time.Time)
	InvalidateAll(ctx context.Context)
}

// capacityEvents are the appointment events that change slot capacity.
// Confirm/complete/no-show keep the slot occupied, so only creation and
// cancellation invalidate the affected date.
var capacityEvents = map[string]bool{
	AppointmentCreated:   true,
	AppointmentCancelled: true,
}

// configEvents have unbounded date-range effect and flush the whole cache.
var configEvents = map[string]bool{
	ScheduleChanged: true,
	VacationChanged: true,
	SettingsChanged: true,
}

// Fanout is the default dispatcher: it records every event to the sink,
// invalidates availability where the event affects it, and logs. Sink
// failures are logged, not propagated; a transition that already committed
// must not fail because its notification row did not write.
type Fanout struct {
	sink  Sink
	cache Invalidator
	log   zerolog.Logger
}

func NewFanout(sink Sink, cache Invalidator, log zerolog.Logger) *Fanout {
	return &Fanout{sink: sink, cache: cache, log: log}
}

func (f *Fanout) Dispatch(ctx context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	switch {
	case capacityEvents[ev.Type]:
		f.cache.InvalidateDate(ctx, ev.Date)
	case configEvents[ev.Type]:
		f.cache.InvalidateAll(ctx)
	}

	if err := f.sink.Record(ctx, ev); err != nil {
		f.log.Error().Err(err).Str("event", ev.Type).
			Stringer("appointment_id", ev.AppointmentID).
			Msg("failed to record event")
		return
	}

	f.log.Info().Str("event", ev.Type).
		Stringer("appointment_id", ev.AppointmentID).
		Msg("event dispatched")
}
