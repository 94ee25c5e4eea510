// Package cache provides the availability-cache implementations behind
// booking.SlotCache. The Redis cache memoizes per-date slot lists; a no-op
// variant exists for tests and for running without Redis.
package cache

import (
	"context"
	"time"

	"github.com/clinicbook/clinic-booking/internal/booking"
)

// Noop satisfies booking.SlotCache without caching anything. Every read is
// a miss.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) GetSlots(context.Context, time.Time) ([]booking.Slot, bool) { return nil, false }
func (Noop) SetSlots(context.Context, time.Time, []booking.Slot)        {}
func (Noop) InvalidateDate(context.Context, time.Time)                  {}
func (Noop) InvalidateAll(context.Context)                              {}
