package service

import (
	"context"

	"medstay/internal/daterange"
	"medstay/internal/logger"
	"medstay/internal/metrics"
	"medstay/internal/models"
)

// EventPublisher hands lifecycle events to the broker. Implementations must
// not block on delivery.
type EventPublisher interface {
	Publish(subject string, data interface{}) error
}

// CalendarCache holds rendered range views. Writers invalidate a property
// after every change; readers tolerate a miss. GetRange reports the cache
// version it looked under, and SetRange stores under that version, so a view
// built before an invalidation is never served after it. A negative version
// means the lookup failed and nothing should be stored.
type CalendarCache interface {
	GetRange(ctx context.Context, propertyID int64, r daterange.Range) (view *models.RangeView, version int64, ok bool)
	SetRange(ctx context.Context, version int64, r daterange.Range, view *models.RangeView)
	Invalidate(ctx context.Context, propertyID int64)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, interface{}) error { return nil }

// NoopPublisher drops every event.
func NoopPublisher() EventPublisher { return noopPublisher{} }

// publish is fire-and-forget: a broker failure is logged and never fails
// the operation that produced the event.
func publish(ctx context.Context, p EventPublisher, subject string, data interface{}, fields ...any) {
	if p == nil {
		return
	}
	if err := p.Publish(subject, data); err != nil {
		metrics.EventsPublished.WithLabelValues(subject, "error").Inc()
		logger.WithContext(ctx).Error("Failed to publish event",
			append([]any{"error", err, "event_type", subject}, fields...)...)
		return
	}
	metrics.EventsPublished.WithLabelValues(subject, "ok").Inc()
}

func invalidate(ctx context.Context, c CalendarCache, propertyID int64) {
	if c != nil {
		c.Invalidate(ctx, propertyID)
	}
}
