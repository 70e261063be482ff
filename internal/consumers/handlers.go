package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/stan.go"

	"medstay/internal/models"
	"medstay/internal/search"
)

// BookingIndexer keeps the booking search index in step with the event stream.
type BookingIndexer interface {
	IndexBooking(ctx context.Context, doc search.BookingDocument) error
	DeleteBooking(ctx context.Context, id int64, version int64) error
}

// BookingLookup reads the current state of a booking. A nil booking means it
// no longer exists.
type BookingLookup interface {
	GetByID(ctx context.Context, id int64) (*models.Booking, error)
}

// ErrMalformedEvent marks messages that can never be processed and must not
// be redelivered.
var ErrMalformedEvent = errors.New("malformed booking event")

// notificationIntents maps lifecycle events to the message the guest should
// receive. Delivery belongs to the notification service; here it is logged.
var notificationIntents = map[string]string{
	models.EventBookingCreated:   "booking_request_received",
	models.EventBookingConfirmed: "booking_confirmed",
	models.EventBookingCancelled: "booking_cancelled",
	models.EventBookingUpdated:   "booking_changed",
}

type Handlers struct {
	indexer  BookingIndexer
	bookings BookingLookup
	timeout  time.Duration
}

// NewHandlers creates booking event handlers. indexer may be nil when search
// is disabled. With bookings set, the index is fed the stored booking rather
// than the event snapshot.
func NewHandlers(indexer BookingIndexer, bookings BookingLookup) *Handlers {
	return &Handlers{
		indexer:  indexer,
		bookings: bookings,
		timeout:  10 * time.Second,
	}
}

// HandleBookingEvent is the NATS entry point. The message is acked once it is
// processed or found to be malformed; index failures leave it for redelivery.
func (h *Handlers) HandleBookingEvent(m *stan.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	err := h.Handle(ctx, m.Subject, m.Data)
	if err != nil && !errors.Is(err, ErrMalformedEvent) {
		slog.Error("Failed to process booking event", "subject", m.Subject, "sequence", m.Sequence, "error", err)
		return
	}

	if err := m.Ack(); err != nil {
		slog.Error("Failed to ack booking event", "subject", m.Subject, "sequence", m.Sequence, "error", err)
	}
}

func (h *Handlers) Handle(ctx context.Context, subject string, data []byte) error {
	var event models.BookingEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("Failed to unmarshal booking event", "subject", subject, "error", err)
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Booking.ID == 0 {
		slog.Error("Booking event without booking id", "subject", subject)
		return ErrMalformedEvent
	}

	b := event.Booking
	slog.Info("Processing booking event",
		"subject", subject,
		"booking_id", b.ID,
		"property_id", b.PropertyID,
		"status", b.Status,
		"previous_status", event.PreviousStatus)

	if intent, ok := notificationIntents[subject]; ok {
		slog.Info("Guest notification intent",
			"intent", intent,
			"booking_id", b.ID,
			"guest_id", b.GuestID,
			"guest_email", b.GuestEmail,
			"check_in", b.CheckIn.Format("2006-01-02"),
			"reason", event.Reason)
	}

	if h.indexer == nil {
		return nil
	}

	if subject == models.EventBookingDeleted {
		return h.indexer.DeleteBooking(ctx, b.ID, b.UpdatedAt.UnixNano())
	}

	// События разных subject приходят в произвольном порядке
	if h.bookings != nil {
		current, err := h.bookings.GetByID(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("failed to load booking %d: %w", b.ID, err)
		}
		if current == nil {
			slog.Info("Booking no longer exists, skipping index", "subject", subject, "booking_id", b.ID)
			return nil
		}
		b = *current
	}

	return h.indexer.IndexBooking(ctx, search.NewBookingDocument(&b))
}
