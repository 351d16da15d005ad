package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmehra2102/bookingflow/pkg/consumer"
	"github.com/dmehra2102/bookingflow/pkg/event"
)

// Notifier is the injectable delivery side effect (mail, SMS, push).
type Notifier interface {
	Send(ctx context.Context, eventType, bookingID string) error
}

// Service is the terminal saga participant: it notifies on every booking
// event and emits nothing further.
type Service struct {
	log      *slog.Logger
	notifier Notifier
}

func NewService(log *slog.Logger, notifier Notifier) *Service {
	return &Service{log: log, notifier: notifier}
}

func (s *Service) Handle(ctx context.Context, env event.Envelope) error {
	if !strings.HasPrefix(env.EventType, "booking.") {
		return nil
	}

	var e struct {
		BookingID string `json:"booking_id"`
	}
	if err := json.Unmarshal(env.Payload, &e); err != nil {
		return fmt.Errorf("%w: decode %s: %v", consumer.ErrPermanent, env.EventType, err)
	}
	if e.BookingID == "" {
		return fmt.Errorf("%w: %s without booking_id", consumer.ErrPermanent, env.EventType)
	}

	return s.notifier.Send(ctx, env.EventType, e.BookingID)
}

// LogNotifier writes notifications to the log; the production notifier is a
// deployment concern.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, eventType, bookingID string) error {
	n.log.Info("notification sent", "event_type", eventType, "booking_id", bookingID)
	return nil
}
