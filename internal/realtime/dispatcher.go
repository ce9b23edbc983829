package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/example/swapmarket/internal/logging"
)

// Deferrer accepts notifications for addresses without a live channel.
type Deferrer interface {
	Defer(ctx context.Context, address, eventType string, data []byte)
}

// DeferredDelivery is the offline fallback. It only records the request.
type DeferredDelivery struct {
	logger *slog.Logger
}

// NewDeferredDelivery constructs a DeferredDelivery.
func NewDeferredDelivery(logger *slog.Logger) *DeferredDelivery {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeferredDelivery{logger: logger}
}

// Defer logs that the address was not connected.
func (d *DeferredDelivery) Defer(ctx context.Context, address, eventType string, data []byte) {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = d.logger
	}
	logger.InfoContext(ctx, "user not connected, deferred delivery requested",
		"address", address,
		"event", eventType,
		"bytes", len(data),
	)
}

// Dispatcher delivers notifications onto live channels, best effort.
type Dispatcher struct {
	registry *Registry
	deferred Deferrer
	logger   *slog.Logger
}

// NewDispatcher constructs a Dispatcher. A nil deferred falls back to a
// logging DeferredDelivery.
func NewDispatcher(registry *Registry, deferred Deferrer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if deferred == nil {
		deferred = NewDeferredDelivery(logger)
	}
	return &Dispatcher{registry: registry, deferred: deferred, logger: logger}
}

// Notify JSON-encodes payload and queues it for address. A full or closed
// channel drops the message. Only encoding failures are returned.
func (d *Dispatcher) Notify(ctx context.Context, address, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}

	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = d.logger
	}
	address = NormalizeAddress(address)

	sub, ok := d.registry.Lookup(address)
	if !ok {
		d.deferred.Defer(ctx, address, eventType, data)
		return nil
	}

	if !sub.Enqueue(Message{Event: eventType, Data: data}) {
		logger.WarnContext(ctx, "notification dropped", "address", address, "event", eventType)
		return nil
	}

	logger.DebugContext(ctx, "notification queued", "address", address, "event", eventType)
	return nil
}

// WriteEvent frames msg as a server-sent event.
func WriteEvent(w io.Writer, msg Message) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
	return err
}
