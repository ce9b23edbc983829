package realtime

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// EventPing is the keep-alive message tag.
	EventPing = "ping"
	// EventSwapRequest announces a new proposal to its target.
	EventSwapRequest = "swapRequest"
	// EventSwapResponse announces an accept or reject decision.
	EventSwapResponse = "swapResponse"

	// DefaultKeepAliveInterval is used when RegistryConfig leaves it unset.
	DefaultKeepAliveInterval = 25 * time.Second
	// DefaultBufferSize is used when RegistryConfig leaves it unset.
	DefaultBufferSize = 16
)

// Message is a single server-sent event queued for a subscriber.
type Message struct {
	Event string
	Data  []byte
}

// Subscription is the live channel of one contact address. The stream
// handler is its only reader; deliveries and keep-alives enqueue onto it.
type Subscription struct {
	address string
	send    chan Message
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

func newSubscription(address string, buffer int) *Subscription {
	return &Subscription{
		address: address,
		send:    make(chan Message, buffer),
		done:    make(chan struct{}),
	}
}

// Address returns the normalised contact address.
func (s *Subscription) Address() string {
	return s.address
}

// Messages returns the queue the stream handler drains.
func (s *Subscription) Messages() <-chan Message {
	return s.send
}

// Done is closed once the subscription is unsubscribed or replaced.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Enqueue adds msg without blocking. It reports false when the buffer is
// full or the subscription is closed.
func (s *Subscription) Enqueue(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

func (s *Subscription) keepAlive(interval time.Duration, now func() time.Time, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			ping := Message{Event: EventPing, Data: []byte(strconv.FormatInt(now().UnixMilli(), 10))}
			if !s.Enqueue(ping) {
				logger.Debug("keep-alive dropped", "address", s.address)
			}
		}
	}
}

// RegistryConfig tunes a Registry.
type RegistryConfig struct {
	KeepAliveInterval time.Duration
	BufferSize        int
	Now               func() time.Time
	Logger            *slog.Logger
}

// Registry maps contact addresses to their single live Subscription.
type Registry struct {
	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool

	keepAlive time.Duration
	buffer    int
	now       func() time.Time
	logger    *slog.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{
		subs:      make(map[string]*Subscription),
		keepAlive: cfg.KeepAliveInterval,
		buffer:    cfg.BufferSize,
		now:       cfg.Now,
		logger:    cfg.Logger.With("component", "realtime.Registry"),
	}
}

// NormalizeAddress trims and lower-cases a contact address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Subscribe registers a new live channel for address. An existing channel
// for the same address is replaced and closed.
func (r *Registry) Subscribe(address string) *Subscription {
	address = NormalizeAddress(address)
	sub := newSubscription(address, r.buffer)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		sub.close()
		return sub
	}
	previous := r.subs[address]
	r.subs[address] = sub
	r.mu.Unlock()

	if previous != nil {
		previous.close()
		r.logger.Info("subscription replaced", "address", address)
	}

	go sub.keepAlive(r.keepAlive, r.now, r.logger)
	r.logger.Info("subscriber connected", "address", address)
	return sub
}

// Unsubscribe closes sub and removes it when it is still the current
// channel for its address.
func (r *Registry) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	r.mu.Lock()
	current, ok := r.subs[sub.address]
	isCurrent := ok && current == sub
	if isCurrent {
		delete(r.subs, sub.address)
	}
	r.mu.Unlock()

	sub.close()
	if !isCurrent {
		r.logger.Info("stale subscription closed", "address", sub.address)
		return
	}
	r.logger.Info("subscriber disconnected", "address", sub.address)
}

// Lookup returns the live channel for address.
func (r *Registry) Lookup(address string) (*Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[NormalizeAddress(address)]
	return sub, ok
}

// Len reports the number of live channels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Close closes every subscription. Later subscriptions are closed on creation.
func (r *Registry) Close() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[string]*Subscription)
	r.closed = true
	r.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}
