// Package events publishes domain notifications (a quote was priced, a rule
// was saved) to in-process subscribers or a RabbitMQ exchange.
//
// Publishing is best-effort: callers log a failed Publish and carry on; a
// quote is never rejected because a notification could not be delivered.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/solatis/quotekeeper/internal/types"
)

// Type names an event. It doubles as the AMQP routing key.
type Type string

const (
	QuoteCalculated Type = "quote.calculated"
	RuleSaved       Type = "rule.saved"
	RuleDeleted     Type = "rule.deleted"
)

// Event is the envelope every publisher delivers.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// QuoteCalculatedData is the payload of QuoteCalculated.
type QuoteCalculatedData struct {
	QuoteID      types.QuoteID `json:"quote_id,omitempty"`
	StudentEmail string        `json:"student_email,omitempty"`
	TotalPrice   types.Amount  `json:"total_price"`
	Warnings     int           `json:"warnings"`
}

// RuleChangedData is the payload of RuleSaved and RuleDeleted.
type RuleChangedData struct {
	RuleID    types.RuleID    `json:"rule_id"`
	Name      string          `json:"name,omitempty"`
	AppliesTo types.AppliesTo `json:"applies_to,omitempty"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NewEvent stamps an event with the current time.
func NewEvent(t Type, data any) Event {
	return Event{Type: t, Timestamp: time.Now().UTC(), Data: data}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Handler receives events from a Bus.
type Handler func(ctx context.Context, ev Event) error

// Bus is an in-process publisher. Handlers run synchronously on the
// publishing goroutine, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	closed   bool
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Type][]Handler)}
}

// Subscribe registers h for events of type t.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish calls every handler for ev.Type and joins their errors.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.New("events: bus closed")
	}
	handlers := append([]Handler(nil), b.handlers[ev.Type]...)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s handler: %w", ev.Type, err))
		}
	}
	return errors.Join(errs...)
}

// Close drops all handlers; later publishes fail.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[Type][]Handler)
	return nil
}

// Recorder is a Bus subscriber that keeps every event it sees.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Handle implements Handler.
func (r *Recorder) Handle(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Options configures New.
type Options struct {
	Backend  string // none, memory or amqp
	AMQPURL  string
	Exchange string
	Logger   *slog.Logger
}

// New builds the publisher named by opts.Backend. The memory backend logs
// each event at debug level.
func New(opts Options) (Publisher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(opts.Backend) {
	case "", "none":
		return Nop{}, nil
	case "memory":
		bus := NewBus()
		logEvent := func(_ context.Context, ev Event) error {
			logger.Debug("event published", "type", ev.Type)
			return nil
		}
		bus.Subscribe(QuoteCalculated, logEvent)
		bus.Subscribe(RuleSaved, logEvent)
		bus.Subscribe(RuleDeleted, logEvent)
		return bus, nil
	case "amqp":
		return DialAMQP(opts.AMQPURL, opts.Exchange, logger)
	default:
		return nil, fmt.Errorf("unknown events backend %q", opts.Backend)
	}
}
