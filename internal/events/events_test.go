package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/solatis/quotekeeper/internal/types"
)

func TestBus_DeliversToSubscribersInOrder(t *testing.T) {
	bus := NewBus()
	var order []string
	bus.Subscribe(RuleSaved, func(context.Context, Event) error { order = append(order, "first"); return nil })
	bus.Subscribe(RuleSaved, func(context.Context, Event) error { order = append(order, "second"); return nil })
	bus.Subscribe(QuoteCalculated, func(context.Context, Event) error { order = append(order, "other"); return nil })

	if err := bus.Publish(context.Background(), NewEvent(RuleSaved, RuleChangedData{RuleID: "r1"})); err != nil {
		t.Fatalf("Publish() error = %v, want nil", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("handler order = %v, want [first second]", order)
	}
}

func TestBus_JoinsHandlerErrors(t *testing.T) {
	bus := NewBus()
	boom := errors.New("boom")
	rec := &Recorder{}
	bus.Subscribe(QuoteCalculated, func(context.Context, Event) error { return boom })
	bus.Subscribe(QuoteCalculated, rec.Handle)

	err := bus.Publish(context.Background(), NewEvent(QuoteCalculated, nil))
	if !errors.Is(err, boom) {
		t.Fatalf("Publish() error = %v, want boom", err)
	}
	if len(rec.Events()) != 1 {
		t.Errorf("later handler skipped after error")
	}
}

func TestBus_Closed(t *testing.T) {
	bus := NewBus()
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v, want nil", err)
	}
	if err := bus.Publish(context.Background(), NewEvent(RuleSaved, nil)); err == nil {
		t.Errorf("Publish() after Close error = nil, want error")
	}
}

func TestNew_Backends(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"", false},
		{"none", false},
		{"memory", false},
		{"amqp", true}, // no URL
		{"kafka", true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			p, err := New(Options{Backend: tt.backend})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.backend, err, tt.wantErr)
			}
			if err == nil {
				if err := p.Publish(context.Background(), NewEvent(RuleSaved, nil)); err != nil {
					t.Errorf("Publish() error = %v, want nil", err)
				}
			}
		})
	}
}

func TestEncodeMessage(t *testing.T) {
	ev := NewEvent(QuoteCalculated, QuoteCalculatedData{QuoteID: "q1", TotalPrice: types.MustAmount("1035")})
	msg, err := encodeMessage(ev)
	if err != nil {
		t.Fatalf("encodeMessage() error = %v, want nil", err)
	}
	if msg.DeliveryMode != amqp.Persistent || msg.ContentType != "application/json" || msg.Type != string(QuoteCalculated) {
		t.Errorf("encodeMessage() headers = %+v", msg)
	}
	var decoded struct {
		Type Type `json:"type"`
		Data struct {
			QuoteID    string  `json:"quote_id"`
			TotalPrice float64 `json:"total_price"`
		} `json:"data"`
	}
	if err := json.Unmarshal(msg.Body, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, want nil", err)
	}
	if decoded.Type != QuoteCalculated || decoded.Data.QuoteID != "q1" || decoded.Data.TotalPrice != 1035 {
		t.Errorf("decoded = %+v", decoded)
	}
}
