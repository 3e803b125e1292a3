package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"service-engagement/internal/data/entity"
	"service-engagement/internal/data/memstore"
	"service-engagement/pkg/apperr"

	"go.uber.org/zap"
)

type stubPublisher struct {
	mu       sync.Mutex
	failNext int
	sent     []string
	calls    int
}

func (p *stubPublisher) Publish(_ context.Context, routingKey, messageID string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failNext > 0 {
		p.failNext--
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, messageID)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

func TestRetryDelay(t *testing.T) {
	cases := map[int]time.Duration{
		0:  time.Second,
		1:  time.Second,
		2:  2 * time.Second,
		5:  16 * time.Second,
		9:  256 * time.Second,
		10: 300 * time.Second,
		40: 300 * time.Second,
	}
	for attempt, want := range cases {
		if got := retryDelay(attempt); got != want {
			t.Errorf("retryDelay(%d) = %s, want %s", attempt, got, want)
		}
	}
}

func TestFlushRetriesFailedMessageAfterBackoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := memstore.New(func() time.Time { return now })
	ctx := context.Background()

	_, err := store.Repos().Outbox.Enqueue(ctx, &entity.OutboxMessage{
		IdempotencyKey: "b1:booking.check_in",
		RoutingKey:     "engagement.booking.check_in",
		Payload:        []byte(`{"command":"check_in"}`),
		CreatedAt:      now,
	})
	if err != nil {
		t.Fatal(err)
	}

	pub := &stubPublisher{failNext: 1}
	d := NewOutboxDispatcher(store.Repos().Outbox, pub, 10, zap.NewNop())

	n, err := d.FlushOnce(ctx)
	if n != 0 || !apperr.Is(err, apperr.KindExternalDependency) {
		t.Fatalf("first flush = %d, %v; want 0 and an external dependency error", n, err)
	}
	if !strings.Contains(err.Error(), "broker unavailable") {
		t.Fatalf("error %q lost the broker cause", err)
	}

	// still inside the one second backoff
	if n, _ := d.FlushOnce(ctx); n != 0 || pub.calls != 1 {
		t.Fatalf("flush during backoff published %d with %d calls", n, pub.calls)
	}

	now = now.Add(2 * time.Second)
	if n, _ := d.FlushOnce(ctx); n != 1 {
		t.Fatalf("flush after backoff published %d, want 1", n)
	}
	if len(pub.sent) != 1 || pub.sent[0] != "b1:booking.check_in" {
		t.Fatalf("sent = %v", pub.sent)
	}

	if n, _ := d.FlushOnce(ctx); n != 0 {
		t.Fatalf("published message was delivered again")
	}
}

func TestFlushSkipsDuplicateKeys(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := memstore.New(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := store.Repos().Outbox.Enqueue(ctx, &entity.OutboxMessage{
			IdempotencyKey: "b1:escrow.release",
			RoutingKey:     "engagement.escrow.release",
			Payload:        []byte(`{}`),
			CreatedAt:      now,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	pub := &stubPublisher{}
	n, err := NewOutboxDispatcher(store.Repos().Outbox, pub, 10, zap.NewNop()).FlushOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("flush = %d, %v; want 1, nil", n, err)
	}
}
