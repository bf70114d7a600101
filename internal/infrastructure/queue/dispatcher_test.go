package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/youthcouncil/portal/internal/core/ports"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []ports.MailMessage
	err  error
	done chan struct{}
}

func (m *recordingMailer) Send(_ context.Context, msg ports.MailMessage) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.err
}

func (m *recordingMailer) messages() []ports.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.MailMessage(nil), m.sent...)
}

func TestDispatcher_DeliversInOrderPerRecipient(t *testing.T) {
	m := &recordingMailer{done: make(chan struct{}, 16)}
	d := NewDispatcher(3, m, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	for _, s := range []string{"one", "two", "three"} {
		d.Enqueue(ports.MailMessage{To: "a@example.com", Subject: s, Kind: "verify_email"})
	}
	for i := 0; i < 3; i++ {
		select {
		case <-m.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d", i)
		}
	}

	got := m.messages()
	want := []string{"one", "two", "three"}
	for i, w := range want {
		if got[i].Subject != w {
			t.Fatalf("delivery %d = %q, want %q", i, got[i].Subject, w)
		}
	}
}

func TestDispatcher_ShardIsCaseInsensitive(t *testing.T) {
	d := NewDispatcher(8, &recordingMailer{}, zerolog.Nop())
	if d.shardIndex("Ana@Example.com") != d.shardIndex("ana@example.com") {
		t.Fatalf("same mailbox must map to the same worker")
	}
}

func TestDispatcher_DrainsOnShutdown(t *testing.T) {
	m := &recordingMailer{}
	d := NewDispatcher(1, m, zerolog.Nop())

	// Enqueue before Start so the messages sit in the buffer.
	d.Enqueue(ports.MailMessage{To: "a@example.com", Kind: "reset_password"})
	d.Enqueue(ports.MailMessage{To: "b@example.com", Kind: "reset_password"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Start(ctx)
	d.Wait()

	if n := len(m.messages()); n != 2 {
		t.Fatalf("expected both buffered messages delivered, got %d", n)
	}
}

func TestDispatcher_FailureDoesNotStopWorker(t *testing.T) {
	m := &recordingMailer{err: errors.New("smtp down"), done: make(chan struct{}, 4)}
	d := NewDispatcher(1, m, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Enqueue(ports.MailMessage{To: "a@example.com", Kind: "verify_email"})
	d.Enqueue(ports.MailMessage{To: "a@example.com", Kind: "verify_email"})
	for i := 0; i < 2; i++ {
		select {
		case <-m.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("worker stopped after failure")
		}
	}
}

func TestNewDispatcher_DefaultWorkers(t *testing.T) {
	d := NewDispatcher(0, &recordingMailer{}, zerolog.Nop())
	if len(d.workers) != defaultWorkers {
		t.Fatalf("workers = %d, want %d", len(d.workers), defaultWorkers)
	}
}
