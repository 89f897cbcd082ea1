package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestInMemory_PublishConsume(t *testing.T) {
	q := NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	want := Message{Type: "audit", Body: json.RawMessage(`{"kind":"CHECKIN_OK"}`)}
	if err := q.Publish(ctx, want); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-msgs:
		if got.Type != want.Type || string(got.Body) != string(want.Body) {
			t.Errorf("received %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestInMemory_PublishFull(t *testing.T) {
	q := NewInMemory(1)
	ctx := context.Background()

	if err := q.Publish(ctx, Message{Type: "a"}); err != nil {
		t.Fatalf("first Publish() error = %v", err)
	}
	if err := q.Publish(ctx, Message{Type: "b"}); !errors.Is(err, ErrFull) {
		t.Errorf("second Publish() error = %v, want ErrFull", err)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
}

func TestInMemory_PublishCancelled(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Publish(ctx, Message{Type: "a"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Publish() error = %v, want context.Canceled", err)
	}
}

func TestInMemory_ConsumeDrainsOnCancel(t *testing.T) {
	q := NewInMemory(8)
	for i := 0; i < 3; i++ {
		if err := q.Publish(context.Background(), Message{Type: "audit"}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	count := 0
	for range msgs {
		count++
	}
	if count != 3 {
		t.Errorf("drained %d messages, want 3", count)
	}
}
