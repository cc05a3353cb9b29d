package collector

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueue_Order(t *testing.T) {
	q := newQueue[int]()

	for i := 0; i < 100; i++ {
		q.push(i)
	}

	if n := q.len(); n != 100 {
		t.Fatalf("len(): got %d, wanted 100", n)
	}

	for i := 0; i < 100; i++ {
		got, err := q.pop(context.Background())

		if err != nil || got != i {
			t.Fatalf("pop(): got (%d, %v), wanted (%d, nil)", got, err, i)
		}
	}
}

func TestQueue_PopWaitsForPush(t *testing.T) {
	q := newQueue[string]()
	got := make(chan string, 1)

	go func() {
		v, _ := q.pop(context.Background())
		got <- v
	}()

	select {
	case v := <-got:
		t.Fatalf("pop() returned %q from an empty queue", v)
	case <-time.After(20 * time.Millisecond):
	}

	q.push("hello")

	select {
	case v := <-got:
		if v != "hello" {
			t.Fatalf("pop(): got %q, wanted %q", v, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("pop() did not return after push()")
	}
}

func TestQueue_PopCanceled(t *testing.T) {
	q := newQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.pop(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("pop(): got error %v, wanted %v", err, context.Canceled)
	}
}
