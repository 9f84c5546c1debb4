package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFirstTickAlignment(t *testing.T) {
	s := New(Options{Interval: time.Hour, AlignToStart: true}, zerolog.Nop())

	now := time.Date(2026, 9, 1, 12, 17, 0, 0, time.UTC)
	first := s.firstTick(now)
	if !first.Equal(time.Date(2026, 9, 1, 13, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected next hour boundary, got %s", first)
	}

	// Exactly on a boundary still waits for the next one.
	boundary := time.Date(2026, 9, 1, 13, 0, 0, 0, time.UTC)
	if first := s.firstTick(boundary); !first.Equal(boundary.Add(time.Hour)) {
		t.Fatalf("expected the following boundary, got %s", first)
	}
}

func TestFirstTickStartupDelayPushesPastBoundary(t *testing.T) {
	s := New(Options{Interval: time.Hour, AlignToStart: true, StartupDelay: 30 * time.Minute}, zerolog.Nop())

	now := time.Date(2026, 9, 1, 12, 45, 0, 0, time.UTC)
	// now+delay is 13:15, so the first aligned tick is 14:00.
	if first := s.firstTick(now); !first.Equal(time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected 14:00, got %s", first)
	}
}

func TestFirstTickUnaligned(t *testing.T) {
	s := New(Options{Interval: time.Hour}, zerolog.Nop())

	now := time.Date(2026, 9, 1, 12, 17, 0, 0, time.UTC)
	if first := s.firstTick(now); !first.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected now+interval, got %s", first)
	}
}

func TestRunTicksUntilCancelled(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan time.Time, 16)

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, tick time.Time) error {
			ticks <- tick
			return nil
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-ticks:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for a tick")
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}

func TestRunKeepsGoingAfterTickError(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan int, 16)
	count := 0
	go s.Run(ctx, func(ctx context.Context, tick time.Time) error {
		count++
		calls <- count
		return errors.New("refresh failed")
	})

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatal("tick errors must not stop the loop")
		}
	}
}
