package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopRetriesAfterBackoff(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	task := Task{
		Name:     "job",
		Interval: time.Hour,
		Backoff:  5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			if calls.Add(1) < 3 {
				return errors.New("transient")
			}
			cancel()
			return nil
		},
	}
	err := Loop(ctx, task)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Loop err=%v want context.Canceled", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls=%d want 3", got)
	}
}

func TestLoopTriggerSkipsStartDelayAndInterval(t *testing.T) {
	trigger := make(chan struct{}, 1)
	ran := make(chan struct{}, 4)
	var scheduled atomic.Int32
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Loop(ctx, Task{
			Name:       "job",
			StartDelay: time.Hour,
			Interval:   time.Hour,
			Trigger:    trigger,
			OnSchedule: func(time.Time) { scheduled.Add(1) },
			Run: func(context.Context) error {
				ran <- struct{}{}
				return nil
			},
		})
	}()
	trigger <- struct{}{}
	<-ran
	trigger <- struct{}{}
	<-ran
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Loop err=%v", err)
	}
	if scheduled.Load() < 2 {
		t.Fatalf("OnSchedule calls=%d want >= 2", scheduled.Load())
	}
}

func TestLoopOneShotReturnsError(t *testing.T) {
	want := errors.New("listen failed")
	err := Loop(context.Background(), Task{Name: "http", Run: func(context.Context) error { return want }})
	if !errors.Is(err, want) {
		t.Fatalf("err=%v want %v", err, want)
	}
}

func TestRunStopsGroupOnFailure(t *testing.T) {
	want := errors.New("boom")
	stopped := make(chan struct{})
	err := Run(context.Background(),
		Task{Name: "http", Run: func(context.Context) error { return want }},
		Task{Name: "collector", Interval: time.Hour, Run: func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return nil
		}},
	)
	if !errors.Is(err, want) {
		t.Fatalf("Run err=%v want %v", err, want)
	}
	select {
	case <-stopped:
	default:
		t.Fatal("periodic task was not cancelled")
	}
}

func TestRunNoTasks(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
