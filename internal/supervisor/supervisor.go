// Package supervisor runs long-lived in-process tasks: periodic jobs with a
// start delay, failure backoff and manual triggers, alongside one-shot
// servers whose exit stops everything else.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Task is one supervised unit of work.
type Task struct {
	Name string
	// Run is invoked once per cycle. Interval 0 means run once and return its error.
	Run func(ctx context.Context) error
	// StartDelay postpones the first cycle. A trigger cuts it short.
	StartDelay time.Duration
	// Interval between successful cycles.
	Interval time.Duration
	// Backoff after a failed cycle; 0 means Interval.
	Backoff time.Duration
	// Trigger starts the next cycle immediately when received.
	Trigger <-chan struct{}
	// OnSchedule, if set, is told when the next cycle is due.
	OnSchedule func(next time.Time)
}

// Loop runs t until ctx is done. For one-shot tasks (Interval 0) it returns
// Run's error; periodic tasks only return ctx.Err().
func Loop(ctx context.Context, t Task) error {
	if t.Run == nil {
		return fmt.Errorf("supervisor[%s]: no run func", t.Name)
	}
	if d := t.StartDelay; d > 0 {
		log.Infof("supervisor[%s]: delaying start by %s", t.Name, d)
		schedule(t, d)
		if err := wait(ctx, d, t.Trigger); err != nil {
			return err
		}
	}
	for {
		err := t.Run(ctx)
		if t.Interval <= 0 {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		next := t.Interval
		if err != nil {
			if t.Backoff > 0 {
				next = t.Backoff
			}
			log.WithError(err).Warnf("supervisor[%s]: run failed; retrying in %s", t.Name, next)
		}
		schedule(t, next)
		if err := wait(ctx, next, t.Trigger); err != nil {
			return err
		}
	}
}

func schedule(t Task, d time.Duration) {
	if t.OnSchedule != nil {
		t.OnSchedule(time.Now().Add(d))
	}
}

// wait returns nil after d or on a trigger, ctx.Err() when ctx ends first.
func wait(ctx context.Context, d time.Duration, trigger <-chan struct{}) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	case <-trigger:
		return nil
	}
}

// Run starts every task and waits. The first task to end with a real error
// (not a context cancellation) cancels the rest and is returned. A one-shot
// task ending cleanly also stops the group, so a server exiting takes its
// background jobs down with it.
func Run(ctx context.Context, tasks ...Task) error {
	if len(tasks) == 0 {
		return errors.New("supervisor: no tasks")
	}
	names := make([]string, 0, len(tasks))
	for _, t := range tasks {
		names = append(names, t.Name)
	}
	log.Infof("supervisor: starting %d task(s): %s", len(tasks), strings.Join(names, ", "))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(tasks))
	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			err := Loop(ctx, t)
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", t.Name, err)
			} else if ctx.Err() == nil {
				log.Infof("supervisor[%s]: exited", t.Name)
			}
			cancel()
		}(t)
	}
	wg.Wait()
	close(errCh)
	return <-errCh
}
