package collector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/snapetech/vodstation/internal/runlog"
	"github.com/snapetech/vodstation/internal/supervisor"
)

const (
	DefaultInterval       = 6 * time.Hour
	DefaultFailureBackoff = 5 * time.Minute
)

// Runner is what the service schedules; *Collector implements it.
type Runner interface {
	Run(ctx context.Context) (Result, error)
}

// RunRecorder observes finished runs (metrics). Optional.
type RunRecorder interface {
	CollectRun(d time.Duration, err error)
}

// ServiceOptions configure the periodic loop.
type ServiceOptions struct {
	StartDelay     time.Duration
	FailureBackoff time.Duration
	Runs           *runlog.Log // optional run history
	Recorder       RunRecorder
	// OnSuccess runs after each successful collection (cache invalidation).
	OnSuccess func(Result)
}

// Status is the collector state reported to the admin surface.
type Status struct {
	Running     bool        `json:"running"`
	Queued      bool        `json:"queued"`
	Interval    string      `json:"interval"`
	NextRun     time.Time   `json:"next_run,omitzero"`
	LastRun     *runlog.Run `json:"last_run"`
	LastSuccess *runlog.Run `json:"last_success,omitempty"`
	Healthy     bool        `json:"healthy"`
}

// Service runs a collector periodically in-process and exposes manual
// triggers and status.
type Service struct {
	runner   Runner
	interval time.Duration
	opts     ServiceOptions

	trigger chan struct{}
	running atomic.Bool

	mu      sync.Mutex
	pending string
	nextRun time.Time
	lastRun *runlog.Run
	cancel  context.CancelFunc
}

// NewService returns a service running r every interval (default 6h).
func NewService(r Runner, interval time.Duration, opts ServiceOptions) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if opts.FailureBackoff <= 0 {
		opts.FailureBackoff = DefaultFailureBackoff
	}
	return &Service{
		runner:   r,
		interval: interval,
		opts:     opts,
		trigger:  make(chan struct{}, 1),
	}
}

// Run blocks running the periodic loop until ctx is done or Stop is called.
// Failed runs are logged and retried after the failure backoff.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	log.Infof("collector[service]: every %s (start delay %s, failure backoff %s)", s.interval, s.opts.StartDelay, s.opts.FailureBackoff)
	err := supervisor.Loop(ctx, supervisor.Task{
		Name:       "collector",
		StartDelay: s.opts.StartDelay,
		Interval:   s.interval,
		Backoff:    s.opts.FailureBackoff,
		Trigger:    s.trigger,
		OnSchedule: s.setNext,
		Run: func(ctx context.Context) error {
			_, err := s.RunOnce(ctx, s.takePending())
			return err
		},
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop cancels a running loop.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Trigger asks the loop to run now. It returns false when a run is already in
// progress or queued.
func (s *Service) Trigger(trigger string) bool {
	if s.running.Load() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case s.trigger <- struct{}{}:
		s.pending = trigger
		return true
	default:
		return false
	}
}

// RunOnce performs one recorded run synchronously (the CLI collect command
// and each loop cycle).
func (s *Service) RunOnce(ctx context.Context, trigger string) (Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer s.running.Store(false)
	if trigger == "" {
		trigger = runlog.TriggerSchedule
	}

	var rec runlog.Run
	if s.opts.Runs != nil {
		r, err := s.opts.Runs.Start(ctx, trigger)
		if err != nil {
			log.WithError(err).Warn("collector[service]: run history unavailable")
		}
		rec = r
	}
	if rec.ID == "" {
		rec = runlog.Run{Trigger: trigger, StartedAt: time.Now().UTC()}
	}

	start := time.Now()
	res, err := s.runner.Run(ctx)
	if s.opts.Recorder != nil {
		s.opts.Recorder.CollectRun(time.Since(start), err)
	}
	rec.Sources = res.Stats.Sources
	rec.Pages = res.Stats.Pages
	rec.FailedPages = res.Stats.FailedPages
	rec.Items = res.Stats.Items
	rec.Reels = res.Stats.Reels
	if err != nil {
		rec.Error = err.Error()
		log.WithError(err).WithField("trigger", trigger).Error("collector[service]: run failed")
	}
	s.finish(rec)
	if err == nil && s.opts.OnSuccess != nil {
		s.opts.OnSuccess(res)
	}
	return res, err
}

func (s *Service) finish(rec runlog.Run) {
	if s.opts.Runs != nil && rec.ID != "" {
		// Record the outcome even when the run itself was cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done, err := s.opts.Runs.Finish(ctx, rec)
		if err != nil {
			log.WithError(err).Warn("collector[service]: record run")
		}
		rec = done
	} else {
		rec.FinishedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.lastRun = &rec
	s.mu.Unlock()
}

// Status reports whether a run is active, the next scheduled run and the last
// recorded run (from run history when available).
func (s *Service) Status(ctx context.Context) Status {
	s.mu.Lock()
	st := Status{
		Running:  s.running.Load(),
		Queued:   len(s.trigger) > 0,
		Interval: s.interval.String(),
		NextRun:  s.nextRun,
		LastRun:  s.lastRun,
	}
	s.mu.Unlock()
	if s.opts.Runs != nil {
		if last, err := s.opts.Runs.Last(ctx); err == nil && last != nil {
			st.LastRun = last
		}
		if ok, err := s.opts.Runs.LastSuccess(ctx); err == nil {
			st.LastSuccess = ok
		}
	}
	st.Healthy = st.LastRun == nil || st.LastRun.Error == "" || !st.LastRun.Finished()
	return st
}

func (s *Service) setNext(t time.Time) {
	s.mu.Lock()
	s.nextRun = t
	s.mu.Unlock()
}

func (s *Service) takePending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.pending
	s.pending = ""
	return t
}
