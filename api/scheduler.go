/*
scheduler.go - Simulation clock and autosave schedulers

PURPOSE:
  Drives the treasury without client requests: the Scheduler ticks the
  simulation on a fixed real-time interval, and the Autosaver writes a save
  slot on a cron schedule.

DESIGN:
  - Scheduler runs a background goroutine around a time.Ticker; each tick
    advances the city by Interval x TimeScale real seconds and runs one
    engine update through Handler.Tick.
  - Autosaver wraps robfig/cron; each run saves through Handler.Save, so
    saves never interleave with a tick.

CONFIGURATION:
  - Interval:  Tick period (default: 1 second)
  - TimeScale: Simulated seconds per real second (default: 1)
  - Spec:      Autosave cron spec (default: "@every 5m")

USAGE:
  scheduler := NewScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TickSimulation endpoint (manual tick)
  - budget/projection.go: Engine.Update
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// TICK SCHEDULER
// =============================================================================

// Scheduler advances the simulation on a fixed interval.
type Scheduler struct {
	Handler   *Handler
	Interval  time.Duration
	TimeScale float64
	Enabled   bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	ticks  atomic.Int64
}

// NewScheduler creates a new scheduler.
func NewScheduler(handler *Handler) *Scheduler {
	return &Scheduler{
		Handler:   handler,
		Interval:  time.Second,
		TimeScale: 1,
		Enabled:   true,
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.Handler.Log
	if !s.Enabled {
		log.Info("Scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	log.WithFields(logrus.Fields{"interval": s.Interval.String(), "time_scale": s.TimeScale}).
		Info("Scheduler started")
}

// Stop stops the scheduler and waits for the running tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Handler.Log.Info("Scheduler stopped")
	}
}

// Ticks is the number of ticks run so far.
func (s *Scheduler) Ticks() int {
	return int(s.ticks.Load())
}

func (s *Scheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	seconds := s.Interval.Seconds() * s.TimeScale
	for {
		select {
		case <-ticker.C:
			s.Handler.Tick(seconds)
			s.ticks.Add(1)
		case <-stop:
			return
		}
	}
}

// =============================================================================
// AUTOSAVER
// =============================================================================

// Autosaver writes a save slot on a cron schedule.
type Autosaver struct {
	Handler *Handler
	Spec    string
	Timeout time.Duration

	cron *cron.Cron
}

// NewAutosaver creates an autosaver for a cron spec such as "@every 5m".
func NewAutosaver(handler *Handler, spec string) *Autosaver {
	return &Autosaver{Handler: handler, Spec: spec, Timeout: 30 * time.Second}
}

// Start schedules the job. An empty spec disables autosave.
func (a *Autosaver) Start() error {
	log := a.Handler.Log
	if a.Spec == "" {
		log.Info("Autosave disabled")
		return nil
	}

	a.cron = cron.New()
	if _, err := a.cron.AddFunc(a.Spec, a.RunOnce); err != nil {
		a.cron = nil
		return fmt.Errorf("autosave schedule %q: %w", a.Spec, err)
	}
	a.cron.Start()
	log.WithField("spec", a.Spec).Info("Autosave scheduled")
	return nil
}

// Stop cancels the schedule and waits for a running save.
func (a *Autosaver) Stop() {
	if a.cron == nil {
		return
	}
	<-a.cron.Stop().Done()
	a.cron = nil
}

// RunOnce writes one autosave slot.
func (a *Autosaver) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), a.Timeout)
	defer cancel()

	log := a.Handler.Log
	rec, err := a.Handler.Save(ctx, "autosave")
	if err != nil {
		log.WithError(err).Error("Autosave failed")
		return
	}
	log.WithFields(logrus.Fields{"save": rec.ID, "balance": rec.Balance}).Info("Autosave written")
}
