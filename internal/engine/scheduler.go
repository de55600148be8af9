package engine

import (
	"context"
	"errors"
	"time"

	"factor-trading-bot/internal/interfaces"
	"factor-trading-bot/internal/logger"
	"factor-trading-bot/internal/metrics"
	"factor-trading-bot/internal/types"
)

const (
	MissedPolicySkip    = "skip"
	MissedPolicyCatchUp = "catch_up"
)

// Clock abstracts wall time and timers.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the process wall clock.
var SystemClock Clock = realClock{}

type SchedulerConfig struct {
	TriggerSecond       int
	MissedPolicy        string
	AbortAlertThreshold int
}

// Scheduler fires one engine cycle per minute when the wall clock reaches
// the trigger second. It is the only control loop in the process.
type Scheduler struct {
	engine interfaces.Engine
	clock  Clock
	cfg    SchedulerConfig

	lastFired time.Time
	aborts    int
	catchUp   bool
}

func NewScheduler(eng interfaces.Engine, clock Clock, cfg SchedulerConfig) *Scheduler {
	if clock == nil {
		clock = SystemClock
	}
	return &Scheduler{engine: eng, clock: clock, cfg: cfg}
}

// Run blocks until ctx is cancelled. Cycles are never interrupted by the
// scheduler itself; cancellation is observed between cycles and by the
// engine's own calls.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Info(ctx, "Scheduler started",
		"trigger_second", s.cfg.TriggerSecond,
		"missed_policy", s.cfg.MissedPolicy)

	// The startup minute never fires.
	if s.lastFired.IsZero() {
		s.lastFired = s.clock.Now().Truncate(time.Minute)
	}

	for {
		if ctx.Err() != nil {
			logger.Info(ctx, "Scheduler stopped")
			return nil
		}

		if s.catchUp {
			s.catchUp = false
			s.fire(ctx, s.clock.Now())
			continue
		}

		now := s.clock.Now()
		select {
		case <-ctx.Done():
			continue
		case <-s.clock.After(s.untilNextTrigger(now)):
		}

		now = s.clock.Now()
		if !s.shouldFire(now) {
			continue
		}
		s.fire(ctx, now)
	}
}

// shouldFire reports whether now is a trigger instant in a minute that has
// not fired yet.
func (s *Scheduler) shouldFire(now time.Time) bool {
	return now.Second() == s.cfg.TriggerSecond && !now.Truncate(time.Minute).Equal(s.lastFired)
}

// untilNextTrigger is the wait until the next trigger instant in an unfired
// minute. It is zero while inside a trigger second that should fire.
func (s *Scheduler) untilNextTrigger(now time.Time) time.Duration {
	if s.shouldFire(now) {
		return 0
	}
	minute := now.Truncate(time.Minute)
	next := minute.Add(time.Duration(s.cfg.TriggerSecond) * time.Second)
	if !next.After(now) || minute.Equal(s.lastFired) {
		next = next.Add(time.Minute)
	}
	return next.Sub(now)
}

func (s *Scheduler) fire(ctx context.Context, now time.Time) {
	s.lastFired = now.Truncate(time.Minute)
	start := s.clock.Now()

	report, err := s.engine.Cycle(ctx)
	elapsed := s.clock.Now().Sub(start)
	metrics.CycleDuration.Observe(elapsed.Seconds())

	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		logger.Info(ctx, "Cycle interrupted by shutdown", "minute", s.lastFired)
		return
	}

	if err != nil {
		s.aborts++
		metrics.CyclesTotal.WithLabelValues("aborted").Inc()
		metrics.ConsecutiveAborts.Set(float64(s.aborts))
		logger.ErrorWithErr(ctx, "Cycle aborted", err,
			"minute", s.lastFired,
			"consecutive_aborts", s.aborts)
		if s.cfg.AbortAlertThreshold > 0 && s.aborts >= s.cfg.AbortAlertThreshold {
			metrics.AbortAlert.Set(1)
			logger.Risk(ctx, "*", "CYCLE_ABORT_ALERT",
				"consecutive_aborts", s.aborts,
				"threshold", s.cfg.AbortAlertThreshold,
				"error", err.Error())
		}
	} else {
		s.aborts = 0
		metrics.CyclesTotal.WithLabelValues("completed").Inc()
		metrics.ConsecutiveAborts.Set(0)
		metrics.AbortAlert.Set(0)
		if report != nil {
			logger.Debug(ctx, "Cycle finished",
				"minute", s.lastFired,
				"submitted", report.Count(types.ActionSubmitted),
				"symbols", len(report.Outcomes))
		}
	}

	s.handleMissed(ctx, s.clock.Now())
}

// handleMissed accounts for trigger instants that passed while the cycle
// ran. Under catch_up the current minute fires immediately; every other
// missed edge is dropped.
func (s *Scheduler) handleMissed(ctx context.Context, end time.Time) {
	missed := s.missedEdges(end)
	if missed == 0 || ctx.Err() != nil {
		return
	}

	dropped := missed
	if s.cfg.MissedPolicy == MissedPolicyCatchUp {
		s.catchUp = true
		dropped--
	}
	if dropped > 0 {
		metrics.MissedTriggers.Add(float64(dropped))
		logger.Warn(ctx, "Missed trigger edges during long cycle",
			"missed", missed,
			"dropped", dropped,
			"policy", s.cfg.MissedPolicy)
	}
}

// missedEdges counts trigger seconds that fully elapsed after the last fired
// minute and before end. A trigger second still in progress can fire.
func (s *Scheduler) missedEdges(end time.Time) int {
	n := int(end.Truncate(time.Minute).Sub(s.lastFired) / time.Minute)
	if end.Second() <= s.cfg.TriggerSecond {
		n--
	}
	if n < 0 {
		return 0
	}
	return n
}

// ConsecutiveAborts is the number of aborted cycles since the last success.
func (s *Scheduler) ConsecutiveAborts() int {
	return s.aborts
}
