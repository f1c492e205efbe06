// Package scheduler fans out (sample, model) execution units to the
// target under a bounded concurrency ceiling, applies retry and timeout
// policy, grades completed trajectories, and returns results in a
// deterministic order independent of completion order.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/gauntlet-eval/gauntlet/internal/grading"
	"github.com/gauntlet-eval/gauntlet/internal/models"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
	"github.com/gauntlet-eval/gauntlet/internal/target"
)

// Defaults applied when the suite's runner section leaves a knob unset.
const (
	DefaultConcurrency = 16
	DefaultMaxAttempts = 3
	DefaultTimeout     = 5 * time.Minute
	DefaultBackoff     = 2 * time.Second
)

// Options control scheduling behavior for one run.
type Options struct {
	// Concurrency is the global ceiling on in-flight units.
	Concurrency int
	// MaxAttempts bounds executions per unit, counting the first.
	MaxAttempts int
	// Timeout bounds each attempt; an expired attempt frees its
	// concurrency slot and counts as a transient failure.
	Timeout time.Duration
	// Backoff is the base delay between attempts, scaled linearly by
	// attempt number.
	Backoff time.Duration
	// Runs repeats the entire unit set to quantify evaluation noise. Units
	// from different runs interleave freely under the same ceiling.
	Runs int
}

// FromRunnerSpec maps the suite document's runner section onto Options.
func FromRunnerSpec(rs suite.RunnerSpec) Options {
	opts := Options{
		Concurrency: rs.Concurrency,
		MaxAttempts: rs.MaxAttempts,
		Runs:        rs.Runs,
	}
	if rs.TimeoutSec > 0 {
		opts.Timeout = time.Duration(rs.TimeoutSec) * time.Second
	}
	if rs.BackoffSec > 0 {
		opts.Backoff = time.Duration(rs.BackoffSec * float64(time.Second))
	}
	return opts
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultBackoff
	}
	if o.Runs <= 0 {
		o.Runs = 1
	}
	return o
}

// EventType identifies a progress event.
type EventType string

const (
	EventSuiteStart    EventType = "suite_start"
	EventSuiteComplete EventType = "suite_complete"
	EventUnitStart     EventType = "unit_start"
	EventUnitRetry     EventType = "unit_retry"
	EventUnitComplete  EventType = "unit_complete"
	EventUnitFailed    EventType = "unit_failed"
)

// ProgressEvent is a progress update delivered to listeners. Listeners are
// invoked from worker goroutines and must be safe for concurrent use.
type ProgressEvent struct {
	Type       EventType
	Model      string
	SampleID   int
	Run        int
	Attempt    int
	TotalUnits int
	ErrorMsg   string
	DurationMs int64
}

// ProgressListener receives progress updates.
type ProgressListener func(ProgressEvent)

// Scheduler executes a suite's unit set. All configuration is explicit so
// multiple schedulers can run in one process without interference.
type Scheduler struct {
	target target.Target
	engine *grading.Engine
	opts   Options

	mu        sync.Mutex
	listeners []ProgressListener
}

// New creates a scheduler over a target adapter and a grading engine.
func New(t target.Target, e *grading.Engine, opts Options) *Scheduler {
	return &Scheduler{
		target: t,
		engine: e,
		opts:   opts.withDefaults(),
	}
}

// OnProgress registers a progress listener.
func (s *Scheduler) OnProgress(l ProgressListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Scheduler) notify(event ProgressEvent) {
	s.mu.Lock()
	listeners := make([]ProgressListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(event)
	}
}

type unit struct {
	run    int
	handle suite.ModelHandle
	sample *models.Sample
}

// Run executes every (sample, model) pair once per configured run and
// returns the finalized results sorted by (model, sample id, run),
// regardless of completion order.
//
// Unit failures never abort the run; a unit that exhausts its retries is
// recorded with attempted=false and its siblings proceed. Cancelling ctx
// stops dispatching new units, lets in-flight units wind down, and
// returns a partial result set of whatever ran, along with ctx's error.
func (s *Scheduler) Run(ctx context.Context, samples []models.Sample, handles []suite.ModelHandle) ([]models.SampleResult, error) {
	units := make([]unit, 0, len(samples)*len(handles)*s.opts.Runs)
	for run := 1; run <= s.opts.Runs; run++ {
		for h := range handles {
			for i := range samples {
				units = append(units, unit{run: run, handle: handles[h], sample: &samples[i]})
			}
		}
	}

	s.notify(ProgressEvent{Type: EventSuiteStart, TotalUnits: len(units)})

	// Completions land at their unit's index; enumeration order downstream
	// never depends on which goroutine finished first.
	results := make([]models.SampleResult, len(units))
	dispatched := make([]bool, len(units))

	sem := semaphore.NewWeighted(int64(s.opts.Concurrency))
	var wg sync.WaitGroup

	for i := range units {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Operator cancellation: stop dispatching, drain in-flight.
			break
		}
		dispatched[i] = true
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer sem.Release(1)
			results[idx] = s.executeUnit(ctx, units[idx])
		}(i)
	}
	wg.Wait()

	completed := make([]models.SampleResult, 0, len(units))
	for i := range units {
		if dispatched[i] {
			completed = append(completed, results[i])
		}
	}
	models.SortResults(completed)

	s.notify(ProgressEvent{Type: EventSuiteComplete, TotalUnits: len(units)})
	return completed, ctx.Err()
}

// executeUnit drives one unit through its lifecycle:
// pending -> running -> {succeeded | retrying -> running | failed}.
func (s *Scheduler) executeUnit(ctx context.Context, u unit) models.SampleResult {
	start := time.Now()
	result := models.SampleResult{
		SampleID: u.sample.ID,
		Model:    u.handle.Name,
		Run:      u.run,
	}

	s.notify(ProgressEvent{
		Type:     EventUnitStart,
		Model:    u.handle.Name,
		SampleID: u.sample.ID,
		Run:      u.run,
	})

	var resp *target.Response
	var lastErr error

	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		result.Attempts = attempt

		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		resp, lastErr = s.target.Run(attemptCtx, u.handle, *u.sample)
		cancel()

		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			// The whole run is being cancelled; don't burn retries on it.
			break
		}
		if !target.IsTransient(lastErr) {
			break
		}
		if attempt == s.opts.MaxAttempts {
			break
		}

		s.notify(ProgressEvent{
			Type:     EventUnitRetry,
			Model:    u.handle.Name,
			SampleID: u.sample.ID,
			Run:      u.run,
			Attempt:  attempt,
			ErrorMsg: lastErr.Error(),
		})

		if !sleepCtx(ctx, time.Duration(attempt)*s.opts.Backoff) {
			break
		}
	}

	if lastErr != nil {
		result.Attempted = false
		result.ErrorMsg = lastErr.Error()
		result.DurationMs = time.Since(start).Milliseconds()
		s.notify(ProgressEvent{
			Type:       EventUnitFailed,
			Model:      u.handle.Name,
			SampleID:   u.sample.ID,
			Run:        u.run,
			Attempt:    result.Attempts,
			ErrorMsg:   lastErr.Error(),
			DurationMs: result.DurationMs,
		})
		return result
	}

	result.Attempted = true
	result.Trajectory = resp.Trajectory
	result.Cost = resp.Cost
	result.Grades = s.engine.Grade(ctx, u.sample, resp.Trajectory)
	result.DurationMs = time.Since(start).Milliseconds()

	s.notify(ProgressEvent{
		Type:       EventUnitComplete,
		Model:      u.handle.Name,
		SampleID:   u.sample.ID,
		Run:        u.run,
		Attempt:    result.Attempts,
		DurationMs: result.DurationMs,
	})
	return result
}

// sleepCtx waits for d unless ctx is cancelled first. Reports whether the
// full delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Describe renders a unit identity for logs.
func Describe(model string, sampleID, run int) string {
	return fmt.Sprintf("%s/sample-%d/run-%d", model, sampleID, run)
}
