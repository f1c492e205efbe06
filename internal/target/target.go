// Package target defines the boundary to the thing-under-test. The engine
// only needs two things from an adapter: a trajectory (or a failure), and a
// transient/terminal classification on the failure to decide retry
// eligibility.
package target

import (
	"context"
	"errors"
	"fmt"

	"github.com/gauntlet-eval/gauntlet/internal/models"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

// Response is the successful outcome of one execution.
type Response struct {
	Trajectory models.Trajectory
	// Cost is the provider-reported cost of the execution, when available.
	Cost *float64
}

// Target runs one sample against one model handle. Implementations must be
// safe for concurrent use; the scheduler shares one Target across all
// execution units.
type Target interface {
	// Run executes the sample's turns in order and returns the recorded
	// trajectory. Failures should be wrapped with Transient when a retry
	// could plausibly succeed.
	Run(ctx context.Context, handle suite.ModelHandle, sample models.Sample) (*Response, error)
}

// New builds the adapter declared by the suite's target spec.
func New(spec suite.TargetSpec) (Target, error) {
	switch spec.Kind {
	case "chat":
		return NewChatTarget(spec)
	case "mock":
		return NewEchoTarget(), nil
	default:
		return nil, fmt.Errorf("target: unknown target kind %q", spec.Kind)
	}
}

// TransientError marks a failure that is eligible for retry: provider
// overload, rate limits, network flakes. Anything not wrapped this way is
// terminal and fails the unit on first occurrence.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retry-eligible.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is classified retry-eligible. Timeouts
// count as transient: the per-unit deadline firing says nothing about the
// next attempt.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
