package estimator

import (
	"errors"
	"fmt"
)

// Gate rejection kinds. A *RejectError wraps exactly one of them.
var (
	ErrTrackingFailure       = errors.New("tracking failure")
	ErrQualityBelowThreshold = errors.New("quality below threshold")
	ErrKinematicViolation    = errors.New("kinematic violation")
	ErrHeadingDivergence     = errors.New("heading divergence")
)

// ErrInvalidTransition is returned by Machine.Fire for an event that is not
// defined in the current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrCommandQueueFull is returned by Submit when the frame loop has not
// drained earlier commands yet.
var ErrCommandQueueFull = errors.New("command queue full")

// errNoElapsed marks a frame stamped no later than the previous accepted
// one. Such a frame carries no velocity and is skipped.
var errNoElapsed = errors.New("no time elapsed")

// RejectError describes why the gate refused a frame.
type RejectError struct {
	Kind   error
	Reason string
	Value  float64
	Limit  float64
}

func (e *RejectError) Error() string {
	if e.Limit == 0 && e.Value == 0 {
		return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%v: %s (%.3f > %.3f)", e.Kind, e.Reason, e.Value, e.Limit)
}

func (e *RejectError) Unwrap() error { return e.Kind }

func reject(kind error, reason string, value, limit float64) *RejectError {
	return &RejectError{Kind: kind, Reason: reason, Value: value, Limit: limit}
}
