package detection

import (
	"sync"
	"time"

	"github.com/curbwatch/parking-backend-go/internal/models"
)

// ValidationOutcome is the result of a motion validation session
type ValidationOutcome string

const (
	// OutcomeValidated means a walking/High classification arrived in time
	OutcomeValidated ValidationOutcome = "VALIDATED"
	// OutcomeTimedOut means the timeout elapsed with no qualifying
	// classification, or motion data was unavailable. Callers treat this
	// as "cannot confirm walking", not as a rejection.
	OutcomeTimedOut ValidationOutcome = "TIMED_OUT"
	// OutcomeCanceled means the session was canceled before resolving
	OutcomeCanceled ValidationOutcome = "CANCELED"
)

// MotionValidator runs time-boxed checks for a high-confidence walking
// classification after a disconnect.
type MotionValidator struct {
	provider MotionActivityProvider
	clock    Clock
}

// NewMotionValidator creates a validator over the given provider
func NewMotionValidator(provider MotionActivityProvider, clock Clock) *MotionValidator {
	return &MotionValidator{provider: provider, clock: clock}
}

// ValidationSession is a single in-flight validation. Exactly one outcome
// is ever delivered on Result, even when the motion stream and the timer
// race; the once cell makes the at-most-once guarantee structural.
type ValidationSession struct {
	result chan ValidationOutcome
	once   sync.Once
	stop   chan struct{}
}

// Result delivers the session's single outcome
func (s *ValidationSession) Result() <-chan ValidationOutcome {
	return s.result
}

// Cancel resolves the session as canceled if it has not resolved yet
func (s *ValidationSession) Cancel() {
	s.resolve(OutcomeCanceled)
}

func (s *ValidationSession) resolve(o ValidationOutcome) {
	s.once.Do(func() {
		close(s.stop)
		s.result <- o
	})
}

// Begin starts a validation session that resolves Validated on the first
// classification with walking == true and confidence == High, or TimedOut
// once timeout elapses. If the motion capability is unavailable the
// session resolves TimedOut immediately.
func (v *MotionValidator) Begin(timeout time.Duration) *ValidationSession {
	session := &ValidationSession{
		result: make(chan ValidationOutcome, 1),
		stop:   make(chan struct{}),
	}

	if !v.provider.Available() {
		session.resolve(OutcomeTimedOut)
		return session
	}

	stream, unsubscribe := v.provider.Subscribe()
	deadline := v.clock.After(timeout)

	go func() {
		defer unsubscribe()
		for {
			select {
			case c, ok := <-stream:
				if !ok {
					session.resolve(OutcomeTimedOut)
					return
				}
				if c.Walking && c.Confidence == models.MotionConfidenceHigh {
					session.resolve(OutcomeValidated)
					return
				}
			case <-deadline:
				session.resolve(OutcomeTimedOut)
				return
			case <-session.stop:
				return
			}
		}
	}()

	return session
}

// WalkedBetween checks historical motion activity for any walking
// classification inside [start, end]. The boolean result is only
// meaningful when the error is nil; an error means motion history is
// unavailable and the caller decides the fallback policy.
func (v *MotionValidator) WalkedBetween(start, end time.Time) (bool, error) {
	if !v.provider.Available() {
		return false, ErrMotionUnavailable
	}

	activities, err := v.provider.ActivitiesBetween(start, end)
	if err != nil {
		return false, err
	}

	for _, a := range activities {
		if a.Walking {
			return true, nil
		}
	}
	return false, nil
}
