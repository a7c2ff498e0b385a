package session

import "time"

// Observer receives bootstrap telemetry.
type Observer interface {
	BootstrapSettled(outcome Outcome, elapsed time.Duration)
	FallbackWriteFailed(outcome Outcome)
}

type noopObserver struct{}

func (noopObserver) BootstrapSettled(Outcome, time.Duration) {}
func (noopObserver) FallbackWriteFailed(Outcome)             {}
