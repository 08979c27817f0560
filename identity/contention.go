package identity

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// MaxContentionAttempts bounds optimistic write retries when ctx carries no
// deadline of its own.
const MaxContentionAttempts = 256

const (
	contentionBase = 500 * time.Microsecond
	contentionCap  = 20 * time.Millisecond
)

// AwaitRetry is called by backends after a conflicting optimistic write.
// It sleeps a jittered, growing delay and returns nil when the caller should
// try again. Once ctx is done or the attempt budget is spent it returns an
// ErrUnavailable naming subject.
func AwaitRetry(ctx context.Context, attempt int, subject string) error {
	if attempt+1 >= MaxContentionAttempts {
		return fmt.Errorf("%w: write contention on %s", ErrUnavailable, subject)
	}

	delay := contentionBase << min(attempt, 6)
	if delay > contentionCap {
		delay = contentionCap
	}
	delay = delay/2 + rand.N(delay/2+1)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: write contention on %s: %v", ErrUnavailable, subject, ctx.Err())
	}
}
