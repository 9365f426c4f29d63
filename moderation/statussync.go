package moderation

import (
	"context"
	"errors"
	"time"

	"github.com/minhng-dev/social-moderation-api/models"
)

// ErrPollBudgetExhausted is returned when the status is still pending after
// the final poll attempt
var ErrPollBudgetExhausted = errors.New("status still pending after poll budget")

// StatusFetch reads the current moderation status of one item
type StatusFetch func(ctx context.Context) (string, error)

// StatusPoller waits for an item to leave the pending status. It formalizes
// the client polling contract: fixed interval, bounded attempts, cancellable.
type StatusPoller struct {
	Interval time.Duration
	Attempts int
}

// NewStatusPoller applies the default budget of ten one-second attempts when
// the arguments are zero
func NewStatusPoller(interval time.Duration, attempts int) *StatusPoller {
	if interval <= 0 {
		interval = time.Second
	}
	if attempts <= 0 {
		attempts = 10
	}
	return &StatusPoller{Interval: interval, Attempts: attempts}
}

// Wait polls fetch until the status is terminal, the attempt budget runs
// out, or ctx is cancelled. The first attempt runs immediately.
func (p *StatusPoller) Wait(ctx context.Context, fetch StatusFetch) (string, error) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for attempt := 0; attempt < p.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-ticker.C:
			}
		}

		status, err := fetch(ctx)
		if err != nil {
			return "", err
		}
		if status != models.StatusPending {
			return status, nil
		}
	}
	return "", ErrPollBudgetExhausted
}
