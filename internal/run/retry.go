package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/Backland-Labs/reportrun/internal/protocol"
	"github.com/Backland-Labs/reportrun/internal/report"
)

// DefaultRetryBackoff is the wait before the first automatic retry
const DefaultRetryBackoff = 500 * time.Millisecond

const maxRetryBackoff = 30 * time.Second

// SubmitWithRetry starts req and, while the run ends Failed, retries it from
// the remembered context up to retries more times with exponential backoff.
// Cancelled and Succeeded runs are never retried. Pre-run rejections are
// returned as errors, as with Start.
func (m *Manager) SubmitWithRetry(ctx context.Context, req report.Request, retries int, backoff time.Duration) (Outcome, error) {
	if retries <= 0 {
		return m.Start(ctx, req)
	}
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}

	policy := retry.WithMaxRetries(uint64(retries), retry.WithCappedDuration(maxRetryBackoff, retry.NewExponential(backoff)))

	var (
		out      Outcome
		attempts int
		rejected error
	)
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempts++
		var err error
		if attempts == 1 {
			out, err = m.Start(ctx, req)
		} else {
			m.sink.OnLog(protocol.LogEvent(protocol.LevelInfo,
				fmt.Sprintf("Retrying %s report (attempt %d of %d)...", req.Kind.Title(), attempts, retries+1)))
			out, err = m.Retry(ctx, req.Kind)
		}
		if err != nil {
			rejected = err
			return err
		}
		if out.Status == Failed {
			m.log.WithRun(out.RunID, string(out.Kind)).Debugf("Attempt %d failed: %s", attempts, out.Message)
			return retry.RetryableError(errors.New(out.Message))
		}
		return nil
	})

	if rejected != nil {
		return Outcome{}, rejected
	}
	if attempts == 0 {
		return Outcome{}, err
	}
	if err != nil && ctx.Err() != nil && out.Status == Failed {
		// cancelled while waiting for the next attempt
		m.sink.OnLog(protocol.LogEvent(protocol.LevelInfo, CancelledText))
		if clearErr := m.store.Clear(req.Kind); clearErr != nil {
			m.log.WithError(clearErr).Warn("Failed to clear run context")
		}
		out = Outcome{RunID: out.RunID, Kind: req.Kind, Status: Cancelled}
		m.setState(req.Kind, Cancelled)
	}
	out.Attempts = attempts
	return out, nil
}
