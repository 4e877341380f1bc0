package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/planfit-ai/planfit/internal/chat"
)

const sendMaxAttempts = 3

// sendWithRetry delivers msg to peer, retrying transient delivery failures
// with a linearly growing backoff (one step after the first failure, two
// after the second). Gives up once every attempt has failed.
func (a *Agent) sendWithRetry(ctx context.Context, peer, sessionID string, msg chat.Message) error {
	var lastErr error
	for attempt := 1; attempt <= sendMaxAttempts; attempt++ {
		lastErr = a.courier.SendMessage(ctx, peer, sessionID, msg)
		if lastErr == nil {
			if attempt > 1 {
				a.logger.Info("send succeeded after retry",
					zap.String("peer", peer),
					zap.Int("attempt", attempt))
			}
			return nil
		}
		a.logger.Warn("send attempt failed",
			zap.String("peer", peer),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", sendMaxAttempts),
			zap.Error(lastErr))
		if attempt < sendMaxAttempts {
			if err := sleepWithContext(ctx, time.Duration(attempt)*a.backoffStep); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("all %d send attempts failed: %w", sendMaxAttempts, lastErr)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
