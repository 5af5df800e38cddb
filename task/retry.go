package task

import (
	"context"
	"errors"
	"time"
)

// retry runs fn and repeats it after a transient tool failure while retries
// are enabled. The delay doubles after each attempt. It gives up early when
// ctx ends.
func (m *Manager) retry(ctx context.Context, url string, fn func() error) error {
	attempts := 0
	if m.settings.UseRetries() {
		attempts = m.settings.RetryAttempts()
	}
	backoff := m.cfg.RetryBackoff

	for attempt := 1; ; attempt++ {
		err := fn()
		var te *ToolError
		if err == nil || attempt > attempts || !errors.As(err, &te) || !te.Transient() {
			return err
		}
		m.logger.Warn("Transient tool failure, retrying", "url", url, "attempt", attempt,
			"retries", attempts, "backoff", backoff, "error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		backoff *= 2
	}
}
