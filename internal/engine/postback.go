package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
	"github.com/applyflow/ds160-runner/internal/config"
)

// PostbackSynchronizer waits out the page churn after any interaction that
// may round-trip to the server. The remote site emits no reliable "ready"
// event, so stability is a best-effort signal: the primary strategy is
// network quiescence under a bounded timeout, the fallback a fixed settle
// delay. AwaitStable never fails; treating an ambiguous idle signal as
// fatal would abort otherwise-successful runs.
type PostbackSynchronizer struct {
	driver schemas.BrowserDriver
	cfg    config.PostbackConfig
	logger *zap.Logger
}

// NewPostbackSynchronizer wires the synchronizer to a job's session.
func NewPostbackSynchronizer(driver schemas.BrowserDriver, cfg config.PostbackConfig, logger *zap.Logger) *PostbackSynchronizer {
	return &PostbackSynchronizer{
		driver: driver,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "postback_sync")),
	}
}

// AwaitStable blocks until the page looks settled. reason tags the log lines
// so a wedged run can be traced to the interaction that caused it.
func (s *PostbackSynchronizer) AwaitStable(ctx context.Context, reason string) {
	start := time.Now()
	err := s.driver.WaitNetworkIdle(ctx, s.cfg.QuietPeriod, s.cfg.IdleTimeout)
	if err == nil {
		s.logger.Debug("Network idle reached",
			zap.String("reason", reason),
			zap.Duration("waited", time.Since(start)))
		return
	}
	if ctx.Err() != nil {
		// Cancellation beats the settle fallback; the caller is tearing down.
		return
	}

	s.logger.Debug("Network idle signal timed out, falling back to settle delay",
		zap.String("reason", reason),
		zap.Duration("settle", s.cfg.SettleDelay),
		zap.Error(err))

	select {
	case <-time.After(s.cfg.SettleDelay):
	case <-ctx.Done():
	}
}
