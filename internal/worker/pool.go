// Package worker runs jobs concurrently, one browser session per job, and
// feeds them from the NATS intake queue.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/applyflow/ds160-runner/api/schemas"
)

// JobRequest is one unit of work handed to the pool.
type JobRequest struct {
	Job      *schemas.Job
	FormData schemas.FormData
	// Done receives the terminal outcome; the queue consumer uses it to
	// ack or redeliver the message.
	Done func(result *schemas.TerminalResult, err error)
}

// Runner executes one job end-to-end. The engine's orchestrator factory
// satisfies it; tests inject fakes.
type Runner interface {
	RunJob(ctx context.Context, job *schemas.Job, formData schemas.FormData) (*schemas.TerminalResult, error)
}

// Pool runs up to Concurrency jobs in parallel. Jobs share nothing: each
// gets its own browser session from the Runner, and the limiter throttles
// how fast fresh sessions spawn.
type Pool struct {
	runner      Runner
	concurrency int
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewPool builds a pool. sessionsPerMinute <= 0 disables throttling.
func NewPool(runner Runner, concurrency, sessionsPerMinute int, logger *zap.Logger) (*Pool, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", concurrency)
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if sessionsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(sessionsPerMinute)/60.0), 1)
	}
	return &Pool{
		runner:      runner,
		concurrency: concurrency,
		limiter:     limiter,
		logger:      logger.With(zap.String("component", "worker_pool")),
	}, nil
}

// Run consumes requests until the channel closes or the context ends. It
// returns once every in-flight job has finished.
func (p *Pool) Run(ctx context.Context, requests <-chan JobRequest) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	p.logger.Info("Worker pool started", zap.Int("concurrency", p.concurrency))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Worker pool stopping, draining in-flight jobs")
			return g.Wait()
		case req, ok := <-requests:
			if !ok {
				return g.Wait()
			}
			p.dispatch(ctx, g, req)
		}
	}
}

func (p *Pool) dispatch(ctx context.Context, g *errgroup.Group, req JobRequest) {
	g.Go(func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			req.Done(nil, err)
			return nil
		}

		log := p.logger.With(zap.String("job_id", req.Job.ID.String()))
		log.Info("Job picked up")

		result, err := p.runner.RunJob(ctx, req.Job, req.FormData)
		if err != nil {
			log.Error("Job finished with failure", zap.Error(err))
		} else {
			log.Info("Job finished", zap.String("status", string(result.Status)))
		}
		if req.Done != nil {
			req.Done(result, err)
		}
		// Job failures are reported through Done, not the group: one bad
		// job must not tear down its siblings.
		return nil
	})
}
