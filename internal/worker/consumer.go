package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
	"github.com/applyflow/ds160-runner/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JobMessage is the submission payload published to the intake subject.
type JobMessage struct {
	JobID    uuid.UUID        `json:"job_id"`
	UserID   string           `json:"user_id"`
	Embassy  string           `json:"embassy"`
	FormData schemas.FormData `json:"form_data"`
}

// JobRegistrar persists a job record before the pool runs it.
type JobRegistrar interface {
	CreateJob(ctx context.Context, job *schemas.Job) error
}

// Consumer pulls submission messages off JetStream and feeds the pool.
// Messages ack on any terminal outcome; a job that failed for engine-side
// reasons is still terminal and must not redeliver into a duplicate
// submission attempt.
type Consumer struct {
	js        nats.JetStreamContext
	cfg       config.QueueConfig
	registrar JobRegistrar
	logger    *zap.Logger
}

// NewConsumer connects the consumer to JetStream.
func NewConsumer(nc *nats.Conn, cfg config.QueueConfig, registrar JobRegistrar, logger *zap.Logger) (*Consumer, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("obtaining JetStream context: %w", err)
	}
	return &Consumer{
		js:        js,
		cfg:       cfg,
		registrar: registrar,
		logger:    logger.With(zap.String("component", "queue_consumer")),
	}, nil
}

// Consume pulls messages until the context ends, pushing work into
// requests. The channel is closed on return so the pool can drain.
func (c *Consumer) Consume(ctx context.Context, requests chan<- JobRequest) error {
	defer close(requests)

	sub, err := c.js.PullSubscribe(c.cfg.Subject, c.cfg.Durable)
	if err != nil {
		return fmt.Errorf("subscribing to %q: %w", c.cfg.Subject, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Warn("Unsubscribe failed", zap.Error(err))
		}
	}()

	c.logger.Info("Consuming jobs",
		zap.String("subject", c.cfg.Subject), zap.String("durable", c.cfg.Durable))

	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := sub.Fetch(1, nats.MaxWait(c.cfg.FetchTimeout))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("Fetch failed, backing off", zap.Error(err))
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		for _, msg := range msgs {
			c.handle(ctx, msg, requests)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg *nats.Msg, requests chan<- JobRequest) {
	var payload JobMessage
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		c.logger.Error("Undecodable job message, terminating it", zap.Error(err))
		c.term(msg)
		return
	}
	if payload.JobID == uuid.Nil {
		c.logger.Error("Job message without job_id, terminating it")
		c.term(msg)
		return
	}

	job := &schemas.Job{
		ID:        payload.JobID,
		UserID:    payload.UserID,
		Status:    schemas.JobStatusPending,
		Embassy:   payload.Embassy,
		FormData:  payload.FormData,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.registrar.CreateJob(ctx, job); err != nil {
		c.logger.Error("Could not register job, redelivering", zap.Error(err))
		c.nak(msg)
		return
	}

	// Stretch the ack window while the job runs; a DS-160 run takes minutes.
	if err := msg.InProgress(); err != nil {
		c.logger.Debug("InProgress signal failed", zap.Error(err))
	}

	req := JobRequest{
		Job:      job,
		FormData: payload.FormData,
		Done: func(result *schemas.TerminalResult, err error) {
			// Terminal either way: the job row records the outcome.
			if ackErr := msg.Ack(); ackErr != nil {
				c.logger.Warn("Ack failed", zap.Error(ackErr))
			}
		},
	}

	select {
	case requests <- req:
	case <-ctx.Done():
		c.nak(msg)
	}
}

func (c *Consumer) term(msg *nats.Msg) {
	if err := msg.Term(); err != nil {
		c.logger.Warn("Term failed", zap.Error(err))
	}
}

func (c *Consumer) nak(msg *nats.Msg) {
	if err := msg.Nak(); err != nil {
		c.logger.Warn("Nak failed", zap.Error(err))
	}
}
