package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
	"github.com/applyflow/ds160-runner/internal/config"
)

type fakeRegistrar struct {
	created []*schemas.Job
	err     error
}

func (r *fakeRegistrar) CreateJob(ctx context.Context, job *schemas.Job) error {
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, job)
	return nil
}

func newTestConsumer(registrar JobRegistrar) *Consumer {
	return &Consumer{
		cfg:       config.QueueConfig{Subject: "ds160.jobs", Durable: "ds160-runner"},
		registrar: registrar,
		logger:    zap.NewNop(),
	}
}

func natsMsg(t *testing.T, payload JobMessage) *nats.Msg {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &nats.Msg{Subject: "ds160.jobs", Data: data}
}

func TestHandleRegistersAndEnqueuesJob(t *testing.T) {
	registrar := &fakeRegistrar{}
	consumer := newTestConsumer(registrar)

	jobID := uuid.New()
	msg := natsMsg(t, JobMessage{
		JobID:    jobID,
		UserID:   "user-1",
		Embassy:  "London",
		FormData: schemas.FormData{"personal.surname": "DOE"},
	})

	requests := make(chan JobRequest, 1)
	consumer.handle(context.Background(), msg, requests)

	require.Len(t, registrar.created, 1)
	assert.Equal(t, jobID, registrar.created[0].ID)
	assert.Equal(t, schemas.JobStatusPending, registrar.created[0].Status)

	select {
	case req := <-requests:
		assert.Equal(t, jobID, req.Job.ID)
		assert.Equal(t, "DOE", req.FormData["personal.surname"])
		assert.NotNil(t, req.Done)
	default:
		t.Fatal("expected a job request on the channel")
	}
}

func TestHandleTerminatesUndecodableMessages(t *testing.T) {
	registrar := &fakeRegistrar{}
	consumer := newTestConsumer(registrar)

	msg := &nats.Msg{Subject: "ds160.jobs", Data: []byte("not json")}
	requests := make(chan JobRequest, 1)
	consumer.handle(context.Background(), msg, requests)

	assert.Empty(t, registrar.created, "poison messages never become jobs")
	assert.Empty(t, requests)
}

func TestHandleTerminatesMessagesWithoutJobID(t *testing.T) {
	registrar := &fakeRegistrar{}
	consumer := newTestConsumer(registrar)

	msg := natsMsg(t, JobMessage{UserID: "user-1"})
	requests := make(chan JobRequest, 1)
	consumer.handle(context.Background(), msg, requests)

	assert.Empty(t, registrar.created)
	assert.Empty(t, requests)
}

func TestHandleDoesNotEnqueueWhenRegistrationFails(t *testing.T) {
	registrar := &fakeRegistrar{err: errors.New("database down")}
	consumer := newTestConsumer(registrar)

	msg := natsMsg(t, JobMessage{JobID: uuid.New()})
	requests := make(chan JobRequest, 1)
	consumer.handle(context.Background(), msg, requests)

	assert.Empty(t, requests, "the message redelivers instead of running unregistered")
}

func TestHandleDropsWorkOnCancelledContext(t *testing.T) {
	registrar := &fakeRegistrar{}
	consumer := newTestConsumer(registrar)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msg := natsMsg(t, JobMessage{JobID: uuid.New()})
	requests := make(chan JobRequest) // unbuffered, nobody reading
	consumer.handle(ctx, msg, requests)
	// Reaching here without blocking is the assertion.
}
