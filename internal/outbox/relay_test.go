package outbox

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-parser-go/internal/constants"
	"resume-parser-go/internal/storage/models"
)

type fakePublisher struct {
	failFor   map[string]error
	published []string
}

func (f *fakePublisher) PublishMessage(_ context.Context, exchangeName, routingKey string, message []byte, persistent bool) error {
	if err, ok := f.failFor[string(message)]; ok {
		return err
	}
	f.published = append(f.published, exchangeName+"|"+routingKey+"|"+string(message))
	return nil
}

func newTestRelay(pub Publisher, opts ...Option) *MessageRelay {
	return NewMessageRelay(nil, pub, log.New(io.Discard, "", 0), opts...)
}

func TestPublishBatch(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pub := &fakePublisher{failFor: map[string]error{`{"n":2}`: errors.New("connection reset")}}
	relay := newTestRelay(pub)
	relay.now = func() time.Time { return fixed }

	messages := []models.OutboxMessage{
		{ID: 1, AggregateID: "a", Payload: `{"n":1}`, TargetExchange: "resume.events.exchange", TargetRoutingKey: "resume.parsed", Status: constants.OutboxStatusPending},
		{ID: 2, AggregateID: "b", Payload: `{"n":2}`, TargetExchange: "resume.events.exchange", TargetRoutingKey: "resume.parsed", Status: constants.OutboxStatusPending},
		{ID: 3, AggregateID: "c", Payload: `{"n":2}`, TargetExchange: "resume.events.exchange", TargetRoutingKey: "resume.parsed", Status: constants.OutboxStatusPending, RetryCount: maxRetryCount - 1},
	}

	sent := relay.publishBatch(context.Background(), messages)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{`resume.events.exchange|resume.parsed|{"n":1}`}, pub.published)

	assert.Equal(t, constants.OutboxStatusSent, messages[0].Status)
	require.NotNil(t, messages[0].ProcessedAt)
	assert.Equal(t, fixed, *messages[0].ProcessedAt)

	assert.Equal(t, constants.OutboxStatusPending, messages[1].Status, "未达到最大重试次数时保持PENDING")
	assert.Equal(t, 1, messages[1].RetryCount)
	assert.Equal(t, "connection reset", messages[1].ErrorMessage)

	assert.Equal(t, constants.OutboxStatusFailed, messages[2].Status, "达到最大重试次数后标记为FAILED")
	assert.Nil(t, messages[2].ProcessedAt)
}

func TestRelayOptions(t *testing.T) {
	relay := newTestRelay(&fakePublisher{}, WithPollingInterval(2*time.Second), WithBatchSize(25))
	assert.Equal(t, 2*time.Second, relay.pollingInterval)
	assert.Equal(t, 25, relay.batchSize)

	relay = newTestRelay(&fakePublisher{}, WithPollingInterval(0), WithBatchSize(-1))
	assert.Equal(t, defaultPollingInterval, relay.pollingInterval, "非正数应被忽略")
	assert.Equal(t, defaultBatchSize, relay.batchSize)
}

func TestRelayStopIsIdempotent(t *testing.T) {
	relay := newTestRelay(&fakePublisher{}, WithPollingInterval(time.Hour))
	relay.Start()
	relay.Stop()
	relay.Stop()
}
