package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"commerce_backend/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaDispatcherPublishesKeyedJSON(t *testing.T) {
	w := &recordingWriter{}
	d := &KafkaDispatcher{writer: w}
	event := OrderEvent{
		RestaurantID:   3,
		OrderID:        17,
		OrderNumber:    "ORD-ABC",
		PreviousStatus: models.OrderPending,
		Status:         models.OrderFulfilled,
		TotalCents:     4200,
		OccurredAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.NoError(t, d.Dispatch(context.Background(), event))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "17", string(w.msgs[0].Key))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "fulfilled", decoded["status"])
	assert.Equal(t, "pending", decoded["previous_status"])
	assert.Equal(t, "ORD-ABC", decoded["order_number"])

	require.NoError(t, d.Close())
	assert.True(t, w.closed)
}

func TestKafkaDispatcherWrapsWriteErrors(t *testing.T) {
	boom := errors.New("broker unreachable")
	d := &KafkaDispatcher{writer: &recordingWriter{err: boom}}
	err := d.Dispatch(context.Background(), OrderEvent{OrderNumber: "ORD-1"})
	assert.ErrorIs(t, err, boom)
}

func TestLogDispatcherNeverFails(t *testing.T) {
	d := NewLogDispatcher()
	assert.NoError(t, d.Dispatch(context.Background(), OrderEvent{OrderID: 1, Status: models.OrderCompleted}))
	assert.NoError(t, d.Close())
}
