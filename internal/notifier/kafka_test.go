package notifier

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaNotifierNotify(t *testing.T) {
	t.Run("publishes a user-keyed envelope", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, nil)
		producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
			var env Envelope
			if err := json.Unmarshal(value, &env); err != nil {
				return err
			}
			assert.Equal(t, uint(42), env.UserID)
			assert.Equal(t, EventChatFormed, env.EventKind)
			assert.False(t, env.SentAt.IsZero())
			return nil
		})

		n := NewKafkaNotifierWithProducer(producer, "notifications")
		err := n.Notify(context.Background(), 42, EventChatFormed, map[string]string{"chat_id": "c1"})
		require.NoError(t, err)
		require.NoError(t, n.Close())
	})

	t.Run("propagates broker errors", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, nil)
		producer.ExpectSendMessageAndFail(assert.AnError)

		n := NewKafkaNotifierWithProducer(producer, "notifications")
		err := n.Notify(context.Background(), 42, EventMessageNew, nil)
		assert.Error(t, err)
		require.NoError(t, n.Close())
	})

	t.Run("rejects unmarshalable payloads", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, nil)

		n := NewKafkaNotifierWithProducer(producer, "notifications")
		err := n.Notify(context.Background(), 42, EventMessageNew, make(chan int))
		assert.Error(t, err)
		require.NoError(t, n.Close())
	})
}
