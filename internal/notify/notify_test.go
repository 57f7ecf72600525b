package notify

import (
	"context"
	"errors"
	"testing"

	kafkamocks "github.com/alkewallet/wallet-core/internal/infrastructure/kafka/mocks"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaNotifier_Notify(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	producer := kafkamocks.NewMockKafkaProducer(ctrl)
	notifier := NewKafkaNotifier(producer)
	ctx := context.Background()

	t.Run("publishes keyed by user", func(t *testing.T) {
		var payload []byte
		producer.EXPECT().Send(gomock.Any(), "u1", gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, value []byte) error {
				payload = value
				return nil
			})

		err := notifier.Notify(ctx, Notification{UserID: "u1", Level: LevelSuccess, Title: "Transfer sent", Reference: "TXN1"})
		require.NoError(t, err)

		n, err := Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, "Transfer sent", n.Title)
		assert.Equal(t, "TXN1", n.Reference)
		assert.False(t, n.CreatedAt.IsZero())
	})

	t.Run("producer error is returned", func(t *testing.T) {
		producer.EXPECT().Send(gomock.Any(), "u1", gomock.Any()).Return(errors.New("broker down"))

		err := notifier.Notify(ctx, Notification{UserID: "u1"})
		assert.Error(t, err)
	})
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), Notification{UserID: "u1", Title: "hello"}))
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte("{"))
	assert.Error(t, err)
}
