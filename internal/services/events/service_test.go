package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/models"
)

func TestPublishSyncDeliversToAllSubscribers(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var count atomic.Int32
	handler := func(ctx context.Context, event models.Event) error {
		count.Add(1)
		return nil
	}

	require.NoError(t, svc.Subscribe(models.EventConversionCompleted, handler))
	require.NoError(t, svc.Subscribe(models.EventConversionCompleted, handler))

	err := svc.PublishSync(context.Background(), models.Event{
		Type:      models.EventConversionCompleted,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), count.Load())
}

func TestFailingSubscriberDoesNotAffectOthers(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var delivered atomic.Bool
	require.NoError(t, svc.Subscribe(models.EventConversionFailed, func(ctx context.Context, event models.Event) error {
		return errors.New("boom")
	}))
	require.NoError(t, svc.Subscribe(models.EventConversionFailed, func(ctx context.Context, event models.Event) error {
		panic("worse")
	}))
	require.NoError(t, svc.Subscribe(models.EventConversionFailed, func(ctx context.Context, event models.Event) error {
		delivered.Store(true)
		return nil
	}))

	err := svc.PublishSync(context.Background(), models.Event{Type: models.EventConversionFailed})
	require.NoError(t, err)
	assert.True(t, delivered.Load())
}

func TestNilHandlerRejected(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	assert.Error(t, svc.Subscribe(models.EventFeedPolled, nil))
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	assert.NoError(t, svc.Publish(context.Background(), models.Event{Type: models.EventFeedPolled}))
}
