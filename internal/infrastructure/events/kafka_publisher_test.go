package events

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableBroker refuses connections immediately
const unreachableBroker = "127.0.0.1:1"

func newUnreachablePublisher(t *testing.T) *KafkaPublisher {
	t.Helper()

	p, err := NewKafkaPublisher([]string{unreachableBroker}, "offer-service-test", "offers.lifecycle",
		logger.NewJSONLogger(io.Discard, logger.DebugLevel))
	require.NoError(t, err)
	return p
}

func TestKafkaPublisher_BrokerDown(t *testing.T) {
	t.Run("Publish fails within the caller deadline", func(t *testing.T) {
		p := newUnreachablePublisher(t)
		defer p.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := p.Publish(ctx, testEvent())
		require.Error(t, err)
		assert.ErrorContains(t, err, "failed to publish offer.expired for offer offer-1")
		assert.Less(t, time.Since(start), PublishTimeout)
	})

	t.Run("Publish is bounded by PublishTimeout", func(t *testing.T) {
		if testing.Short() {
			t.Skip("waits for the publish timeout")
		}

		p := newUnreachablePublisher(t)
		defer p.Close()

		start := time.Now()
		err := p.Publish(context.Background(), testEvent())
		require.Error(t, err)
		assert.Less(t, time.Since(start), PublishTimeout+2*time.Second)
	})

	t.Run("EnsureTopic reports the failure", func(t *testing.T) {
		p := newUnreachablePublisher(t)
		defer p.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		err := p.EnsureTopic(ctx, -1, -1)
		assert.ErrorContains(t, err, "failed to create topic offers.lifecycle")
	})

	t.Run("Close without pending records", func(t *testing.T) {
		p := newUnreachablePublisher(t)
		assert.NoError(t, p.Close())
	})
}
