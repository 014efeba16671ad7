package studio_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	studio "github.com/goliatone/go-auth-studio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineImmediateIngest(t *testing.T) {
	provider := &memoryProvider{}
	pipeline := studio.NewPipeline(studio.WithPipelineLogger(&captureLogger{}))
	require.NoError(t, pipeline.Initialize(studio.EventsConfig{
		Enabled:  true,
		Provider: provider,
	}))

	pipeline.Emit(context.Background(), studio.EventUserSignIn, studio.EventData{
		UserID:   "usr_1",
		Metadata: map[string]any{"name": "Ada"},
	})

	events := provider.stored()
	require.Len(t, events, 1)
	assert.Equal(t, studio.EventUserSignIn, events[0].Kind)
	assert.Equal(t, "usr_1", events[0].UserID)
	assert.Equal(t, studio.EventStatusSuccess, events[0].Status)
	assert.Equal(t, studio.EventSourceApp, events[0].Source)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())

	require.NotNil(t, events[0].Display)
	assert.Equal(t, "Ada signed in", events[0].Display.Message)
	assert.Equal(t, studio.SeveritySuccess, events[0].Display.Severity)
}

func TestPipelineDormantWithoutProvider(t *testing.T) {
	pipeline := studio.NewPipeline(studio.WithPipelineLogger(&captureLogger{}))
	require.NoError(t, pipeline.Initialize(studio.EventsConfig{Enabled: true}))

	// No provider resolved: Emit must be a silent no-op.
	pipeline.Emit(context.Background(), studio.EventUserSignIn, studio.EventData{UserID: "usr_1"})
	assert.Zero(t, pipeline.QueueLen())
}

func TestPipelineDisabledConfig(t *testing.T) {
	provider := &memoryProvider{}
	pipeline := studio.NewPipeline()
	require.NoError(t, pipeline.Initialize(studio.EventsConfig{
		Enabled:  false,
		Provider: provider,
	}))

	pipeline.Emit(context.Background(), studio.EventUserSignIn, studio.EventData{UserID: "usr_1"})
	assert.Empty(t, provider.stored())
}

func TestPipelineLazyInitialize(t *testing.T) {
	provider := &memoryProvider{}
	pipeline := studio.NewPipeline(studio.WithPipelineLogger(&captureLogger{}))

	cfg := studio.EventsConfig{Enabled: true, Provider: provider}
	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "usr_1"}, cfg)

	require.Len(t, provider.stored(), 1)
}

func TestPipelineInitializeIdempotent(t *testing.T) {
	first := &memoryProvider{}
	second := &memoryProvider{}
	pipeline := studio.NewPipeline()

	require.NoError(t, pipeline.Initialize(studio.EventsConfig{Enabled: true, Provider: first}))
	require.NoError(t, pipeline.Initialize(studio.EventsConfig{Enabled: true, Provider: second}))

	pipeline.Emit(context.Background(), studio.EventUserSignIn, studio.EventData{UserID: "usr_1"})
	assert.Len(t, first.stored(), 1)
	assert.Empty(t, second.stored())
}

func TestPipelineIncludeTakesPrecedence(t *testing.T) {
	provider := &memoryProvider{}
	pipeline := studio.NewPipeline()
	require.NoError(t, pipeline.Initialize(studio.EventsConfig{
		Enabled:  true,
		Provider: provider,
		Include:  []studio.EventKind{studio.EventUserSignIn},
		Exclude:  []studio.EventKind{studio.EventUserSignIn},
	}))

	pipeline.Emit(context.Background(), studio.EventUserSignIn, studio.EventData{})
	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{})

	events := provider.stored()
	require.Len(t, events, 1)
	assert.Equal(t, studio.EventUserSignIn, events[0].Kind)
}

func TestPipelineExcludeFilter(t *testing.T) {
	provider := &memoryProvider{}
	pipeline := studio.NewPipeline()
	require.NoError(t, pipeline.Initialize(studio.EventsConfig{
		Enabled:  true,
		Provider: provider,
		Exclude:  []studio.EventKind{studio.EventUserSignOut},
	}))

	pipeline.Emit(context.Background(), studio.EventUserSignOut, studio.EventData{})
	pipeline.Emit(context.Background(), studio.EventUserSignIn, studio.EventData{})

	events := provider.stored()
	require.Len(t, events, 1)
	assert.Equal(t, studio.EventUserSignIn, events[0].Kind)
}

func TestPipelineBatchingExactness(t *testing.T) {
	provider := &batchingProvider{}
	pipeline := studio.NewPipeline()
	require.NoError(t, pipeline.Initialize(studio.EventsConfig{
		Enabled:       true,
		Provider:      provider,
		BatchSize:     3,
		FlushInterval: time.Hour,
	}))
	defer pipeline.Shutdown(context.Background())

	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "a"})
	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "b"})
	assert.Empty(t, provider.storedBatches())
	assert.Equal(t, 2, pipeline.QueueLen())

	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "c"})

	batches := provider.storedBatches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 3)
	assert.Equal(t, "a", batches[0][0].UserID)
	assert.Equal(t, "b", batches[0][1].UserID)
	assert.Equal(t, "c", batches[0][2].UserID)
	assert.Zero(t, pipeline.QueueLen())
}

func TestPipelineBatchSizeIgnoredWithoutBatchSupport(t *testing.T) {
	provider := &memoryProvider{}
	pipeline := studio.NewPipeline()
	require.NoError(t, pipeline.Initialize(studio.EventsConfig{
		Enabled:       true,
		Provider:      provider,
		BatchSize:     5,
		FlushInterval: time.Hour,
	}))
	defer pipeline.Shutdown(context.Background())

	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "a"})

	// The provider cannot batch, so the event goes straight through.
	assert.Len(t, provider.stored(), 1)
	assert.Zero(t, pipeline.QueueLen())
}

func TestPipelineTimerFlushesPartialBatch(t *testing.T) {
	provider := &batchingProvider{}
	pipeline := studio.NewPipeline()
	require.NoError(t, pipeline.Initialize(studio.EventsConfig{
		Enabled:       true,
		Provider:      provider,
		BatchSize:     10,
		FlushInterval: 50 * time.Millisecond,
	}))
	defer pipeline.Shutdown(context.Background())

	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "a"})
	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "b"})
	require.Equal(t, 2, pipeline.QueueLen())

	// The interval timer must flush a batch that never reaches BatchSize.
	require.Eventually(t, func() bool {
		return len(provider.storedBatches()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	batches := provider.storedBatches()
	require.Len(t, batches[0], 2)
	assert.Equal(t, "a", batches[0][0].UserID)
	assert.Equal(t, "b", batches[0][1].UserID)
	assert.Zero(t, pipeline.QueueLen())
}

func TestPipelineRetryPreservesOrder(t *testing.T) {
	provider := &batchingProvider{batchFailures: 1}
	logger := &captureLogger{}
	pipeline := studio.NewPipeline(studio.WithPipelineLogger(logger))
	require.NoError(t, pipeline.Initialize(studio.EventsConfig{
		Enabled:       true,
		Provider:      provider,
		BatchSize:     2,
		FlushInterval: time.Hour,
		RetryOnError:  true,
	}))
	defer pipeline.Shutdown(context.Background())

	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "a"})
	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "b"})

	// First flush failed; events requeued in order.
	assert.Empty(t, provider.storedBatches())
	assert.Equal(t, 2, pipeline.QueueLen())
	assert.NotEmpty(t, logger.messages("error"))

	require.NoError(t, pipeline.Flush(context.Background()))

	batches := provider.storedBatches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, "a", batches[0][0].UserID)
	assert.Equal(t, "b", batches[0][1].UserID)
	assert.Zero(t, pipeline.QueueLen())
}

func TestPipelineRetryDisabledDropsFailedEvent(t *testing.T) {
	provider := &memoryProvider{failures: 1}
	logger := &captureLogger{}
	pipeline := studio.NewPipeline(studio.WithPipelineLogger(logger))
	require.NoError(t, pipeline.Initialize(studio.EventsConfig{
		Enabled:  true,
		Provider: provider,
	}))

	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "a"})

	// Without RetryOnError the failure is logged and the event is gone.
	assert.Zero(t, pipeline.QueueLen())
	assert.Empty(t, provider.stored())
	assert.NotEmpty(t, logger.messages("error"))
}

func TestPipelineImmediateRetryEnqueues(t *testing.T) {
	provider := &memoryProvider{failures: 1}
	pipeline := studio.NewPipeline(studio.WithPipelineLogger(&captureLogger{}))
	require.NoError(t, pipeline.Initialize(studio.EventsConfig{
		Enabled:      true,
		Provider:     provider,
		RetryOnError: true,
	}))

	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "a"})
	assert.Equal(t, 1, pipeline.QueueLen())

	require.NoError(t, pipeline.Flush(context.Background()))
	require.Len(t, provider.stored(), 1)
	assert.Equal(t, "a", provider.stored()[0].UserID)
	assert.Zero(t, pipeline.QueueLen())
}

func TestPipelineMaxQueueDropsOldest(t *testing.T) {
	provider := &batchingProvider{}
	logger := &captureLogger{}
	pipeline := studio.NewPipeline(studio.WithPipelineLogger(logger))
	require.NoError(t, pipeline.Initialize(studio.EventsConfig{
		Enabled:       true,
		Provider:      provider,
		BatchSize:     10,
		FlushInterval: time.Hour,
		MaxQueue:      2,
	}))
	defer pipeline.Shutdown(context.Background())

	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "a"})
	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "b"})
	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "c"})

	assert.Equal(t, 2, pipeline.QueueLen())
	assert.NotEmpty(t, logger.messages("warn"))

	require.NoError(t, pipeline.Flush(context.Background()))
	batches := provider.storedBatches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, "b", batches[0][0].UserID)
	assert.Equal(t, "c", batches[0][1].UserID)
}

func TestPipelineShutdownDrainsOnce(t *testing.T) {
	provider := &batchingProvider{}
	pipeline := studio.NewPipeline()
	require.NoError(t, pipeline.Initialize(studio.EventsConfig{
		Enabled:       true,
		Provider:      provider,
		BatchSize:     10,
		FlushInterval: time.Hour,
	}))

	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "a"})
	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "b"})

	require.NoError(t, pipeline.Shutdown(context.Background()))

	batches := provider.storedBatches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
	assert.True(t, provider.wasShutdown())

	// Dormant after shutdown; emits are dropped.
	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "c"})
	assert.Len(t, provider.stored(), 2)

	// A second shutdown is a no-op.
	require.NoError(t, pipeline.Shutdown(context.Background()))
	assert.Len(t, provider.storedBatches(), 1)
}

func TestPipelineOnEventIngestFailureIsolation(t *testing.T) {
	provider := &memoryProvider{}
	logger := &captureLogger{}
	pipeline := studio.NewPipeline(studio.WithPipelineLogger(logger))
	require.NoError(t, pipeline.Initialize(studio.EventsConfig{
		Enabled:  true,
		Provider: provider,
		OnEventIngest: func(_ context.Context, event *studio.AuthEvent) error {
			if event.UserID == "panics" {
				panic("observer exploded")
			}
			return fmt.Errorf("observer failed")
		},
	}))

	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "errors"})
	pipeline.Emit(context.Background(), studio.EventUserCreated, studio.EventData{UserID: "panics"})

	// Callback failures never block ingestion.
	assert.Len(t, provider.stored(), 2)
	assert.Len(t, logger.messages("error"), 2)
}

func TestPipelineOnEventIngestSeesDisplay(t *testing.T) {
	provider := &memoryProvider{}
	var seen *studio.AuthEvent
	pipeline := studio.NewPipeline()
	require.NoError(t, pipeline.Initialize(studio.EventsConfig{
		Enabled:  true,
		Provider: provider,
		OnEventIngest: func(_ context.Context, event *studio.AuthEvent) error {
			seen = event
			return nil
		},
	}))

	pipeline.Emit(context.Background(), studio.EventUserSignIn, studio.EventData{
		Metadata: map[string]any{"name": "Ada"},
	})

	require.NotNil(t, seen)
	require.NotNil(t, seen.Display)
	assert.Equal(t, "Ada signed in", seen.Display.Message)
}
