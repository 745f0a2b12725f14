package events

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusChange(id, status string) Envelope {
	return NewActivityStatusChange(ActivityStatusChangeData{
		ActivityID:     id,
		ActivityName:   "SCAN",
		ActivityStatus: status,
	})
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	q.Publish(statusChange("act_0001", "ACTIVITY_PENDING"))
	q.Publish(statusChange("act_0001", "ACTIVITY_IN_PROGRESS"))
	q.Publish(statusChange("act_0001", "ACTIVITY_COMPLETED"))
	assert.Equal(t, 3, q.Len())

	ctx := context.Background()
	for _, want := range []string{"ACTIVITY_PENDING", "ACTIVITY_IN_PROGRESS", "ACTIVITY_COMPLETED"} {
		env, err := q.Next(ctx)
		require.NoError(t, err)
		data := env.EventData.(ActivityStatusChangeData)
		assert.Equal(t, want, data.ActivityStatus)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_NextBlocksUntilPublish(t *testing.T) {
	q := NewQueue()

	got := make(chan Envelope, 1)
	go func() {
		env, err := q.Next(context.Background())
		if err == nil {
			got <- env
		}
	}()

	select {
	case <-got:
		t.Fatal("Next returned before anything was published")
	case <-time.After(20 * time.Millisecond):
	}

	q.Publish(statusChange("act_0001", "ACTIVITY_PENDING"))

	select {
	case env := <-got:
		assert.Equal(t, ActivityStatusChange, env.EventName)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for envelope")
	}
}

func TestQueue_NextContextCancelled(t *testing.T) {
	q := NewQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_UnconsumedEventsSurviveSubscriberLeaving(t *testing.T) {
	q := NewQueue()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Next(ctx)
	require.Error(t, err)

	q.Publish(statusChange("act_0001", "ACTIVITY_PENDING"))

	env, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "act_0001", env.EventData.(ActivityStatusChangeData).ActivityID)
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue()

	const producers, perProducer = 10, 50
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Publish(NewActionCompletion(ActionCompletionData{ActionName: "HOME"}))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue()
	q.Publish(statusChange("act_0001", "ACTIVITY_PENDING"))
	q.Close()

	// Already queued envelopes are still delivered.
	_, err := q.Next(context.Background())
	require.NoError(t, err)

	_, err = q.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	q.Publish(statusChange("act_0002", "ACTIVITY_PENDING"))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_Hooks(t *testing.T) {
	var published atomic.Int32
	var lastDepth atomic.Int32
	q := NewQueue(
		WithPublishHook(func(Envelope) { published.Add(1) }),
		WithDepthHook(func(d int) { lastDepth.Store(int32(d)) }),
	)

	q.Publish(statusChange("act_0001", "ACTIVITY_PENDING"))
	q.Publish(statusChange("act_0001", "ACTIVITY_IN_PROGRESS"))
	assert.Equal(t, int32(2), published.Load())
	assert.Equal(t, int32(2), lastDepth.Load())

	_, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), lastDepth.Load())
}

func TestEnvelope_JSON(t *testing.T) {
	env := NewActionCompletion(ActionCompletionData{
		ActionName:   "HOME",
		ActionStatus: "ACTION_SUCCESS",
		TimeBegin:    "2024-05-01T12:00:00Z",
		TimeEnd:      "2024-05-01T12:00:01Z",
	})

	b, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"eventName": "InstrumentActionCompletion",
		"eventData": {
			"actionName": "HOME",
			"actionStatus": "ACTION_SUCCESS",
			"timeBegin": "2024-05-01T12:00:00Z",
			"timeEnd": "2024-05-01T12:00:01Z"
		}
	}`, string(b))
}
