package activity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nomis52/instrumentsim/events"
	"github.com/nomis52/instrumentsim/logging"
	"github.com/nomis52/instrumentsim/metrics"
	"github.com/nomis52/instrumentsim/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPending  = 20 * time.Millisecond
	testProgress = 40 * time.Millisecond
	waitFor      = 2 * time.Second
	tick         = 5 * time.Millisecond
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Envelope
}

func (p *recordingPublisher) Publish(env events.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, env)
}

// statuses returns the published activity statuses for id, in order.
func (p *recordingPublisher) statuses(id string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, env := range p.events {
		data, ok := env.EventData.(events.ActivityStatusChangeData)
		if ok && data.ActivityID == id {
			out = append(out, data.ActivityStatus)
		}
	}
	return out
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func newTestEngine(t *testing.T, opts ...EngineOption) (*Engine, *recordingPublisher, *tasks.Group) {
	t.Helper()
	group := tasks.NewGroup()
	t.Cleanup(func() { _ = group.Shutdown(context.Background()) })

	pub := &recordingPublisher{}
	opts = append([]EngineOption{
		WithDelays(testPending, testProgress),
		WithLogger(logging.Discard()),
	}, opts...)
	return NewEngine(NewRegistry(), group, pub, opts...), pub, group
}

func TestStart_CompletesWithProducts(t *testing.T) {
	engine, pub, group := newTestEngine(t)

	id, err := engine.Start("SCAN", []Option{{Key: "resolution", Value: "high"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "act_0001", id)

	// PENDING is published before Start returns.
	assert.Equal(t, []string{"ACTIVITY_PENDING"}, pub.statuses(id))

	group.Wait()

	rec, err := engine.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.NotEmpty(t, rec.TimeBegin)
	assert.NotEmpty(t, rec.TimeEnd)
	assert.Empty(t, rec.StatusMsg)
	assert.Equal(t, []Option{{Key: "resolution", Value: "high"}}, rec.Options)

	require.Len(t, rec.Products, 2)
	assert.NotEqual(t, rec.Products[0], rec.Products[1])
	for _, p := range rec.Products {
		_, err := uuid.Parse(p)
		assert.NoError(t, err)
	}

	products, err := engine.Data(id)
	require.NoError(t, err)
	assert.Equal(t, rec.Products, products)

	assert.Equal(t, []string{"ACTIVITY_PENDING", "ACTIVITY_IN_PROGRESS", "ACTIVITY_COMPLETED"}, pub.statuses(id))
}

func TestStart_PassesThroughInProgress(t *testing.T) {
	engine, _, _ := newTestEngine(t, WithDelays(testPending, time.Hour))

	id, err := engine.Start("BUILD", nil, "")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		rec, _ := engine.Status(id)
		return rec.Status == StatusInProgress
	}, waitFor, tick)

	_, err = engine.Data(id)
	assert.ErrorIs(t, err, ErrDataNotReady)
}

func TestStart_PastDeadlineCancels(t *testing.T) {
	engine, pub, group := newTestEngine(t)

	id, err := engine.Start("BUILD", nil, "2000-01-01T00:00:00Z")
	require.NoError(t, err)
	group.Wait()

	rec, err := engine.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, rec.Status)
	assert.Equal(t, "Deadline exceeded", rec.StatusMsg)
	assert.NotEmpty(t, rec.TimeEnd)
	assert.Empty(t, rec.Products)

	_, err = engine.Data(id)
	assert.ErrorIs(t, err, ErrDataNotReady)

	assert.Equal(t, []string{"ACTIVITY_PENDING", "ACTIVITY_IN_PROGRESS", "ACTIVITY_CANCELED"}, pub.statuses(id))
}

func TestStart_FutureDeadlineCompletes(t *testing.T) {
	engine, _, group := newTestEngine(t)

	id, err := engine.Start("SCAN", nil, time.Now().Add(time.Hour).Format(time.RFC3339))
	require.NoError(t, err)
	group.Wait()

	rec, err := engine.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	require.NotNil(t, rec.Deadline)
}

func TestStart_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		activity string
		options  []Option
		deadline string
		kind     error
		msg      string
	}{
		{
			name:     "unknown activity",
			activity: "DANCE",
			kind:     ErrUnknownActivity,
			msg:      "Unknown activityName: DANCE",
		},
		{
			name:     "names are case sensitive",
			activity: "scan",
			kind:     ErrUnknownActivity,
			msg:      "Unknown activityName: scan",
		},
		{
			name:     "empty name",
			activity: "",
			kind:     ErrInvalidRequest,
			msg:      "Invalid activityName: must not be empty",
		},
		{
			name:     "empty option key",
			activity: "SCAN",
			options:  []Option{{Key: "ok", Value: "1"}, {Key: "", Value: "2"}},
			kind:     ErrInvalidRequest,
			msg:      "Invalid activityOptions: option 1 has an empty key",
		},
		{
			name:     "unparsable deadline",
			activity: "SCAN",
			deadline: "next tuesday",
			kind:     ErrInvalidDeadline,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, pub, group := newTestEngine(t)

			id, err := engine.Start(tt.activity, tt.options, tt.deadline)
			assert.Empty(t, id)
			require.ErrorIs(t, err, tt.kind)

			var startErr *StartError
			require.True(t, errors.As(err, &startErr))
			if tt.msg != "" {
				assert.Equal(t, tt.msg, startErr.Msg)
			} else {
				assert.Contains(t, startErr.Msg, "Invalid activityDeadline: ")
			}

			group.Wait()
			assert.Zero(t, pub.count(), "rejected starts publish nothing")
			assert.Empty(t, engine.Summary(), "rejected starts register nothing")
		})
	}
}

func TestStart_RejectionsDoNotConsumeIDs(t *testing.T) {
	engine, _, _ := newTestEngine(t, WithDelays(time.Hour, time.Hour))

	_, err := engine.Start("NOPE", nil, "")
	require.Error(t, err)
	_, err = engine.Start("", nil, "")
	require.Error(t, err)
	_, err = engine.Start("SCAN", []Option{{Key: "", Value: "x"}}, "")
	require.Error(t, err)

	id, err := engine.Start("SCAN", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "act_0001", id)
}

func TestStart_BadDeadlineSkipsID(t *testing.T) {
	engine, pub, _ := newTestEngine(t, WithDelays(time.Hour, time.Hour))

	id, err := engine.Start("SCAN", nil, "garbage")
	var startErr *StartError
	require.ErrorAs(t, err, &startErr)
	assert.Equal(t, ErrInvalidDeadline, startErr.Kind)
	assert.Empty(t, id)

	_, err = engine.Status("act_0001")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, pub.statuses("act_0001"))

	id, err = engine.Start("SCAN", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "act_0002", id)
}

func TestStart_IDsAreUnique(t *testing.T) {
	engine, _, _ := newTestEngine(t, WithDelays(time.Hour, time.Hour))

	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := engine.Start("BUILD", nil, "")
			assert.NoError(t, err)
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 30)
}

func TestCancel_Running(t *testing.T) {
	engine, pub, _ := newTestEngine(t, WithDelays(time.Hour, time.Hour))

	id, err := engine.Start("SCAN", nil, "")
	require.NoError(t, err)

	require.NoError(t, engine.Cancel(id, "operator abort"))

	rec, err := engine.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, rec.Status)
	assert.Equal(t, "operator abort", rec.StatusMsg)
	assert.NotEmpty(t, rec.TimeEnd)
	assert.Equal(t, []string{"ACTIVITY_PENDING", "ACTIVITY_CANCELED"}, pub.statuses(id))
}

func TestCancel_Validation(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	assert.ErrorIs(t, engine.Cancel("act_0404", "why"), ErrNotFound)
	assert.ErrorIs(t, engine.Cancel("", "why"), ErrEmptyActivityID)
	assert.ErrorIs(t, engine.Cancel("act_0001", ""), ErrEmptyReason)
}

func TestCancel_OverwritesTerminalByDefault(t *testing.T) {
	engine, pub, group := newTestEngine(t)

	id, err := engine.Start("SCAN", nil, "")
	require.NoError(t, err)
	group.Wait()

	require.NoError(t, engine.Cancel(id, "too late"))

	rec, _ := engine.Status(id)
	assert.Equal(t, StatusCanceled, rec.Status)
	assert.Equal(t, "too late", rec.StatusMsg)
	assert.Empty(t, rec.Products, "products only belong to completed activities")
	_, err = engine.Data(id)
	assert.ErrorIs(t, err, ErrDataNotReady)
	assert.Equal(t, []string{
		"ACTIVITY_PENDING", "ACTIVITY_IN_PROGRESS", "ACTIVITY_COMPLETED", "ACTIVITY_CANCELED",
	}, pub.statuses(id))
}

func TestTimerOverwritesCancelByDefault(t *testing.T) {
	engine, pub, group := newTestEngine(t)

	id, err := engine.Start("SCAN", nil, "")
	require.NoError(t, err)
	require.NoError(t, engine.Cancel(id, "abort"))
	group.Wait()

	rec, _ := engine.Status(id)
	assert.Equal(t, StatusCompleted, rec.Status, "last writer wins")
	assert.Empty(t, rec.StatusMsg)
	assert.NotEmpty(t, rec.TimeEnd)
	assert.Equal(t, []string{
		"ACTIVITY_PENDING", "ACTIVITY_CANCELED", "ACTIVITY_IN_PROGRESS", "ACTIVITY_COMPLETED",
	}, pub.statuses(id))
}

func TestStrictTerminalStates(t *testing.T) {
	t.Run("timers do not overwrite a cancel", func(t *testing.T) {
		engine, pub, group := newTestEngine(t, WithStrictTerminalStates(true))

		id, err := engine.Start("SCAN", nil, "")
		require.NoError(t, err)
		require.NoError(t, engine.Cancel(id, "abort"))
		group.Wait()

		rec, _ := engine.Status(id)
		assert.Equal(t, StatusCanceled, rec.Status)
		assert.Equal(t, "abort", rec.StatusMsg)
		assert.Equal(t, []string{"ACTIVITY_PENDING", "ACTIVITY_CANCELED"}, pub.statuses(id))
	})

	t.Run("cancel after completion is rejected", func(t *testing.T) {
		engine, pub, group := newTestEngine(t, WithStrictTerminalStates(true))

		id, err := engine.Start("SCAN", nil, "")
		require.NoError(t, err)
		group.Wait()

		assert.ErrorIs(t, engine.Cancel(id, "too late"), ErrTerminal)

		rec, _ := engine.Status(id)
		assert.Equal(t, StatusCompleted, rec.Status)
		assert.Len(t, pub.statuses(id), 3)
	})
}

func TestShutdownStopsTimers(t *testing.T) {
	engine, pub, group := newTestEngine(t, WithDelays(time.Hour, time.Hour))

	id, err := engine.Start("SCAN", nil, "")
	require.NoError(t, err)
	require.NoError(t, group.Shutdown(context.Background()))

	rec, _ := engine.Status(id)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, []string{"ACTIVITY_PENDING"}, pub.statuses(id))
}

func TestStatus_NotFound(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.Status("act_0001")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = engine.Data("act_0001")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = engine.Logs("act_0001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogs_CapturedPerActivity(t *testing.T) {
	engine, _, group := newTestEngine(t, WithLogCollector(logging.NewLogCollector(0)))

	first, err := engine.Start("SCAN", nil, "")
	require.NoError(t, err)
	second, err := engine.Start("BUILD", nil, "")
	require.NoError(t, err)
	group.Wait()

	logs, err := engine.Logs(first)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "activity started", logs[0].Message)
	for _, entry := range logs {
		assert.Equal(t, first, entry.Attributes["activity_id"])
		assert.Equal(t, "SCAN", entry.Attributes["activity_name"])
	}

	var statuses []any
	for _, entry := range logs {
		if entry.Message == "activity status changed" {
			statuses = append(statuses, entry.Attributes["status"])
		}
	}
	assert.Equal(t, []any{"ACTIVITY_IN_PROGRESS", "ACTIVITY_COMPLETED"}, statuses)

	other, err := engine.Logs(second)
	require.NoError(t, err)
	assert.Equal(t, second, other[0].Attributes["activity_id"])
}

func TestSummary(t *testing.T) {
	engine, _, group := newTestEngine(t)

	_, err := engine.Start("SCAN", nil, "")
	require.NoError(t, err)
	_, err = engine.Start("BUILD", nil, "1999-12-31T23:59:59Z")
	require.NoError(t, err)
	group.Wait()

	assert.Equal(t, map[Status]int{StatusCompleted: 1, StatusCanceled: 1}, engine.Summary())
}

func TestIDsIssuedAndLoggedActivities(t *testing.T) {
	engine, _, _ := newTestEngine(t, WithDelays(time.Hour, time.Hour))

	_, err := engine.Start("SCAN", nil, "")
	require.NoError(t, err)
	_, err = engine.Start("SCAN", nil, "whenever")
	require.Error(t, err)
	_, err = engine.Start("NOPE", nil, "")
	require.Error(t, err)

	assert.Equal(t, uint64(2), engine.IDsIssued())
	assert.Equal(t, 1, engine.LoggedActivities())
}

func TestStatusMetrics(t *testing.T) {
	registry, err := metrics.NewScrapeRegistry()
	require.NoError(t, err)
	instruments, err := metrics.NewInstruments(registry)
	require.NoError(t, err)
	engine, _, group := newTestEngine(t, WithInstruments(instruments))

	_, err = engine.Start("SCAN", nil, "")
	require.NoError(t, err)
	canceled, err := engine.Start("BUILD", nil, "")
	require.NoError(t, err)
	require.NoError(t, engine.Cancel(canceled, "operator abort"))

	scrape := func() string {
		w := httptest.NewRecorder()
		registry.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return w.Body.String()
	}
	body := scrape()
	assert.Contains(t, body, `instrumentsim_activities{status="ACTIVITY_PENDING"} 1`)
	assert.Contains(t, body, `instrumentsim_activities{status="ACTIVITY_CANCELED"} 1`)
	assert.Contains(t, body, "instrumentsim_activity_cancels_total 1")

	// The canceled activity's timers still run and overwrite it.
	group.Wait()
	body = scrape()
	assert.Contains(t, body, `instrumentsim_activities{status="ACTIVITY_COMPLETED"} 2`)
	assert.Contains(t, body, `instrumentsim_activities{status="ACTIVITY_PENDING"} 0`)
	assert.Contains(t, body, `instrumentsim_activities{status="ACTIVITY_CANCELED"} 0`)
}

func TestActivities_CustomCatalog(t *testing.T) {
	engine, _, _ := newTestEngine(t, WithActivities([]string{"ALIGN"}), WithDelays(time.Hour, time.Hour))

	assert.Equal(t, []string{"ALIGN"}, engine.Activities())
	_, err := engine.Start("SCAN", nil, "")
	assert.ErrorIs(t, err, ErrUnknownActivity)
	_, err = engine.Start("ALIGN", nil, "")
	assert.NoError(t, err)
}
