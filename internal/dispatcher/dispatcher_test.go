package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/orbitpath/planner/internal/mission"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) log(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, kv))
}

func (l *testLogger) Debug(msg string, kv ...any) { l.log("DEBUG", msg, kv) }
func (l *testLogger) Info(msg string, kv ...any)  { l.log("INFO", msg, kv) }
func (l *testLogger) Error(msg string, kv ...any) { l.log("ERROR", msg, kv) }

func (l *testLogger) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	d, err := New(logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = d.Close(ctx)
	})
	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register("test", func(_ context.Context, e Event) error {
		got = e
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), Event{Topic: "test", Payload: 42}))
	assert.Equal(t, 42, got.Payload)
	assert.False(t, got.Timestamp.IsZero())
	assert.True(t, d.HasHandler("test"))
	assert.False(t, d.HasHandler("other"))
}

func TestDispatcher_SyncHandlerError(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Register("fail", func(context.Context, Event) error { return errors.New("boom") })
	assert.EqualError(t, d.Dispatch(context.Background(), Event{Topic: "fail"}), "boom")
}

func TestDispatcher_UnknownTopic(t *testing.T) {
	d, _ := newTestDispatcher(t)
	err := d.Dispatch(context.Background(), Event{Topic: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown topic")
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	d.Register("buffered", func(context.Context, Event) error {
		processed.Add(1)
		return nil
	}, Buffered(100))

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Dispatch(context.Background(), Event{Topic: "buffered"}))
	}

	assert.Eventually(t, func() bool { return processed.Load() == 3 }, time.Second, 5*time.Millisecond)
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 1)
	block := make(chan struct{})
	d.Register("full", func(context.Context, Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil
	}, Buffered(2))
	defer close(block)

	ctx := context.Background()
	require.NoError(t, d.Dispatch(ctx, Event{Topic: "full"}))
	<-started // first event is being processed

	require.NoError(t, d.Dispatch(ctx, Event{Topic: "full"}))
	require.NoError(t, d.Dispatch(ctx, Event{Topic: "full"}))

	err := d.Dispatch(ctx, Event{Topic: "full"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 1)
	block := make(chan struct{})
	d.Register("blocking", func(context.Context, Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil
	}, Buffered(1), Blocking())

	ctx := context.Background()
	require.NoError(t, d.Dispatch(ctx, Event{Topic: "blocking"}))
	<-started
	require.NoError(t, d.Dispatch(ctx, Event{Topic: "blocking"}))

	// the queue is full, so the next send waits until the deadline
	tctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Dispatch(tctx, Event{Topic: "blocking"}), context.DeadlineExceeded)

	close(block)
	assert.NoError(t, d.Dispatch(ctx, Event{Topic: "blocking"}))
}

func TestDispatcher_Logged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("ok", func(context.Context, Event) error { return nil }, Logged())
	d.Register("bad", func(context.Context, Event) error { return errors.New("boom") }, Logged())

	require.NoError(t, d.Dispatch(context.Background(), Event{Topic: "ok"}))
	require.Error(t, d.Dispatch(context.Background(), Event{Topic: "bad"}))

	msgs := logger.all()
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[0], "DEBUG: handling event")
	assert.Contains(t, msgs[1], "DEBUG: event complete")
	assert.Contains(t, msgs[3], "ERROR: event failed")
}

func TestDispatcher_CloseDrainsQueue(t *testing.T) {
	logger := &testLogger{}
	d, err := New(logger, nil)
	require.NoError(t, err)

	var processed atomic.Int32
	d.Register("slow", func(context.Context, Event) error {
		time.Sleep(5 * time.Millisecond)
		processed.Add(1)
		return nil
	}, Buffered(10))

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Dispatch(context.Background(), Event{Topic: "slow"}))
	}

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int32(5), processed.Load())
	assert.ErrorIs(t, d.Dispatch(context.Background(), Event{Topic: "slow"}), ErrClosed)
	// closing twice is fine
	assert.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_QueuedErrorsAreLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	done := make(chan struct{})
	d.Register("bad", func(context.Context, Event) error {
		defer close(done)
		return errors.New("influx down")
	}, Buffered(1))

	require.NoError(t, d.Dispatch(context.Background(), Event{Topic: "bad"}))
	<-done

	assert.Eventually(t, func() bool {
		for _, m := range logger.all() {
			if m == "ERROR: queued event failed [topic bad error influx down]" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestDispatcher_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	d, err := New(&testLogger{}, provider.Meter("test"))
	require.NoError(t, err)

	d.Register("m", func(context.Context, Event) error { return nil }, Buffered(4))
	require.NoError(t, d.Dispatch(context.Background(), Event{Topic: "m"}))
	require.NoError(t, d.Close(context.Background()))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var processed int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "dispatcher.events.processed" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				processed += dp.Value
			}
		}
	}
	assert.Equal(t, int64(1), processed)
}

func TestPlanSink(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got *mission.Plan
	d.Register(TopicPlanGenerated, PlanHandler(func(_ context.Context, p *mission.Plan) error {
		got = p
		return nil
	}))

	p := &mission.Plan{ID: "p1", GeneratedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, d.Sink(TopicPlanGenerated).WritePlan(context.Background(), p))
	assert.Same(t, p, got)

	d.Register("raw", PlanHandler(func(context.Context, *mission.Plan) error { return nil }))
	err := d.Dispatch(context.Background(), Event{Topic: "raw", Payload: "not a plan"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected *mission.Plan")
}
