package job

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/monitor"
	"forex-signal-engine/internal/service"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestSchedulerEmitsTimerAndEventTicks(t *testing.T) {
	t.Parallel()

	s := NewScheduler(20*time.Millisecond, 8)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx)

	s.NotifyPrice(domain.PriceUpdate{Symbol: "EURUSD", Price: 1.1})

	var sawTimer, sawEvent bool
	deadline := time.After(time.Second)
	for !(sawTimer && sawEvent) {
		select {
		case tick := <-s.Ticks():
			switch tick.Trigger {
			case monitor.TriggerTimer:
				if tick.Prices != nil {
					t.Fatalf("timer ticks must not carry prices: %v", tick.Prices)
				}
				sawTimer = true
			case monitor.TriggerPriceEvent:
				if tick.Prices["EURUSD"] != 1.1 {
					t.Fatalf("unexpected event prices %v", tick.Prices)
				}
				sawEvent = true
			}
		case <-deadline:
			t.Fatalf("timer=%v event=%v", sawTimer, sawEvent)
		}
	}

	cancel()
	eventually(t, func() bool {
		select {
		case _, ok := <-s.Ticks():
			return !ok
		default:
			return false
		}
	})
}

func TestSchedulerDropsEventsWhenFull(t *testing.T) {
	t.Parallel()

	s := NewScheduler(time.Hour, 1)
	if !s.NotifyPrice(domain.PriceUpdate{Symbol: "EURUSD", Price: 1.1}) {
		t.Fatal("first event should be queued")
	}
	if s.NotifyPrice(domain.PriceUpdate{Symbol: "EURUSD", Price: 1.2}) {
		t.Fatal("second event should be dropped")
	}
}

func TestSchedulerEnqueueNeverBlocks(t *testing.T) {
	t.Parallel()

	s := NewScheduler(time.Hour, 1)
	done := make(chan struct{})
	go func() {
		s.enqueue(Tick{Trigger: monitor.TriggerTimer})
		s.enqueue(Tick{Trigger: monitor.TriggerTimer})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}
	if len(s.ticks) != 1 {
		t.Fatalf("expected one queued tick, got %d", len(s.ticks))
	}
}

type stubRunner struct {
	mu       sync.Mutex
	calls    []monitor.Trigger
	prices   []domain.PriceSnapshot
	ctxErrs  []error
	delay    time.Duration
	inFlight int32
	maxSeen  int32
}

func (r *stubRunner) RunPass(ctx context.Context, trigger monitor.Trigger, prices domain.PriceSnapshot) (monitor.PassResult, error) {
	n := atomic.AddInt32(&r.inFlight, 1)
	for {
		m := atomic.LoadInt32(&r.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&r.maxSeen, m, n) {
			break
		}
	}
	time.Sleep(r.delay)
	atomic.AddInt32(&r.inFlight, -1)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, trigger)
	r.prices = append(r.prices, prices)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return monitor.PassResult{Trigger: trigger}, nil
}

func (r *stubRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type stubSnapshot struct {
	snap  domain.PriceSnapshot
	err   error
	calls int32
}

func (s *stubSnapshot) Snapshot(context.Context) (domain.PriceSnapshot, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.snap, s.err
}

func TestMonitorJobTimerTickReadsSnapshot(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	snap := &stubSnapshot{snap: domain.PriceSnapshot{"USDJPY": 150}}
	j := NewMonitorJob(testTracer, runner, snap, 1, time.Second)

	if _, err := j.RunOnce(context.Background(), Tick{Trigger: monitor.TriggerTimer}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.calls != 1 || runner.prices[0]["USDJPY"] != 150 {
		t.Fatalf("expected snapshot prices, got %v", runner.prices)
	}

	if _, err := j.RunOnce(context.Background(), Tick{Trigger: monitor.TriggerPriceEvent, Prices: domain.PriceSnapshot{"EURUSD": 1.1}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.calls != 1 {
		t.Fatal("event ticks must use their own prices")
	}
}

func TestMonitorJobSnapshotError(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	j := NewMonitorJob(testTracer, runner, &stubSnapshot{err: errors.New("redis down")}, 1, time.Second)
	if _, err := j.RunOnce(context.Background(), Tick{Trigger: monitor.TriggerTimer}); err == nil {
		t.Fatal("expected error")
	}
	if runner.count() != 0 {
		t.Fatal("pass must not run without prices")
	}
}

func TestMonitorJobPassSurvivesCancellation(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	j := NewMonitorJob(testTracer, runner, &stubSnapshot{}, 1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := j.RunOnce(ctx, Tick{Trigger: monitor.TriggerManual, Prices: domain.PriceSnapshot{}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.ctxErrs[0] != nil {
		t.Fatalf("pass context must not inherit cancellation, got %v", runner.ctxErrs[0])
	}
}

func TestMonitorJobWorkersOverlapAndDrain(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{delay: 30 * time.Millisecond}
	j := NewMonitorJob(testTracer, runner, &stubSnapshot{snap: domain.PriceSnapshot{}}, 2, time.Second)

	ticks := make(chan Tick, 4)
	for i := 0; i < 4; i++ {
		ticks <- Tick{Trigger: monitor.TriggerTimer}
	}
	close(ticks)

	done := make(chan struct{})
	go func() {
		j.Start(context.Background(), ticks)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor job did not drain")
	}
	if runner.count() != 4 {
		t.Fatalf("expected 4 passes, got %d", runner.count())
	}
	if atomic.LoadInt32(&runner.maxSeen) != 2 {
		t.Fatalf("expected two overlapping passes, got %d", runner.maxSeen)
	}
}

type stubAnalysis struct {
	calls int32
	err   error
}

func (s *stubAnalysis) Run(context.Context) (service.RunResult, error) {
	atomic.AddInt32(&s.calls, 1)
	return service.RunResult{}, s.err
}

func TestAnalysisJobRunsImmediately(t *testing.T) {
	t.Parallel()

	stub := &stubAnalysis{}
	j := NewAnalysisJob(testTracer, stub, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()

	eventually(t, func() bool { return atomic.LoadInt32(&stub.calls) == 1 })
	cancel()
	<-done
}

func TestAnalysisJobDefaultsInterval(t *testing.T) {
	j := NewAnalysisJob(testTracer, &stubAnalysis{}, 0)
	if j.interval != 15*time.Minute {
		t.Fatalf("expected 15m, got %v", j.interval)
	}
}

type flakySubscriber struct {
	calls int32
}

func (f *flakySubscriber) Subscribe(ctx context.Context, fn func(domain.PriceUpdate)) error {
	if atomic.AddInt32(&f.calls, 1) == 1 {
		return errors.New("connection reset")
	}
	fn(domain.PriceUpdate{Symbol: "EURUSD", Price: 1.1})
	<-ctx.Done()
	return nil
}

func TestPriceFeedResubscribesAndDispatches(t *testing.T) {
	t.Parallel()

	sub := &flakySubscriber{}
	var got int32
	feed := NewPriceFeed(sub, 10*time.Millisecond,
		func(domain.PriceUpdate) { atomic.AddInt32(&got, 1) },
		func(domain.PriceUpdate) { atomic.AddInt32(&got, 1) },
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		feed.Start(ctx)
		close(done)
	}()

	eventually(t, func() bool { return atomic.LoadInt32(&got) == 2 })
	cancel()
	<-done
	if atomic.LoadInt32(&sub.calls) != 2 {
		t.Fatalf("expected one retry, got %d subscribe calls", sub.calls)
	}
}
