package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
)

func noFallback() domain.RunOptions {
	return domain.RunOptions{AllowParallel: true, MaxConcurrency: 10}
}

func TestConcurrent_Limit(t *testing.T) {
	c := NewConcurrent(testConfig())

	tests := []struct {
		requested int
		expected  int
	}{
		{0, DefaultMaxWorkers},
		{-3, DefaultMaxWorkers},
		{1, 1},
		{7, 7},
		{10, 10},
		{50, DefaultMaxWorkers},
	}
	for _, tt := range tests {
		if got := c.Limit(tt.requested); got != tt.expected {
			t.Errorf("Limit(%d) = %d, want %d", tt.requested, got, tt.expected)
		}
	}

	custom := NewConcurrent(Config{MaxWorkers: 4, Logger: quietLogger()})
	if custom.Limit(0) != 4 || custom.Limit(8) != 4 {
		t.Errorf("custom MaxWorkers must cap the limit")
	}
}

func TestConcurrent_EquivalentToSequential(t *testing.T) {
	// a → b → d, a → c → d, e независима
	decls := []domain.TaskDecl{
		{Name: "a", Priority: 5, Handler: sum(1)},
		{Name: "b", Dependencies: []string{"a"}, Handler: sum(10)},
		{Name: "c", Dependencies: []string{"a"}, Handler: sum(100)},
		{Name: "d", Dependencies: []string{"b", "c"}, Handler: sum(1000)},
		{Name: "e", Priority: 3, Handler: sum(7)},
		{Name: "opt", Handler: fail},
	}
	order := resolve(t, decls)

	seq := NewSequential(testConfig()).Run(context.Background(), request(domain.DefaultRunOptions()), order)

	for _, limit := range []int{1, 3, 10} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			opts := domain.DefaultRunOptions()
			opts.MaxConcurrency = limit

			conc, err := NewConcurrent(testConfig()).Run(context.Background(), request(opts), order)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if conc.Strategy != domain.StrategyConcurrent {
				t.Errorf("expected CONCURRENT, got %s", conc.Strategy)
			}

			want := completedOutputs(seq)
			got := completedOutputs(conc)
			if len(got) != len(want) {
				t.Fatalf("completed sets differ: %v vs %v", got, want)
			}
			for task, out := range want {
				if got[task] != out {
					t.Errorf("task %s: expected %s, got %s", task, out, got[task])
				}
			}
			if conc.Status != seq.Status {
				t.Errorf("status differs: %s vs %s", conc.Status, seq.Status)
			}
		})
	}
}

func TestConcurrent_DependenciesCompleteFirst(t *testing.T) {
	var mu sync.Mutex
	finished := make(map[string]time.Time)
	started := make(map[string]time.Time)

	track := func(name string, d time.Duration) domain.Handler {
		return func(ctx context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
			mu.Lock()
			started[name] = time.Now()
			mu.Unlock()
			time.Sleep(d)
			mu.Lock()
			finished[name] = time.Now()
			mu.Unlock()
			return nil, nil
		}
	}

	order := resolve(t, []domain.TaskDecl{
		{Name: "slow", Handler: track("slow", 30*time.Millisecond)},
		{Name: "fast", Handler: track("fast", time.Millisecond)},
		{Name: "join", Dependencies: []string{"slow", "fast"}, Handler: track("join", 0)},
	})

	if _, err := NewConcurrent(testConfig()).Run(context.Background(), request(domain.DefaultRunOptions()), order); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, dep := range []string{"slow", "fast"} {
		if started["join"].Before(finished[dep]) {
			t.Errorf("join started before %s finished", dep)
		}
	}
}

func TestConcurrent_RunsInParallel(t *testing.T) {
	const n = 4
	var arrived sync.WaitGroup
	arrived.Add(n)

	barrier := func(ctx context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
		arrived.Done()
		waited := make(chan struct{})
		go func() {
			arrived.Wait()
			close(waited)
		}()
		select {
		case <-waited:
			return nil, nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("tasks did not run concurrently")
		}
	}

	decls := make([]domain.TaskDecl, n)
	for i := range decls {
		decls[i] = domain.TaskDecl{Name: fmt.Sprintf("t%d", i), Handler: barrier}
	}
	order := resolve(t, decls)

	result, err := NewConcurrent(testConfig()).Run(context.Background(), request(domain.DefaultRunOptions()), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.RunStatusCompleted {
		t.Errorf("expected COMPLETED, got %s: %v", result.Status, result.Recommendations)
	}
}

func TestConcurrent_BoundedConcurrency(t *testing.T) {
	var current, peak atomic.Int32

	work := func(ctx context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
		now := current.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return nil, nil
	}

	decls := make([]domain.TaskDecl, 12)
	for i := range decls {
		decls[i] = domain.TaskDecl{Name: fmt.Sprintf("job-%02d", i), Handler: work}
	}
	order := resolve(t, decls)

	opts := domain.DefaultRunOptions()
	opts.MaxConcurrency = 10

	result, err := NewConcurrent(testConfig()).Run(context.Background(), request(opts), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SuccessCount != 12 {
		t.Errorf("expected 12 completed, got %d", result.SuccessCount)
	}
	if p := peak.Load(); p > 10 {
		t.Errorf("observed %d concurrently running tasks, limit is 10", p)
	}
}

// peakRunning возвращает максимальное число записей, одновременно
// находившихся в RUNNING по интервалам [StartedAt, EndedAt).
func peakRunning(t *testing.T, records []domain.ExecutionRecord) int {
	t.Helper()

	type edge struct {
		at    time.Time
		delta int
	}
	edges := make([]edge, 0, 2*len(records))
	for _, rec := range records {
		if rec.StartedAt == nil || rec.EndedAt == nil {
			t.Fatalf("task %s: missing interval", rec.Task)
		}
		edges = append(edges, edge{*rec.StartedAt, 1}, edge{*rec.EndedAt, -1})
	}
	// при равном времени завершение раньше запуска
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].at.Equal(edges[j].at) {
			return edges[i].delta < edges[j].delta
		}
		return edges[i].at.Before(edges[j].at)
	})

	current, peak := 0, 0
	for _, e := range edges {
		current += e.delta
		peak = max(peak, current)
	}
	return peak
}

func TestConcurrent_RecordsRunningWithinLimit(t *testing.T) {
	work := func(ctx context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
		time.Sleep(30 * time.Millisecond)
		return nil, nil
	}

	for _, limit := range []int{1, 2} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			decls := make([]domain.TaskDecl, 4)
			for i := range decls {
				decls[i] = domain.TaskDecl{Name: fmt.Sprintf("job-%d", i), Handler: work}
			}
			order := resolve(t, decls)

			opts := domain.DefaultRunOptions()
			opts.MaxConcurrency = limit

			result, err := NewConcurrent(testConfig()).Run(context.Background(), request(opts), order)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.SuccessCount != 4 {
				t.Fatalf("expected 4 completed, got %d", result.SuccessCount)
			}

			if peak := peakRunning(t, result.Records); peak > limit {
				t.Errorf("%d records were RUNNING at once, limit is %d", peak, limit)
			}
			for _, rec := range result.Records {
				// RUNNING не дольше, чем работал handler (с запасом на планировщик)
				running := rec.EndedAt.Sub(*rec.StartedAt)
				if running > rec.HandlerDuration+20*time.Millisecond {
					t.Errorf("task %s: RUNNING for %v, handler took %v", rec.Task, running, rec.HandlerDuration)
				}
			}
		})
	}
}

func TestConcurrent_CriticalFailureSkipsDescendantsOnly(t *testing.T) {
	order := resolve(t, []domain.TaskDecl{
		{Name: "A", Critical: true, Handler: fail},
		{Name: "B", Dependencies: []string{"A"}, Handler: succeed("B")},
		{Name: "C", Dependencies: []string{"B"}, Handler: succeed("C")},
		{Name: "D", Handler: succeed("D")},
	})

	result, err := NewConcurrent(testConfig()).Run(context.Background(), request(domain.DefaultRunOptions()), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectStatus(t, result, map[string]domain.TaskStatus{
		"A": domain.TaskStatusFailed,
		"B": domain.TaskStatusSkipped,
		"C": domain.TaskStatusSkipped,
		"D": domain.TaskStatusCompleted,
	})
	if result.Status != domain.RunStatusAborted {
		t.Errorf("expected ABORTED, got %s", result.Status)
	}
}

func TestConcurrent_OptionalContainment(t *testing.T) {
	order := resolve(t, []domain.TaskDecl{
		{Name: "A", Handler: fail},
		{Name: "B", Handler: func(ctx context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
			time.Sleep(10 * time.Millisecond)
			return domain.Outputs{"ok": true}, nil
		}},
	})

	result, err := NewConcurrent(testConfig()).Run(context.Background(), request(domain.DefaultRunOptions()), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectStatus(t, result, map[string]domain.TaskStatus{
		"A": domain.TaskStatusFailed,
		"B": domain.TaskStatusCompleted,
	})
	if result.Status != domain.RunStatusPartiallyCompleted {
		t.Errorf("expected PARTIALLY_COMPLETED, got %s", result.Status)
	}
}

func TestConcurrent_FailedOptionalDependencyIsAbsent(t *testing.T) {
	var seen map[string]domain.Outputs
	order := resolve(t, []domain.TaskDecl{
		{Name: "opt", Handler: fail},
		{Name: "ok", Handler: succeed("ok")},
		{Name: "user", Dependencies: []string{"opt", "ok"}, Handler: func(ctx context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
			seen = in.Deps
			return nil, nil
		}},
	}, "user")

	result, err := NewConcurrent(testConfig()).Run(context.Background(), request(domain.DefaultRunOptions()), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := statusOf(t, result, "user"); got != domain.TaskStatusCompleted {
		t.Fatalf("dependent of optional failure should run, got %s", got)
	}
	if _, ok := seen["opt"]; ok {
		t.Error("failed optional dependency must be absent from Deps")
	}
	if seen["ok"]["task"] != "ok" {
		t.Errorf("completed dependency outputs missing: %v", seen)
	}
}

func TestConcurrent_HandlerPanicIsTaskFailure(t *testing.T) {
	order := resolve(t, []domain.TaskDecl{
		{Name: "panics", Handler: func(ctx context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
			panic("worker bug")
		}},
		{Name: "sibling", Handler: succeed("sibling")},
	})

	result, err := NewConcurrent(testConfig()).Run(context.Background(), request(noFallback()), order)
	if err != nil {
		t.Fatalf("handler panic must not be an orchestration fault: %v", err)
	}

	rec, _ := result.Record("panics")
	if !errors.Is(rec.Error, ErrHandlerPanic) {
		t.Errorf("expected ErrHandlerPanic, got %v", rec.Error)
	}
	if got := statusOf(t, result, "sibling"); got != domain.TaskStatusCompleted {
		t.Errorf("sibling must complete, got %s", got)
	}
}

func TestConcurrent_CancelledBeforeDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	order := resolve(t, []domain.TaskDecl{
		{Name: "first", Handler: func(ctx context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
			cancel()
			return nil, nil
		}},
		{Name: "second", Dependencies: []string{"first"}, Handler: succeed("second")},
	})

	result, err := NewConcurrent(testConfig()).Run(ctx, request(domain.DefaultRunOptions()), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, _ := result.Record("second")
	if rec.Status != domain.TaskStatusSkipped || rec.SkipReason != SkipCancelled {
		t.Errorf("expected second skipped as cancelled, got %s (%s)", rec.Status, rec.SkipReason)
	}
}

func TestConcurrent_FallbackToSequential(t *testing.T) {
	decls := []domain.TaskDecl{
		{Name: "a", Handler: sum(1)},
		{Name: "b", Dependencies: []string{"a"}, Handler: sum(2)},
		{Name: "c", Dependencies: []string{"b"}, Handler: sum(3)},
	}
	order := resolve(t, decls)

	c := NewConcurrent(testConfig())
	c.inject = func(task string) error {
		if task == "b" {
			return errors.New("forced bookkeeping error")
		}
		return nil
	}

	result, err := c.Run(context.Background(), request(domain.DefaultRunOptions()), order)
	if err != nil {
		t.Fatalf("fallback run must not return an error: %v", err)
	}

	if result.Strategy != domain.StrategyConcurrentFallback {
		t.Errorf("expected %s, got %s", domain.StrategyConcurrentFallback, result.Strategy)
	}
	if !errors.Is(result.Fault, ErrOrchestrationFault) {
		t.Errorf("expected fault attached, got %v", result.Fault)
	}

	seq := NewSequential(testConfig()).Run(context.Background(), request(domain.DefaultRunOptions()), order)
	if result.Status != seq.Status || result.SuccessCount != seq.SuccessCount {
		t.Errorf("fallback result differs from sequential: %s/%d vs %s/%d",
			result.Status, result.SuccessCount, seq.Status, seq.SuccessCount)
	}
	want, got := completedOutputs(seq), completedOutputs(result)
	for task, out := range want {
		if got[task] != out {
			t.Errorf("task %s: expected %s, got %s", task, out, got[task])
		}
	}
}

func TestConcurrent_FaultWithoutFallback(t *testing.T) {
	order := resolve(t, []domain.TaskDecl{
		{Name: "a", Handler: succeed("a")},
		{Name: "b", Dependencies: []string{"a"}, Handler: succeed("b")},
	})

	c := NewConcurrent(testConfig())
	c.inject = func(task string) error {
		return errors.New("forced")
	}

	result, err := c.Run(context.Background(), request(noFallback()), order)
	if !errors.Is(err, ErrOrchestrationFault) {
		t.Fatalf("expected ErrOrchestrationFault, got %v", err)
	}

	var fault *OrchestrationFault
	if !errors.As(err, &fault) || fault.Task != "a" {
		t.Errorf("expected fault on task a, got %v", err)
	}

	if result == nil {
		t.Fatal("aborted result must be returned with the fault")
	}
	if result.Status != domain.RunStatusAborted || result.Fault == nil {
		t.Errorf("expected ABORTED with fault, got %s (%v)", result.Status, result.Fault)
	}
	for _, rec := range result.Records {
		if !rec.Status.IsTerminal() {
			t.Errorf("record %s left in %s", rec.Task, rec.Status)
		}
	}
	if got := statusOf(t, result, "b"); got != domain.TaskStatusSkipped {
		t.Errorf("undispatched task must be skipped, got %s", got)
	}
}

func TestConcurrent_SchedulerPanicIsFault(t *testing.T) {
	order := resolve(t, []domain.TaskDecl{{Name: "only", Handler: succeed("only")}})

	c := NewConcurrent(testConfig())
	c.inject = func(task string) error {
		panic("corrupted state")
	}

	_, err := c.Run(context.Background(), request(noFallback()), order)
	if !errors.Is(err, ErrOrchestrationFault) {
		t.Errorf("expected scheduler panic as orchestration fault, got %v", err)
	}
}

func TestConcurrent_ExampleRun(t *testing.T) {
	order := resolve(t, pipelineDecls(), "analyzer", "planner", "implementer", "validator")

	result, err := NewConcurrent(testConfig()).Run(context.Background(), request(domain.DefaultRunOptions()), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectStatus(t, result, map[string]domain.TaskStatus{
		"analyzer":    domain.TaskStatusCompleted,
		"planner":     domain.TaskStatusCompleted,
		"implementer": domain.TaskStatusFailed,
		"validator":   domain.TaskStatusSkipped,
	})
	if result.SuccessCount != 2 || result.FailureCount != 1 || result.SkippedCount != 1 {
		t.Errorf("expected 2/1/1, got %d/%d/%d", result.SuccessCount, result.FailureCount, result.SkippedCount)
	}
	if result.Status != domain.RunStatusAborted {
		t.Errorf("expected ABORTED, got %s", result.Status)
	}
}
