package parallel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func ok(summary string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return summary, nil }
}

func TestRun_Success(t *testing.T) {
	tasks := []Task{
		{Name: "panel", Fn: ok("saved")},
		{Name: "simdata", Fn: ok("4 files")},
		{Name: "neo4j", Fn: ok("2 agents")},
	}

	results := Run(context.Background(), tasks, 4, nil)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if !r.OK || r.Err != nil {
			t.Errorf("task %s should be OK, got %v", r.Name, r.Err)
		}
		if r.Name != tasks[i].Name {
			t.Errorf("result %d: expected %s, got %s", i, tasks[i].Name, r.Name)
		}
	}
	if len(Failed(results)) != 0 {
		t.Error("expected no failures")
	}
}

func TestRun_WithErrors(t *testing.T) {
	tasks := []Task{
		{Name: "ok-task", Fn: ok("")},
		{Name: "fail-task", Fn: func(context.Context) (string, error) {
			return "connection refused", fmt.Errorf("simulated failure")
		}},
	}

	var buf bytes.Buffer
	results := Run(context.Background(), tasks, 4, &buf)

	if !results[0].OK {
		t.Error("first task should be OK")
	}
	if results[1].OK || results[1].Err == nil {
		t.Error("second task should have failed")
	}
	if results[1].Summary != "connection refused" {
		t.Errorf("expected summary %q, got %q", "connection refused", results[1].Summary)
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "fail-task" {
		t.Errorf("unexpected failures: %+v", failed)
	}
	if !strings.Contains(buf.String(), "simulated failure") {
		t.Errorf("progress output missing error: %q", buf.String())
	}
}

func TestRun_Concurrency(t *testing.T) {
	var maxConcurrent int64
	var current int64

	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = Task{
			Name: fmt.Sprintf("task-%d", i),
			Fn: func(context.Context) (string, error) {
				c := atomic.AddInt64(&current, 1)
				for {
					old := atomic.LoadInt64(&maxConcurrent)
					if c <= old || atomic.CompareAndSwapInt64(&maxConcurrent, old, c) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt64(&current, -1)
				return "", nil
			},
		}
	}

	results := Run(context.Background(), tasks, 2, nil)
	if len(results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(results))
	}
	if maxConcurrent > 2 {
		t.Errorf("max concurrent should be <= 2, got %d", maxConcurrent)
	}
}

func TestRun_DefaultConcurrency(t *testing.T) {
	results := Run(context.Background(), []Task{{Name: "test", Fn: ok("")}}, 0, nil)
	if len(results) != 1 || !results[0].OK {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestRun_CancelledContextSkips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called atomic.Bool
	results := Run(ctx, []Task{{Name: "late", Fn: func(context.Context) (string, error) {
		called.Store(true)
		return "", nil
	}}}, 1, nil)

	if called.Load() {
		t.Error("task should not run after cancellation")
	}
	if !errors.Is(results[0].Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", results[0].Err)
	}
}

func TestRun_TimingTracked(t *testing.T) {
	tasks := []Task{
		{Name: "slow", Fn: func(context.Context) (string, error) {
			time.Sleep(30 * time.Millisecond)
			return "", nil
		}},
	}

	results := Run(context.Background(), tasks, 1, nil)
	if results[0].Elapsed < 30*time.Millisecond {
		t.Errorf("expected elapsed >= 30ms, got %v", results[0].Elapsed)
	}
}

func TestTruncateLines(t *testing.T) {
	lines := truncateLines("a\nb\nc\nd", 2)
	if len(lines) != 3 || lines[2] != "... (2 more lines)" {
		t.Errorf("unexpected lines: %q", lines)
	}
}
