// Package parallel fans named publish targets out over an errgroup.
package parallel

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentkernel/society/internal/ui"
)

// DefaultConcurrency is used when Run is given a limit below one.
const DefaultConcurrency = 3

// Task is one named unit of work. Summary is a short line shown next to the
// target on success.
type Task struct {
	Name string
	Fn   func(ctx context.Context) (summary string, err error)
}

// Result is the outcome of one Task.
type Result struct {
	Name    string
	OK      bool
	Err     error
	Summary string
	Elapsed time.Duration
}

// Run executes tasks with at most concurrency in flight and returns the
// results in submission order. A failing task never cancels its siblings.
// Progress lines go to w when it is non-nil.
func Run(ctx context.Context, tasks []Task, concurrency int, w io.Writer) []Result {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	results := make([]Result, len(tasks))
	var mu sync.Mutex
	printf := func(format string, args ...any) {
		if w == nil {
			return
		}
		mu.Lock()
		fmt.Fprintf(w, format, args...)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, task := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Name: task.Name, Err: err}
				printf("  %s %s %s\n", ui.StatusIcon(false), task.Name, ui.Bad.Sprint("(skipped)"))
				return nil
			}

			start := time.Now()
			printf("  %s %s...\n", ui.Subtle.Sprint("⟳"), task.Name)
			summary, err := task.Fn(ctx)
			elapsed := time.Since(start)

			results[i] = Result{Name: task.Name, OK: err == nil, Err: err, Summary: summary, Elapsed: elapsed}
			if err != nil {
				printf("  %s %s %s\n", ui.StatusIcon(false), task.Name, ui.Bad.Sprintf("(%v)", err))
				if summary = strings.TrimSpace(summary); summary != "" {
					for _, line := range truncateLines(summary, 5) {
						printf("      %s\n", ui.Subtle.Sprint(line))
					}
				}
				return nil
			}
			printf("  %s %s %s %s\n", ui.StatusIcon(true), task.Name, summary, ui.Subtle.Sprintf("%.1fs", elapsed.Seconds()))
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.OK {
			out = append(out, r)
		}
	}
	return out
}

func truncateLines(s string, n int) []string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return lines
	}
	out := lines[:n]
	out = append(out, fmt.Sprintf("... (%d more lines)", len(lines)-n))
	return out
}
