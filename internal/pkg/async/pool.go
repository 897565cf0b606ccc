// Package async runs independent named tasks on a bounded set of workers.
package async

import (
	"context"
	"fmt"
	"sync"
)

// Task is a named unit of work.
type Task struct {
	Name    string
	Execute func(ctx context.Context) (any, error)
}

// Result is the outcome of a Task.
type Result struct {
	Name string
	Data any
	Err  error
}

// Pool bounds how many tasks run at once. A Pool may be reused.
type Pool struct {
	workerCount int
}

// NewPool returns a pool running at most workerCount tasks concurrently.
func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

func run(ctx context.Context, task Task) (result Result) {
	result.Name = task.Name
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()
	result.Data, result.Err = task.Execute(ctx)
	return result
}

// Execute runs tasks and returns their results keyed by name. Tasks not
// started before ctx is done are reported with ctx's error.
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	queue := make(chan Task)
	results := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				results <- run(ctx, task)
			}
		}()
	}

	pending := tasks
feed:
	for len(pending) > 0 {
		select {
		case queue <- pending[0]:
			pending = pending[1:]
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()
	close(results)

	out := make(map[string]Result, len(tasks))
	for r := range results {
		out[r.Name] = r
	}
	for _, task := range pending {
		out[task.Name] = Result{Name: task.Name, Err: ctx.Err()}
	}
	return out
}
