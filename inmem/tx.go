package inmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/buzkaaclicker/streams"
)

// Transactor runs fn directly, in-memory stores have no transactions.
type Transactor struct{}

func (Transactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// TaskQueue holds enqueued tasks until Drain runs them.
type TaskQueue struct {
	tasks []streams.Task
	mutex sync.Mutex
}

var _ streams.TaskQueue = (*TaskQueue)(nil)

func (q *TaskQueue) Enqueue(ctx context.Context, task streams.Task) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.tasks = append(q.tasks, task)
	return nil
}

// Names lists pending task names in enqueue order.
func (q *TaskQueue) Names() []string {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	names := make([]string, len(q.tasks))
	for i, t := range q.tasks {
		names[i] = t.Name
	}
	return names
}

// Drain runs pending tasks in order, including tasks enqueued while
// draining, and stops at the first failure.
func (q *TaskQueue) Drain(ctx context.Context) error {
	for {
		q.mutex.Lock()
		if len(q.tasks) == 0 {
			q.mutex.Unlock()
			return nil
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mutex.Unlock()

		if err := task.Run(ctx); err != nil {
			return fmt.Errorf("task %s: %w", task.Name, err)
		}
	}
}
