package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buzkaaclicker/streams"
	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "streams",
	Subsystem: "tasks",
	Name:      "runs_total",
	Help:      "Finished post-commit tasks by name and result.",
}, []string{"name", "result"})

const (
	DefaultMaxElapsedTime = 30 * time.Second
	DefaultEnqueueWait    = 50 * time.Millisecond
)

var ErrQueueFull = errors.New("task queue full")

// Queue runs post-commit tasks on a single worker, retrying failures with
// exponential backoff.
type Queue struct {
	tasks chan streams.Task

	// NewBackOff returns the retry policy of one task. Defaults to an
	// exponential backoff giving up after DefaultMaxElapsedTime.
	NewBackOff func() backoff.BackOff
	// EnqueueWait bounds how long Enqueue waits for room. Zero means
	// DefaultEnqueueWait.
	EnqueueWait time.Duration
}

var _ streams.TaskQueue = (*Queue)(nil)

func NewQueue(size int) *Queue {
	return &Queue{tasks: make(chan streams.Task, size)}
}

// Enqueue waits at most EnqueueWait for room in the queue and fails with
// ErrQueueFull after that.
func (q *Queue) Enqueue(ctx context.Context, task streams.Task) error {
	select {
	case q.tasks <- task:
		return nil
	default:
	}

	wait := q.EnqueueWait
	if wait <= 0 {
		wait = DefaultEnqueueWait
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case q.tasks <- task:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %s", ErrQueueFull, task.Name)
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", task.Name, ctx.Err())
	}
}

// Run executes tasks until ctx is done. Tasks still queued then get one
// attempt each before Run returns.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case task := <-q.tasks:
			q.run(ctx, task)
		case <-ctx.Done():
			q.drain()
			return
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case task := <-q.tasks:
			q.finish(task, task.Run(context.Background()))
		default:
			return
		}
	}
}

func (q *Queue) run(ctx context.Context, task streams.Task) {
	policy := q.backOff()
	attempt := 1
	err := backoff.Retry(func() error {
		err := task.Run(ctx)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"task":    task.Name,
				"attempt": attempt,
			}).Debugln("Task attempt failed.")
			attempt++
		}
		return err
	}, backoff.WithContext(policy, ctx))
	q.finish(task, err)
}

func (q *Queue) finish(task streams.Task, err error) {
	if err != nil {
		tasksTotal.WithLabelValues(task.Name, "failure").Inc()
		logrus.WithError(err).WithField("task", task.Name).Errorln("Task failed.")
		return
	}
	tasksTotal.WithLabelValues(task.Name, "success").Inc()
}

func (q *Queue) backOff() backoff.BackOff {
	if q.NewBackOff != nil {
		return q.NewBackOff()
	}
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = DefaultMaxElapsedTime
	return policy
}
