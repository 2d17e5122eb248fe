package feed

import (
	"context"
	"fmt"

	"github.com/buzkaaclicker/streams"
	"github.com/sirupsen/logrus"
)

// effects collects the cache side effects of one write. Every invalidated key
// is deleted immediately and once more after the transaction commits, so a
// reader that refilled the cache from pre-commit state gets cleaned up.
type effects struct {
	cache streams.Cache
	keys  []string
	after []streams.Task
}

// invalidate deletes keys right away and schedules their post-commit delete.
func (e *effects) invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := e.cache.Delete(ctx, key); err != nil {
			logrus.WithError(err).WithField("key", key).Warnln("Immediate cache delete failed.")
		}
		e.keys = append(e.keys, key)
	}
}

// enqueue schedules task to run after commit.
func (e *effects) enqueue(task streams.Task) {
	e.after = append(e.after, task)
}

// schedule hands the post-commit tasks to queue. A task the queue refuses
// runs inline once, so its cache changes are not lost.
func (e *effects) schedule(ctx context.Context, queue streams.TaskQueue) error {
	tasks := make([]streams.Task, 0, len(e.after)+1)
	if len(e.keys) > 0 {
		keys := append([]string(nil), e.keys...)
		cache := e.cache
		tasks = append(tasks, streams.Task{
			Name: "cache.delete",
			Run: func(ctx context.Context) error {
				for _, key := range keys {
					if err := cache.Delete(ctx, key); err != nil {
						return fmt.Errorf("delete %s: %w", key, err)
					}
				}
				return nil
			},
		})
	}
	tasks = append(tasks, e.after...)

	var failed error
	for _, task := range tasks {
		err := queue.Enqueue(ctx, task)
		if err == nil {
			continue
		}
		logrus.WithError(err).WithField("task", task.Name).Warnln("Could not enqueue task, running it inline.")
		if err := task.Run(ctx); err != nil && failed == nil {
			failed = fmt.Errorf("run %s inline: %w", task.Name, err)
		}
	}
	return failed
}

// write runs fn in a transaction and schedules its effects once it commits.
// Scheduling failures are logged only, the write itself already succeeded.
func (s *Service) write(ctx context.Context, fn func(ctx context.Context, e *effects) error) error {
	e := &effects{cache: s.Cache}
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		return fn(ctx, e)
	})
	if err != nil {
		return err
	}
	if err := e.schedule(ctx, s.Tasks); err != nil {
		logrus.WithError(err).Errorln("Could not schedule post-commit effects.")
	}
	return nil
}
