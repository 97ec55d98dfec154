// -----------------------------------------------------------------------
// Task Queue - persistent badger-backed queue with visibility timeouts
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
)

// ErrNoTask is returned by Receive when no task is ready
var ErrNoTask = errors.New("no task available")

const queueName = "generation"

// Task is one queued unit of work: run the pipeline for a job
type Task struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	VisibleAt    time.Time `json:"visible_at"`
	ReceiveCount int       `json:"receive_count"`
}

// Queue is a persistent task queue on BadgerDB. A received task becomes
// invisible for the visibility timeout; if the worker dies without deleting
// it, the task reappears for redelivery. Tasks past max receives are
// dropped to stop poison loops.
type Queue struct {
	db                *badger.DB
	visibilityTimeout time.Duration
	maxReceive        int
	logger            arbor.ILogger
}

// Compile-time assertion
var _ interfaces.TaskQueue = (*Queue)(nil)

// NewQueue creates a task queue over an open badger database
func NewQueue(db *badger.DB, cfg *common.QueueConfig, logger arbor.ILogger) *Queue {
	return &Queue{
		db:                db,
		visibilityTimeout: cfg.VisibilityTimeoutDuration(),
		maxReceive:        cfg.MaxReceive,
		logger:            logger,
	}
}

// Enqueue adds a task for a job and returns the task ID
func (q *Queue) Enqueue(ctx context.Context, jobID string) (string, error) {
	task := Task{
		ID:         common.NewTaskID(),
		JobID:      jobID,
		EnqueuedAt: time.Now(),
		VisibleAt:  time.Now(),
	}

	data, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task: %w", err)
	}

	err = q.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(taskKey(task.ID), data); err != nil {
			return err
		}
		return txn.Set(indexKey(task.VisibleAt, task.ID), []byte{})
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.Debug().Str("task_id", task.ID).Str("job_id", jobID).Msg("Task enqueued")
	return task.ID, nil
}

// Cancel removes a queued task. Removing a task that was already consumed
// or never existed is not an error; cancellation is best effort and the
// job state machine is the authority.
func (q *Queue) Cancel(ctx context.Context, taskID string) error {
	return q.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(taskKey(taskID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return fmt.Errorf("failed to look up task: %w", err)
		}

		var task Task
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &task)
		}); err != nil {
			return err
		}

		if err := txn.Delete(indexKey(task.VisibleAt, taskID)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Delete(taskKey(taskID))
	})
}

// Receive claims the next visible task. The returned done function removes
// the task permanently; until it is called the task stays invisible for the
// visibility timeout and then reappears.
func (q *Queue) Receive(ctx context.Context) (*Task, func() error, error) {
	var claimed Task

	err := q.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(indexPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			visibleAt, taskID, err := parseIndexKey(key)
			if err != nil {
				continue
			}
			// Index keys sort by timestamp; the first future entry ends the scan
			if visibleAt.After(now) {
				break
			}

			item, err := txn.Get(taskKey(taskID))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					// Stale index entry, clean up
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			var task Task
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &task)
			}); err != nil {
				return err
			}

			if task.ReceiveCount >= q.maxReceive {
				q.logger.Warn().
					Str("task_id", task.ID).
					Str("job_id", task.JobID).
					Int("receive_count", task.ReceiveCount).
					Msg("Task exceeded max receives, dropping")
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(taskKey(taskID)); err != nil {
					return err
				}
				continue
			}

			task.ReceiveCount++
			task.VisibleAt = now.Add(q.visibilityTimeout)

			data, err := json.Marshal(task)
			if err != nil {
				return err
			}
			if err := txn.Set(taskKey(task.ID), data); err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
			if err := txn.Set(indexKey(task.VisibleAt, task.ID), []byte{}); err != nil {
				return err
			}

			claimed = task
			return nil
		}
		return ErrNoTask
	})
	if err != nil {
		return nil, nil, err
	}

	done := func() error {
		return q.Cancel(context.Background(), claimed.ID)
	}
	return &claimed, done, nil
}

const (
	taskPrefix  = "queue:" + queueName + ":task:"
	indexPrefix = "queue:" + queueName + ":index:"
)

func taskKey(id string) []byte {
	return []byte(taskPrefix + id)
}

func indexKey(visibleAt time.Time, id string) []byte {
	// Zero-padded nanos so lexical order matches time order
	return []byte(fmt.Sprintf("%s%020d:%s", indexPrefix, visibleAt.UnixNano(), id))
}

func parseIndexKey(key []byte) (time.Time, string, error) {
	suffix := string(key[len(indexPrefix):])
	if len(suffix) < 22 {
		return time.Time{}, "", fmt.Errorf("malformed index key: %s", key)
	}
	var nanos int64
	if _, err := fmt.Sscanf(suffix[:20], "%d", &nanos); err != nil {
		return time.Time{}, "", err
	}
	return time.Unix(0, nanos), suffix[21:], nil
}
