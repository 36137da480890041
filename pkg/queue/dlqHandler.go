package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// ErrTaskNotInDLQ is returned when a requeue names a task the DLQ does not hold
var ErrTaskNotInDLQ = errors.New("task not found in DLQ")

// DLQHandler handles failed tasks by moving them to Dead Letter Queue
type DLQHandler interface {
	HandleFailedTask(ctx context.Context, task *Task, err error)
	GetFailedTasks(ctx context.Context, limit int) ([]*FailedTask, error)
	RequeueFailedTask(ctx context.Context, taskID string) error
	GetDLQStats(ctx context.Context) (*DLQStats, error)
}

// DefaultDLQHandler keeps failed tasks in a sorted set scored by failure time
type DefaultDLQHandler struct {
	client    *redis.Client
	dlq       string
	mainQueue string
}

type FailedTask struct {
	Task     *Task     `json:"task"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
	Attempts int       `json:"attempts"`
}

type DLQStats struct {
	QueueSize     int64     `json:"queue_size"`
	OldestFailure time.Time `json:"oldest_failure"`
	NewestFailure time.Time `json:"newest_failure"`
}

func NewDefaultDLQHandler(client *redis.Client, dlq, mainQueue string) *DefaultDLQHandler {
	return &DefaultDLQHandler{
		client:    client,
		dlq:       dlq,
		mainQueue: mainQueue,
	}
}

func (d *DefaultDLQHandler) HandleFailedTask(ctx context.Context, task *Task, err error) {
	failed := &FailedTask{
		Task:     task,
		Error:    err.Error(),
		FailedAt: time.Now(),
		Attempts: task.Attempts,
	}

	data, marshalErr := json.Marshal(failed)
	if marshalErr != nil {
		logrus.WithError(marshalErr).WithField("task_id", task.ID).Error("Failed to marshal failed task")
		return
	}

	// the caller's context may already be cancelled on shutdown
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if redisErr := d.client.ZAdd(ctx, d.dlq, &redis.Z{
		Score:  float64(failed.FailedAt.UnixNano()) / 1e9,
		Member: data,
	}).Err(); redisErr != nil {
		logrus.WithError(redisErr).WithField("task_id", task.ID).Error("Failed to send task to DLQ")
		return
	}

	logrus.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"type":     task.Type,
		"attempts": task.Attempts,
		"error":    err.Error(),
	}).Warn("Task moved to DLQ")
}

// GetFailedTasks returns newest failures first
func (d *DefaultDLQHandler) GetFailedTasks(ctx context.Context, limit int) ([]*FailedTask, error) {
	if limit <= 0 {
		limit = 50
	}

	members, err := d.client.ZRevRange(ctx, d.dlq, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read DLQ: %w", err)
	}

	out := make([]*FailedTask, 0, len(members))
	for _, m := range members {
		var ft FailedTask
		if err := json.Unmarshal([]byte(m), &ft); err != nil {
			logrus.WithError(err).Warn("Skipping unreadable DLQ entry")
			continue
		}
		out = append(out, &ft)
	}
	return out, nil
}

// RequeueFailedTask moves a failed task back to the main queue with a fresh attempt budget
func (d *DefaultDLQHandler) RequeueFailedTask(ctx context.Context, taskID string) error {
	members, err := d.client.ZRange(ctx, d.dlq, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to read DLQ: %w", err)
	}

	for _, member := range members {
		var ft FailedTask
		if err := json.Unmarshal([]byte(member), &ft); err != nil || ft.Task == nil {
			continue
		}
		if ft.Task.ID != taskID {
			continue
		}

		ft.Task.Attempts = 0
		ft.Task.ExecuteAt = time.Now()
		taskData, err := json.Marshal(ft.Task)
		if err != nil {
			return fmt.Errorf("failed to marshal task for requeue: %w", err)
		}

		pipe := d.client.TxPipeline()
		pipe.LPush(ctx, d.mainQueue, taskData)
		pipe.ZRem(ctx, d.dlq, member)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to requeue task: %w", err)
		}

		logrus.WithField("task_id", taskID).Info("Task requeued from DLQ")
		return nil
	}

	return fmt.Errorf("%w: %s", ErrTaskNotInDLQ, taskID)
}

func (d *DefaultDLQHandler) GetDLQStats(ctx context.Context) (*DLQStats, error) {
	pipe := d.client.Pipeline()
	count := pipe.ZCard(ctx, d.dlq)
	oldest := pipe.ZRangeWithScores(ctx, d.dlq, 0, 0)
	newest := pipe.ZRevRangeWithScores(ctx, d.dlq, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get DLQ stats: %w", err)
	}

	stats := &DLQStats{QueueSize: count.Val()}
	if z := oldest.Val(); len(z) > 0 {
		stats.OldestFailure = scoreTime(z[0].Score)
	}
	if z := newest.Val(); len(z) > 0 {
		stats.NewestFailure = scoreTime(z[0].Score)
	}
	return stats, nil
}

func scoreTime(score float64) time.Time {
	return time.Unix(0, int64(score*1e9))
}
