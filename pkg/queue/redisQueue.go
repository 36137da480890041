package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries    = 3
	defaultBaseDelay     = 5 * time.Second
	defaultQueueTimeout  = 5 * time.Second
	defaultDelayedPoll   = 10 * time.Second
	defaultMetricsPeriod = 30 * time.Second
)

// RedisQueue: list for ready tasks, sorted set for delayed tasks,
// processing list for in-flight tasks and a DLQ for exhausted ones
type RedisQueue struct {
	client          *redis.Client
	mainQueue       string
	delayedQueue    string
	processingQueue string
	dlq             string
	metricsKey      string
	retryManager    *RetryManager
	dlqHandler      DLQHandler
	config          *RedisQueueConfig
	stopChan        chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

type RedisQueueConfig struct {
	// Name is the key prefix; derived keys get :delayed, :processing and :dlq
	Name          string
	MaxRetries    int
	BaseDelay     time.Duration
	QueueTimeout  time.Duration
	DelayedPoll   time.Duration
	EnableMetrics bool
}

func DefaultRedisQueueConfig() *RedisQueueConfig {
	return &RedisQueueConfig{
		Name:          "railbook:tasks",
		MaxRetries:    defaultMaxRetries,
		BaseDelay:     defaultBaseDelay,
		QueueTimeout:  defaultQueueTimeout,
		DelayedPoll:   defaultDelayedPoll,
		EnableMetrics: true,
	}
}

// NewRedisQueue shares the application's Redis client; closing the queue does not close it
func NewRedisQueue(client *redis.Client, cfg *RedisQueueConfig) *RedisQueue {
	if cfg == nil {
		cfg = DefaultRedisQueueConfig()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = defaultQueueTimeout
	}
	if cfg.DelayedPoll <= 0 {
		cfg.DelayedPoll = defaultDelayedPoll
	}

	q := &RedisQueue{
		client:          client,
		mainQueue:       cfg.Name,
		delayedQueue:    cfg.Name + ":delayed",
		processingQueue: cfg.Name + ":processing",
		dlq:             cfg.Name + ":dlq",
		metricsKey:      cfg.Name + ":metrics",
		retryManager:    NewRetryManager(cfg.BaseDelay),
		config:          cfg,
		stopChan:        make(chan struct{}),
	}
	q.dlqHandler = NewDefaultDLQHandler(client, q.dlq, q.mainQueue)

	logrus.WithFields(logrus.Fields{
		"main":    q.mainQueue,
		"delayed": q.delayedQueue,
		"dlq":     q.dlq,
	}).Info("Redis task queue initialized")
	return q
}

func (r *RedisQueue) DLQ() DLQHandler {
	return r.dlqHandler
}

// Publish sends a task to the queue; tasks with a future ExecuteAt go to the delayed set
func (r *RedisQueue) Publish(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	r.applyDefaults(task)
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if task.ExecuteAt.After(time.Now()) {
		if err := r.client.ZAdd(ctx, r.delayedQueue, &redis.Z{
			Score:  float64(task.ExecuteAt.Unix()),
			Member: data,
		}).Err(); err != nil {
			return fmt.Errorf("failed to publish delayed task: %w", err)
		}
		r.incrementMetric(ctx, "delayed")
		logrus.WithFields(logrus.Fields{
			"task_id":    task.ID,
			"type":       task.Type,
			"execute_at": task.ExecuteAt.Format(time.RFC3339),
		}).Debug("Task scheduled")
		return nil
	}

	if err := r.client.LPush(ctx, r.mainQueue, data).Err(); err != nil {
		return fmt.Errorf("failed to publish task: %w", err)
	}
	r.incrementMetric(ctx, "queued")
	logrus.WithFields(logrus.Fields{"task_id": task.ID, "type": task.Type}).Debug("Task published")
	return nil
}

// Subscribe starts the consumers in the background and returns immediately
func (r *RedisQueue) Subscribe(ctx context.Context, handler func(context.Context, *Task) error) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	if err := r.recoverProcessing(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to recover in-flight tasks")
	}

	r.wg.Add(2)
	go r.processDelayedTasks(ctx)
	go r.processMainQueue(ctx, handler)
	if r.config.EnableMetrics {
		r.wg.Add(1)
		go r.monitorQueue(ctx)
	}

	logrus.Info("Redis task queue subscriber started")
	return nil
}

// tasks left in the processing list by a crashed consumer go back to the main queue
func (r *RedisQueue) recoverProcessing(ctx context.Context) error {
	moved := 0
	for {
		err := r.client.RPopLPush(ctx, r.processingQueue, r.mainQueue).Err()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return err
		}
		moved++
	}
	if moved > 0 {
		logrus.WithField("count", moved).Info("Recovered in-flight tasks")
	}
	return nil
}

func (r *RedisQueue) processMainQueue(ctx context.Context, handler func(context.Context, *Task) error) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		default:
		}

		if err := r.processNext(ctx, handler); err != nil {
			if ctx.Err() != nil {
				return
			}
			logrus.WithError(err).Error("Task queue read failed")
			time.Sleep(time.Second)
		}
	}
}

func (r *RedisQueue) processNext(ctx context.Context, handler func(context.Context, *Task) error) error {
	data, err := r.client.BRPopLPush(ctx, r.mainQueue, r.processingQueue, r.config.QueueTimeout).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to move task to processing queue: %w", err)
	}

	defer func() {
		if err := r.client.LRem(context.WithoutCancel(ctx), r.processingQueue, 1, data).Err(); err != nil {
			logrus.WithError(err).Warn("Failed to remove task from processing queue")
		}
	}()

	var task Task
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		r.dlqHandler.HandleFailedTask(ctx, &Task{
			ID:        generateTaskID(),
			Type:      TaskTypeCorrupted,
			Data:      map[string]interface{}{"raw_data": data},
			CreatedAt: time.Now(),
		}, fmt.Errorf("corrupted task: %w", err))
		return nil
	}

	r.execute(ctx, &task, handler)
	return nil
}

// execute runs the handler once; a retryable failure re-enters the delayed set
func (r *RedisQueue) execute(ctx context.Context, task *Task, handler func(context.Context, *Task) error) {
	task.Attempts++
	start := time.Now()
	log := logrus.WithFields(logrus.Fields{
		"task_id": task.ID,
		"type":    task.Type,
		"attempt": task.Attempts,
	})

	err := handler(ctx, task)
	if err == nil {
		r.incrementMetric(ctx, "success")
		log.WithField("duration", time.Since(start).String()).Debug("Task completed")
		return
	}
	r.incrementMetric(ctx, "failure")

	retry, delay := r.retryManager.ShouldRetry(task, err)
	if !retry {
		r.incrementMetric(ctx, "dlq")
		r.dlqHandler.HandleFailedTask(ctx, task, err)
		return
	}

	task.ExecuteAt = time.Now().Add(delay)
	if pubErr := r.Publish(context.WithoutCancel(ctx), task); pubErr != nil {
		log.WithError(pubErr).Error("Failed to reschedule task")
		r.dlqHandler.HandleFailedTask(ctx, task, err)
		return
	}
	log.WithError(err).WithField("retry_in", delay.String()).Warn("Task failed, retry scheduled")
}

func (r *RedisQueue) processDelayedTasks(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.DelayedPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			if err := r.moveReadyDelayedTasks(ctx); err != nil {
				logrus.WithError(err).Error("Failed to move delayed tasks")
			}
		}
	}
}

// moveReadyDelayedTasks removes members one by one so tasks added concurrently are not lost
func (r *RedisQueue) moveReadyDelayedTasks(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	ready, err := r.client.ZRangeByScore(ctx, r.delayedQueue, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return fmt.Errorf("failed to read delayed tasks: %w", err)
	}

	for _, data := range ready {
		removed, err := r.client.ZRem(ctx, r.delayedQueue, data).Result()
		if err != nil {
			return fmt.Errorf("failed to claim delayed task: %w", err)
		}
		// another consumer claimed it
		if removed == 0 {
			continue
		}
		if err := r.client.LPush(ctx, r.mainQueue, data).Err(); err != nil {
			return fmt.Errorf("failed to enqueue delayed task: %w", err)
		}
	}
	if len(ready) > 0 {
		logrus.WithField("count", len(ready)).Debug("Moved delayed tasks to main queue")
	}
	return nil
}

func (r *RedisQueue) monitorQueue(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(defaultMetricsPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			stats, err := r.GetQueueStats(ctx)
			if err != nil {
				logrus.WithError(err).Warn("Failed to collect queue stats")
				continue
			}
			logrus.WithFields(logrus.Fields{
				"main":       stats.MainQueue,
				"delayed":    stats.DelayedQueue,
				"processing": stats.ProcessingQueue,
				"dlq":        stats.DLQ,
			}).Info("Task queue stats")
		}
	}
}

func (r *RedisQueue) incrementMetric(ctx context.Context, metric string) {
	if !r.config.EnableMetrics {
		return
	}
	if err := r.client.HIncrBy(ctx, r.metricsKey, metric, 1).Err(); err != nil {
		logrus.WithError(err).Debug("Failed to update queue metric")
	}
}

func (r *RedisQueue) applyDefaults(task *Task) {
	if task.ID == "" {
		task.ID = generateTaskID()
	}
	if task.Data == nil {
		task.Data = make(map[string]interface{})
	}
	if task.MaxRetries == 0 {
		task.MaxRetries = r.config.MaxRetries
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
}

type QueueStats struct {
	MainQueue       int64     `json:"main_queue"`
	DelayedQueue    int64     `json:"delayed_queue"`
	ProcessingQueue int64     `json:"processing_queue"`
	DLQ             int64     `json:"dlq"`
	Timestamp       time.Time `json:"timestamp"`
}

func (r *RedisQueue) GetQueueStats(ctx context.Context) (*QueueStats, error) {
	pipe := r.client.Pipeline()
	mainLen := pipe.LLen(ctx, r.mainQueue)
	delayedLen := pipe.ZCard(ctx, r.delayedQueue)
	processingLen := pipe.LLen(ctx, r.processingQueue)
	dlqLen := pipe.ZCard(ctx, r.dlq)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}

	return &QueueStats{
		MainQueue:       mainLen.Val(),
		DelayedQueue:    delayedLen.Val(),
		ProcessingQueue: processingLen.Val(),
		DLQ:             dlqLen.Val(),
		Timestamp:       time.Now(),
	}, nil
}

// Close stops the consumers and waits for the in-flight task
func (r *RedisQueue) Close() error {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
	logrus.Info("Redis task queue closed")
	return nil
}
