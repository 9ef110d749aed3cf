package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sitesafe/hsekpi/internal/config"
	"github.com/sitesafe/hsekpi/internal/kpi"
	"github.com/sitesafe/hsekpi/pkg/logger"
)

const (
	TaskTypeRecompute = "kpi:recompute"
)

// RecomputeTask asks for the weekly reports of a project to be refreshed from
// the given week onwards.
type RecomputeTask struct {
	ProjectID  uint   `json:"project_id"`
	WeekNumber int    `json:"week_number"`
	Year       int    `json:"year"`
	Reason     string `json:"reason"` // snapshot_submitted, deviation_closed...
}

// NewRecomputeTask builds the task for the week containing date.
func NewRecomputeTask(projectID uint, date time.Time, reason string) *RecomputeTask {
	w := kpi.WeekOf(date)
	return &RecomputeTask{ProjectID: projectID, WeekNumber: w.Number, Year: w.Year, Reason: reason}
}

// Week returns the reporting week the task starts from.
func (t *RecomputeTask) Week() kpi.Week {
	return kpi.Week{Number: t.WeekNumber, Year: t.Year}
}

// TaskQueue defines the interface for recompute task processing
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(task *RecomputeTask) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue initializes the global task queue based on config
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		globalTaskQueue = NewTaskQueue(&cfg.Redis)
	})
	return globalTaskQueue
}

// NewTaskQueue returns the Redis queue when it is enabled and reachable, and
// the in-process queue otherwise.
func NewTaskQueue(cfg *config.RedisConfig) TaskQueue {
	if !cfg.Enabled {
		logger.Info().Msg("[TaskQueue] Sync queue initialized (Redis disabled)")
		return NewSyncQueue()
	}
	queue, err := NewAsyncQueue(cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("[TaskQueue] Redis unavailable, falling back to sync mode")
		return NewSyncQueue()
	}
	logger.Info().Str("addr", cfg.Addr).Msg("[TaskQueue] Async queue initialized")
	return queue
}

// GetTaskQueue returns the global task queue instance
func GetTaskQueue() TaskQueue {
	return globalTaskQueue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := redisClientOpt(cfg)
	client := asynq.NewClient(redisOpt)

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func redisClientOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// Enqueue adds a recompute task. Bursts for the same week collapse into one task.
func (q *AsyncQueue) Enqueue(task *RecomputeTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeRecompute, payload)
	info, err := q.client.Enqueue(t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
		asynq.Unique(30*time.Second),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info().Str("id", info.ID).Str("queue", info.Queue).
		Uint("project_id", task.ProjectID).Str("week", task.Week().String()).
		Msg("[AsyncQueue] Task enqueued")
	return nil
}

// IsAsync returns true for async queue
func (q *AsyncQueue) IsAsync() bool {
	return true
}

// Close closes the async queue client
func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue with in-process processing (no Redis)
type SyncQueue struct {
	processor func(context.Context, *RecomputeTask) error
	wg        sync.WaitGroup
}

// NewSyncQueue creates a new synchronous queue
func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor sets the function to process tasks
func (q *SyncQueue) SetProcessor(processor func(context.Context, *RecomputeTask) error) {
	q.processor = processor
}

// Enqueue processes the task in a goroutine so the request is not blocked
func (q *SyncQueue) Enqueue(task *RecomputeTask) error {
	if q.processor == nil {
		logger.Warn().Msg("[SyncQueue] No processor set, task will be dropped")
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := q.processor(context.Background(), task); err != nil {
			logger.Error().Err(err).Uint("project_id", task.ProjectID).Msg("[SyncQueue] Task processing failed")
		}
	}()

	return nil
}

// Wait blocks until every enqueued task has been processed.
func (q *SyncQueue) Wait() {
	q.wg.Wait()
}

// IsAsync returns false for sync queue
func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close waits for in-flight tasks
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
