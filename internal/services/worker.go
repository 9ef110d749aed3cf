package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/sitesafe/hsekpi/internal/config"
	"github.com/sitesafe/hsekpi/pkg/logger"
)

// Worker processes async recompute tasks from the queue
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor func(context.Context, *RecomputeTask) error
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

// NewWorker creates a new worker instance; nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}

	server := asynq.NewServer(
		redisClientOpt(cfg),
		asynq.Config{
			// Recomputes of one project touch the same rows; keep them few.
			Concurrency: 4,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error().Err(err).Str("type", task.Type()).Msg("[Worker] Error processing task")
			}),
		},
	)

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
	}
}

// SetProcessor sets the function to process recompute tasks
func (w *Worker) SetProcessor(processor func(context.Context, *RecomputeTask) error) {
	w.processor = processor
}

// Start begins processing tasks
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(TaskTypeRecompute, w.handleRecomputeTask)

	w.running = true
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		logger.Info().Msg("[Worker] Starting async worker...")
		if err := w.server.Run(w.mux); err != nil {
			logger.Error().Err(err).Msg("[Worker] Server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	logger.Info().Msg("[Worker] Shutting down...")
	w.server.Shutdown()
	w.running = false
	w.wg.Wait()
	logger.Info().Msg("[Worker] Shutdown complete")
}

func (w *Worker) handleRecomputeTask(ctx context.Context, t *asynq.Task) error {
	var task RecomputeTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		logger.Error().Err(err).Msg("[Worker] Failed to unmarshal task")
		return err
	}

	logger.Info().Uint("project_id", task.ProjectID).Str("week", task.Week().String()).
		Str("reason", task.Reason).Msg("[Worker] Processing recompute task")

	if w.processor == nil {
		logger.Warn().Msg("[Worker] No processor set")
		return nil
	}

	return w.processor(ctx, &task)
}
