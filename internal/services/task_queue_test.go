package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sitesafe/hsekpi/internal/config"
)

func TestTaskTypeRecompute_Constant(t *testing.T) {
	if TaskTypeRecompute != "kpi:recompute" {
		t.Errorf("TaskTypeRecompute = %q, expected %q", TaskTypeRecompute, "kpi:recompute")
	}
}

func TestNewRecomputeTask_UsesReportingWeek(t *testing.T) {
	// Saturday 25 Jan 2025 opens week 5.
	task := NewRecomputeTask(7, time.Date(2025, time.January, 25, 9, 0, 0, 0, time.UTC), "snapshot_submitted")

	if task.ProjectID != 7 {
		t.Errorf("ProjectID = %d, expected 7", task.ProjectID)
	}
	if task.WeekNumber != 5 || task.Year != 2025 {
		t.Errorf("week = %s, expected 2025-W05", task.Week())
	}
	if task.Reason != "snapshot_submitted" {
		t.Errorf("Reason = %q", task.Reason)
	}
}

func TestNewTaskQueue_RedisDisabled(t *testing.T) {
	queue := NewTaskQueue(&config.RedisConfig{Enabled: false})
	if queue.IsAsync() {
		t.Error("queue should be synchronous when Redis is disabled")
	}
}

func TestSyncQueue_IsAsync(t *testing.T) {
	queue := NewSyncQueue()
	if queue.IsAsync() {
		t.Error("SyncQueue.IsAsync() should return false")
	}
}

func TestSyncQueue_Close(t *testing.T) {
	queue := NewSyncQueue()
	if err := queue.Close(); err != nil {
		t.Errorf("SyncQueue.Close() should return nil, got %v", err)
	}
}

func TestSyncQueue_EnqueueWithoutProcessor(t *testing.T) {
	queue := NewSyncQueue()
	if err := queue.Enqueue(&RecomputeTask{ProjectID: 1}); err != nil {
		t.Errorf("Enqueue without processor should not error, got %v", err)
	}
}

func TestSyncQueue_RunsProcessor(t *testing.T) {
	queue := NewSyncQueue()
	var calls int32
	queue.SetProcessor(func(ctx context.Context, task *RecomputeTask) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	for i := 0; i < 3; i++ {
		if err := queue.Enqueue(&RecomputeTask{ProjectID: 1, WeekNumber: 5, Year: 2025}); err != nil {
			t.Fatalf("Enqueue returned %v", err)
		}
	}
	queue.Wait()

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("processor called %d times, expected 3", got)
	}
}

func TestAsyncQueue_IsAsync(t *testing.T) {
	queue := &AsyncQueue{}
	if !queue.IsAsync() {
		t.Error("AsyncQueue.IsAsync() should return true")
	}
}
