package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewCleaner_SkipsDisabledTasks(t *testing.T) {
	noop := func(context.Context, time.Duration) (int, error) { return 0, nil }

	c := NewCleaner(time.Hour, nil,
		CleanupTask{Name: "reports", MaxAge: time.Hour, Run: noop},
		CleanupTask{Name: "sandbox", MaxAge: 0, Run: noop},
		CleanupTask{Name: "broken", MaxAge: time.Hour},
	)

	tasks := c.Tasks()
	if len(tasks) != 1 || tasks[0] != "reports" {
		t.Errorf("Tasks() = %v, want [reports]", tasks)
	}
}

func TestCleaner_RunOnce(t *testing.T) {
	var gotAge time.Duration
	var calls int

	c := NewCleaner(time.Hour, testLogger(),
		CleanupTask{Name: "failing", MaxAge: time.Minute, Run: func(context.Context, time.Duration) (int, error) {
			return 0, errors.New("boom")
		}},
		CleanupTask{Name: "reports", MaxAge: 24 * time.Hour, Run: func(_ context.Context, maxAge time.Duration) (int, error) {
			calls++
			gotAge = maxAge
			return 3, nil
		}},
	)

	c.RunOnce(context.Background())
	if calls != 1 {
		t.Errorf("task ran %d times, want 1 despite earlier failure", calls)
	}
	if gotAge != 24*time.Hour {
		t.Errorf("maxAge = %v, want 24h", gotAge)
	}
}

func TestCleaner_StartStop(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	if err := storage.Save(ctx, finishedReport("old", time.Now().Add(-72*time.Hour), StatusCompleted)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var runs atomic.Int32
	c := NewCleaner(time.Hour, testLogger(), CleanupTask{
		Name:   "reports",
		MaxAge: 24 * time.Hour,
		Run: func(ctx context.Context, maxAge time.Duration) (int, error) {
			runs.Add(1)
			return storage.Cleanup(ctx, maxAge)
		},
	})

	c.Start(ctx)
	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("cleanup did not run on start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()
	c.Stop()

	if _, err := storage.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Error("old report survived cleanup")
	}
}
