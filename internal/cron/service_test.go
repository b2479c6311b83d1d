package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-gateway/pkg/logger"
	"github.com/angelmondragon/storefront-gateway/pkg/metrics"
)

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestRunOnceRunsEveryJobEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "state-purge"}
	bad := &testJob{name: "rate-sweep", err: errors.New("boom")}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(bad, ok),
		Lock:     &LocalLock{},
		Metrics:  metrics.NewJobMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if ok.runs != 1 || bad.runs != 1 {
		t.Fatalf("expected both jobs to run once, got ok=%d bad=%d", ok.runs, bad.runs)
	}
}

func TestRunOnceSkipsWhileLockIsHeld(t *testing.T) {
	lock := &LocalLock{}
	job := &testJob{name: "state-purge"}
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: NewRegistry(job), Lock: lock})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx := context.Background()
	if held, _ := lock.Acquire(ctx); !held {
		t.Fatalf("expected to take the free lock")
	}
	if err := service.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job ran while another cycle held the lock")
	}

	_ = lock.Release(ctx)
	if err := service.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected job to run after release, ran %d", job.runs)
	}
	if held, _ := lock.Acquire(ctx); !held {
		t.Fatalf("cycle did not release the lock")
	}
}

func TestNewServiceRequiresLoggerAndLock(t *testing.T) {
	if _, err := NewService(ServiceParams{Lock: &LocalLock{}}); err == nil {
		t.Fatalf("expected logger error")
	}
	if _, err := NewService(ServiceParams{Logger: logger.Nop()}); err == nil {
		t.Fatalf("expected lock error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "state-purge"}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(job),
		Lock:     &LocalLock{},
		Interval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if err := service.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if job.runs == 0 {
		t.Fatalf("expected at least one tick")
	}
}
