package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestReclaimer_PassesLeaseAndLimit(t *testing.T) {
	t.Parallel()

	var gotLease time.Duration
	var gotLimit int
	jobs := &fakeJobRepo{
		reclaimStaleFn: func(_ context.Context, olderThan time.Duration, limit int) (int, error) {
			gotLease = olderThan
			gotLimit = limit
			return 3, nil
		},
	}

	reclaimer, err := NewReclaimerService(jobs, time.Minute, 5*time.Minute, 50, zap.NewNop())
	if err != nil {
		t.Fatalf("NewReclaimerService() error = %v", err)
	}

	if err := reclaimer.reclaim(context.Background()); err != nil {
		t.Fatalf("reclaim() error = %v", err)
	}

	if gotLease != 5*time.Minute {
		t.Errorf("lease = %v, want 5m", gotLease)
	}
	if gotLimit != 50 {
		t.Errorf("limit = %d, want 50", gotLimit)
	}
}

func TestReclaimer_DefaultsApplied(t *testing.T) {
	t.Parallel()

	jobs := &fakeJobRepo{}

	reclaimer, err := NewReclaimerService(jobs, 0, 0, 0, nil)
	if err != nil {
		t.Fatalf("NewReclaimerService() error = %v", err)
	}

	if reclaimer.interval != defaultReclaimInterval {
		t.Errorf("interval = %v, want %v", reclaimer.interval, defaultReclaimInterval)
	}
	if reclaimer.lease != defaultClaimLease {
		t.Errorf("lease = %v, want %v", reclaimer.lease, defaultClaimLease)
	}
	if reclaimer.limit != defaultReclaimLimit {
		t.Errorf("limit = %d, want %d", reclaimer.limit, defaultReclaimLimit)
	}
}

func TestReclaimer_StoreErrorSurfaced(t *testing.T) {
	t.Parallel()

	jobs := &fakeJobRepo{
		reclaimStaleFn: func(context.Context, time.Duration, int) (int, error) {
			return 0, fmt.Errorf("deadlock detected")
		},
	}

	reclaimer, err := NewReclaimerService(jobs, time.Minute, time.Minute, 10, zap.NewNop())
	if err != nil {
		t.Fatalf("NewReclaimerService() error = %v", err)
	}

	if err := reclaimer.reclaim(context.Background()); err == nil {
		t.Fatal("reclaim() expected error, got nil")
	}
}

func TestReclaimer_StartRunsInitialScanAndStops(t *testing.T) {
	t.Parallel()

	scanned := make(chan struct{}, 1)
	jobs := &fakeJobRepo{
		reclaimStaleFn: func(context.Context, time.Duration, int) (int, error) {
			select {
			case scanned <- struct{}{}:
			default:
			}
			return 0, nil
		},
	}

	reclaimer, err := NewReclaimerService(jobs, time.Hour, time.Minute, 10, zap.NewNop())
	if err != nil {
		t.Fatalf("NewReclaimerService() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reclaimer.Start(ctx) }()

	select {
	case <-scanned:
	case <-time.After(2 * time.Second):
		t.Fatal("initial scan did not run")
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not stop after context cancellation")
	}
}

func TestRequiresJobRepository(t *testing.T) {
	t.Parallel()

	if _, err := NewReclaimerService(nil, time.Minute, time.Minute, 10, zap.NewNop()); err == nil {
		t.Fatal("NewReclaimerService(nil) expected error, got nil")
	}
}
