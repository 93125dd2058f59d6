package advancedauth

import (
	"context"
	"testing"
	"time"

	"github.com/DevDad-Main/advanced-auth/internal"
)

func TestSweepRemovesExpiredState(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()

	live := stagedRecord("live@example.com", time.Now().Add(time.Hour))
	if err := env.engine.registrations.Save(ctx, "live", live, time.Hour); err != nil {
		t.Fatalf("Save live failed: %v", err)
	}
	expired := stagedRecord("expired@example.com", time.Now().Add(-time.Minute))
	if err := env.engine.registrations.Save(ctx, "expired", expired, time.Hour); err != nil {
		t.Fatalf("Save expired failed: %v", err)
	}

	secret, err := internal.NewRefreshSecret()
	if err != nil {
		t.Fatalf("NewRefreshSecret failed: %v", err)
	}
	if err := env.refresh.Create(ctx, "u1", internal.HashRefreshSecret(secret), time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	NewScheduler(env.engine).Sweep(ctx)

	if !env.mr.Exists("aa:reg:live") {
		t.Fatal("live session should have survived the sweep")
	}
	if env.mr.Exists("aa:reg:expired") {
		t.Fatal("expired session should be gone")
	}
	if env.refresh.count() != 0 {
		t.Fatalf("refresh record count = %d, want 0", env.refresh.count())
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	env := newTestEngine(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		NewScheduler(env.engine).Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}
