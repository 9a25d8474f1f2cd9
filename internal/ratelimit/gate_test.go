package ratelimit

import (
	"context"
	"testing"
)

func TestWait_UnknownBucket(t *testing.T) {
	g := New()
	if err := g.Wait(context.Background(), "nope"); err == nil {
		t.Error("expected error for unregistered bucket")
	}
}

func TestWait_WithinBurst(t *testing.T) {
	g := New()
	g.AddBucket("svc", 60, 3)
	for i := 0; i < 3; i++ {
		if err := g.Wait(context.Background(), "svc"); err != nil {
			t.Fatalf("wait %d within burst: %v", i, err)
		}
	}
}

func TestWait_CancelledContext(t *testing.T) {
	g := New()
	g.AddBucket("svc", 0.001, 1) // effectively refills never
	if err := g.Wait(context.Background(), "svc"); err != nil {
		t.Fatalf("first token: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Wait(ctx, "svc"); err == nil {
		t.Error("expected error waiting on a cancelled context")
	}
}

func TestAddBucket_Replaces(t *testing.T) {
	g := New()
	g.AddBucket("svc", 0.001, 1)
	if err := g.Wait(context.Background(), "svc"); err != nil {
		t.Fatal(err)
	}
	// Re-registering resets the bucket with a fresh burst.
	g.AddBucket("svc", 60, 1)
	if err := g.Wait(context.Background(), "svc"); err != nil {
		t.Errorf("replaced bucket should grant a token: %v", err)
	}
}
