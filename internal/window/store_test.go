package window_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/onchainsignal/tracker/internal/model"
	"github.com/onchainsignal/tracker/internal/window"
)

func newTestStore(t *testing.T) *window.Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return window.New(rdb)
}

// Window half of S2 from spec.md: cumulative sums and eviction. The
// cooldown flag is covered by TestCooldownLifecycle.
func TestAddAmountToWindowAccumulatesAndEvicts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	cases := []struct {
		ts     int64
		amount float64
		want   float64
	}{
		{1000, 100, 100},
		{1100, 100, 200},
		{1200, 150, 350},
	}
	for _, c := range cases {
		got, err := s.AddAmountToWindow(ctx, "M", model.DirectionBuy, c.amount, c.ts, 3600)
		if err != nil {
			t.Fatalf("AddAmountToWindow(%d): %v", c.ts, err)
		}
		if got != c.want {
			t.Fatalf("AddAmountToWindow(%d) = %v, want %v", c.ts, got, c.want)
		}
	}

	// An insert far enough in the future evicts everything before it: the
	// window starts at 1300, after the newest earlier entry (1200).
	got, err := s.AddAmountToWindow(ctx, "M", model.DirectionBuy, 50, 1200+3700, 3600)
	if err != nil {
		t.Fatalf("AddAmountToWindow after eviction: %v", err)
	}
	if got != 50 {
		t.Fatalf("expected prior entries evicted, got cumulative %v", got)
	}
}

func TestCumulativeAmountDoesNotInsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.AddAmountToWindow(ctx, "M", model.DirectionSell, 200, 1000, 3600); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	sum, err := s.CumulativeAmount(ctx, "M", model.DirectionSell, 1200, 3600)
	if err != nil {
		t.Fatalf("CumulativeAmount: %v", err)
	}
	if sum != 200 {
		t.Fatalf("CumulativeAmount = %v, want 200", sum)
	}

	// Calling it again must not have inserted a duplicate member.
	sum2, err := s.CumulativeAmount(ctx, "M", model.DirectionSell, 1200, 3600)
	if err != nil {
		t.Fatalf("CumulativeAmount (2nd): %v", err)
	}
	if sum2 != sum {
		t.Fatalf("CumulativeAmount is not idempotent: %v vs %v", sum, sum2)
	}
}

func TestCooldownLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := "M:buy:cumulative"
	in, err := s.IsInCooldown(ctx, key)
	if err != nil {
		t.Fatalf("IsInCooldown: %v", err)
	}
	if in {
		t.Fatal("expected no cooldown before SetCooldown")
	}

	if err := s.SetCooldown(ctx, key, 3600); err != nil {
		t.Fatalf("SetCooldown: %v", err)
	}

	in, err = s.IsInCooldown(ctx, key)
	if err != nil {
		t.Fatalf("IsInCooldown after set: %v", err)
	}
	if !in {
		t.Fatal("expected cooldown to be active")
	}
}

// Invariant 3 from spec.md §8: reset then get returns 0.
func TestSequentialSellsResetReturnsZero(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		if _, err := s.IncrementSequentialSells(ctx, "W1"); err != nil {
			t.Fatalf("IncrementSequentialSells: %v", err)
		}
	}
	count, err := s.GetSequentialSells(ctx, "W1")
	if err != nil {
		t.Fatalf("GetSequentialSells: %v", err)
	}
	if count != 3 {
		t.Fatalf("GetSequentialSells = %d, want 3", count)
	}

	if err := s.ResetSequentialSells(ctx, "W1"); err != nil {
		t.Fatalf("ResetSequentialSells: %v", err)
	}
	count, err = s.GetSequentialSells(ctx, "W1")
	if err != nil {
		t.Fatalf("GetSequentialSells after reset: %v", err)
	}
	if count != 0 {
		t.Fatalf("GetSequentialSells after reset = %d, want 0", count)
	}
}

func TestGetSequentialSellsDefaultsToZero(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	count, err := s.GetSequentialSells(ctx, "never-seen")
	if err != nil {
		t.Fatalf("GetSequentialSells: %v", err)
	}
	if count != 0 {
		t.Fatalf("GetSequentialSells for unseen wallet = %d, want 0", count)
	}
}
