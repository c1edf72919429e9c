package scheduler_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/onchainsignal/tracker/internal/model"
	"github.com/onchainsignal/tracker/internal/scheduler"
)

type fakeWindowReader struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeWindowReader) CumulativeAmount(ctx context.Context, mint string, dir model.Direction, now int64, periodSeconds int64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 100, nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeDispatcher) DispatchChat(ctx context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return nil
}

func TestRunSummaryDispatchesBuysAndSells(t *testing.T) {
	win := &fakeWindowReader{}
	disp := &fakeDispatcher{}
	s := scheduler.New(win, disp, "M", zerolog.Nop())

	// Exercise the same code path Start's tickers would call, without
	// waiting on real wall-clock intervals.
	s.RunOnceForTest(context.Background(), "test", 3600)

	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.messages) != 1 {
		t.Fatalf("expected 1 dispatched summary, got %d", len(disp.messages))
	}

	win.mu.Lock()
	defer win.mu.Unlock()
	if win.calls != 2 {
		t.Fatalf("expected 2 CumulativeAmount calls (buys, sells), got %d", win.calls)
	}
}
