package engine

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/Priya8975/leadsync/internal/domain"
)

func TestFanOut_DeliversToAllListeners(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	var batches, finishes int
	counter := ListenerFuncs{
		Batch:  func(ctx context.Context, p domain.BatchProgress) { batches++ },
		Finish: func(ctx context.Context, r domain.RunReport) { finishes++ },
	}

	f := NewFanOut(logger, counter)
	f.Add(counter, nil)
	if f.Len() != 2 {
		t.Fatalf("expected 2 listeners, got %d", f.Len())
	}

	f.Batch(context.Background(), domain.BatchProgress{Page: 1})
	f.Finish(context.Background(), domain.RunReport{})

	if batches != 2 {
		t.Errorf("expected 2 batch calls, got %d", batches)
	}
	if finishes != 2 {
		t.Errorf("expected 2 finish calls, got %d", finishes)
	}
}

func TestFanOut_RecoversFromPanickingListener(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	called := false
	f := NewFanOut(logger,
		ListenerFuncs{Finish: func(ctx context.Context, r domain.RunReport) { panic("boom") }},
		ListenerFuncs{Finish: func(ctx context.Context, r domain.RunReport) { called = true }},
	)

	f.Finish(context.Background(), domain.RunReport{})

	if !called {
		t.Error("listener after a panicking one should still be called")
	}
}
