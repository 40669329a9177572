package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func TestNew(t *testing.T) {
	logger := slog.Default()

	s := New(logger)
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.cron == nil {
		t.Error("New() scheduler has nil cron")
	}
	if s.logger != logger {
		t.Error("New() scheduler has wrong logger")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := New(slog.New(slog.DiscardHandler))

	if err := s.AddJob("* * * * *", "webhook-retry", JobFunc(func(context.Context) error {
		return nil
	})); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}

	s.Start()
	s.Stop()
}

func TestAddJobRejectsBadSpec(t *testing.T) {
	s := New(slog.New(slog.DiscardHandler))

	err := s.AddJob("not a cron spec", "broken", JobFunc(func(context.Context) error {
		return errors.New("never runs")
	}))
	if err == nil {
		t.Error("AddJob() accepted an invalid cron spec")
	}
}
