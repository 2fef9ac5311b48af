package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSupervisorCancelsRemainingTasksOnFirstError(t *testing.T) {
	s := NewSupervisor()

	failing := errors.New("boom")
	s.Spawn("failing", func(ctx context.Context) error {
		return failing
	})

	exited := make(chan struct{})
	s.Spawn("long-running", func(ctx context.Context) error {
		<-ctx.Done()
		close(exited)
		return nil
	})

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("expected the long-running task to observe cancellation")
	}

	err := s.Run()
	require.Equal(t, failing, err)
}

func TestSupervisorRecoversPanickingTask(t *testing.T) {
	s := NewSupervisor()
	s.Spawn("panics", func(ctx context.Context) error {
		panic("oh no")
	})

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected supervisor to return after a panicking task")
	}
}

func TestSupervisorContextCancelledBySpawnFailure(t *testing.T) {
	s := NewSupervisor()
	require.NoError(t, s.Context().Err())

	s.Spawn("immediate-error", func(ctx context.Context) error {
		return errors.New("fail fast")
	})

	select {
	case <-s.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("expected context cancellation after task failure")
	}
}
