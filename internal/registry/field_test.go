package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFieldGetSet(t *testing.T) {
	f := NewField(5)
	require.Equal(t, 5, f.Get())
	f.Set(9)
	require.Equal(t, 9, f.Get())
}

func TestFieldSubscribeReceivesSubsequentValues(t *testing.T) {
	f := NewField("a")
	var seen []string
	f.Subscribe(func(v string) { seen = append(seen, v) })

	f.Set("b")
	f.Set("c")

	require.Equal(t, []string{"b", "c"}, seen)
}

func TestFieldWatchBlocksUntilChange(t *testing.T) {
	f := NewField(0)
	rx := f.Watch()

	done := make(chan int, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		v, err := rx.Recv(ctx)
		require.NoError(t, err)
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	f.Set(42)

	select {
	case v := <-done:
		require.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for watch notification")
	}
}

func TestFieldWatchRespectsContextCancellation(t *testing.T) {
	f := NewField(0)
	rx := f.Watch()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rx.Recv(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSubscriberPanicDoesNotCorruptField(t *testing.T) {
	f := NewField(1)
	f.Subscribe(func(int) { panic("boom") })

	require.NotPanics(t, func() { f.Set(2) })
	require.Equal(t, 2, f.Get())
}
