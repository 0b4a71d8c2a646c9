package workqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunDrainsAllTasksSingleWorker(t *testing.T) {
	q := NewQueue()
	var count int64
	for i := 0; i < 50; i++ {
		q.Submit(func(ctx context.Context) error {
			atomic.AddInt64(&count, 1)
			return nil
		})
	}
	q.Close()

	require.NoError(t, Run(context.Background(), q, 1))
	require.EqualValues(t, 50, count)
}

func TestRunDrainsAllTasksMultipleWorkers(t *testing.T) {
	q := NewQueue()
	var count int64
	for i := 0; i < 200; i++ {
		q.Submit(func(ctx context.Context) error {
			atomic.AddInt64(&count, 1)
			return nil
		})
	}
	q.Close()

	require.NoError(t, Run(context.Background(), q, 8))
	require.EqualValues(t, 200, count)
}

func TestRunReturnsFirstFault(t *testing.T) {
	q := NewQueue()
	boom := errors.New("boom")
	q.Submit(func(ctx context.Context) error { return boom })
	for i := 0; i < 20; i++ {
		q.Submit(func(ctx context.Context) error { return nil })
	}
	q.Close()

	require.Error(t, Run(context.Background(), q, 4))
}

func TestFirstFaultKeepsEarliestError(t *testing.T) {
	var f FirstFault
	first := errors.New("first")
	second := errors.New("second")
	f.Record(first)
	f.Record(second)
	require.Equal(t, first, f.Err())
}

func TestBarrierReleasesAllArrivals(t *testing.T) {
	const n = 5
	b := NewBarrier(n)
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			b.Arrive()
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
}
