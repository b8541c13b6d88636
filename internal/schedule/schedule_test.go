package schedule_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Subash-08/loke-store-sub001/internal/schedule"
)

func TestScheduler_RunsAfterDelay(t *testing.T) {
	s := schedule.New(nil)
	defer s.Stop()

	ran := make(chan struct{})
	s.After("fetch", time.Millisecond, func(context.Context) { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestScheduler_CancelPreventsRun(t *testing.T) {
	s := schedule.New(nil)
	defer s.Stop()

	var ran atomic.Bool
	s.After("fetch", 20*time.Millisecond, func(context.Context) { ran.Store(true) })
	s.Cancel("fetch")

	time.Sleep(60 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestScheduler_SameNameCoalesces(t *testing.T) {
	s := schedule.New(nil)
	defer s.Stop()

	var runs atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		s.After("fetch", 20*time.Millisecond, func(context.Context) {
			runs.Add(1)
			close(done)
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_StopCancelsEverything(t *testing.T) {
	s := schedule.New(nil)

	var ran atomic.Bool
	s.After("cart", 30*time.Millisecond, func(context.Context) { ran.Store(true) })
	s.After("wishlist", 30*time.Millisecond, func(context.Context) { ran.Store(true) })

	s.Stop()
	time.Sleep(60 * time.Millisecond)
	assert.False(t, ran.Load())

	// Scheduling after Stop is silently ignored.
	s.After("cart", time.Millisecond, func(context.Context) { ran.Store(true) })
	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestScheduler_StopWaitsForRunningTask(t *testing.T) {
	s := schedule.New(nil)

	started := make(chan struct{})
	var finished atomic.Bool
	s.After("slow", 0, func(context.Context) {
		close(started)
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
	})

	<-started
	s.Stop()
	assert.True(t, finished.Load(), "Stop returns only after in-flight tasks complete")
}
