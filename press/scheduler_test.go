package press

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func TestManualScheduler(t *testing.T) {
	t.Run("runs tasks in due order when advanced", func(t *testing.T) {
		s := NewManualScheduler()

		var order []string

		_, err := s.Schedule(20*time.Millisecond, func() { order = append(order, "second") })
		assert.NoError(t, err)
		_, err = s.Schedule(10*time.Millisecond, func() { order = append(order, "first") })
		assert.NoError(t, err)
		_, err = s.Schedule(30*time.Millisecond, func() { order = append(order, "third") })
		assert.NoError(t, err)

		s.Advance(25 * time.Millisecond)
		assert.Equal(t, []string{"first", "second"}, order)
		assert.Equal(t, 1, s.Pending())
		assert.Equal(t, 25*time.Millisecond, s.Now())

		s.Advance(5 * time.Millisecond)
		assert.Equal(t, []string{"first", "second", "third"}, order)
		assert.Equal(t, 0, s.Pending())
	})

	t.Run("cancelled tasks never run", func(t *testing.T) {
		s := NewManualScheduler()

		ran := false
		cancel, err := s.Schedule(10*time.Millisecond, func() { ran = true })
		assert.NoError(t, err)

		assert.True(t, cancel())
		assert.False(t, cancel())

		s.FireAll()
		assert.False(t, ran)
	})

	t.Run("fire all runs tasks scheduled while firing", func(t *testing.T) {
		s := NewManualScheduler()

		count := 0
		_, _ = s.Schedule(10*time.Millisecond, func() {
			count++
			_, _ = s.Schedule(10*time.Millisecond, func() { count++ })
		})

		s.FireAll()
		assert.Equal(t, 2, count)
		assert.Equal(t, 20*time.Millisecond, s.Now())
	})

	t.Run("refuses to schedule beyond its limit", func(t *testing.T) {
		s := NewManualScheduler()
		s.Limit(1)

		_, err := s.Schedule(time.Millisecond, func() {})
		assert.NoError(t, err)

		_, err = s.Schedule(time.Millisecond, func() {})
		assert.True(t, errors.Is(err, ErrSchedulerExhausted))
	})
}

func TestTimerScheduler(t *testing.T) {
	t.Run("runs the task after the delay", func(t *testing.T) {
		ch := make(chan struct{}, 1)

		_, err := TimerScheduler{}.Schedule(5*time.Millisecond, func() { ch <- struct{}{} })
		assert.NoError(t, err)

		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("task did not run")
		}
	})

	t.Run("cancel prevents the task from running", func(t *testing.T) {
		ran := make(chan struct{}, 1)

		cancel, err := TimerScheduler{}.Schedule(50*time.Millisecond, func() { ran <- struct{}{} })
		assert.NoError(t, err)
		assert.True(t, cancel())

		select {
		case <-ran:
			t.Fatal("cancelled task ran")
		case <-time.After(100 * time.Millisecond):
		}
	})
}
