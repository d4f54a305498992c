package poll_test

import (
	"errors"
	"testing"
	"time"

	"github.com/erobman/canopen-pp/internal/poll"
	"github.com/stretchr/testify/assert"
)

func TestUntilImmediate(t *testing.T) {
	calls := 0
	err := poll.Until(time.Second, 100*time.Millisecond, nil, func() (bool, error) {
		calls++
		return true, nil
	})
	assert.Nil(t, err)
	assert.Equal(t, 1, calls)
}

func TestUntilDeadline(t *testing.T) {
	calls := 0
	start := time.Now()
	err := poll.Until(30*time.Millisecond, time.Millisecond, nil, func() (bool, error) {
		calls++
		return false, nil
	})
	elapsed := time.Since(start)
	assert.ErrorIs(t, err, poll.ErrDeadline)
	assert.Greater(t, calls, 1)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestUntilZeroTimeoutStillAttemptsOnce(t *testing.T) {
	calls := 0
	err := poll.Until(0, time.Millisecond, nil, func() (bool, error) {
		calls++
		return calls > 1, nil
	})
	assert.ErrorIs(t, err, poll.ErrDeadline)
	assert.Equal(t, 1, calls)

	err = poll.Until(0, time.Millisecond, nil, func() (bool, error) {
		return true, nil
	})
	assert.Nil(t, err)
}

func TestUntilCondError(t *testing.T) {
	boom := errors.New("boom")
	err := poll.Until(time.Second, time.Millisecond, nil, func() (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestUntilStop(t *testing.T) {
	stop := make(chan struct{})
	close(stop)
	calls := 0
	err := poll.Until(time.Minute, time.Hour, stop, func() (bool, error) {
		calls++
		return false, nil
	})
	assert.ErrorIs(t, err, poll.ErrStopped)
	assert.Equal(t, 1, calls)
}
