// Package poll provides the single bounded-wait primitive shared by
// every protocol loop : the SDO response wait, both status word waits of
// the motion handshake and the scanner pacing. Centralizing it keeps the
// timeout semantics identical across all call sites.
package poll

import (
	"errors"
	"time"
)

// ErrDeadline is returned when cond did not report done before timeout.
var ErrDeadline = errors.New("poll deadline exceeded")

// ErrStopped is returned when the stop channel was closed while waiting.
var ErrStopped = errors.New("poll aborted by stop request")

// Until calls cond repeatedly, sleeping interval between calls, until it
// reports done, an error, the deadline passes or stop is closed. A nil
// stop channel disables cancellation. cond is always attempted at least
// once, and the loop never overshoots the deadline by more than one
// interval plus the duration of a single cond call.
func Until(timeout, interval time.Duration, stop <-chan struct{}, cond func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		done, err := cond()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrDeadline
		}
		select {
		case <-stop:
			return ErrStopped
		case <-time.After(interval):
		}
	}
}
