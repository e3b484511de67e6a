package queue

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/hibiken/asynq"
)

// RetryError asks the server to run the task again after Delay
type RetryError struct {
	Delay time.Duration
	Err   error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry in %s: %v", e.Delay, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// RetryDelay is an asynq.RetryDelayFunc that honors the delay carried by a
// *RetryError and falls back to asynq's default otherwise.
func RetryDelay(n int, err error, task *asynq.Task) time.Duration {
	var re *RetryError
	if errors.As(err, &re) && re.Delay >= 0 {
		return re.Delay
	}
	return asynq.DefaultRetryDelayFunc(n, err, task)
}

// Backoff computes exponential retry delays with symmetric jitter
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
	Rand   func() float64 // in [0, 1); defaults to math/rand
}

// Delay returns base * 2^attempt, jittered by ±Jitter and capped at Max.
// attempt is zero for the first retry.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := float64(b.Base) * math.Pow(2, float64(attempt))
	if d > float64(b.Max) {
		d = float64(b.Max)
	}

	if b.Jitter > 0 {
		r := rand.Float64
		if b.Rand != nil {
			r = b.Rand
		}
		d *= 1 + b.Jitter*(2*r()-1)
	}

	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
