package inbox

import "time"

// Policy computes reconnect backoff. It is a pure function of the attempt
// count; the subscription owns the timer.
type Policy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// DefaultPolicy retries after 1s, 2s, 4s, 8s and 16s, then gives up.
func DefaultPolicy() Policy {
	return Policy{
		Base:        time.Second,
		Cap:         30 * time.Second,
		MaxAttempts: 5,
	}
}

// Delay returns min(Base*2^attempt, Cap).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Base
	for range attempt {
		if p.Cap > 0 && d >= p.Cap {
			break
		}
		d *= 2
	}
	if p.Cap > 0 && d > p.Cap {
		return p.Cap
	}
	return d
}

// Exhausted reports whether attempt retries have used up the budget.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
