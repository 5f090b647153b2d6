package relayclient

import "time"

// backoff doubles the delay on every Next call up to max.
type backoff struct {
	current time.Duration
	initial time.Duration
	max     time.Duration
}

func newBackoff(initial, maxDelay time.Duration) *backoff {
	return &backoff{current: initial, initial: initial, max: maxDelay}
}

func (b *backoff) Next() time.Duration {
	d := b.current
	b.current = min(b.current*2, b.max)
	return d
}

func (b *backoff) Reset() { b.current = b.initial }
