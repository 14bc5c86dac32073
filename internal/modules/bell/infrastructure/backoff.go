package infrastructure

import (
	"math/rand"
	"time"
)

const (
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 30 * time.Second
	defaultFactor       = 2.0
	defaultJitter       = 0.2
)

// Backoff produces capped exponential reconnect delays. Each delay is shrunk by a random
// fraction up to Jitter so a restarted server is not hit by every bell at once.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64

	attempt int
	random  func() float64
}

// NewBackoff returns the reconnect policy: 500ms, doubling, capped at 30s, 20% jitter.
func NewBackoff() *Backoff {
	return &Backoff{
		Initial: defaultInitialDelay,
		Max:     defaultMaxDelay,
		Factor:  defaultFactor,
		Jitter:  defaultJitter,
	}
}

// Next returns the delay for the upcoming attempt and advances the sequence.
func (b *Backoff) Next() time.Duration {
	base := float64(b.Initial)
	for i := 0; i < b.attempt; i++ {
		base *= b.Factor
		if base >= float64(b.Max) {
			base = float64(b.Max)
			break
		}
	}
	if base > float64(b.Max) {
		base = float64(b.Max)
	}
	b.attempt++

	if b.Jitter > 0 {
		random := b.random
		if random == nil {
			random = rand.Float64
		}
		base -= base * b.Jitter * random()
	}
	return time.Duration(base)
}

// Reset starts the sequence over after a successful connection.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt reports how many delays were handed out since the last reset.
func (b *Backoff) Attempt() int {
	return b.attempt
}
