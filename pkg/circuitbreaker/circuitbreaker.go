package circuitbreaker

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

var (
	// DefaultMaxConsecutiveFailures ...
	DefaultMaxConsecutiveFailures uint32 = 3
	// OpenTimeout is how long the breaker stays open before letting a probe
	// request through.
	OpenTimeout = 30 * time.Second
)

// NewCircuitBreaker is a factory function returning a *gobreaker.CircuitBreaker
// that trips after maxConsecutiveFailures failing requests in a row.
// A zero value defaults to DefaultMaxConsecutiveFailures.
func NewCircuitBreaker(
	name string, maxConsecutiveFailures uint32,
) *gobreaker.CircuitBreaker {
	if maxConsecutiveFailures == 0 {
		maxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithField("breaker", name).Debugf(
				"state changed from %s to %s", from, to,
			)
		},
	})
}
