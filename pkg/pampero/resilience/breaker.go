package resilience

import (
	"errors"
	"sync"

	"github.com/sony/gobreaker"
	"k8s.io/klog/v2"

	"github.com/meteosur/pampero/pkg/pampero/config"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
)

// ErrOpen is returned when a call is rejected because the source's breaker
// is open. Callers treat it as "no data from that source this call".
var ErrOpen = errors.New("circuit breaker open")

// IsOpen reports whether err is a breaker rejection.
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpen)
}

// Breaker isolates one provider. Consecutive expected-class failures open
// it; after the recovery timeout a single probe is admitted, and its
// outcome decides between closing and re-opening.
type Breaker struct {
	source meteo.SourceID
	cb     *gobreaker.CircuitBreaker
}

// NewBreaker builds a breaker for one source. isFailure selects which
// errors count toward opening; errors outside that class pass through on
// the success path, matching the usual breaker-library contract.
func NewBreaker(source meteo.SourceID, cfg config.BreakerConfig, isFailure func(error) bool, onStateChange func(source meteo.SourceID, from, to string)) *Breaker {
	settings := gobreaker.Settings{
		Name:        string(source),
		MaxRequests: 1,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			klog.InfoS("Circuit breaker state change",
				"source", name,
				"from", from.String(),
				"to", to.String())
			if onStateChange != nil {
				onStateChange(source, from.String(), to.String())
			}
		},
	}
	if isFailure != nil {
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !isFailure(err)
		}
	}

	return &Breaker{
		source: source,
		cb:     gobreaker.NewCircuitBreaker(settings),
	}
}

// Do runs fn under the breaker. Open-state and half-open-overflow
// rejections come back as ErrOpen without invoking fn.
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}

// State returns the breaker state name (closed, half-open, open).
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Source returns the source this breaker guards.
func (b *Breaker) Source() meteo.SourceID {
	return b.source
}

// Registry holds the process-wide breaker per source. Reads are concurrent;
// lazy additions take the write lock.
type Registry struct {
	mu       sync.RWMutex
	breakers map[meteo.SourceID]*Breaker

	cfg           config.BreakerConfig
	isFailure     func(error) bool
	onStateChange func(source meteo.SourceID, from, to string)
}

// NewRegistry creates a registry and pre-builds breakers for the given
// sources.
func NewRegistry(cfg config.BreakerConfig, sources []meteo.SourceID, isFailure func(error) bool, onStateChange func(source meteo.SourceID, from, to string)) *Registry {
	r := &Registry{
		breakers:      make(map[meteo.SourceID]*Breaker, len(sources)),
		cfg:           cfg,
		isFailure:     isFailure,
		onStateChange: onStateChange,
	}
	for _, s := range sources {
		r.breakers[s] = NewBreaker(s, cfg, isFailure, onStateChange)
	}
	return r
}

// For returns the breaker for a source, creating it on first use.
func (r *Registry) For(source meteo.SourceID) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[source]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[source]; ok {
		return b
	}
	b = NewBreaker(source, r.cfg, r.isFailure, r.onStateChange)
	r.breakers[source] = b
	return b
}

// States snapshots the current state name per source.
func (r *Registry) States() map[meteo.SourceID]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make(map[meteo.SourceID]string, len(r.breakers))
	for s, b := range r.breakers {
		states[s] = b.State()
	}
	return states
}
