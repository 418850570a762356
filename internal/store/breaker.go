package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// BreakerState is the circuit state of a Breaker.
type BreakerState int

const (
	// BreakerClosed lets calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen fails fast until the reset timeout passes.
	BreakerOpen
	// BreakerHalfOpen lets one trial call through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned while the breaker fails fast.
var ErrOpen = errors.New("circuit breaker is open")

// BreakerConfig tunes a Breaker.
type BreakerConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
}

// DefaultBreakerConfig is used for zero fields.
var DefaultBreakerConfig = BreakerConfig{MaxFailures: 3, ResetTimeout: 30 * time.Second}

// Breaker counts consecutive failures of an operation and opens after
// MaxFailures of them. After ResetTimeout one trial call decides whether it
// closes again.
type Breaker struct {
	name   string
	cfg    BreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       BreakerState
	recentFails int
	openedAt    time.Time
}

// NewBreaker returns a closed breaker.
func NewBreaker(name string, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultBreakerConfig.MaxFailures
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultBreakerConfig.ResetTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{name: name, cfg: cfg, logger: logger, now: time.Now}
}

// Execute runs op unless the breaker is open. Errors for which ignore
// returns true do not count as failures.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error, ignore func(error) bool) error {
	if !b.allow() {
		return ErrOpen
	}
	err := op(ctx)
	if err == nil || (ignore != nil && ignore(err)) {
		b.onSuccess()
		return err
	}
	b.onFailure(err)
	return err
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return false
		}
		b.state = BreakerHalfOpen
		b.logger.Info("breaker_half_open", "name", b.name)
		return true
	case BreakerHalfOpen:
		// A trial call is already in flight.
		return false
	default:
		return true
	}
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BreakerClosed {
		b.logger.Info("breaker_closed", "name", b.name, "from", b.state.String())
	}
	b.state = BreakerClosed
	b.recentFails = 0
}

func (b *Breaker) onFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recentFails++
	b.logger.Warn("operation_failure", "name", b.name, "failures", b.recentFails, "error", err.Error())
	if b.state == BreakerHalfOpen || b.recentFails >= b.cfg.MaxFailures {
		b.state = BreakerOpen
		b.openedAt = b.now()
		b.logger.Error("breaker_opened", "name", b.name, "maxFailures", b.cfg.MaxFailures)
	}
}
