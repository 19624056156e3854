package admission

import (
	"fmt"
	"sync"
	"time"

	"github.com/RensithUdara/Online-Train-Ticket-Booking/internal/clock"
	"github.com/RensithUdara/Online-Train-Ticket-Booking/internal/domain"
)

// IdentityVerifier answers whether an identity may book at all. Real
// credential checking lives outside this service; the default verifier
// accepts everyone.
type IdentityVerifier interface {
	IsValidUser(identity string) bool
}

type allowAllVerifier struct{}

func (allowAllVerifier) IsValidUser(string) bool { return true }

// AllowAllVerifier returns the stub verifier that accepts every identity.
func AllowAllVerifier() IdentityVerifier {
	return allowAllVerifier{}
}

// Config carries the admission limits. All values must be positive.
type Config struct {
	TotalCapacity        int
	MaxPerIdentity       int
	RateLimitWindow      time.Duration
	MaxRequestsPerWindow int
	FanOutThreshold      int
}

// DefaultConfig mirrors the limits the service has always shipped with.
func DefaultConfig() Config {
	return Config{
		TotalCapacity:        500,
		MaxPerIdentity:       5,
		RateLimitWindow:      15 * time.Minute,
		MaxRequestsPerWindow: 10,
		FanOutThreshold:      3,
	}
}

// Validate rejects non-positive limits.
func (c Config) Validate() error {
	if c.TotalCapacity <= 0 {
		return fmt.Errorf("total capacity must be positive, got %d", c.TotalCapacity)
	}
	if c.MaxPerIdentity <= 0 {
		return fmt.Errorf("max tickets per user must be positive, got %d", c.MaxPerIdentity)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %s", c.RateLimitWindow)
	}
	if c.MaxRequestsPerWindow <= 0 {
		return fmt.Errorf("max requests per window must be positive, got %d", c.MaxRequestsPerWindow)
	}
	if c.FanOutThreshold <= 0 {
		return fmt.Errorf("fan-out threshold must be positive, got %d", c.FanOutThreshold)
	}
	return nil
}

// Engine is the admission authority: one per process, owning the inventory
// pool and all per-identity tracking state. Rejected attempts leave every
// piece of state untouched.
type Engine struct {
	cfg      Config
	clock    clock.Clock
	verifier IdentityVerifier

	inventory *Inventory

	// mu guards the compound check-then-mutate sequence across quota,
	// limiter and anomaly state. Without it two concurrent requests for
	// the same identity could both pass the quota check before either
	// grants. A global lock rather than per-identity because the anomaly
	// collision rule reads every identity's set anyway. The inventory
	// pool is additionally atomic on its own, so global over-allocation
	// is impossible either way.
	mu      sync.Mutex
	quota   *QuotaTracker
	limiter *RateLimiter
	anomaly *AnomalyDetector
}

// NewEngine builds an engine from validated config. Options override the
// clock and the identity verifier.
func NewEngine(cfg Config, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("admission config: %w", err)
	}
	e := &Engine{
		cfg:       cfg,
		clock:     clock.NewSystem(),
		verifier:  AllowAllVerifier(),
		inventory: NewInventory(cfg.TotalCapacity),
		quota:     NewQuotaTracker(),
		limiter:   NewRateLimiter(cfg.RateLimitWindow, cfg.MaxRequestsPerWindow),
		anomaly:   NewAnomalyDetector(cfg.FanOutThreshold),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type EngineOption func(*Engine)

// WithClock overrides the wall clock (tests).
func WithClock(clk clock.Clock) EngineOption {
	return func(e *Engine) {
		if clk != nil {
			e.clock = clk
		}
	}
}

// WithIdentityVerifier overrides the always-true identity stub.
func WithIdentityVerifier(v IdentityVerifier) EngineOption {
	return func(e *Engine) {
		if v != nil {
			e.verifier = v
		}
	}
}

// Book runs the fixed validation pipeline and, only if every stage passes,
// applies all four state mutations as one unit: reserve inventory, grant
// quota, record the rate-limit timestamp, record the device/IP pair.
//
// Any panic out of a collaborator is converted to ErrInternal so callers
// never need recovery logic around this entry point.
func (e *Engine) Book(identity, deviceID, ip string, quantity int) (remaining int, err error) {
	defer func() {
		if r := recover(); r != nil {
			remaining, err = e.inventory.Remaining(), domain.ErrInternal
		}
	}()

	if !e.verifier.IsValidUser(identity) {
		return e.inventory.Remaining(), domain.ErrInvalidIdentity
	}

	now := e.clock.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.anomaly.IsSuspicious(identity, deviceID, ip) {
		return e.inventory.Remaining(), domain.ErrSuspiciousActivity
	}
	if !e.limiter.Allow(identity, now) {
		return e.inventory.Remaining(), domain.ErrRateLimitExceeded
	}
	if quantity <= 0 || quantity > e.cfg.MaxPerIdentity {
		return e.inventory.Remaining(), domain.ErrInvalidQuantity
	}
	if e.quota.Granted(identity)+quantity > e.cfg.MaxPerIdentity {
		return e.inventory.Remaining(), domain.ErrQuotaExceeded
	}

	// Cheap stale read first; the CAS inside TryReserve is the real gate.
	if quantity > e.inventory.Remaining() {
		return e.inventory.Remaining(), domain.ErrInsufficientInventory
	}
	left, ok := e.inventory.TryReserve(quantity)
	if !ok {
		return left, domain.ErrInsufficientInventory
	}

	e.quota.Grant(identity, quantity)
	e.limiter.Record(identity, now)
	e.anomaly.Record(identity, deviceID, ip)

	return left, nil
}

// Cancel reverses the inventory reservation and quota grant of an admitted
// booking that failed downstream (payment). The rate-limit timestamp and
// device/IP history stay: the request did happen.
func (e *Engine) Cancel(identity string, quantity int) {
	if quantity <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quota.Revoke(identity, quantity)
	e.inventory.Release(quantity)
}

// Remaining reports the current pool level.
func (e *Engine) Remaining() int {
	return e.inventory.Remaining()
}

// Capacity reports the configured total.
func (e *Engine) Capacity() int {
	return e.inventory.Capacity()
}

// RemainingRequests reports how many more requests the identity may make in
// the current window.
func (e *Engine) RemainingRequests(identity string) int {
	now := e.clock.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	left := e.cfg.MaxRequestsPerWindow - e.limiter.Recent(identity, now)
	if left < 0 {
		left = 0
	}
	return left
}

// QuotaUsed reports the identity's cumulative granted tickets.
func (e *Engine) QuotaUsed(identity string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quota.Granted(identity)
}
