package admission

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/RensithUdara/Online-Train-Ticket-Booking/internal/clock"
	"github.com/RensithUdara/Online-Train-Ticket-Booking/internal/domain"
)

func testConfig() Config {
	return Config{
		TotalCapacity:        10,
		MaxPerIdentity:       5,
		RateLimitWindow:      15 * time.Minute,
		MaxRequestsPerWindow: 10,
		FanOutThreshold:      3,
	}
}

func newTestEngine(t *testing.T, cfg Config, opts ...EngineOption) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := []Config{
		{TotalCapacity: 0, MaxPerIdentity: 5, RateLimitWindow: time.Minute, MaxRequestsPerWindow: 1, FanOutThreshold: 1},
		{TotalCapacity: 10, MaxPerIdentity: 0, RateLimitWindow: time.Minute, MaxRequestsPerWindow: 1, FanOutThreshold: 1},
		{TotalCapacity: 10, MaxPerIdentity: 5, RateLimitWindow: 0, MaxRequestsPerWindow: 1, FanOutThreshold: 1},
		{TotalCapacity: 10, MaxPerIdentity: 5, RateLimitWindow: time.Minute, MaxRequestsPerWindow: 0, FanOutThreshold: 1},
		{TotalCapacity: 10, MaxPerIdentity: 5, RateLimitWindow: time.Minute, MaxRequestsPerWindow: 1, FanOutThreshold: 0},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("config %d unexpectedly valid", i)
		}
	}
}

func TestEngine_Scenario(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	e := newTestEngine(t, testConfig(), WithClock(clock.NewFixed(now)))

	// u1 books its full per-user allowance.
	left, err := e.Book("u1", "dev-u1", "10.0.0.1", 5)
	if err != nil {
		t.Fatalf("u1 first booking: %v", err)
	}
	if left != 5 {
		t.Fatalf("expected 5 remaining, got %d", left)
	}

	// One more ticket for u1 exceeds the quota.
	if _, err := e.Book("u1", "dev-u1", "10.0.0.1", 1); err != domain.ErrQuotaExceeded {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	// 6 tickets in one request exceeds the per-user maximum outright.
	if _, err := e.Book("u2", "dev-u2", "10.0.0.2", 6); err != domain.ErrInvalidQuantity {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}

	// u2 takes the remaining 5.
	left, err = e.Book("u2", "dev-u2", "10.0.0.2", 5)
	if err != nil {
		t.Fatalf("u2 booking: %v", err)
	}
	if left != 0 {
		t.Fatalf("expected empty pool, got %d", left)
	}

	// Pool is empty for everyone now.
	if _, err := e.Book("u3", "dev-u3", "10.0.0.3", 1); err != domain.ErrInsufficientInventory {
		t.Fatalf("expected ErrInsufficientInventory, got %v", err)
	}

	if e.Remaining() != 0 {
		t.Fatalf("expected Remaining 0, got %d", e.Remaining())
	}
	if e.QuotaUsed("u1") != 5 || e.QuotaUsed("u2") != 5 {
		t.Fatalf("unexpected quota usage u1=%d u2=%d", e.QuotaUsed("u1"), e.QuotaUsed("u2"))
	}
}

func TestEngine_RejectionMutatesNothing(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clk := clock.NewManual(now)
	e := newTestEngine(t, testConfig(), WithClock(clk))

	// Drain the pool to 2 so a 5-ticket request hits the inventory stage.
	if _, err := e.Book("u1", "dev-1", "10.0.0.1", 3); err != nil {
		t.Fatalf("setup booking u1: %v", err)
	}
	if _, err := e.Book("u2", "dev-2", "10.0.0.2", 5); err != nil {
		t.Fatalf("setup booking u2: %v", err)
	}

	snapshot := func() (int, int, int, int) {
		return e.Remaining(), e.QuotaUsed("u1"), e.RemainingRequests("u1"), e.anomalySetSize("u1")
	}
	remBefore, quotaBefore, reqBefore, devBefore := snapshot()

	// Quota rejection: 3 + 3 > 5.
	if _, err := e.Book("u1", "dev-1", "10.0.0.1", 3); err != domain.ErrQuotaExceeded {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	// Quantity rejection.
	if _, err := e.Book("u1", "dev-1", "10.0.0.1", 0); err != domain.ErrInvalidQuantity {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	// Inventory rejection: only 2 tickets left.
	if _, err := e.Book("u3", "dev-3", "10.0.0.3", 5); err != domain.ErrInsufficientInventory {
		t.Fatalf("expected ErrInsufficientInventory, got %v", err)
	}
	if e.QuotaUsed("u3") != 0 || e.anomalySetSize("u3") != 0 {
		t.Fatalf("rejected u3 booking left traces: quota %d, identifiers %d", e.QuotaUsed("u3"), e.anomalySetSize("u3"))
	}

	remAfter, quotaAfter, reqAfter, devAfter := snapshot()
	if remBefore != remAfter || quotaBefore != quotaAfter || reqBefore != reqAfter || devBefore != devAfter {
		t.Fatalf("rejected bookings mutated state: before (%d,%d,%d,%d) after (%d,%d,%d,%d)",
			remBefore, quotaBefore, reqBefore, devBefore, remAfter, quotaAfter, reqAfter, devAfter)
	}
}

func TestEngine_RateLimit(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clk := clock.NewManual(now)

	cfg := testConfig()
	cfg.TotalCapacity = 1000
	cfg.MaxPerIdentity = 1000
	cfg.MaxRequestsPerWindow = 3
	e := newTestEngine(t, cfg, WithClock(clk))

	for i := 0; i < 3; i++ {
		if _, err := e.Book("u1", "dev-1", "10.0.0.1", 1); err != nil {
			t.Fatalf("booking %d: %v", i+1, err)
		}
	}

	if _, err := e.Book("u1", "dev-1", "10.0.0.1", 1); err != domain.ErrRateLimitExceeded {
		t.Fatalf("expected ErrRateLimitExceeded on 4th call, got %v", err)
	}
	if got := e.RemainingRequests("u1"); got != 0 {
		t.Fatalf("expected 0 remaining requests, got %d", got)
	}

	// Advancing the clock past the window restores allowance.
	clk.Advance(cfg.RateLimitWindow + time.Second)
	if _, err := e.Book("u1", "dev-1", "10.0.0.1", 1); err != nil {
		t.Fatalf("expected allowance after window, got %v", err)
	}
}

func TestEngine_SuspiciousActivity(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	cfg := testConfig()
	cfg.TotalCapacity = 1000
	cfg.MaxPerIdentity = 1000
	e := newTestEngine(t, cfg, WithClock(clock.NewFixed(now)))

	t.Run("ip collision across identities", func(t *testing.T) {
		if _, err := e.Book("alice", "alice-dev", "1.2.3.4", 1); err != nil {
			t.Fatalf("alice booking: %v", err)
		}
		if _, err := e.Book("bob", "bob-dev", "1.2.3.4", 1); err != domain.ErrSuspiciousActivity {
			t.Fatalf("expected ErrSuspiciousActivity for bob, got %v", err)
		}
	})

	t.Run("fan-out across successful bookings", func(t *testing.T) {
		// Each booking introduces a fresh device and a fresh IP, growing
		// carol's identifier set by two per accepted booking.
		if _, err := e.Book("carol", "carol-dev-1", "10.9.0.1", 1); err != nil {
			t.Fatalf("carol booking 1: %v", err)
		}
		if _, err := e.Book("carol", "carol-dev-2", "10.9.0.2", 1); err != nil {
			t.Fatalf("carol booking 2: %v", err)
		}
		// Set now holds 4 identifiers, above the threshold of 3.
		if _, err := e.Book("carol", "carol-dev-3", "10.9.0.3", 1); err != domain.ErrSuspiciousActivity {
			t.Fatalf("expected ErrSuspiciousActivity for carol, got %v", err)
		}
	})
}

func TestEngine_InvalidIdentity(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	e := newTestEngine(t, testConfig(),
		WithClock(clock.NewFixed(now)),
		WithIdentityVerifier(verifierFunc(func(id string) bool { return id != "banned" })),
	)

	if _, err := e.Book("banned", "dev", "ip", 1); err != domain.ErrInvalidIdentity {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
	if _, err := e.Book("ok", "dev", "ip", 1); err != nil {
		t.Fatalf("expected valid identity to book, got %v", err)
	}
}

func TestEngine_PanickingVerifierBecomesInternalError(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, testConfig(),
		WithIdentityVerifier(verifierFunc(func(string) bool { panic("oracle down") })),
	)

	left, err := e.Book("u1", "dev", "ip", 1)
	if err != domain.ErrInternal {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	if left != 10 {
		t.Fatalf("expected pool untouched, got %d", left)
	}
}

func TestEngine_Cancel(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	e := newTestEngine(t, testConfig(), WithClock(clock.NewFixed(now)))

	if _, err := e.Book("u1", "dev-1", "10.0.0.1", 4); err != nil {
		t.Fatalf("booking: %v", err)
	}

	e.Cancel("u1", 4)
	if e.Remaining() != 10 {
		t.Fatalf("expected inventory returned, got %d", e.Remaining())
	}
	if e.QuotaUsed("u1") != 0 {
		t.Fatalf("expected quota returned, got %d", e.QuotaUsed("u1"))
	}

	// The request still counts against the rate-limit window.
	if got := e.RemainingRequests("u1"); got != testConfig().MaxRequestsPerWindow-1 {
		t.Fatalf("expected rate-limit entry to survive cancel, got %d remaining", got)
	}
}

func TestEngine_ConcurrentSameIdentityQuota(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	cfg := testConfig()
	cfg.TotalCapacity = 1000
	cfg.MaxPerIdentity = 5
	cfg.MaxRequestsPerWindow = 1000
	e := newTestEngine(t, cfg, WithClock(clock.NewFixed(now)))

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Book("u1", "dev-1", "10.0.0.1", 2)
		}()
	}
	wg.Wait()

	if got := e.QuotaUsed("u1"); got > cfg.MaxPerIdentity {
		t.Fatalf("quota invariant violated: granted %d > max %d", got, cfg.MaxPerIdentity)
	}
}

func TestEngine_ConcurrentPoolConservation(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	cfg := testConfig()
	cfg.TotalCapacity = 50
	cfg.MaxPerIdentity = 5
	cfg.MaxRequestsPerWindow = 1000
	e := newTestEngine(t, cfg, WithClock(clock.NewFixed(now)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < 30; i++ {
		identity := fmt.Sprintf("user-%d", i)
		ip := fmt.Sprintf("10.1.0.%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				if _, err := e.Book(identity, "dev-"+identity, ip, 1); err == nil {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if got := e.Remaining(); got != cfg.TotalCapacity-granted {
		t.Fatalf("pool not conserved: remaining %d, granted %d", got, granted)
	}
	if e.Remaining() < 0 {
		t.Fatalf("pool negative: %d", e.Remaining())
	}
}

type verifierFunc func(string) bool

func (f verifierFunc) IsValidUser(identity string) bool { return f(identity) }

// anomalySetSize exposes the detector's set size to the snapshot test.
func (e *Engine) anomalySetSize(identity string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.anomaly.DistinctIdentifiers(identity)
}
