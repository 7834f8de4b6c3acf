package watch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeanalyst/src/model"
)

type scriptedChecker struct {
	verdicts []Verdict
	errs     []error
	calls    int

	// onCall runs before the verdict is returned, to race the registry.
	onCall func()
}

func (c *scriptedChecker) ConfirmEntry(ctx context.Context, w *model.Watch, currentPrice float64) (Verdict, error) {
	i := c.calls
	c.calls++

	if c.onCall != nil {
		c.onCall()
	}
	if i < len(c.errs) && c.errs[i] != nil {
		return Verdict{}, c.errs[i]
	}
	if i < len(c.verdicts) {
		return c.verdicts[i], nil
	}
	return Verdict{}, nil
}

func newTestCoordinator(t *testing.T, checker Checker, cooldown time.Duration) (*Coordinator, *Registry, *time.Time) {
	t.Helper()

	registry := NewRegistry()
	c := NewCoordinator(registry, checker, cooldown)

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clock := &now
	c.now = func() time.Time { return *clock }

	return c, registry, clock
}

func TestAttemptNotFound(t *testing.T) {
	c, _, _ := newTestCoordinator(t, &scriptedChecker{}, time.Minute)

	result := c.Attempt(context.Background(), "GBPJPY", "aaaa1111", 195.10)
	assert.Equal(t, OutcomeNotFound, result.Outcome)
}

func TestAttemptOutOfZoneNotCounted(t *testing.T) {
	checker := &scriptedChecker{}
	c, registry, clock := newTestCoordinator(t, checker, time.Minute)

	w := newWatch("aaaa1111", "GBPJPY", clock.Add(time.Hour))
	require.NoError(t, registry.Open(w))

	result := c.Attempt(context.Background(), "GBPJPY", "aaaa1111", 194.00)
	assert.Equal(t, OutcomeOutOfZone, result.Outcome)
	assert.Zero(t, w.AttemptsUsed)
	assert.Zero(t, checker.calls)
}

func TestAttemptCooldownNotCounted(t *testing.T) {
	checker := &scriptedChecker{verdicts: []Verdict{{Confirmed: false, Reasoning: "weak signal"}}}
	c, registry, clock := newTestCoordinator(t, checker, 5*time.Minute)

	w := newWatch("aaaa1111", "GBPJPY", clock.Add(4*time.Hour))
	require.NoError(t, registry.Open(w))

	// First attempt is counted.
	result := c.Attempt(context.Background(), "GBPJPY", "aaaa1111", 195.10)
	assert.Equal(t, OutcomeRejected, result.Outcome)
	assert.Equal(t, 1, w.AttemptsUsed)
	assert.Equal(t, 2, result.Remaining)

	// 30 seconds later the cooldown still holds; nothing is consumed.
	*clock = clock.Add(30 * time.Second)
	result = c.Attempt(context.Background(), "GBPJPY", "aaaa1111", 195.10)
	assert.Equal(t, OutcomeCooldown, result.Outcome)
	assert.Equal(t, 1, w.AttemptsUsed)
	assert.Equal(t, 1, checker.calls)

	// After the cooldown the next attempt counts again.
	*clock = clock.Add(5 * time.Minute)
	checker.verdicts = append(checker.verdicts, Verdict{Confirmed: false})
	result = c.Attempt(context.Background(), "GBPJPY", "aaaa1111", 195.10)
	assert.Equal(t, OutcomeRejected, result.Outcome)
	assert.Equal(t, 2, w.AttemptsUsed)
}

func TestAttemptConfirmedClearsWatch(t *testing.T) {
	checker := &scriptedChecker{verdicts: []Verdict{{Confirmed: true, Reasoning: "momentum aligned"}}}
	c, registry, clock := newTestCoordinator(t, checker, time.Minute)

	w := newWatch("aaaa1111", "GBPJPY", clock.Add(time.Hour))
	require.NoError(t, registry.Open(w))

	result := c.Attempt(context.Background(), "GBPJPY", "aaaa1111", 195.10)
	assert.Equal(t, OutcomeAccepted, result.Outcome)
	assert.Equal(t, "momentum aligned", result.Reasoning)
	assert.Equal(t, model.WatchStatusConfirmed, w.Status)
	assert.Nil(t, registry.Get("GBPJPY"))
}

func TestAttemptExhaustionExpiresWatch(t *testing.T) {
	checker := &scriptedChecker{verdicts: []Verdict{
		{Confirmed: false}, {Confirmed: false}, {Confirmed: false},
	}}
	c, registry, clock := newTestCoordinator(t, checker, time.Minute)

	w := newWatch("aaaa1111", "GBPJPY", clock.Add(4*time.Hour))
	require.NoError(t, registry.Open(w))

	for i := 0; i < 2; i++ {
		result := c.Attempt(context.Background(), "GBPJPY", "aaaa1111", 195.10)
		assert.Equal(t, OutcomeRejected, result.Outcome)
		*clock = clock.Add(6 * time.Minute)
	}

	result := c.Attempt(context.Background(), "GBPJPY", "aaaa1111", 195.10)
	assert.Equal(t, OutcomeExhausted, result.Outcome)
	assert.Equal(t, 3, w.AttemptsUsed)
	assert.Equal(t, model.WatchStatusExpired, w.Status)
	assert.Nil(t, registry.Get("GBPJPY"))
}

func TestAttemptCheckerErrorNotCounted(t *testing.T) {
	checker := &scriptedChecker{errs: []error{errors.New("connection refused")}}
	c, registry, clock := newTestCoordinator(t, checker, time.Minute)

	w := newWatch("aaaa1111", "GBPJPY", clock.Add(time.Hour))
	require.NoError(t, registry.Open(w))

	result := c.Attempt(context.Background(), "GBPJPY", "aaaa1111", 195.10)
	assert.Equal(t, OutcomeCheckFailed, result.Outcome)
	assert.Zero(t, w.AttemptsUsed)
	assert.Equal(t, 3, result.Remaining)
}

func TestAttemptExpiredBeforeCheck(t *testing.T) {
	checker := &scriptedChecker{}
	c, registry, clock := newTestCoordinator(t, checker, time.Minute)

	w := newWatch("aaaa1111", "GBPJPY", clock.Add(-time.Minute))
	require.NoError(t, registry.Open(w))

	result := c.Attempt(context.Background(), "GBPJPY", "aaaa1111", 195.10)
	assert.Equal(t, OutcomeExpired, result.Outcome)
	assert.Equal(t, model.WatchStatusExpired, w.Status)
	assert.Zero(t, checker.calls)
}

func TestAttemptExpiryWinsRaceWithSlowCheck(t *testing.T) {
	c, registry, clock := newTestCoordinator(t, nil, time.Minute)

	w := newWatch("aaaa1111", "GBPJPY", clock.Add(time.Hour))
	require.NoError(t, registry.Open(w))

	// The sweep fires while the check is in flight; the positive verdict
	// arriving afterwards must be discarded.
	checker := &scriptedChecker{
		verdicts: []Verdict{{Confirmed: true}},
		onCall: func() {
			registry.ExpireSweep(clock.Add(2 * time.Hour))
		},
	}
	c.checker = checker
	w.ExpiresAt = clock.Add(90 * time.Minute)

	result := c.Attempt(context.Background(), "GBPJPY", "aaaa1111", 195.10)
	assert.Equal(t, OutcomeExpired, result.Outcome)
	assert.NotEqual(t, model.WatchStatusConfirmed, w.Status)
}
