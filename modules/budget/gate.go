package budget

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"muse-stream-server/modules/common/logger"
)

// Clock supplies the current time. Injectable so the calendar-day reset is
// testable without waiting for midnight.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// UsageCounter tracks generation count and estimated spend for one calendar
// day. The Day field decides when the counter is stale.
type UsageCounter struct {
	Generations  int     `json:"generations"`
	CostEstimate float64 `json:"cost_estimate"`
	Day          string  `json:"day"`
}

// UsageStats is a read-only snapshot of the gate for status reporting.
type UsageStats struct {
	Generations          int     `json:"generations"`
	CostEstimate         float64 `json:"cost_estimate"`
	Remaining            float64 `json:"remaining"`
	GenerationsRemaining int     `json:"generations_remaining"`
	Day                  string  `json:"day"`
}

// Gate is the admission control for generation spend. A successful Admit
// reserves the baseline per-generation estimate under the same lock that
// checks the budget, so concurrent attempts can never all observe "under
// budget" before any of them records; overshoot stays bounded by one
// generation. Every successful Admit must be paired with exactly one
// Record (attempt produced an asset) or Release (attempt failed).
type Gate struct {
	mu          sync.Mutex
	dailyBudget float64
	perGenCost  float64
	counter     UsageCounter
	reserved    float64
	inFlight    int
	clock       Clock
	log         zerolog.Logger
}

// NewGate builds a gate for the given daily budget. perGenCost is the
// baseline per-generation estimate used for the remaining-generations stat.
func NewGate(dailyBudget, perGenCost float64) *Gate {
	return NewGateWithClock(dailyBudget, perGenCost, systemClock{})
}

// NewGateWithClock is NewGate with an injected clock for tests.
func NewGateWithClock(dailyBudget, perGenCost float64, clock Clock) *Gate {
	g := &Gate{
		dailyBudget: dailyBudget,
		perGenCost:  perGenCost,
		clock:       clock,
		log:         logger.WithComponent("budget"),
	}
	g.counter.Day = clock.Now().Format("2006-01-02")
	return g
}

// Admit reports whether a new generation attempt may start, reserving the
// per-generation estimate when it does. The stored counter is lazily reset
// when the calendar day has rolled over. Reserved but unrecorded spend
// counts against the budget, so N racing attempts admit at most as many
// generations as the budget covers.
func (g *Gate) Admit() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetIfNewDayLocked()
	if g.counter.CostEstimate+g.reserved >= g.dailyBudget {
		return false
	}
	g.reserved += g.perGenCost
	g.inFlight++
	return true
}

// Record consumes one reservation and adds one completed generation at the
// given cost estimate. Must be called once per completed generation, never
// per poll.
func (g *Gate) Record(costEstimate float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetIfNewDayLocked()
	g.releaseLocked()
	g.counter.Generations++
	g.counter.CostEstimate += costEstimate

	g.log.Info().
		Int("generations", g.counter.Generations).
		Float64("cost_estimate_usd", g.counter.CostEstimate).
		Float64("daily_budget_usd", g.dailyBudget).
		Msg("💰 Daily usage updated")
}

// Release returns an admitted attempt's reservation without recording any
// spend. Called when the attempt ends without producing an asset.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseLocked()
}

// releaseLocked drops one reservation. Tolerates Record calls that were
// never admitted (a day rollover clears reservations). Caller holds g.mu.
func (g *Gate) releaseLocked() {
	if g.inFlight == 0 {
		return
	}
	g.inFlight--
	g.reserved -= g.perGenCost
	if g.reserved < 0 {
		g.reserved = 0
	}
}

// Remaining returns the unspent portion of today's budget, net of
// reservations held by in-flight attempts.
func (g *Gate) Remaining() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetIfNewDayLocked()
	remaining := g.dailyBudget - g.counter.CostEstimate - g.reserved
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Stats returns a snapshot of today's usage.
func (g *Gate) Stats() UsageStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetIfNewDayLocked()
	remaining := g.dailyBudget - g.counter.CostEstimate - g.reserved
	if remaining < 0 {
		remaining = 0
	}
	left := 0
	if g.perGenCost > 0 {
		left = int(remaining / g.perGenCost)
	}
	return UsageStats{
		Generations:          g.counter.Generations,
		CostEstimate:         g.counter.CostEstimate,
		Remaining:            remaining,
		GenerationsRemaining: left,
		Day:                  g.counter.Day,
	}
}

// resetIfNewDayLocked zeroes the counter when the stored day no longer
// matches the clock. Caller must hold g.mu.
func (g *Gate) resetIfNewDayLocked() {
	today := g.clock.Now().Format("2006-01-02")
	if g.counter.Day == today {
		return
	}
	g.counter = UsageCounter{Day: today}
	g.reserved = 0
	g.inFlight = 0
	g.log.Info().Str("day", today).Msg("📊 Daily usage counter reset")
}
