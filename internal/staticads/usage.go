package staticads

import (
	"context"
	"sync"
	"time"

	"adstudio/internal/domain"
	"adstudio/internal/infra"
)

// DefaultUsageDebounce is how long the gate waits after new results before
// re-reading usage, giving server-side accounting time to settle.
const DefaultUsageDebounce = 1500 * time.Millisecond

const usageRefreshTimeout = 10 * time.Second

// UsageChecker is the part of Backend the gate needs.
type UsageChecker interface {
	CheckUsage(ctx context.Context, category string) (domain.UsageCredit, error)
}

// UsageGate caches the usage credit for one category. It only drives UI
// gating; the create call remains the authority.
type UsageGate struct {
	checker  UsageChecker
	category string
	debounce time.Duration
	logger   *infra.Logger

	mu        sync.Mutex
	current   domain.UsageCredit
	seq       uint64
	committed uint64
	timer     *time.Timer
	stopped   bool
}

// NewUsageGate builds a gate. Until the first refresh it reports the fail-open value.
func NewUsageGate(checker UsageChecker, category string, debounce time.Duration, logger *infra.Logger) *UsageGate {
	if category == "" {
		category = domain.UsageCategoryStaticAds
	}
	if debounce <= 0 {
		debounce = DefaultUsageDebounce
	}
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &UsageGate{
		checker:  checker,
		category: category,
		debounce: debounce,
		logger:   logger,
		current:  domain.FailOpenUsage(category),
	}
}

// Refresh reads the usage counter. When the endpoint cannot be reached it
// fails open (allowed, unbounded). A response that arrives after a newer
// one has been committed is dropped.
func (g *UsageGate) Refresh(ctx context.Context) domain.UsageCredit {
	g.mu.Lock()
	g.seq++
	seq := g.seq
	g.mu.Unlock()

	credit, err := g.checker.CheckUsage(ctx, g.category)
	if err != nil {
		g.logger.Warn().Err(err).Str("category", g.category).Msg("staticads: usage check unavailable, allowing")
		credit = domain.FailOpenUsage(g.category)
	}
	if credit.Category == "" {
		credit.Category = g.category
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if seq < g.committed {
		return g.current
	}
	g.committed = seq
	g.current = credit
	return credit
}

// Current returns the cached credit without a network call.
func (g *UsageGate) Current() domain.UsageCredit {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// RefreshLater schedules a refresh after the debounce window. Calls made while
// a refresh is pending push it back.
func (g *UsageGate) RefreshLater() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(g.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), usageRefreshTimeout)
		defer cancel()
		g.Refresh(ctx)
	})
}

// Stop cancels any pending debounced refresh and disables new ones.
func (g *UsageGate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped = true
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}
