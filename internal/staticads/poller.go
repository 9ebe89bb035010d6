package staticads

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is the delay between status polls.
const DefaultPollInterval = 5 * time.Second

// TickFunc polls one job once and reports whether the job is finished (or no
// longer tracked), which ends the loop.
type TickFunc func(ctx context.Context, jobID string) (done bool)

// Poller runs at most one polling loop at a time. Each loop owns its context;
// starting a new loop cancels the previous one.
type Poller struct {
	interval time.Duration
	tick     TickFunc

	mu     sync.Mutex
	gen    uint64
	jobID  string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller returns a stopped poller.
func NewPoller(interval time.Duration, tick TickFunc) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{interval: interval, tick: tick}
}

// Start polls jobID immediately and then every interval until the tick reports
// done or Stop is called. An empty jobID is refused.
func (p *Poller) Start(jobID string) bool {
	if jobID == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.gen++
	p.jobID = jobID
	p.cancel = cancel
	p.wg.Add(1)
	go p.loop(ctx, cancel, p.gen, jobID)
	return true
}

// Stop cancels the current loop. Calling it again, or before Start, is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.jobID = ""
}

// Wait blocks until every loop started so far has returned. It must not be
// called from inside a tick.
func (p *Poller) Wait() {
	p.wg.Wait()
}

// Active returns the job id of the running loop, if any.
func (p *Poller) Active() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobID, p.cancel != nil
}

func (p *Poller) loop(ctx context.Context, cancel context.CancelFunc, gen uint64, jobID string) {
	defer p.wg.Done()
	defer p.release(gen, cancel)

	if p.tick(ctx, jobID) || ctx.Err() != nil {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.tick(ctx, jobID) || ctx.Err() != nil {
				return
			}
		}
	}
}

// release clears the loop's registration unless a newer loop replaced it.
func (p *Poller) release(gen uint64, cancel context.CancelFunc) {
	cancel()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen == gen && p.cancel != nil {
		p.cancel = nil
		p.jobID = ""
	}
}
