package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/taskcore/engine"
)

// StatsProvider is satisfied by *engine.TaskProcessor; kept as an interface
// so tests can poll a fake without spinning up real workers.
type StatsProvider interface {
	Stats() engine.ProcessorStats
}

// SnapshotPoller periodically exports one or more processors' Stats()
// snapshots into Prometheus gauges via a MetricsExporter. Like
// MetricsExporter, this is a thin collaborator: the core never imports it.
type SnapshotPoller struct {
	interval time.Duration
	exporter *MetricsExporter

	mu         sync.RWMutex
	processors map[string]StatsProvider

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a poller backed by exporter, polling every
// interval (defaulting to one second if non-positive).
func NewSnapshotPoller(exporter *MetricsExporter, interval time.Duration) *SnapshotPoller {
	if interval <= 0 {
		interval = time.Second
	}
	return &SnapshotPoller{
		interval:   interval,
		exporter:   exporter,
		processors: make(map[string]StatsProvider),
	}
}

// AddProcessor adds or replaces a processor snapshot provider by name.
func (p *SnapshotPoller) AddProcessor(name string, provider StatsProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "processor")
	p.mu.Lock()
	p.processors[name] = provider
	p.mu.Unlock()
}

// RemoveProcessor stops polling the named processor.
func (p *SnapshotPoller) RemoveProcessor(name string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	delete(p.processors, normalizeLabel(name, "processor"))
	p.mu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling and waits for the loop to exit; repeated
// calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for name, provider := range p.processors {
		p.exporter.RecordSnapshot(name, provider.Stats())
	}
}
