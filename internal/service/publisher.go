package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"interviewlab/internal/cache"
	"interviewlab/internal/session"
)

// DefaultPublishInterval is the cadence at which live metrics snapshots are
// pushed to subscribers and the cache.
const DefaultPublishInterval = 2 * time.Second

// Publisher periodically distributes aggregator snapshots for every live
// session: one push to the websocket hub and one write to the live-metrics
// cache per tick. Publishing never blocks on a consumer; the hub's bounded
// queues absorb slow readers.
type Publisher struct {
	manager   *session.Manager
	broadcast session.MetricsBroadcaster
	liveCache cache.MetricsCache
	interval  time.Duration
	log       *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewPublisher creates a publisher. A non-positive interval falls back to
// DefaultPublishInterval.
func NewPublisher(manager *session.Manager, broadcast session.MetricsBroadcaster, liveCache cache.MetricsCache, interval time.Duration, log *zap.Logger) *Publisher {
	if interval <= 0 {
		interval = DefaultPublishInterval
	}
	return &Publisher{
		manager:   manager,
		broadcast: broadcast,
		liveCache: liveCache,
		interval:  interval,
		log:       log,
	}
}

// Start launches the publish loop.
func (p *Publisher) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.run(loopCtx)
	p.log.Info("metrics publisher started", zap.Duration("interval", p.interval))
}

// Stop halts the loop and waits for it to exit.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

func (p *Publisher) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishAll(ctx)
		}
	}
}

func (p *Publisher) publishAll(ctx context.Context) {
	for _, id := range p.manager.LiveSessionIDs() {
		metrics, ok := p.manager.LiveMetrics(id)
		if !ok {
			continue
		}
		p.broadcast.PublishMetrics(id, metrics)
		if err := p.liveCache.SetLive(ctx, id, &metrics); err != nil {
			p.log.Debug("live cache write failed", zap.String("sessionId", id), zap.Error(err))
		}
	}
}
