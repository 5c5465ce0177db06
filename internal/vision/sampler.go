package vision

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultSampleInterval is the cadence at which frames are pulled from the
// source when no interval is configured.
const DefaultSampleInterval = time.Second

// FrameSource supplies raw frames, typically a camera or media stream. Close
// must release the underlying device handle.
type FrameSource interface {
	Grab(ctx context.Context) (Frame, error)
	Close() error
}

// SamplerStats is an operational snapshot, not a live view.
type SamplerStats struct {
	Ticks      uint64 // timer fires observed
	Skipped    uint64 // ticks dropped because an analyze call was in flight
	Undetected uint64 // analyzed frames with no face
	Errors     uint64 // grab or detector failures
}

// Sampler drives the analysis loop for one live session: a fixed-interval
// timer pulls a frame, analyzes it, and hands the outcome to the sink. Each
// tick performs at most one analyze call; if the previous call has not
// returned, the tick is skipped rather than overlapped.
//
// Goroutine topology: one loop goroutine spawned by Start, joined by Stop,
// plus at most one transient analyze goroutine at a time (enforced by the
// busy flag). Sink calls are therefore serialized; a sink that is only safe
// for serial use (the aggregator) needs no extra locking.
type Sampler struct {
	source   FrameSource
	analyzer *Analyzer
	sink     func(Outcome)
	interval time.Duration
	log      *zap.Logger

	ticks      atomic.Uint64
	skipped    atomic.Uint64
	undetected atomic.Uint64
	errors     atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewSampler wires a sampler over a source and analyzer. A non-positive
// interval falls back to DefaultSampleInterval.
func NewSampler(source FrameSource, analyzer *Analyzer, sink func(Outcome), interval time.Duration, log *zap.Logger) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{
		source:   source,
		analyzer: analyzer,
		sink:     sink,
		interval: interval,
		log:      log,
	}
}

// Start launches the sampling loop. It returns immediately; the loop runs
// until Stop is called or ctx is cancelled. Starting twice is an error.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("sampler already started")
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(loopCtx)
	return nil
}

// Stop cancels the loop, waits for it to exit, and closes the frame source.
// The source is released on every exit path exactly once; Stop is idempotent.
func (s *Sampler) Stop() error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	if err := s.source.Close(); err != nil {
		return fmt.Errorf("close frame source: %w", err)
	}
	return nil
}

// Stats returns a snapshot of loop counters.
func (s *Sampler) Stats() SamplerStats {
	return SamplerStats{
		Ticks:      s.ticks.Load(),
		Skipped:    s.skipped.Load(),
		Undetected: s.undetected.Load(),
		Errors:     s.errors.Load(),
	}
}

func (s *Sampler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// The analyze call is the only suspension point and may outlast a tick.
	// It runs off the loop goroutine so the ticker keeps firing, and the busy
	// flag turns overlapping ticks into counted skips.
	var busy atomic.Bool
	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ticks.Add(1)
			if !busy.CompareAndSwap(false, true) {
				s.skipped.Add(1)
				continue
			}
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				defer busy.Store(false)
				s.sampleOnce(ctx)
			}()
		}
	}
}

func (s *Sampler) sampleOnce(ctx context.Context) {
	frame, err := s.source.Grab(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.errors.Add(1)
			s.log.Warn("frame grab failed", zap.Error(err))
		}
		return
	}

	outcome, err := s.analyzer.Analyze(ctx, frame)
	if err != nil {
		s.errors.Add(1)
		s.log.Warn("frame analysis failed", zap.Error(err))
		return
	}
	if !outcome.Detected {
		s.undetected.Add(1)
	}
	s.sink(outcome)
}
