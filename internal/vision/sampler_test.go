package vision

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"interviewlab/internal/model"
)

type fakeSource struct {
	grabs  atomic.Uint64
	closed atomic.Uint64
}

func (s *fakeSource) Grab(ctx context.Context) (Frame, error) {
	s.grabs.Add(1)
	return Frame{Timestamp: time.Now().UnixMilli()}, nil
}

func (s *fakeSource) Close() error {
	s.closed.Add(1)
	return nil
}

type slowDetector struct {
	delay time.Duration
}

func (d *slowDetector) Detect(ctx context.Context, frame Frame) (Observation, bool, error) {
	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
	}
	return Observation{
		LeftEye:  openEye(0, 0),
		RightEye: openEye(10, 0),
		Emotions: model.EmotionVector{model.EmotionNeutral: 0.8},
	}, true, nil
}

func TestSampler_DeliversOutcomes(t *testing.T) {
	source := &fakeSource{}
	analyzer := NewAnalyzer(&slowDetector{}, zap.NewNop())

	var delivered atomic.Uint64
	s := NewSampler(source, analyzer, func(o Outcome) {
		if o.Detected {
			delivered.Add(1)
		}
	}, 5*time.Millisecond, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Greater(t, delivered.Load(), uint64(0))
	assert.Greater(t, s.Stats().Ticks, uint64(0))
	assert.Equal(t, uint64(1), source.closed.Load())
}

func TestSampler_SkipsTicksWhileBusy(t *testing.T) {
	source := &fakeSource{}
	// One analysis spans many ticks, so most ticks must be skipped rather
	// than queued behind it.
	analyzer := NewAnalyzer(&slowDetector{delay: 40 * time.Millisecond}, zap.NewNop())

	s := NewSampler(source, analyzer, func(Outcome) {}, 5*time.Millisecond, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, s.Stop())

	stats := s.Stats()
	assert.Greater(t, stats.Skipped, uint64(0))
	assert.Less(t, source.grabs.Load(), stats.Ticks, "at most one grab per completed analysis")
}

func TestSampler_StopIsIdempotent(t *testing.T) {
	source := &fakeSource{}
	analyzer := NewAnalyzer(&slowDetector{}, zap.NewNop())
	s := NewSampler(source, analyzer, func(Outcome) {}, 5*time.Millisecond, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	assert.Equal(t, uint64(1), source.closed.Load(), "source must close exactly once")
}

func TestSampler_StopBeforeStart(t *testing.T) {
	source := &fakeSource{}
	analyzer := NewAnalyzer(&slowDetector{}, zap.NewNop())
	s := NewSampler(source, analyzer, func(Outcome) {}, 0, zap.NewNop())

	require.NoError(t, s.Stop())
	assert.Zero(t, source.closed.Load())
}

func TestSampler_DoubleStartFails(t *testing.T) {
	source := &fakeSource{}
	analyzer := NewAnalyzer(&slowDetector{}, zap.NewNop())
	s := NewSampler(source, analyzer, func(Outcome) {}, 5*time.Millisecond, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
}
