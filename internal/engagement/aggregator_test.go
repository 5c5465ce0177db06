package engagement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"interviewlab/internal/model"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	return NewAggregator(zap.NewNop())
}

func signal(eyeContact bool, confidence float64, emotion model.Emotion) model.FacialSignal {
	return model.FacialSignal{
		Emotions:   model.EmotionVector{emotion: confidence},
		EyeContact: eyeContact,
		Confidence: confidence,
		Timestamp:  1700000000000,
	}
}

func TestAggregator_EmptyHistoryRealTime(t *testing.T) {
	a := newTestAggregator(t)

	rt := a.RealTime()

	assert.Equal(t, model.EmotionNeutral, rt.CurrentMood)
	assert.Zero(t, rt.EyeContactPercentage)
	assert.Zero(t, rt.EngagementScore)
	assert.Zero(t, rt.ResponseQuality)
	assert.Zero(t, rt.AverageConfidence)
	assert.Zero(t, rt.TotalDataPoints)
}

func TestAggregator_EyeContactPercentage(t *testing.T) {
	a := newTestAggregator(t)
	a.StartCollection("sess-1")

	for i := 0; i < 10; i++ {
		a.Ingest(signal(i < 7, 0.5, model.EmotionNeutral))
	}

	rt := a.RealTime()
	assert.InDelta(t, 70.0, rt.EyeContactPercentage, 1e-9)
	assert.Equal(t, 10, rt.TotalDataPoints)

	final := a.StopCollection()
	assert.InDelta(t, 70.0, final.EyeContactPercentage, 1e-9)
}

func TestAggregator_IngestBeforeStartIsNoop(t *testing.T) {
	a := newTestAggregator(t)

	a.Ingest(signal(true, 0.9, model.EmotionHappy))
	a.RecordGap()

	assert.Zero(t, a.RealTime().TotalDataPoints)
	assert.Zero(t, a.Gaps())
}

func TestAggregator_GapsExcludedFromScoring(t *testing.T) {
	a := newTestAggregator(t)
	a.StartCollection("sess-1")

	a.Ingest(signal(true, 0.8, model.EmotionHappy))
	a.Ingest(signal(true, 0.8, model.EmotionHappy))
	a.RecordGap()
	a.RecordGap()

	rt := a.RealTime()
	assert.Equal(t, 2, rt.TotalDataPoints, "gaps are not data points")
	assert.InDelta(t, 100.0, rt.EyeContactPercentage, 1e-9, "gaps must not dilute eye contact")
	assert.Equal(t, 2, a.Gaps())
}

func TestAggregator_CurrentMoodTracksLatestSignal(t *testing.T) {
	a := newTestAggregator(t)
	a.StartCollection("sess-1")

	a.Ingest(signal(true, 0.9, model.EmotionHappy))
	a.Ingest(signal(true, 0.6, model.EmotionSad))

	rt := a.RealTime()
	assert.Equal(t, model.EmotionSad, rt.CurrentMood)
	assert.InDelta(t, 0.6, rt.MoodConfidence, 1e-9)
}

func TestAggregator_ScoresStayInRange(t *testing.T) {
	a := newTestAggregator(t)
	a.StartCollection("sess-1")

	// Alternate extremes to maximize variance.
	for i := 0; i < 50; i++ {
		conf := 0.0
		if i%2 == 0 {
			conf = 1.0
		}
		a.Ingest(signal(i%3 == 0, conf, model.EmotionAngry))
	}

	rt := a.RealTime()
	assert.GreaterOrEqual(t, rt.EngagementScore, 0.0)
	assert.LessOrEqual(t, rt.EngagementScore, 100.0)
	assert.GreaterOrEqual(t, rt.ResponseQuality, 0.0)
	assert.LessOrEqual(t, rt.ResponseQuality, 1.0)

	final := a.StopCollection()
	assert.GreaterOrEqual(t, final.OverallEngagement, 0.0)
	assert.LessOrEqual(t, final.OverallEngagement, 1.0)
	assert.GreaterOrEqual(t, final.ResponseQuality, 0.0)
	assert.LessOrEqual(t, final.ResponseQuality, 1.0)
}

func TestAggregator_StopCollectionIdempotent(t *testing.T) {
	a := newTestAggregator(t)
	a.StartCollection("sess-1")
	a.Ingest(signal(true, 0.7, model.EmotionNeutral))

	first := a.StopCollection()
	second := a.StopCollection()

	assert.Same(t, first, second, "repeated stops must return the frozen result")
	assert.False(t, a.Collecting())
}

func TestAggregator_StopWithoutStart(t *testing.T) {
	a := newTestAggregator(t)

	final := a.StopCollection()

	require.NotNil(t, final)
	assert.Zero(t, final.EyeContactPercentage)
	assert.Empty(t, final.MoodTimeline)
}

func TestAggregator_IngestAfterStopIsNoop(t *testing.T) {
	a := newTestAggregator(t)
	a.StartCollection("sess-1")
	a.Ingest(signal(true, 0.7, model.EmotionNeutral))
	a.StopCollection()

	a.Ingest(signal(true, 0.7, model.EmotionNeutral))

	assert.Equal(t, 1, a.RealTime().TotalDataPoints)
}

func TestAggregator_ResponseWindows(t *testing.T) {
	a := newTestAggregator(t)
	a.StartCollection("sess-1")

	a.Ingest(signal(true, 0.8, model.EmotionHappy))

	a.MarkResponseStart()
	assert.True(t, a.ResponseInProgress())
	a.Ingest(signal(true, 0.6, model.EmotionNeutral))
	a.Ingest(signal(false, 0.4, model.EmotionNeutral))
	w := a.MarkResponseEnd()

	require.NotNil(t, w)
	assert.Len(t, w.Snapshots, 2, "only snapshots inside the window belong to it")
	assert.False(t, a.ResponseInProgress())
	for _, s := range w.Snapshots {
		assert.True(t, s.ResponseInProgress)
	}
}

func TestAggregator_MarkResponseEndWithoutStart(t *testing.T) {
	a := newTestAggregator(t)
	a.StartCollection("sess-1")

	assert.Nil(t, a.MarkResponseEnd())
}

func TestAggregator_StopClosesOpenWindow(t *testing.T) {
	a := newTestAggregator(t)
	a.StartCollection("sess-1")

	a.MarkResponseStart()
	a.Ingest(signal(true, 0.7, model.EmotionNeutral))
	a.StopCollection()

	assert.False(t, a.ResponseInProgress())
}

func TestAggregator_MoodTimeline(t *testing.T) {
	a := newTestAggregator(t)
	a.StartCollection("sess-1")

	a.Ingest(signal(true, 0.9, model.EmotionHappy))
	a.Ingest(signal(true, 0.8, model.EmotionSurprised))

	final := a.StopCollection()
	require.Len(t, final.MoodTimeline, 2)
	assert.Equal(t, model.EmotionHappy, final.MoodTimeline[0].DominantEmotion)
	assert.Equal(t, model.EmotionSurprised, final.MoodTimeline[1].DominantEmotion)
}

func TestAggregator_FinalMetricsCoverFullLifetime(t *testing.T) {
	a := newTestAggregator(t)
	a.StartCollection("sess-1")

	// Push past the history cap: every signal has eye contact except the
	// first 200, which only survive in the lifetime accumulators.
	total := HistoryCap + 200
	for i := 0; i < total; i++ {
		a.Ingest(signal(i >= 200, 0.5, model.EmotionNeutral))
	}

	rt := a.RealTime()
	assert.InDelta(t, 100.0, rt.EyeContactPercentage, 1e-9, "ring window holds only eye-contact signals")

	final := a.StopCollection()
	want := 100 * float64(total-200) / float64(total)
	assert.InDelta(t, want, final.EyeContactPercentage, 1e-9, "final figure must span the whole run")
}

func TestAggregator_ResponseConsistencyFallback(t *testing.T) {
	a := newTestAggregator(t)
	a.StartCollection("sess-1")

	// Single window: consistency falls back to emotional stability. Constant
	// confidence means zero variance, so engagement reduces to
	// (eyeContact + stability + stability) / 3 with stability = 1.
	for i := 0; i < 10; i++ {
		a.Ingest(signal(true, 0.5, model.EmotionNeutral))
	}
	a.MarkResponseStart()
	a.Ingest(signal(true, 0.5, model.EmotionNeutral))
	a.MarkResponseEnd()

	final := a.StopCollection()
	assert.InDelta(t, 1.0, final.OverallEngagement, 1e-9)
}

func TestAggregator_StartCollectionResetsHistory(t *testing.T) {
	a := newTestAggregator(t)
	a.StartCollection("sess-1")
	a.Ingest(signal(true, 0.9, model.EmotionHappy))
	a.StopCollection()

	a.StartCollection("sess-2")

	assert.Equal(t, "sess-2", a.SessionID())
	assert.True(t, a.Collecting())
	assert.Zero(t, a.RealTime().TotalDataPoints)
}
