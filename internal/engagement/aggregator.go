package engagement

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"interviewlab/internal/model"
)

// HistoryCap bounds the rolling signal and snapshot histories per session.
const HistoryCap = 1000

// ResponseWindow summarizes one completed response: the span between a
// MarkResponseStart/MarkResponseEnd pair and the snapshots captured inside it.
type ResponseWindow struct {
	StartedAt      time.Time
	EndedAt        time.Time
	Snapshots      []model.MetricsSnapshot
	MeanEngagement float64
	MeanConfidence float64
}

// Duration returns the window length in seconds.
func (w ResponseWindow) Duration() float64 {
	return w.EndedAt.Sub(w.StartedAt).Seconds()
}

// Aggregator turns an ordered stream of facial signals into live and final
// engagement metrics for exactly one session at a time. Instances are
// factory-created per session and owned by the lifecycle manager; there is
// no shared global aggregator.
//
// Ingest calls must arrive from a single producer (the sampler serializes
// them); the internal mutex exists so RealTime and StopCollection can be
// called from other goroutines, not to permit concurrent ingestion.
type Aggregator struct {
	log *zap.Logger

	mu         sync.Mutex
	sessionID  string
	collecting bool
	startedAt  time.Time
	stoppedAt  time.Time

	signals   *Ring[model.FacialSignal]
	snapshots *Ring[model.MetricsSnapshot]

	// Lifetime accumulators. The ring bounds memory, but final metrics are
	// defined over the full lifetime history, so these never reset mid-session.
	totalSignals    int
	eyeContactCount int
	confidenceSum   float64
	confidenceSqSum float64
	gapCount        int // undetected ticks; advance duration, never scored

	responseActive  bool
	responseStarted time.Time
	windowSnapshots []model.MetricsSnapshot
	windows         []ResponseWindow

	final *model.InterviewMetrics
}

// NewAggregator creates an idle aggregator. StartCollection must be called
// before any ingestion.
func NewAggregator(log *zap.Logger) *Aggregator {
	return &Aggregator{
		log:       log,
		signals:   NewRing[model.FacialSignal](HistoryCap),
		snapshots: NewRing[model.MetricsSnapshot](HistoryCap),
	}
}

// StartCollection resets all history and begins collecting for the session.
func (a *Aggregator) StartCollection(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
	a.sessionID = sessionID
	a.collecting = true
	a.startedAt = time.Now()
	a.log.Info("signal collection started", zap.String("sessionId", sessionID))
}

// Ingest appends one signal to the bounded history and derives a snapshot.
// It is a no-op when not collecting.
func (a *Aggregator) Ingest(sig model.FacialSignal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.collecting {
		return
	}

	a.signals.Push(sig)
	a.totalSignals++
	if sig.EyeContact {
		a.eyeContactCount++
	}
	a.confidenceSum += sig.Confidence
	a.confidenceSqSum += sig.Confidence * sig.Confidence

	snap := model.MetricsSnapshot{
		Timestamp:          sig.Timestamp,
		EyeContact:         sig.EyeContact,
		EngagementLevel:    engagementLevel(sig),
		ResponseInProgress: a.responseActive,
	}
	snap.DominantEmotion, snap.EmotionConfidence = sig.Emotions.Dominant()
	a.snapshots.Push(snap)

	if a.responseActive {
		a.windowSnapshots = append(a.windowSnapshots, snap)
	}
}

// RecordGap notes an undetected tick. Gaps advance session duration but are
// excluded from eye-contact and engagement math; fabricating a plausible
// signal here would corrupt the metrics the pipeline exists to measure.
func (a *Aggregator) RecordGap() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.collecting {
		return
	}
	a.gapCount++
}

// MarkResponseStart opens a response window. Subsequent snapshots are
// flagged ResponseInProgress until MarkResponseEnd.
func (a *Aggregator) MarkResponseStart() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.responseActive {
		return
	}
	a.responseActive = true
	a.responseStarted = time.Now()
	a.windowSnapshots = nil
}

// MarkResponseEnd closes the current response window and returns it, or nil
// when no window is open.
func (a *Aggregator) MarkResponseEnd() *ResponseWindow {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.endResponseLocked()
}

func (a *Aggregator) endResponseLocked() *ResponseWindow {
	if !a.responseActive {
		return nil
	}
	a.responseActive = false

	w := ResponseWindow{
		StartedAt: a.responseStarted,
		EndedAt:   time.Now(),
		Snapshots: a.windowSnapshots,
	}
	for _, s := range w.Snapshots {
		w.MeanEngagement += s.EngagementLevel
		w.MeanConfidence += s.EmotionConfidence
	}
	if n := float64(len(w.Snapshots)); n > 0 {
		w.MeanEngagement /= n
		w.MeanConfidence /= n
	}
	a.windowSnapshots = nil
	a.windows = append(a.windows, w)
	return &w
}

// ResponseInProgress reports whether a response window is currently open.
func (a *Aggregator) ResponseInProgress() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.responseActive
}

// RealTime computes live metrics as a pure function of the current history
// window. With an empty history every numeric field is zero and the mood is
// neutral; it never errors.
func (a *Aggregator) RealTime() model.RealTimeMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	rt := model.RealTimeMetrics{CurrentMood: model.EmotionNeutral}
	rt.SessionDuration = a.durationMSLocked()

	sigs := a.signals.Items()
	n := len(sigs)
	rt.TotalDataPoints = n
	if n == 0 {
		return rt
	}

	eyeContact := 0
	var confSum, confSqSum float64
	for _, s := range sigs {
		if s.EyeContact {
			eyeContact++
		}
		confSum += s.Confidence
		confSqSum += s.Confidence * s.Confidence
	}

	ecFrac := float64(eyeContact) / float64(n)
	avgConf := confSum / float64(n)
	stability := stabilityFrom(confSum, confSqSum, n)

	rt.EyeContactPercentage = 100 * ecFrac
	rt.AverageConfidence = avgConf
	rt.EngagementScore = 100 * (0.4*ecFrac + 0.4*avgConf + 0.2*stability)
	rt.ResponseQuality = 0.5*avgConf + 0.3*ecFrac + 0.2*stability

	latest := sigs[n-1]
	rt.CurrentMood, rt.MoodConfidence = latest.Emotions.Dominant()
	return rt
}

// StopCollection freezes collection and returns the final metrics. Any open
// response window is closed first. Calling it again returns the same frozen
// result; it is safe to call without a prior StartCollection.
func (a *Aggregator) StopCollection() *model.InterviewMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.final != nil {
		return a.final
	}

	a.endResponseLocked()
	a.collecting = false
	a.stoppedAt = time.Now()
	a.final = a.finalizeLocked()
	a.log.Info("signal collection stopped",
		zap.String("sessionId", a.sessionID),
		zap.Int("signals", a.totalSignals),
		zap.Int("gaps", a.gapCount))
	return a.final
}

func (a *Aggregator) finalizeLocked() *model.InterviewMetrics {
	m := model.NeutralMetrics(a.sessionID)
	n := a.totalSignals
	if n == 0 {
		return m
	}

	// Final figures use the lifetime accumulators, not the ring window, so a
	// session longer than the history cap is still scored over its whole run.
	ecFrac := float64(a.eyeContactCount) / float64(n)
	avgConf := a.confidenceSum / float64(n)
	stability := stabilityFrom(a.confidenceSum, a.confidenceSqSum, n)
	consistency := a.responseConsistencyLocked(stability)

	m.EyeContactPercentage = 100 * ecFrac
	m.AverageConfidence = avgConf
	m.ResponseQuality = 0.5*avgConf + 0.3*ecFrac + 0.2*stability
	m.OverallEngagement = ((100*ecFrac + stability*100 + consistency*100) / 3) / 100
	m.MoodTimeline = a.moodTimelineLocked()
	return m
}

// responseConsistencyLocked measures cross-response variability: how evenly
// engaged the candidate stayed across answers. With fewer than two completed
// windows there is nothing to compare, so it falls back to emotional
// stability, matching the legacy single-signal behavior for short sessions.
func (a *Aggregator) responseConsistencyLocked(stability float64) float64 {
	if len(a.windows) < 2 {
		return stability
	}
	var sum, sqSum float64
	for _, w := range a.windows {
		sum += w.MeanEngagement
		sqSum += w.MeanEngagement * w.MeanEngagement
	}
	n := float64(len(a.windows))
	mean := sum / n
	variance := sqSum/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return clamp01(1 - 2*math.Sqrt(variance))
}

func (a *Aggregator) moodTimelineLocked() []model.MoodDataPoint {
	timeline := make([]model.MoodDataPoint, 0, a.signals.Len())
	a.signals.Do(func(sig model.FacialSignal) {
		point := model.MoodDataPoint{
			Timestamp: sig.Timestamp,
			Emotions:  sig.Emotions,
		}
		point.DominantEmotion, point.Confidence = sig.Emotions.Dominant()
		timeline = append(timeline, point)
	})
	return timeline
}

// Reset clears all state without requiring a prior stop.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
}

func (a *Aggregator) resetLocked() {
	a.sessionID = ""
	a.collecting = false
	a.startedAt = time.Time{}
	a.stoppedAt = time.Time{}
	a.signals.Reset()
	a.snapshots.Reset()
	a.totalSignals = 0
	a.eyeContactCount = 0
	a.confidenceSum = 0
	a.confidenceSqSum = 0
	a.gapCount = 0
	a.responseActive = false
	a.windowSnapshots = nil
	a.windows = nil
	a.final = nil
}

// SessionID returns the session this aggregator is bound to.
func (a *Aggregator) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// Collecting reports whether ingestion is active.
func (a *Aggregator) Collecting() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.collecting
}

// Gaps returns the number of undetected ticks recorded so far.
func (a *Aggregator) Gaps() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gapCount
}

// Snapshots returns the current snapshot history, oldest first.
func (a *Aggregator) Snapshots() []model.MetricsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshots.Items()
}

func (a *Aggregator) durationMSLocked() int64 {
	if a.startedAt.IsZero() {
		return 0
	}
	end := time.Now()
	if !a.stoppedAt.IsZero() {
		end = a.stoppedAt
	}
	return end.Sub(a.startedAt).Milliseconds()
}

// engagementLevel scores one signal in [0,1]: eye contact and confidence
// carry 40% each, net positive affect the remaining 20%. Positive emotions
// are happy and surprised; negative are sad, angry and fearful.
func engagementLevel(sig model.FacialSignal) float64 {
	eye := 0.0
	if sig.EyeContact {
		eye = 1.0
	}
	positive := sig.Emotions[model.EmotionHappy] + sig.Emotions[model.EmotionSurprised]
	negative := sig.Emotions[model.EmotionSad] + sig.Emotions[model.EmotionAngry] + sig.Emotions[model.EmotionFearful]
	affect := positive - negative
	if affect < 0 {
		affect = 0
	}
	return clamp01(0.4*eye + 0.4*sig.Confidence + 0.2*affect)
}

// stabilityFrom computes emotional stability as max(0, 1-2*variance) over
// the confidence series. This is a proxy metric, not literal behavioral
// stability.
func stabilityFrom(sum, sqSum float64, n int) float64 {
	mean := sum / float64(n)
	variance := sqSum/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return clamp01(1 - 2*variance)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
