package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"interviewlab/internal/cache"
	"interviewlab/internal/engagement"
	"interviewlab/internal/model"
	"interviewlab/internal/repository"
	"interviewlab/internal/vision"
)

// MetricsBroadcaster pushes events to live subscribers. The websocket hub
// implements it; the indirection keeps transport out of this package.
type MetricsBroadcaster interface {
	PublishMetrics(sessionID string, payload interface{})
	PublishSessionEnded(sessionID string)
}

// Params carries the caller-supplied configuration for a new session.
type Params struct {
	OwnerID     string `json:"ownerId"`
	Interviewer string `json:"interviewer"`
	Type        string `json:"type"`
	Difficulty  string `json:"difficulty"`
	TopicFocus  string `json:"topicFocus"`
	Purpose     string `json:"purpose"`
}

// Manager owns session state transitions and the live pipeline bound to each
// in-progress session: one aggregator and, when a frame source is attached,
// one sampler. Aggregators are created per session here; nothing is shared
// between sessions.
type Manager struct {
	log       *zap.Logger
	sessions  repository.SessionRepo
	metrics   repository.MetricsRepo
	liveCache cache.MetricsCache
	broadcast MetricsBroadcaster
	detector  vision.Detector
	interval  time.Duration

	mu   sync.Mutex
	live map[string]*liveSession
}

type liveSession struct {
	session  *model.InterviewSession
	agg      *engagement.Aggregator
	analyzer *vision.Analyzer
	sampler  *vision.Sampler // nil when frames are pushed by the client

	paused          bool
	currentQuestion string
	questionStarted time.Time
}

// NewManager creates a lifecycle manager.
func NewManager(
	sessions repository.SessionRepo,
	metrics repository.MetricsRepo,
	liveCache cache.MetricsCache,
	broadcast MetricsBroadcaster,
	detector vision.Detector,
	sampleInterval time.Duration,
	log *zap.Logger,
) *Manager {
	return &Manager{
		log:       log,
		sessions:  sessions,
		metrics:   metrics,
		liveCache: liveCache,
		broadcast: broadcast,
		detector:  detector,
		interval:  sampleInterval,
		live:      make(map[string]*liveSession),
	}
}

// Create persists a new session in the created state.
func (m *Manager) Create(ctx context.Context, p Params) (*model.InterviewSession, error) {
	if p.OwnerID == "" {
		return nil, fmt.Errorf("ownerId is required")
	}
	s := &model.InterviewSession{
		ID:          uuid.NewString(),
		OwnerID:     p.OwnerID,
		Status:      model.SessionCreated,
		StartedAt:   time.Now(),
		Interviewer: p.Interviewer,
		Type:        p.Type,
		Difficulty:  p.Difficulty,
		TopicFocus:  p.TopicFocus,
		Purpose:     p.Purpose,
	}
	if err := m.sessions.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	m.log.Info("session created", zap.String("sessionId", s.ID), zap.String("ownerId", s.OwnerID))
	return s, nil
}

// Start transitions created -> in_progress, builds the per-session pipeline,
// and begins collection. When source is non-nil a sampler loop drives the
// pipeline; otherwise frames arrive through IngestFrame.
func (m *Manager) Start(ctx context.Context, sessionID string, source vision.FrameSource) error {
	s, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("session %s not found", sessionID)
	}
	if s.Status != model.SessionCreated {
		return fmt.Errorf("cannot start session in state %q", s.Status)
	}

	m.mu.Lock()
	if _, exists := m.live[sessionID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("session %s already live", sessionID)
	}

	agg := engagement.NewAggregator(m.log)
	agg.StartCollection(sessionID)
	analyzer := vision.NewAnalyzer(m.detector, m.log)

	ls := &liveSession{session: s, agg: agg, analyzer: analyzer}
	if source != nil {
		ls.sampler = vision.NewSampler(source, analyzer, func(o vision.Outcome) {
			m.ingestOutcome(agg, o)
		}, m.interval, m.log)
	}
	m.live[sessionID] = ls
	m.mu.Unlock()

	if ls.sampler != nil {
		if err := ls.sampler.Start(ctx); err != nil {
			m.dropLive(sessionID)
			return fmt.Errorf("start sampler: %w", err)
		}
	}

	s.Status = model.SessionInProgress
	if err := m.sessions.Update(ctx, s); err != nil {
		// Local collection continues; the status write is retried on the
		// next transition.
		m.log.Error("failed to persist session start", zap.String("sessionId", sessionID), zap.Error(err))
	}
	m.log.Info("session started", zap.String("sessionId", sessionID))
	return nil
}

func (m *Manager) ingestOutcome(agg *engagement.Aggregator, o vision.Outcome) {
	if o.Detected {
		agg.Ingest(o.Signal)
		return
	}
	agg.RecordGap()
}

// IngestFrame analyzes a client-pushed frame for a live session.
func (m *Manager) IngestFrame(ctx context.Context, sessionID string, frame vision.Frame) error {
	ls, err := m.liveFor(sessionID)
	if err != nil {
		return err
	}
	outcome, err := ls.analyzer.Analyze(ctx, frame)
	if err != nil {
		return err
	}
	m.ingestOutcome(ls.agg, outcome)
	return nil
}

// Pause suspends response attribution without clearing history. Any open
// response window is closed and kept. A rejected transition leaves the live
// state untouched.
func (m *Manager) Pause(ctx context.Context, sessionID string) error {
	ls, err := m.liveFor(sessionID)
	if err != nil {
		return err
	}
	if err := m.transition(ctx, ls, model.SessionInProgress, model.SessionPaused); err != nil {
		return err
	}

	m.mu.Lock()
	ls.paused = true
	m.mu.Unlock()
	ls.agg.MarkResponseEnd()
	return nil
}

// Resume returns a paused session to in_progress. Only the current-question
// timing reference is reset; the session clock and history are untouched.
func (m *Manager) Resume(ctx context.Context, sessionID string) error {
	ls, err := m.liveFor(sessionID)
	if err != nil {
		return err
	}
	if err := m.transition(ctx, ls, model.SessionPaused, model.SessionInProgress); err != nil {
		return err
	}

	m.mu.Lock()
	ls.paused = false
	ls.questionStarted = time.Now()
	m.mu.Unlock()
	return nil
}

// BeginResponse opens a response window for the given question.
func (m *Manager) BeginResponse(sessionID, questionID string) error {
	ls, err := m.liveFor(sessionID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if ls.paused {
		m.mu.Unlock()
		return fmt.Errorf("session %s is paused", sessionID)
	}
	ls.currentQuestion = questionID
	ls.questionStarted = time.Now()
	m.mu.Unlock()

	ls.agg.MarkResponseStart()
	return nil
}

// EndResponse closes the current response window and appends the response,
// with its captured facial metrics, to the session.
func (m *Manager) EndResponse(ctx context.Context, sessionID, transcription string) error {
	ls, err := m.liveFor(sessionID)
	if err != nil {
		return err
	}
	window := ls.agg.MarkResponseEnd()
	if window == nil {
		return fmt.Errorf("no response in progress for session %s", sessionID)
	}
	m.appendResponse(ls, window, transcription)

	if err := m.sessions.Update(ctx, ls.session); err != nil {
		m.log.Error("failed to persist response", zap.String("sessionId", sessionID), zap.Error(err))
	}
	return nil
}

func (m *Manager) appendResponse(ls *liveSession, window *engagement.ResponseWindow, transcription string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls.session.Responses = append(ls.session.Responses, model.SessionResponse{
		QuestionID:    ls.currentQuestion,
		Transcription: transcription,
		Duration:      window.Duration(),
		Confidence:    window.MeanConfidence,
		FacialMetrics: window.Snapshots,
	})
	ls.currentQuestion = ""
}

// Complete finalizes the session: the sampler is torn down, any in-flight
// response is flushed into the response list, collection stops, and the
// final metrics are persisted. Persistence failures are logged and the
// session still completes locally — from the user's perspective completion
// always succeeds.
func (m *Manager) Complete(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	ls, err := m.liveFor(sessionID)
	if err != nil {
		return nil, err
	}
	return m.finalize(ctx, ls, model.SessionCompleted)
}

// Abandon terminally abandons a session from any non-terminal state,
// keeping whatever metrics were collected. A created session that never
// went live is abandoned directly in the store with neutral metrics.
func (m *Manager) Abandon(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	if ls, err := m.liveFor(sessionID); err == nil {
		if ls.session.Status == model.SessionCompleted {
			return nil, fmt.Errorf("cannot abandon a completed session")
		}
		return m.finalize(ctx, ls, model.SessionAbandoned)
	}

	s, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	if s.Status.Terminal() {
		return nil, fmt.Errorf("cannot abandon session in state %q", s.Status)
	}

	now := time.Now()
	s.Status = model.SessionAbandoned
	s.CompletedAt = &now
	if s.Metrics == nil {
		s.Metrics = model.NeutralMetrics(sessionID)
	}

	if err := m.metrics.Store(ctx, s.Metrics); err != nil {
		m.log.Error("failed to persist abandoned metrics, abandoning locally",
			zap.String("sessionId", sessionID), zap.Error(err))
	}
	if err := m.sessions.Update(ctx, s); err != nil {
		m.log.Error("failed to persist abandoned session, abandoning locally",
			zap.String("sessionId", sessionID), zap.Error(err))
	}
	m.broadcast.PublishSessionEnded(sessionID)

	m.log.Info("session abandoned before start", zap.String("sessionId", sessionID))
	return s, nil
}

func (m *Manager) finalize(ctx context.Context, ls *liveSession, status model.SessionStatus) (*model.InterviewSession, error) {
	sessionID := ls.session.ID

	if ls.sampler != nil {
		if err := ls.sampler.Stop(); err != nil {
			m.log.Warn("sampler teardown failed", zap.String("sessionId", sessionID), zap.Error(err))
		}
	}

	// Flush a pending in-flight response before freezing metrics.
	if window := ls.agg.MarkResponseEnd(); window != nil {
		m.appendResponse(ls, window, "")
	}

	final := ls.agg.StopCollection()
	if final == nil {
		final = model.NeutralMetrics(sessionID)
	}

	now := time.Now()
	m.mu.Lock()
	ls.session.Status = status
	ls.session.CompletedAt = &now
	ls.session.Metrics = final
	s := ls.session
	m.mu.Unlock()

	if err := m.metrics.Store(ctx, final); err != nil {
		m.log.Error("failed to persist final metrics, completing locally",
			zap.String("sessionId", sessionID), zap.Error(err))
	}
	if err := m.sessions.Update(ctx, s); err != nil {
		m.log.Error("failed to persist session completion, completing locally",
			zap.String("sessionId", sessionID), zap.Error(err))
	}
	if err := m.liveCache.Delete(ctx, sessionID); err != nil {
		m.log.Debug("live cache cleanup failed", zap.String("sessionId", sessionID), zap.Error(err))
	}

	m.broadcast.PublishSessionEnded(sessionID)
	m.dropLive(sessionID)

	m.log.Info("session finalized",
		zap.String("sessionId", sessionID),
		zap.String("status", string(status)))
	return s, nil
}

// Shutdown best-effort completes every live session so an exiting process
// never loses an interview. Sessions that cannot be persisted still finish
// locally with whatever metrics were collected.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.live))
	for id := range m.live {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if _, err := m.Complete(ctx, id); err != nil {
			m.log.Error("shutdown completion failed", zap.String("sessionId", id), zap.Error(err))
		}
	}
}

// LiveMetrics returns current metrics for a live session.
func (m *Manager) LiveMetrics(sessionID string) (model.RealTimeMetrics, bool) {
	ls, err := m.liveFor(sessionID)
	if err != nil {
		return model.RealTimeMetrics{}, false
	}
	return ls.agg.RealTime(), true
}

// SnapshotHistory returns the bounded per-frame snapshot history of a live
// session, oldest first.
func (m *Manager) SnapshotHistory(sessionID string) ([]model.MetricsSnapshot, bool) {
	ls, err := m.liveFor(sessionID)
	if err != nil {
		return nil, false
	}
	return ls.agg.Snapshots(), true
}

// LiveSessionIDs lists sessions with an active pipeline.
func (m *Manager) LiveSessionIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.live))
	for id := range m.live {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) liveFor(sessionID string) (*liveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls, ok := m.live[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s is not live", sessionID)
	}
	return ls, nil
}

func (m *Manager) dropLive(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, sessionID)
}

func (m *Manager) transition(ctx context.Context, ls *liveSession, from, to model.SessionStatus) error {
	m.mu.Lock()
	if ls.session.Status != from {
		status := ls.session.Status
		m.mu.Unlock()
		return fmt.Errorf("cannot move session from %q to %q", status, to)
	}
	ls.session.Status = to
	s := ls.session
	m.mu.Unlock()

	if err := m.sessions.Update(ctx, s); err != nil {
		m.log.Error("failed to persist session state", zap.String("sessionId", s.ID), zap.Error(err))
	}
	return nil
}
