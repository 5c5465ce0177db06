package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"interviewlab/internal/model"
	"interviewlab/internal/vision"
)

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.InterviewSession
	failAll  bool
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.InterviewSession)}
}

func (r *memSessionRepo) Create(ctx context.Context, s *model.InterviewSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errors.New("store unavailable")
	}
	copied := *s
	r.sessions[s.ID] = &copied
	return nil
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*model.InterviewSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (r *memSessionRepo) Update(ctx context.Context, s *model.InterviewSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errors.New("store unavailable")
	}
	copied := *s
	r.sessions[s.ID] = &copied
	return nil
}

func (r *memSessionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *memSessionRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.InterviewSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.InterviewSession
	for _, s := range r.sessions {
		if s.OwnerID == ownerID {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memSessionRepo) ListOwners(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (r *memSessionRepo) MarkArchived(ctx context.Context, id string, at time.Time) error {
	return nil
}

type memMetricsRepo struct {
	mu      sync.Mutex
	stored  map[string]*model.InterviewMetrics
	failAll bool
}

func newMemMetricsRepo() *memMetricsRepo {
	return &memMetricsRepo{stored: make(map[string]*model.InterviewMetrics)}
}

func (r *memMetricsRepo) Store(ctx context.Context, m *model.InterviewMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errors.New("store unavailable")
	}
	r.stored[m.SessionID] = m
	return nil
}

func (r *memMetricsRepo) Get(ctx context.Context, sessionID string) (*model.InterviewMetrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stored[sessionID], nil
}

func (r *memMetricsRepo) Update(ctx context.Context, sessionID string, u *model.MetricsUpdate) error {
	return nil
}

func (r *memMetricsRepo) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stored, sessionID)
	return nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]*model.RealTimeMetrics
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*model.RealTimeMetrics)}
}

func (c *memCache) SetLive(ctx context.Context, sessionID string, m *model.RealTimeMetrics) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = m
	return nil
}

func (c *memCache) GetLive(ctx context.Context, sessionID string) (*model.RealTimeMetrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[sessionID], nil
}

func (c *memCache) Delete(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
	return nil
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	metrics []string
	ended   []string
}

func (b *recordingBroadcaster) PublishMetrics(sessionID string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics = append(b.metrics, sessionID)
}

func (b *recordingBroadcaster) PublishSessionEnded(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended = append(b.ended, sessionID)
}

func (b *recordingBroadcaster) endedSessions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.ended...)
}

type faceDetector struct{}

func (faceDetector) Detect(ctx context.Context, frame vision.Frame) (vision.Observation, bool, error) {
	eye := func(cx float64) []vision.Point {
		return []vision.Point{
			{X: cx - 2, Y: 0}, {X: cx - 1, Y: 1}, {X: cx + 1, Y: 1},
			{X: cx + 2, Y: 0}, {X: cx + 1, Y: -1}, {X: cx - 1, Y: -1},
		}
	}
	return vision.Observation{
		LeftEye:  eye(0),
		RightEye: eye(10),
		Nose:     []vision.Point{{X: 5, Y: 2}},
		Mouth:    []vision.Point{{X: 5, Y: 5}},
		Emotions: model.EmotionVector{model.EmotionNeutral: 0.8},
	}, true, nil
}

type blindDetector struct{}

func (blindDetector) Detect(ctx context.Context, frame vision.Frame) (vision.Observation, bool, error) {
	return vision.Observation{}, false, nil
}

type testEnv struct {
	manager   *Manager
	sessions  *memSessionRepo
	metrics   *memMetricsRepo
	cache     *memCache
	broadcast *recordingBroadcaster
}

func newTestEnv(t *testing.T, detector vision.Detector) *testEnv {
	t.Helper()
	env := &testEnv{
		sessions:  newMemSessionRepo(),
		metrics:   newMemMetricsRepo(),
		cache:     newMemCache(),
		broadcast: &recordingBroadcaster{},
	}
	env.manager = NewManager(env.sessions, env.metrics, env.cache, env.broadcast, detector, time.Second, zap.NewNop())
	return env
}

func startedSession(t *testing.T, env *testEnv) *model.InterviewSession {
	t.Helper()
	ctx := context.Background()
	s, err := env.manager.Create(ctx, Params{OwnerID: "owner-1", Interviewer: "Alex", Type: "technical"})
	require.NoError(t, err)
	require.NoError(t, env.manager.Start(ctx, s.ID, nil))
	return s
}

func TestManager_CreateRequiresOwner(t *testing.T) {
	env := newTestEnv(t, faceDetector{})

	_, err := env.manager.Create(context.Background(), Params{})
	assert.Error(t, err)
}

func TestManager_StartUnknownSession(t *testing.T) {
	env := newTestEnv(t, faceDetector{})

	err := env.manager.Start(context.Background(), "missing", nil)
	assert.Error(t, err)
}

func TestManager_StartTwiceFails(t *testing.T) {
	env := newTestEnv(t, faceDetector{})
	s := startedSession(t, env)

	err := env.manager.Start(context.Background(), s.ID, nil)
	assert.Error(t, err, "in_progress is not a startable state")
}

func TestManager_FrameIngestionFeedsLiveMetrics(t *testing.T) {
	env := newTestEnv(t, faceDetector{})
	s := startedSession(t, env)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, env.manager.IngestFrame(ctx, s.ID, vision.Frame{Timestamp: int64(i)}))
	}

	rt, ok := env.manager.LiveMetrics(s.ID)
	require.True(t, ok)
	assert.Equal(t, 5, rt.TotalDataPoints)
	assert.InDelta(t, 100.0, rt.EyeContactPercentage, 1e-9)
}

func TestManager_UndetectedFramesBecomeGaps(t *testing.T) {
	env := newTestEnv(t, blindDetector{})
	s := startedSession(t, env)
	ctx := context.Background()

	require.NoError(t, env.manager.IngestFrame(ctx, s.ID, vision.Frame{}))
	require.NoError(t, env.manager.IngestFrame(ctx, s.ID, vision.Frame{}))

	rt, ok := env.manager.LiveMetrics(s.ID)
	require.True(t, ok)
	assert.Zero(t, rt.TotalDataPoints, "gaps are never counted as observations")
}

func TestManager_PauseResume(t *testing.T) {
	env := newTestEnv(t, faceDetector{})
	s := startedSession(t, env)
	ctx := context.Background()

	require.NoError(t, env.manager.Pause(ctx, s.ID))

	stored, err := env.sessions.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionPaused, stored.Status)

	assert.Error(t, env.manager.BeginResponse(s.ID, "q1"), "paused sessions take no responses")
	assert.Error(t, env.manager.Pause(ctx, s.ID), "pause is not re-entrant")

	require.NoError(t, env.manager.Resume(ctx, s.ID))
	stored, err = env.sessions.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionInProgress, stored.Status)
}

func TestManager_ResponseRoundTrip(t *testing.T) {
	env := newTestEnv(t, faceDetector{})
	s := startedSession(t, env)
	ctx := context.Background()

	require.NoError(t, env.manager.BeginResponse(s.ID, "q1"))
	require.NoError(t, env.manager.IngestFrame(ctx, s.ID, vision.Frame{Timestamp: 1}))
	require.NoError(t, env.manager.IngestFrame(ctx, s.ID, vision.Frame{Timestamp: 2}))
	require.NoError(t, env.manager.EndResponse(ctx, s.ID, "my answer"))

	stored, err := env.sessions.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, stored.Responses, 1)
	assert.Equal(t, "q1", stored.Responses[0].QuestionID)
	assert.Equal(t, "my answer", stored.Responses[0].Transcription)
	assert.Len(t, stored.Responses[0].FacialMetrics, 2)
}

func TestManager_EndResponseWithoutBegin(t *testing.T) {
	env := newTestEnv(t, faceDetector{})
	s := startedSession(t, env)

	err := env.manager.EndResponse(context.Background(), s.ID, "answer")
	assert.Error(t, err)
}

func TestManager_Complete(t *testing.T) {
	env := newTestEnv(t, faceDetector{})
	s := startedSession(t, env)
	ctx := context.Background()

	require.NoError(t, env.manager.IngestFrame(ctx, s.ID, vision.Frame{Timestamp: 1}))

	done, err := env.manager.Complete(ctx, s.ID)
	require.NoError(t, err)

	assert.Equal(t, model.SessionCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.Metrics)
	assert.InDelta(t, 100.0, done.Metrics.EyeContactPercentage, 1e-9)

	stored, err := env.metrics.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored, "final metrics are persisted")

	assert.Equal(t, []string{s.ID}, env.broadcast.endedSessions())
	_, live := env.manager.LiveMetrics(s.ID)
	assert.False(t, live, "completed sessions leave the live set")
}

func TestManager_CompleteFlushesOpenResponse(t *testing.T) {
	env := newTestEnv(t, faceDetector{})
	s := startedSession(t, env)
	ctx := context.Background()

	require.NoError(t, env.manager.BeginResponse(s.ID, "q1"))
	require.NoError(t, env.manager.IngestFrame(ctx, s.ID, vision.Frame{Timestamp: 1}))

	done, err := env.manager.Complete(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, done.Responses, 1, "in-flight response survives completion")
	assert.Equal(t, "q1", done.Responses[0].QuestionID)
}

func TestManager_CompleteSurvivesStorageFailure(t *testing.T) {
	env := newTestEnv(t, faceDetector{})
	s := startedSession(t, env)
	ctx := context.Background()

	env.sessions.failAll = true
	env.metrics.failAll = true

	done, err := env.manager.Complete(ctx, s.ID)
	require.NoError(t, err, "completion never fails on storage errors")
	assert.Equal(t, model.SessionCompleted, done.Status)
	assert.Equal(t, []string{s.ID}, env.broadcast.endedSessions())
}

func TestManager_AbandonCompletedFails(t *testing.T) {
	env := newTestEnv(t, faceDetector{})
	s := startedSession(t, env)
	ctx := context.Background()

	_, err := env.manager.Complete(ctx, s.ID)
	require.NoError(t, err)

	_, err = env.manager.Abandon(ctx, s.ID)
	assert.Error(t, err, "a finalized session is no longer live")
}

func TestManager_Abandon(t *testing.T) {
	env := newTestEnv(t, faceDetector{})
	s := startedSession(t, env)
	ctx := context.Background()

	require.NoError(t, env.manager.IngestFrame(ctx, s.ID, vision.Frame{Timestamp: 1}))

	done, err := env.manager.Abandon(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionAbandoned, done.Status)
	require.NotNil(t, done.Metrics)
	assert.Equal(t, 1, len(done.Metrics.MoodTimeline), "collected data is kept")
}

func TestManager_AbandonCreatedSession(t *testing.T) {
	env := newTestEnv(t, faceDetector{})
	ctx := context.Background()

	s, err := env.manager.Create(ctx, Params{OwnerID: "owner-1"})
	require.NoError(t, err)

	done, err := env.manager.Abandon(ctx, s.ID)
	require.NoError(t, err, "a session that never started is still abandonable")
	assert.Equal(t, model.SessionAbandoned, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.Metrics)
	assert.Zero(t, done.Metrics.EyeContactPercentage)

	stored, err := env.sessions.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionAbandoned, stored.Status)
	assert.Equal(t, []string{s.ID}, env.broadcast.endedSessions())
}

func TestManager_AbandonTwiceFails(t *testing.T) {
	env := newTestEnv(t, faceDetector{})
	ctx := context.Background()

	s, err := env.manager.Create(ctx, Params{OwnerID: "owner-1"})
	require.NoError(t, err)

	_, err = env.manager.Abandon(ctx, s.ID)
	require.NoError(t, err)

	_, err = env.manager.Abandon(ctx, s.ID)
	assert.Error(t, err, "abandoned is terminal")
}

func TestManager_AbandonUnknownSession(t *testing.T) {
	env := newTestEnv(t, faceDetector{})

	_, err := env.manager.Abandon(context.Background(), "missing")
	assert.Error(t, err)
}

func TestManager_InvalidTransitionHasNoSideEffects(t *testing.T) {
	env := newTestEnv(t, faceDetector{})
	s := startedSession(t, env)
	ctx := context.Background()

	require.NoError(t, env.manager.BeginResponse(s.ID, "q1"))
	require.NoError(t, env.manager.IngestFrame(ctx, s.ID, vision.Frame{Timestamp: 1}))

	// Not paused, so resuming must fail and leave the open window alone.
	require.Error(t, env.manager.Resume(ctx, s.ID))
	require.NoError(t, env.manager.EndResponse(ctx, s.ID, "answer"))

	stored, err := env.sessions.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, stored.Responses, 1)
	assert.Len(t, stored.Responses[0].FacialMetrics, 1)
}

func TestManager_SnapshotHistory(t *testing.T) {
	env := newTestEnv(t, faceDetector{})
	s := startedSession(t, env)
	ctx := context.Background()

	require.NoError(t, env.manager.IngestFrame(ctx, s.ID, vision.Frame{Timestamp: 1}))
	require.NoError(t, env.manager.IngestFrame(ctx, s.ID, vision.Frame{Timestamp: 2}))

	snapshots, ok := env.manager.SnapshotHistory(s.ID)
	require.True(t, ok)
	require.Len(t, snapshots, 2)
	assert.Equal(t, int64(1), snapshots[0].Timestamp)
	assert.Equal(t, int64(2), snapshots[1].Timestamp)

	_, ok = env.manager.SnapshotHistory("missing")
	assert.False(t, ok)
}

func TestManager_ShutdownCompletesLiveSessions(t *testing.T) {
	env := newTestEnv(t, faceDetector{})
	a := startedSession(t, env)
	b := startedSession(t, env)
	ctx := context.Background()

	env.manager.Shutdown(ctx)

	assert.Empty(t, env.manager.LiveSessionIDs())
	for _, id := range []string{a.ID, b.ID} {
		stored, err := env.sessions.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.SessionCompleted, stored.Status)
	}
}
