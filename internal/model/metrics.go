package model

// MetricsSnapshot is the per-frame derived record kept in the aggregator's
// bounded history. One snapshot is appended per ingested signal; the oldest
// entries are evicted once the history cap is reached.
type MetricsSnapshot struct {
	Timestamp          int64   `json:"timestamp" bson:"timestamp"`
	EyeContact         bool    `json:"eyeContact" bson:"eyeContact"`
	DominantEmotion    Emotion `json:"dominantEmotion" bson:"dominantEmotion"`
	EmotionConfidence  float64 `json:"emotionConfidence" bson:"emotionConfidence"`
	EngagementLevel    float64 `json:"engagementLevel" bson:"engagementLevel"` // 0-1
	ResponseInProgress bool    `json:"responseInProgress" bson:"responseInProgress"`
}

// RealTimeMetrics is recomputed on demand from the current signal history.
// It is never persisted; with no history every numeric field is zero and the
// mood is neutral.
type RealTimeMetrics struct {
	EyeContactPercentage float64 `json:"eyeContactPercentage"`
	CurrentMood          Emotion `json:"currentMood"`
	MoodConfidence       float64 `json:"moodConfidence"`
	EngagementScore      float64 `json:"engagementScore"` // 0-100
	ResponseQuality      float64 `json:"responseQuality"` // 0-1
	AverageConfidence    float64 `json:"averageConfidence"`
	SessionDuration      int64   `json:"sessionDuration"` // ms since collection start
	TotalDataPoints      int     `json:"totalDataPoints"`
}

// InterviewMetrics is the final per-session record, created once when
// collection stops and immutable afterwards except for archival metadata.
type InterviewMetrics struct {
	SessionID            string          `json:"sessionId" bson:"sessionId"`
	EyeContactPercentage float64         `json:"eyeContactPercentage" bson:"eyeContactPercentage"`
	MoodTimeline         []MoodDataPoint `json:"moodTimeline" bson:"moodTimeline"`
	AverageConfidence    float64         `json:"averageConfidence" bson:"averageConfidence"`
	ResponseQuality      float64         `json:"responseQuality" bson:"responseQuality"`     // 0-1
	OverallEngagement    float64         `json:"overallEngagement" bson:"overallEngagement"` // 0-1
}

// NeutralMetrics returns the safe default used when a session must complete
// without any collected history (best-effort local completion).
func NeutralMetrics(sessionID string) *InterviewMetrics {
	return &InterviewMetrics{
		SessionID:    sessionID,
		MoodTimeline: []MoodDataPoint{},
	}
}

// MetricsUpdate enumerates every mutable field of a stored InterviewMetrics.
// Partial updates go through this struct only; unknown fields have nowhere
// to hide.
type MetricsUpdate struct {
	EyeContactPercentage *float64         `json:"eyeContactPercentage,omitempty" bson:"eyeContactPercentage,omitempty"`
	AverageConfidence    *float64         `json:"averageConfidence,omitempty" bson:"averageConfidence,omitempty"`
	ResponseQuality      *float64         `json:"responseQuality,omitempty" bson:"responseQuality,omitempty"`
	OverallEngagement    *float64         `json:"overallEngagement,omitempty" bson:"overallEngagement,omitempty"`
	MoodTimeline         *[]MoodDataPoint `json:"moodTimeline,omitempty" bson:"moodTimeline,omitempty"`
}
