package model

import "time"

type SessionStatus string

const (
	SessionCreated    SessionStatus = "created"
	SessionInProgress SessionStatus = "in_progress"
	SessionPaused     SessionStatus = "paused"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

// Terminal reports whether the status permits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionAbandoned
}

// InterviewSession is one practice interview. The pipeline references it by
// id and owner; CRUD around profiles and job postings lives elsewhere.
type InterviewSession struct {
	ID          string        `json:"id" bson:"_id,omitempty"`
	OwnerID     string        `json:"ownerId" bson:"ownerId"`
	Status      SessionStatus `json:"status" bson:"status"`
	StartedAt   time.Time     `json:"startedAt" bson:"startedAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty" bson:"completedAt,omitempty"`

	Interviewer string `json:"interviewer" bson:"interviewer"`
	Type        string `json:"type" bson:"type"`
	Difficulty  string `json:"difficulty" bson:"difficulty"`
	TopicFocus  string `json:"topicFocus" bson:"topicFocus"`
	Purpose     string `json:"purpose" bson:"purpose"`

	Responses []SessionResponse `json:"responses,omitempty" bson:"responses,omitempty"`
	Feedback  *SessionFeedback  `json:"feedback,omitempty" bson:"feedback,omitempty"`
	Metrics   *InterviewMetrics `json:"metrics,omitempty" bson:"metrics,omitempty"`

	Archived   bool       `json:"archived,omitempty" bson:"archived,omitempty"`
	ArchivedAt *time.Time `json:"archivedAt,omitempty" bson:"archivedAt,omitempty"`
}

// SessionResponse is one answered question with its timing and the facial
// metrics captured during the response window.
type SessionResponse struct {
	QuestionID    string            `json:"questionId" bson:"questionId"`
	Transcription string            `json:"transcription" bson:"transcription"`
	Duration      float64           `json:"duration" bson:"duration"` // seconds
	Confidence    float64           `json:"confidence" bson:"confidence"`
	FacialMetrics []MetricsSnapshot `json:"facialMetrics,omitempty" bson:"facialMetrics,omitempty"`
}

// SessionFeedback is the written evaluation attached after completion.
type SessionFeedback struct {
	OverallScore   float64  `json:"overallScore" bson:"overallScore"` // 0-100
	CompletionRate float64  `json:"completionRate" bson:"completionRate"`
	Strengths      []string `json:"strengths,omitempty" bson:"strengths,omitempty"`
	Improvements   []string `json:"improvements,omitempty" bson:"improvements,omitempty"`
	Suggestions    []string `json:"suggestions,omitempty" bson:"suggestions,omitempty"`
}

// AgeInDays returns the session age relative to now, truncated to whole days.
func (s *InterviewSession) AgeInDays(now time.Time) int {
	return int(now.Sub(s.StartedAt).Hours() / 24)
}
