package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"interviewlab/internal/model"
)

// csvHeader is the fixed export table layout. Column order is part of the
// format contract; downstream spreadsheets key on it.
var csvHeader = []string{
	"Session ID",
	"Date",
	"Status",
	"Interviewer",
	"Type",
	"Difficulty",
	"Overall Score",
	"Completion Rate",
	"Eye Contact %",
	"Avg Confidence",
	"Response Quality",
	"Engagement",
	"Duration (min)",
}

const reportSeparator = 80

// ExportService serializes a user's sessions into portable formats. Output
// is deterministic for identical input and options; the only clock
// dependence is the suggested filename.
type ExportService struct{}

// NewExportService creates an export service.
func NewExportService() *ExportService {
	return &ExportService{}
}

// Filename suggests a download name for the given format. The pdf alias
// downloads as .txt since that is what the payload actually is.
func (e *ExportService) Filename(format model.ExportFormat, now time.Time) string {
	if format == model.ExportPDF {
		format = model.ExportText
	}
	return fmt.Sprintf("interview-export-%s.%s", now.Format("2006-01-02-150405"), format)
}

// ExportUserData serializes sessions according to options. The date-range
// filter is applied before serializing; a range that excludes everything
// yields a valid empty export. An unsupported format fails synchronously
// with no partial output.
func (e *ExportService) ExportUserData(sessions []*model.InterviewSession, options model.ExportOptions) ([]byte, error) {
	filtered := filterByDate(sessions, options.DateRange)

	switch options.Format {
	case model.ExportJSON:
		return e.exportJSON(filtered, options)
	case model.ExportCSV:
		return e.exportCSV(filtered)
	case model.ExportText, model.ExportPDF:
		return e.exportText(filtered), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", options.Format)
	}
}

func filterByDate(sessions []*model.InterviewSession, r *model.DateRange) []*model.InterviewSession {
	if r == nil {
		return sessions
	}
	out := make([]*model.InterviewSession, 0, len(sessions))
	for _, s := range sessions {
		if r.Contains(s.StartedAt) {
			out = append(out, s)
		}
	}
	return out
}

// exportedSession is the JSON export shape: a fixed always-present core plus
// the sub-objects the options opted into.
type exportedSession struct {
	ID          string                  `json:"id"`
	StartedAt   time.Time               `json:"startedAt"`
	CompletedAt *time.Time              `json:"completedAt"`
	Status      model.SessionStatus     `json:"status"`
	Interviewer string                  `json:"interviewer"`
	Type        string                  `json:"type"`
	Difficulty  string                  `json:"difficulty"`
	TopicFocus  string                  `json:"topicFocus"`
	Purpose     string                  `json:"purpose"`
	Metrics     *model.InterviewMetrics `json:"metrics,omitempty"`
	Responses   []model.SessionResponse `json:"responses,omitempty"`
	Feedback    *model.SessionFeedback  `json:"feedback,omitempty"`
}

func (e *ExportService) exportJSON(sessions []*model.InterviewSession, options model.ExportOptions) ([]byte, error) {
	out := make([]exportedSession, 0, len(sessions))
	for _, s := range sessions {
		es := exportedSession{
			ID:          s.ID,
			StartedAt:   s.StartedAt,
			CompletedAt: s.CompletedAt,
			Status:      s.Status,
			Interviewer: s.Interviewer,
			Type:        s.Type,
			Difficulty:  s.Difficulty,
			TopicFocus:  s.TopicFocus,
			Purpose:     s.Purpose,
		}
		if options.IncludeMetrics {
			es.Metrics = s.Metrics
		}
		if options.IncludeResponses {
			es.Responses = s.Responses
		}
		if options.IncludeFeedback {
			es.Feedback = s.Feedback
		}
		out = append(out, es)
	}
	return json.MarshalIndent(out, "", "  ")
}

func (e *ExportService) exportCSV(sessions []*model.InterviewSession) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if err := w.Write(csvRow(s)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func csvRow(s *model.InterviewSession) []string {
	var overallScore, completionRate float64
	if s.Feedback != nil {
		overallScore = s.Feedback.OverallScore
		completionRate = s.Feedback.CompletionRate
	}

	var eyeContact, avgConf, quality, engagement float64
	if s.Metrics != nil {
		eyeContact = s.Metrics.EyeContactPercentage
		avgConf = s.Metrics.AverageConfidence
		quality = s.Metrics.ResponseQuality
		engagement = s.Metrics.OverallEngagement * 100
	}

	return []string{
		s.ID,
		s.StartedAt.Format("2006-01-02"),
		string(s.Status),
		s.Interviewer,
		s.Type,
		s.Difficulty,
		oneDecimal(overallScore),
		oneDecimal(completionRate),
		oneDecimal(eyeContact),
		oneDecimal(avgConf),
		oneDecimal(quality),
		oneDecimal(engagement),
		oneDecimal(durationMinutes(s)),
	}
}

func durationMinutes(s *model.InterviewSession) float64 {
	if s.CompletedAt == nil {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt).Minutes()
}

func oneDecimal(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

// exportText renders human-readable per-session reports with fixed section
// headers, joined by an 80-character '=' separator. Clients print this as
// the "pdf" export.
func (e *ExportService) exportText(sessions []*model.InterviewSession) []byte {
	var b strings.Builder
	for i, s := range sessions {
		if i > 0 {
			b.WriteString(strings.Repeat("=", reportSeparator))
			b.WriteString("\n")
		}
		writeReport(&b, s)
	}
	return []byte(b.String())
}

func writeReport(b *strings.Builder, s *model.InterviewSession) {
	fmt.Fprintf(b, "INTERVIEW SESSION %s\n", s.ID)
	fmt.Fprintf(b, "Date: %s\n\n", s.StartedAt.Format("2006-01-02 15:04"))

	b.WriteString("CONFIGURATION\n")
	fmt.Fprintf(b, "  Interviewer: %s\n", s.Interviewer)
	fmt.Fprintf(b, "  Type: %s\n", s.Type)
	fmt.Fprintf(b, "  Difficulty: %s\n", s.Difficulty)
	fmt.Fprintf(b, "  Topic Focus: %s\n", s.TopicFocus)
	fmt.Fprintf(b, "  Purpose: %s\n\n", s.Purpose)

	b.WriteString("PERFORMANCE SUMMARY\n")
	if s.Metrics != nil {
		fmt.Fprintf(b, "  Eye Contact: %s%%\n", oneDecimal(s.Metrics.EyeContactPercentage))
		fmt.Fprintf(b, "  Average Confidence: %s\n", oneDecimal(s.Metrics.AverageConfidence))
		fmt.Fprintf(b, "  Response Quality: %s\n", oneDecimal(s.Metrics.ResponseQuality))
		fmt.Fprintf(b, "  Overall Engagement: %s\n", oneDecimal(s.Metrics.OverallEngagement*100))
	} else {
		b.WriteString("  No metrics recorded.\n")
	}
	b.WriteString("\n")

	writeList(b, "STRENGTHS", feedbackList(s, func(f *model.SessionFeedback) []string { return f.Strengths }))
	writeList(b, "AREAS FOR IMPROVEMENT", feedbackList(s, func(f *model.SessionFeedback) []string { return f.Improvements }))
	writeList(b, "SUGGESTIONS", feedbackList(s, func(f *model.SessionFeedback) []string { return f.Suggestions }))

	b.WriteString("QUESTIONS & RESPONSES\n")
	if len(s.Responses) == 0 {
		b.WriteString("  No responses recorded.\n")
	}
	for i, r := range s.Responses {
		fmt.Fprintf(b, "  %d. Question %s (%ss)\n", i+1, r.QuestionID, oneDecimal(r.Duration))
		if r.Transcription != "" {
			fmt.Fprintf(b, "     %s\n", r.Transcription)
		}
	}
	b.WriteString("\n")
}

func feedbackList(s *model.InterviewSession, pick func(*model.SessionFeedback) []string) []string {
	if s.Feedback == nil {
		return nil
	}
	return pick(s.Feedback)
}

func writeList(b *strings.Builder, header string, items []string) {
	b.WriteString(header + "\n")
	if len(items) == 0 {
		b.WriteString("  None recorded.\n")
	}
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
	b.WriteString("\n")
}
