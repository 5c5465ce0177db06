package model

import "time"

// RetentionPolicy governs when sessions move from active to archived to
// deleted. All fields are day counts. The expected ordering is
// archiveAfter < deleteAfter < maxAge, but it is not enforced; delete takes
// precedence over archive whenever both thresholds are exceeded, so inverted
// thresholds degrade predictably.
type RetentionPolicy struct {
	MaxAge       int `json:"maxAge" mapstructure:"max_age"`
	MaxSessions  int `json:"maxSessions" mapstructure:"max_sessions"`
	ArchiveAfter int `json:"archiveAfter" mapstructure:"archive_after"`
	DeleteAfter  int `json:"deleteAfter" mapstructure:"delete_after"`
}

// ArchiveStats is a computed storage report, regenerated on each query.
// DeletedSessions reflects the most recent cleanup run; deleted records no
// longer exist to be recounted.
type ArchiveStats struct {
	TotalSessions    int        `json:"totalSessions"`
	ArchivedSessions int        `json:"archivedSessions"`
	DeletedSessions  int        `json:"deletedSessions"`
	StorageUsed      int64      `json:"storageUsed"` // serialized-size estimate, bytes
	OldestSession    *time.Time `json:"oldestSession,omitempty"`
	NewestSession    *time.Time `json:"newestSession,omitempty"`
	LastCleanup      time.Time  `json:"lastCleanup"`
}

// ExportFormat selects the serialization produced by an export.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
	// ExportText renders the report as plain text with fixed section
	// headers; actual PDF rendering is a client concern.
	ExportText ExportFormat = "txt"
	// ExportPDF is the legacy client name for the text report. Accepted as
	// an alias; the payload is identical to ExportText.
	ExportPDF ExportFormat = "pdf"
)

// DateRange filters sessions by StartedAt. Zero bounds are open.
type DateRange struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// ExportOptions selects format, included sub-objects, and an optional date
// range applied before serialization.
type ExportOptions struct {
	Format           ExportFormat `json:"format"`
	IncludeMetrics   bool         `json:"includeMetrics"`
	IncludeResponses bool         `json:"includeResponses"`
	IncludeFeedback  bool         `json:"includeFeedback"`
	DateRange        *DateRange   `json:"dateRange,omitempty"`
}
