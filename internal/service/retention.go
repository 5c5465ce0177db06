package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"interviewlab/internal/model"
	"interviewlab/internal/repository"
)

// Classification is a total partition of a session list: every input
// session lands in exactly one bucket.
type Classification struct {
	Keep    []*model.InterviewSession
	Archive []*model.InterviewSession
	Delete  []*model.InterviewSession
}

// CleanupReport aggregates the outcome of a global cleanup run. Per-owner
// failures are collected, never fatal to the batch.
type CleanupReport struct {
	Owners   int       `json:"owners"`
	Archived int       `json:"archived"`
	Deleted  int       `json:"deleted"`
	Errors   []string  `json:"errors,omitempty"`
	RanAt    time.Time `json:"ranAt"`
}

// RetentionService classifies persisted sessions against a retention policy
// and applies the result. Batch operations are idempotent and take no locks;
// concurrent cleanup runs against the same owner can race, so callers must
// serialize per-owner cleanup themselves.
type RetentionService struct {
	sessions repository.SessionRepo
	metrics  repository.MetricsRepo
	log      *zap.Logger

	mu          sync.Mutex
	lastCleanup time.Time
	lastDeleted int
}

// NewRetentionService creates a retention service.
func NewRetentionService(sessions repository.SessionRepo, metrics repository.MetricsRepo, log *zap.Logger) *RetentionService {
	return &RetentionService{sessions: sessions, metrics: metrics, log: log}
}

// Classify partitions sessions into keep/archive/delete buckets by age.
// Delete takes precedence over archive when both thresholds are exceeded.
// When the owner holds more than policy.MaxSessions, the oldest overflow
// sessions are archived even if younger than the age thresholds.
func (s *RetentionService) Classify(sessions []*model.InterviewSession, policy model.RetentionPolicy, now time.Time) Classification {
	sorted := make([]*model.InterviewSession, len(sessions))
	copy(sorted, sessions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartedAt.Before(sorted[j].StartedAt)
	})

	overflow := 0
	if policy.MaxSessions > 0 && len(sorted) > policy.MaxSessions {
		overflow = len(sorted) - policy.MaxSessions
	}

	var c Classification
	for i, sess := range sorted {
		age := sess.AgeInDays(now)
		switch {
		case policy.DeleteAfter > 0 && age >= policy.DeleteAfter:
			c.Delete = append(c.Delete, sess)
		case policy.ArchiveAfter > 0 && age >= policy.ArchiveAfter:
			c.Archive = append(c.Archive, sess)
		case i < overflow:
			// Oldest-first overflow beyond the session cap.
			c.Archive = append(c.Archive, sess)
		default:
			c.Keep = append(c.Keep, sess)
		}
	}
	return c
}

// ComputeStorageStats builds a storage report for the given sessions.
// StorageUsed is the summed serialized size of each record, an estimate
// rather than exact on-disk footprint. The report is regenerated per call,
// never incrementally maintained.
func (s *RetentionService) ComputeStorageStats(sessions []*model.InterviewSession) model.ArchiveStats {
	s.mu.Lock()
	last := s.lastCleanup
	deleted := s.lastDeleted
	s.mu.Unlock()

	// Deleted sessions are gone from the store, so the report carries the
	// count from the most recent cleanup run instead of a recount.
	stats := model.ArchiveStats{
		TotalSessions:   len(sessions),
		DeletedSessions: deleted,
		LastCleanup:     last,
	}

	for _, sess := range sessions {
		if sess.Archived {
			stats.ArchivedSessions++
		}
		if data, err := json.Marshal(sess); err == nil {
			stats.StorageUsed += int64(len(data))
		}
		started := sess.StartedAt
		if stats.OldestSession == nil || started.Before(*stats.OldestSession) {
			t := started
			stats.OldestSession = &t
		}
		if stats.NewestSession == nil || started.After(*stats.NewestSession) {
			t := started
			stats.NewestSession = &t
		}
	}
	return stats
}

// OwnerStats loads an owner's sessions and reports their storage stats.
func (s *RetentionService) OwnerStats(ctx context.Context, ownerID string) (model.ArchiveStats, error) {
	sessions, err := s.sessions.ListByOwner(ctx, ownerID)
	if err != nil {
		return model.ArchiveStats{}, fmt.Errorf("list sessions for %s: %w", ownerID, err)
	}
	return s.ComputeStorageStats(sessions), nil
}

// RunGlobalCleanup applies the policy to every owner. A failing owner is
// recorded and skipped; the batch always runs to the end.
func (s *RetentionService) RunGlobalCleanup(ctx context.Context, policy model.RetentionPolicy) CleanupReport {
	report := CleanupReport{RanAt: time.Now()}

	owners, err := s.sessions.ListOwners(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list owners: %v", err))
		return report
	}
	report.Owners = len(owners)

	for _, owner := range owners {
		archived, deleted, err := s.cleanupOwner(ctx, owner, policy, report.RanAt)
		report.Archived += archived
		report.Deleted += deleted
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("owner %s: %v", owner, err))
			s.log.Error("owner cleanup failed", zap.String("ownerId", owner), zap.Error(err))
		}
	}

	s.mu.Lock()
	s.lastCleanup = report.RanAt
	s.lastDeleted = report.Deleted
	s.mu.Unlock()

	s.log.Info("global cleanup finished",
		zap.Int("owners", report.Owners),
		zap.Int("archived", report.Archived),
		zap.Int("deleted", report.Deleted),
		zap.Int("errors", len(report.Errors)))
	return report
}

func (s *RetentionService) cleanupOwner(ctx context.Context, ownerID string, policy model.RetentionPolicy, now time.Time) (archived, deleted int, err error) {
	sessions, err := s.sessions.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, 0, fmt.Errorf("list sessions: %w", err)
	}

	c := s.Classify(sessions, policy, now)

	var firstErr error
	for _, sess := range c.Archive {
		if sess.Archived {
			continue
		}
		if err := s.sessions.MarkArchived(ctx, sess.ID, now); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("archive %s: %w", sess.ID, err)
			}
			continue
		}
		archived++
	}
	for _, sess := range c.Delete {
		if err := s.sessions.Delete(ctx, sess.ID); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("delete %s: %w", sess.ID, err)
			}
			continue
		}
		// Orphaned metrics are removed alongside the session; a failure here
		// is tolerable, the next run will not see the session anyway.
		if err := s.metrics.Delete(ctx, sess.ID); err != nil {
			s.log.Warn("metrics cleanup failed", zap.String("sessionId", sess.ID), zap.Error(err))
		}
		deleted++
	}
	return archived, deleted, firstErr
}
