// Package scheduler runs the extraction job queue: claiming PENDING jobs
// with an optimistic lease, running the extraction+matching pipeline for
// each, and recovering jobs whose worker died mid-lease.
package scheduler

import (
	"context"
	"time"

	"workcard-backend/internal/models"
	"workcard-backend/internal/resolver"
)

// Clock is injected so tests can control "now" rather than depending on
// the wall clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the production Clock.
var SystemClock Clock = systemClock{}

// JobStore is the persistence contract for ExtractionJob rows: claim,
// lifecycle transitions, and stale-lease recovery.
type JobStore interface {
	// GetPendingJobs returns up to limit jobs that are PENDING and unleased.
	GetPendingJobs(ctx context.Context, limit int) ([]models.ExtractionJob, error)
	// ClaimJob attempts the optimistic lease acquisition. Returns false if
	// another worker already claimed it (rows_affected == 0).
	ClaimJob(ctx context.Context, jobID, workerID string) (bool, error)
	MarkRunning(ctx context.Context, jobID string) error
	IncrementAttempts(ctx context.Context, jobID string) error
	MarkCompleted(ctx context.Context, jobID string, result CompletionResult) error
	MarkFailed(ctx context.Context, jobID, errMsg string) error
	// GetStaleLeases returns jobs whose lease is older than cutoff and are
	// still PENDING/RUNNING — crashed-worker recovery candidates.
	GetStaleLeases(ctx context.Context, cutoff time.Time) ([]models.ExtractionJob, error)
	ReleaseLease(ctx context.Context, jobID string) error
	ResetJob(ctx context.Context, jobID string) error
}

// CompletionResult is everything MarkCompleted persists on a successful run.
type CompletionResult struct {
	ExtractedEmployeeName string
	ExtractedPassportID   string
	RawResult             []byte
	NormalizedResult      []byte
	MatchedEmployeeID     *string
	MatchMethod           string
	MatchConfidence       *float64
	ModelName             string
	ModelVersion          string

	// IdentityMismatchReason/IdentityMismatch carry the outcome of
	// resolver.DiagnoseIdentityMismatch when the card was already assigned
	// at extraction time, so a VALUE_DIFF reaches the admin UI instead of
	// being silently discarded.
	IdentityMismatchReason string
	IdentityMismatch       bool

	// QualityMap is the SemanticGate diagnostics for this run, serialized.
	QualityMap []byte
}

// WorkCardStore is the subset of WorkCard/WorkCardFile/WorkCardDayEntry
// persistence the scheduler needs.
type WorkCardStore interface {
	GetWorkCard(ctx context.Context, workCardID string) (*models.WorkCard, error)
	GetImageBytes(ctx context.Context, workCardID string) ([]byte, string, error)
	GetPreviousCard(ctx context.Context, employeeID, processingMonth, excludeWorkCardID string) (*models.WorkCard, error)
	GetDayEntries(ctx context.Context, workCardID string) ([]models.WorkCardDayEntry, error)
	CreateDayEntry(ctx context.Context, entry models.WorkCardDayEntry) error
	SetEmployee(ctx context.Context, workCardID, employeeID string) error
	SetReviewStatus(ctx context.Context, workCardID, status string) error
}

// EmployeeStore resolves match candidates for a business/site.
type EmployeeStore interface {
	ListCandidates(ctx context.Context, businessID string, siteID *string) ([]resolver.Candidate, error)
	GetPassportID(ctx context.Context, employeeID string) (*string, error)
}

// ImageStore optionally archives original card images after extraction
// completes. A nil ImageStore disables archival — the pipeline still works
// against the bytea-stored image.
type ImageStore interface {
	Archive(ctx context.Context, path string, imageBytes []byte, contentType string) error
}

