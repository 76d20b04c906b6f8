package scheduler

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"workcard-backend/internal/models"
)

// PGJobStore implements JobStore against Postgres. The claim protocol is a
// single conditional UPDATE, matching the original repository's claim_job:
// only the worker whose UPDATE affects a row actually owns the lease.
type PGJobStore struct {
	pool *pgxpool.Pool
}

// NewPGJobStore builds a PGJobStore over the given pool.
func NewPGJobStore(pool *pgxpool.Pool) *PGJobStore {
	return &PGJobStore{pool: pool}
}

func (s *PGJobStore) GetPendingJobs(ctx context.Context, limit int) ([]models.ExtractionJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, work_card_id, status, attempts, pipeline_version
		FROM extraction_jobs
		WHERE status = $1 AND lease_owner IS NULL
		ORDER BY id
		LIMIT $2
	`, models.JobStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.ExtractionJob
	for rows.Next() {
		var j models.ExtractionJob
		if err := rows.Scan(&j.ID, &j.WorkCardID, &j.Status, &j.Attempts, &j.PipelineVersion); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *PGJobStore) ClaimJob(ctx context.Context, jobID, workerID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE extraction_jobs
		SET lease_owner = $1, lease_acquired_at = NOW()
		WHERE id = $2 AND lease_owner IS NULL
	`, workerID, jobID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGJobStore) MarkRunning(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE extraction_jobs SET status = $1, started_at = NOW() WHERE id = $2
	`, models.JobStatusRunning, jobID)
	return err
}

func (s *PGJobStore) IncrementAttempts(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE extraction_jobs SET attempts = attempts + 1 WHERE id = $1
	`, jobID)
	return err
}

func (s *PGJobStore) MarkCompleted(ctx context.Context, jobID string, r CompletionResult) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE extraction_jobs SET
			status = $1,
			finished_at = NOW(),
			lease_owner = NULL,
			lease_acquired_at = NULL,
			extracted_employee_name = $2,
			extracted_passport_id = $3,
			raw_result_jsonb = $4,
			normalized_result_jsonb = $5,
			matched_employee_id = $6,
			match_method = $7,
			match_confidence = $8,
			model_name = $9,
			model_version = $10,
			identity_mismatch_reason = $11,
			identity_mismatch = $12,
			quality_map_jsonb = $13
		WHERE id = $14
	`, models.JobStatusDone, r.ExtractedEmployeeName, r.ExtractedPassportID,
		r.RawResult, r.NormalizedResult, r.MatchedEmployeeID, r.MatchMethod,
		r.MatchConfidence, r.ModelName, r.ModelVersion,
		nullString(r.IdentityMismatchReason), r.IdentityMismatch, r.QualityMap, jobID)
	return err
}

// nullString turns an empty diagnostic string into a SQL NULL rather than
// storing an empty string when no mismatch was computed.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *PGJobStore) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE extraction_jobs SET
			status = $1, finished_at = NOW(), last_error = $2,
			lease_owner = NULL, lease_acquired_at = NULL
		WHERE id = $3
	`, models.JobStatusFailed, errMsg, jobID)
	return err
}

func (s *PGJobStore) GetStaleLeases(ctx context.Context, cutoff time.Time) ([]models.ExtractionJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, work_card_id, status, attempts, pipeline_version
		FROM extraction_jobs
		WHERE lease_acquired_at IS NOT NULL
		  AND lease_acquired_at < $1
		  AND status IN ($2, $3)
	`, cutoff, models.JobStatusPending, models.JobStatusRunning)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.ExtractionJob
	for rows.Next() {
		var j models.ExtractionJob
		if err := rows.Scan(&j.ID, &j.WorkCardID, &j.Status, &j.Attempts, &j.PipelineVersion); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *PGJobStore) ReleaseLease(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE extraction_jobs SET lease_owner = NULL, lease_acquired_at = NULL WHERE id = $1
	`, jobID)
	return err
}

func (s *PGJobStore) ResetJob(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE extraction_jobs SET
			status = $1, lease_owner = NULL, lease_acquired_at = NULL,
			started_at = NULL, finished_at = NULL
		WHERE id = $2
	`, models.JobStatusPending, jobID)
	return err
}
