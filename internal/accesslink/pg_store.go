package accesslink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"workcard-backend/internal/models"
)

// PGStore is the Postgres-backed Store implementation.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore builds a PGStore over the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) TokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM upload_access_requests WHERE token = $1)`, token).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check token existence: %w", err)
	}
	return exists, nil
}

func (s *PGStore) Create(ctx context.Context, req models.UploadAccessRequest) (*models.UploadAccessRequest, error) {
	var out models.UploadAccessRequest
	err := s.pool.QueryRow(ctx, `
		INSERT INTO upload_access_requests (business_id, site_id, employee_id, token, processing_month,
		                                     created_by_user_id, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, business_id, site_id, employee_id, token, processing_month,
		          created_by_user_id, expires_at::text, last_accessed_at::text, is_active, created_at::text
	`, req.BusinessID, req.SiteID, req.EmployeeID, req.Token, req.ProcessingMonth,
		req.CreatedByUserID, req.ExpiresAt, req.IsActive,
	).Scan(
		&out.ID, &out.BusinessID, &out.SiteID, &out.EmployeeID, &out.Token, &out.ProcessingMonth,
		&out.CreatedByUserID, &out.ExpiresAt, &out.LastAccessedAt, &out.IsActive, &out.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert access request: %w", err)
	}
	return &out, nil
}

func (s *PGStore) GetActiveByToken(ctx context.Context, token string) (*models.UploadAccessRequest, error) {
	var out models.UploadAccessRequest
	err := s.pool.QueryRow(ctx, `
		SELECT id, business_id, site_id, employee_id, token, processing_month,
		       created_by_user_id, expires_at::text, last_accessed_at::text, is_active, created_at::text
		FROM upload_access_requests
		WHERE token = $1 AND is_active = true AND (expires_at IS NULL OR expires_at > NOW())
	`, token).Scan(
		&out.ID, &out.BusinessID, &out.SiteID, &out.EmployeeID, &out.Token, &out.ProcessingMonth,
		&out.CreatedByUserID, &out.ExpiresAt, &out.LastAccessedAt, &out.IsActive, &out.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load access request: %w", err)
	}
	return &out, nil
}

func (s *PGStore) GetEmployeePhone(ctx context.Context, employeeID string) (string, error) {
	var phone *string
	err := s.pool.QueryRow(ctx, `SELECT phone_number FROM employees WHERE id = $1`, employeeID).Scan(&phone)
	if err != nil {
		return "", fmt.Errorf("load employee phone: %w", err)
	}
	if phone == nil {
		return "", nil
	}
	return *phone, nil
}

func (s *PGStore) TouchLastAccessed(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE upload_access_requests SET last_accessed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch last accessed: %w", err)
	}
	return nil
}

func (s *PGStore) Revoke(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE upload_access_requests SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("revoke access request: %w", err)
	}
	return nil
}
