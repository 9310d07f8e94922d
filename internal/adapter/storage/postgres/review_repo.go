package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const reviewColumns = `id, order_id, provider, provider_transaction_id, reason, expected_amount, received_amount,
	reference_text, status, resolution, resolved_by, created_at, resolved_at`

// ReviewRepo implements ports.ReviewCaseRepository.
type ReviewRepo struct {
	pool Pool
}

// NewReviewRepo creates a new ReviewRepo.
func NewReviewRepo(pool Pool) *ReviewRepo {
	return &ReviewRepo{pool: pool}
}

// Create opens a review case; false when the provider transaction already has one.
func (r *ReviewRepo) Create(ctx context.Context, rc *domain.ReviewCase) (bool, error) {
	query := `INSERT INTO review_cases (` + reviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (provider_transaction_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		rc.ID, rc.OrderID, rc.Provider, rc.ProviderTransactionID, rc.Reason,
		rc.ExpectedAmount, rc.ReceivedAmount, rc.ReferenceText, rc.Status,
		rc.Resolution, rc.ResolvedBy, rc.CreatedAt, rc.ResolvedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert review case: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByID fetches a review case by its UUID.
func (r *ReviewRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReviewCase, error) {
	query := `SELECT ` + reviewColumns + ` FROM review_cases WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByTransactionID fetches the case opened for a provider transaction.
func (r *ReviewRepo) GetByTransactionID(ctx context.Context, transactionID string) (*domain.ReviewCase, error) {
	query := `SELECT ` + reviewColumns + ` FROM review_cases WHERE provider_transaction_id = $1`
	return r.getOne(ctx, query, transactionID)
}

// Resolve closes an OPEN case.
func (r *ReviewRepo) Resolve(ctx context.Context, id uuid.UUID, resolution, actor string, at time.Time) (bool, error) {
	query := `UPDATE review_cases SET status = 'RESOLVED', resolution = $2, resolved_by = $3, resolved_at = $4
		WHERE id = $1 AND status = 'OPEN'`

	tag, err := r.pool.Exec(ctx, query, id, resolution, actor, at)
	if err != nil {
		return false, fmt.Errorf("resolve review case: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List pages review cases, oldest first so the queue is worked in order.
func (r *ReviewRepo) List(ctx context.Context, status *domain.ReviewStatus, page, pageSize int) ([]domain.ReviewCase, int64, error) {
	where := ""
	var args []any
	if status != nil {
		where = "WHERE status = $1"
		args = append(args, *status)
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM review_cases "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count review cases: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM review_cases %s ORDER BY created_at, id LIMIT $%d OFFSET $%d`,
		reviewColumns, where, n+1, n+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list review cases: %w", err)
	}
	defer rows.Close()

	var cases []domain.ReviewCase
	for rows.Next() {
		var rc domain.ReviewCase
		if err := scanReview(rows, &rc); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		cases = append(cases, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}
	return cases, total, nil
}

func (r *ReviewRepo) getOne(ctx context.Context, query string, arg any) (*domain.ReviewCase, error) {
	rc := &domain.ReviewCase{}
	if err := scanReview(r.pool.QueryRow(ctx, query, arg), rc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get review case: %w", err)
	}
	return rc, nil
}

func scanReview(row pgx.Row, rc *domain.ReviewCase) error {
	return row.Scan(
		&rc.ID, &rc.OrderID, &rc.Provider, &rc.ProviderTransactionID, &rc.Reason,
		&rc.ExpectedAmount, &rc.ReceivedAmount, &rc.ReferenceText, &rc.Status,
		&rc.Resolution, &rc.ResolvedBy, &rc.CreatedAt, &rc.ResolvedAt,
	)
}
