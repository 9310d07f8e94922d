package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const payoutColumns = `id, wallet_id, amount, bank_code, account_number, account_name, status,
	rejection_reason, processed_by, created_at, processed_at, transferred_at`

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	pool Pool
}

// NewPayoutRepo creates a new PayoutRepo.
func NewPayoutRepo(pool Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

// Create inserts a new payout request.
func (r *PayoutRepo) Create(ctx context.Context, p *domain.PayoutRequest) error {
	query := `INSERT INTO payout_requests (` + payoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.WalletID, p.Amount,
		p.Destination.BankCode, p.Destination.AccountNumber, p.Destination.AccountName,
		p.Status, p.RejectionReason, p.ProcessedBy,
		p.CreatedAt, p.ProcessedAt, p.TransferredAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout request: %w", err)
	}
	return nil
}

// GetByID fetches a payout request by its UUID.
func (r *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE id = $1`

	p := &domain.PayoutRequest{}
	if err := scanPayout(r.pool.QueryRow(ctx, query, id), p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payout by id: %w", err)
	}
	return p, nil
}

// Transition moves the request from t.From to t.To if nobody else has.
// Review decisions stamp processed_by/processed_at; the bank transfer stamps
// transferred_at.
func (r *PayoutRepo) Transition(ctx context.Context, tx pgx.Tx, t ports.PayoutTransition) (bool, error) {
	var (
		query string
		args  []any
	)
	switch t.To {
	case domain.PayoutStatusTransferred:
		query = `UPDATE payout_requests SET status = $3, transferred_at = $4
			WHERE id = $1 AND status = $2`
		args = []any{t.ID, t.From, t.To, t.At}
	default:
		query = `UPDATE payout_requests
			SET status = $3, processed_by = $4, processed_at = $5, rejection_reason = $6
			WHERE id = $1 AND status = $2`
		args = []any{t.ID, t.From, t.To, t.Actor, t.At, t.Reason}
	}

	tag, err := on(r.pool, tx).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition payout: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List fetches payout requests with filtering and pagination, newest first.
func (r *PayoutRepo) List(ctx context.Context, params ports.PayoutListParams) ([]domain.PayoutRequest, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.WalletID != nil {
		conditions = append(conditions, fmt.Sprintf("wallet_id = $%d", argIdx))
		args = append(args, *params.WalletID)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM payout_requests "+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count payouts: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM payout_requests %s
		ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, payoutColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []domain.PayoutRequest
	for rows.Next() {
		var p domain.PayoutRequest
		if err := scanPayout(rows, &p); err != nil {
			return nil, 0, fmt.Errorf("scan payout row: %w", err)
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate payout rows: %w", err)
	}
	return payouts, total, nil
}

func scanPayout(row pgx.Row, p *domain.PayoutRequest) error {
	return row.Scan(
		&p.ID, &p.WalletID, &p.Amount,
		&p.Destination.BankCode, &p.Destination.AccountNumber, &p.Destination.AccountName,
		&p.Status, &p.RejectionReason, &p.ProcessedBy,
		&p.CreatedAt, &p.ProcessedAt, &p.TransferredAt,
	)
}
