package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const paymentColumns = `order_id, seller_id, wallet_id, expected_amount, method, status,
	provider_transaction_id, failure_reason, paid_at, created_at, updated_at`

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// Create inserts the payment record; false when the order already has one.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.PaymentRecord) (bool, error) {
	query := `INSERT INTO payment_records (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (order_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		p.OrderID, p.SellerID, p.WalletID, p.ExpectedAmount, p.Method, p.Status,
		p.ProviderTransactionID, p.FailureReason, p.PaidAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert payment record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByOrderID fetches the payment record for an order.
func (r *PaymentRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE order_id = $1`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		return nil, fmt.Errorf("get payment by order id: %w", err)
	}
	return p, nil
}

// GetByProviderTransactionID fetches the record a provider transaction settled.
func (r *PaymentRepo) GetByProviderTransactionID(ctx context.Context, transactionID string) (*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE provider_transaction_id = $1`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, transactionID))
	if err != nil {
		return nil, fmt.Errorf("get payment by transaction id: %w", err)
	}
	return p, nil
}

// MarkPaid settles a PENDING record inside tx. Only one caller can win the
// PENDING -> PAID write for an order.
func (r *PaymentRepo) MarkPaid(ctx context.Context, tx pgx.Tx, orderID, transactionID string, paidAt time.Time) (bool, error) {
	query := `UPDATE payment_records
		SET status = 'PAID', provider_transaction_id = $2, paid_at = $3, updated_at = $3
		WHERE order_id = $1 AND status = 'PENDING'`

	tag, err := on(r.pool, tx).Exec(ctx, query, orderID, transactionID, paidAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, domain.ErrTransactionIDUsed
		}
		return false, fmt.Errorf("mark payment paid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed moves a PENDING record to FAILED.
func (r *PaymentRepo) MarkFailed(ctx context.Context, orderID, reason string) (bool, error) {
	query := `UPDATE payment_records
		SET status = 'FAILED', failure_reason = $2, updated_at = NOW()
		WHERE order_id = $1 AND status = 'PENDING'`

	tag, err := r.pool.Exec(ctx, query, orderID, reason)
	if err != nil {
		return false, fmt.Errorf("mark payment failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanPayment(row pgx.Row) (*domain.PaymentRecord, error) {
	p := &domain.PaymentRecord{}
	err := row.Scan(
		&p.OrderID, &p.SellerID, &p.WalletID, &p.ExpectedAmount, &p.Method, &p.Status,
		&p.ProviderTransactionID, &p.FailureReason, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}
