package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, owner_id, role, status, balance, total_credited, total_debited, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet. A concurrent insert for the same owner and
// role wins silently and false is returned.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) (bool, error) {
	query := `INSERT INTO wallets (id, owner_id, role, status, balance, total_credited, total_debited, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner_id, role) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		w.ID, w.OwnerID, w.Role, w.Status,
		w.Balance, w.TotalCredited, w.TotalDebited,
		w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert wallet: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByID fetches a wallet by its UUID.
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// GetByOwner fetches the wallet an owner holds in the given role.
func (r *WalletRepo) GetByOwner(ctx context.Context, ownerID string, role domain.WalletRole) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1 AND role = $2`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, ownerID, role))
	if err != nil {
		return nil, fmt.Errorf("get wallet by owner: %w", err)
	}
	return w, nil
}

// ApplyDelta moves the balance and the matching running total in one
// statement. The WHERE clause carries the non-negative balance rule and the
// frozen-wallet rule, so concurrent debits cannot overdraw.
func (r *WalletRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64) (int64, bool, error) {
	query := `UPDATE wallets
		SET balance = balance + $2,
			total_credited = total_credited + GREATEST($2, 0),
			total_debited = total_debited + GREATEST(-$2, 0),
			updated_at = NOW()
		WHERE id = $1
			AND balance + $2 >= 0
			AND ($2 > 0 OR status = 'ACTIVE')
		RETURNING balance`

	var balance int64
	err := on(r.pool, tx).QueryRow(ctx, query, id, delta).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("apply wallet delta: %w", err)
	}
	return balance, true, nil
}

// UpdateStatus flips the wallet status when it is still in the expected state.
func (r *WalletRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.WalletStatus) (bool, error) {
	query := `UPDATE wallets SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`

	tag, err := r.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update wallet status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListAfter returns up to limit wallets with ids greater than after, in id order.
func (r *WalletRepo) ListAfter(ctx context.Context, after uuid.UUID, limit int) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id > $1 ORDER BY id LIMIT $2`

	rows, err := r.pool.Query(ctx, query, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(
			&w.ID, &w.OwnerID, &w.Role, &w.Status,
			&w.Balance, &w.TotalCredited, &w.TotalDebited,
			&w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.OwnerID, &w.Role, &w.Status,
		&w.Balance, &w.TotalCredited, &w.TotalDebited,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}
