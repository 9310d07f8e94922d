package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `id, wallet_id, kind, amount, balance_before, balance_after, reference_id, note, created_at`

// LedgerRepo implements ports.LedgerRepository. Rows are append-only; the
// schema rejects UPDATE and DELETE with a trigger.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Insert appends the entry inside tx. It returns false when an entry with the
// same (wallet, reference, kind) exists and the kind is idempotent.
func (r *LedgerRepo) Insert(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) (bool, error) {
	query := `INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (wallet_id, reference_id, kind) WHERE kind <> 'ADJUSTMENT' DO NOTHING`

	tag, err := on(r.pool, tx).Exec(ctx, query,
		e.ID, e.WalletID, e.Kind, e.Amount,
		e.BalanceBefore, e.BalanceAfter,
		e.ReferenceID, e.Note, e.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert ledger entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByReference finds the entry recorded for a reference and kind.
func (r *LedgerRepo) GetByReference(ctx context.Context, walletID uuid.UUID, referenceID string, kind domain.EntryKind) (*domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries
		WHERE wallet_id = $1 AND reference_id = $2 AND kind = $3
		ORDER BY seq LIMIT 1`

	e := &domain.LedgerEntry{}
	err := scanEntry(r.pool.QueryRow(ctx, query, walletID, referenceID, kind), e)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger entry by reference: %w", err)
	}
	return e, nil
}

// ListByWallet returns a page of the wallet's entries, newest first.
func (r *LedgerRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE wallet_id = $1`, walletID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries
		WHERE wallet_id = $1 ORDER BY seq DESC LIMIT $2 OFFSET $3`

	entries, err := r.collect(ctx, query, walletID, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// AllByWallet returns every entry in application order.
func (r *LedgerRepo) AllByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE wallet_id = $1 ORDER BY seq`
	return r.collect(ctx, query, walletID)
}

func (r *LedgerRepo) collect(ctx context.Context, query string, args ...any) ([]domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := scanEntry(rows, &e); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, nil
}

func scanEntry(row pgx.Row, e *domain.LedgerEntry) error {
	return row.Scan(
		&e.ID, &e.WalletID, &e.Kind, &e.Amount,
		&e.BalanceBefore, &e.BalanceAfter,
		&e.ReferenceID, &e.Note, &e.CreatedAt,
	)
}
