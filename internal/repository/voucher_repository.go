package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kkkkikiki/voucher/internal/model"
)

var (
	// ErrNotFound means no record matches the voucher code
	ErrNotFound = errors.New("voucher not found")

	// ErrAlreadyClaimedOrInvalid covers both an unknown code and an
	// already-claimed one; callers cannot tell the two apart
	ErrAlreadyClaimedOrInvalid = errors.New("voucher already claimed or invalid")
)

// VoucherRepository handles voucher data operations against the users table
// and the claim log table
type VoucherRepository struct {
	db         *sqlx.DB
	usersTable string
	logTable   string
}

// NewVoucherRepository creates a new voucher repository. Table names come from
// configuration and are quoted, never interpolated from request data.
func NewVoucherRepository(db *sqlx.DB, usersTable, logTable string) *VoucherRepository {
	return &VoucherRepository{
		db:         db,
		usersTable: pq.QuoteIdentifier(usersTable),
		logTable:   pq.QuoteIdentifier(logTable),
	}
}

// FindByCode looks up exactly one record by exact match on voucher_code
func (r *VoucherRepository) FindByCode(ctx context.Context, code string) (*model.VoucherRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, name, birth_day, birth_month, voucher_code, voucher_claimed, voucher_claimed_date
		FROM %s
		WHERE voucher_code = $1
	`, r.usersTable)

	var record model.VoucherRecord
	if err := r.db.GetContext(ctx, &record, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up voucher: %w", err)
	}

	return &record, nil
}

// Claim transitions one record from unclaimed to claimed and appends the audit
// log entry, both within a single transaction. The conditional UPDATE is the
// sole source of truth for success: zero rows means the code is unknown or was
// already claimed, and no separate read-back of the flag happens anywhere.
func (r *VoucherRepository) Claim(ctx context.Context, code string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	update := fmt.Sprintf(`
		UPDATE %s
		SET voucher_claimed = TRUE, voucher_claimed_date = $1
		WHERE voucher_code = $2 AND voucher_claimed = FALSE
		RETURNING id
	`, r.usersTable)

	// RETURNING id re-derives the user id from the row that actually
	// transitioned; client-echoed ids are never trusted for the log.
	claimedDate := time.Now()
	var userID int64
	if err := tx.GetContext(ctx, &userID, update, claimedDate, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAlreadyClaimedOrInvalid
		}
		return 0, fmt.Errorf("failed to claim voucher: %w", err)
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (user_id, voucher_code, claimed_date)
		VALUES ($1, $2, $3)
	`, r.logTable)

	if _, err := tx.ExecContext(ctx, insert, userID, code, claimedDate); err != nil {
		return 0, fmt.Errorf("failed to append voucher log entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit claim: %w", err)
	}

	return userID, nil
}
