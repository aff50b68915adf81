package model

import (
	"database/sql"
	"time"
)

// VoucherRecord represents one customer/voucher pairing in the users table
type VoucherRecord struct {
	ID          int64        `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	BirthDay    int          `db:"birth_day" json:"birth_day"`
	BirthMonth  int          `db:"birth_month" json:"birth_month"`
	VoucherCode string       `db:"voucher_code" json:"voucher_code"`
	Claimed     bool         `db:"voucher_claimed" json:"voucher_claimed"`
	ClaimedDate sql.NullTime `db:"voucher_claimed_date" json:"voucher_claimed_date"`
}

// VoucherLogEntry is the append-only audit record written on a successful claim
type VoucherLogEntry struct {
	UserID      int64     `db:"user_id" json:"user_id"`
	VoucherCode string    `db:"voucher_code" json:"voucher_code"`
	ClaimedDate time.Time `db:"claimed_date" json:"claimed_date"`
}
