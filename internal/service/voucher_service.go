package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kkkkikiki/voucher/internal/metrics"
	"github.com/kkkkikiki/voucher/internal/model"
	"github.com/kkkkikiki/voucher/internal/repository"
)

// ErrEmptyCode is returned for empty or whitespace-only voucher codes before
// any storage access happens
var ErrEmptyCode = errors.New("voucher code is empty")

// VoucherStore is the persistence contract the lookup flow depends on
type VoucherStore interface {
	FindByCode(ctx context.Context, code string) (*model.VoucherRecord, error)
	Claim(ctx context.Context, code string) (int64, error)
}

// VoucherService drives the two-step lookup/confirm flow
type VoucherService struct {
	store VoucherStore
}

// NewVoucherService creates a new VoucherService instance
func NewVoucherService(store VoucherStore) *VoucherService {
	return &VoucherService{store: store}
}

// Lookup finds the record for a submitted voucher code. The caller branches on
// the record's Claimed flag to pick the next view.
func (s *VoucherService) Lookup(ctx context.Context, code string) (*model.VoucherRecord, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyCode
	}

	record, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordLookup("not_found")
		} else {
			metrics.RecordLookup("error")
		}
		return nil, err
	}

	if record.Claimed {
		metrics.RecordLookup("already_claimed")
	} else {
		metrics.RecordLookup("found")
	}

	return record, nil
}

// Confirm attempts the one-way claim transition for a submitted voucher code
// and returns the id of the user whose voucher transitioned
func (s *VoucherService) Confirm(ctx context.Context, code string) (int64, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, ErrEmptyCode
	}

	// Start timing for metrics
	start := time.Now()
	result := "error"

	// Defer metric recording to ensure it's always called
	defer func() {
		duration := time.Since(start).Seconds()
		metrics.RecordClaimDuration(result, duration)
	}()

	userID, err := s.store.Claim(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyClaimedOrInvalid) {
			result = "conflict"
		}
		return 0, err
	}

	result = "success"
	return userID, nil
}
