package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alextreichler/detailacademy/internal/models"
)

// Attempt states.
const (
	StateInFlight = "in_flight"
	StateOpen     = "open"
	StatePaid     = "paid"
)

// DefaultStaleAfter is how long an unfinished claim blocks a retry.
const DefaultStaleAfter = 2 * time.Minute

var ErrInFlight = errors.New("a payment for this record is already being processed")

type ClaimStatus int

const (
	// ClaimNew means the caller owns the attempt and must finish it with
	// MarkPaid or Release.
	ClaimNew ClaimStatus = iota
	// ClaimPaid means the record was paid earlier; Receipt holds what was stored.
	ClaimPaid
)

type Claim struct {
	Status ClaimStatus
	// Key is the idempotency key to send with the payment update. A stale
	// claim keeps its original key so a replay is recognized upstream.
	Key     string
	Receipt []byte
}

type Attempt struct {
	Kind          models.Kind
	RecordID      string
	Key           string
	State         string
	TransactionID string
	Receipt       []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Claim reserves the payment of one record. Exactly one concurrent caller
// gets ClaimNew; others get ErrInFlight until the owner finishes or the
// claim is older than staleAfter.
func (s *Store) Claim(ctx context.Context, kind models.Kind, id, key string, staleAfter time.Duration) (*Claim, error) {
	now := s.now().UnixMilli()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO payment_attempts (record_kind, record_id, idempotency_key, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (record_kind, record_id) DO NOTHING`,
		kind, id, key, StateInFlight, now, now)
	if err != nil {
		return nil, fmt.Errorf("claim %s %s: %w", kind, id, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return &Claim{Status: ClaimNew, Key: key}, nil
	}

	var (
		state, existingKey string
		receipt            sql.NullString
		updatedAt          int64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT state, idempotency_key, receipt_json, updated_at
		FROM payment_attempts WHERE record_kind = ? AND record_id = ?`,
		kind, id).Scan(&state, &existingKey, &receipt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("claim %s %s: %w", kind, id, err)
	}

	claim := &Claim{Status: ClaimNew}
	switch {
	case state == StatePaid:
		return &Claim{Status: ClaimPaid, Key: existingKey, Receipt: []byte(receipt.String)}, nil
	case state == StateOpen:
		claim.Key = key
	case state == StateInFlight && now-updatedAt >= staleAfter.Milliseconds():
		claim.Key = existingKey
	default:
		return nil, ErrInFlight
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payment_attempts SET state = ?, idempotency_key = ?, updated_at = ?
		WHERE record_kind = ? AND record_id = ?`,
		StateInFlight, claim.Key, now, kind, id)
	if err != nil {
		return nil, fmt.Errorf("reclaim %s %s: %w", kind, id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return claim, nil
}

// MarkPaid finishes a claim and stores the receipt replayed on later claims.
func (s *Store) MarkPaid(ctx context.Context, kind models.Kind, id, txID string, receipt []byte) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE payment_attempts SET state = ?, transaction_id = ?, receipt_json = ?, updated_at = ?
		WHERE record_kind = ? AND record_id = ?`,
		StatePaid, txID, string(receipt), s.now().UnixMilli(), kind, id)
	if err != nil {
		return fmt.Errorf("mark %s %s paid: %w", kind, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark %s %s paid: %w", kind, id, sql.ErrNoRows)
	}
	return nil
}

// Release gives up an unfinished claim so the customer can try again.
func (s *Store) Release(ctx context.Context, kind models.Kind, id string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE payment_attempts SET state = ?, updated_at = ?
		WHERE record_kind = ? AND record_id = ? AND state = ?`,
		StateOpen, s.now().UnixMilli(), kind, id, StateInFlight)
	if err != nil {
		return fmt.Errorf("release %s %s: %w", kind, id, err)
	}
	return nil
}

func (s *Store) GetAttempt(ctx context.Context, kind models.Kind, id string) (*Attempt, error) {
	var (
		a                Attempt
		txID, receipt    sql.NullString
		created, updated int64
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT record_kind, record_id, idempotency_key, state, transaction_id, receipt_json, created_at, updated_at
		FROM payment_attempts WHERE record_kind = ? AND record_id = ?`,
		kind, id).Scan(&a.Kind, &a.RecordID, &a.Key, &a.State, &txID, &receipt, &created, &updated)
	if err != nil {
		return nil, err
	}
	a.TransactionID = txID.String
	if receipt.Valid {
		a.Receipt = []byte(receipt.String)
	}
	a.CreatedAt = time.UnixMilli(created)
	a.UpdatedAt = time.UnixMilli(updated)
	return &a, nil
}

// Prune deletes attempts untouched for longer than olderThan. In-flight
// rows are left alone so a slow payment is never forgotten mid-way.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).UnixMilli()
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM payment_attempts WHERE updated_at < ? AND state != ?`,
		cutoff, StateInFlight)
	if err != nil {
		return 0, fmt.Errorf("prune ledger: %w", err)
	}
	return res.RowsAffected()
}
