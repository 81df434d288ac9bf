package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nostrledger/ledger-service/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FreshEntry describes one balance to create for a previously-unseen
// (account, token) pair.
type FreshEntry struct {
	TokenID uuid.UUID
	Amount  decimal.Decimal
}

// SufficientBalances loads the account's balances restricted to tokens
// whose current amount covers the needed debit. The caller compares the
// result cardinality against the requested token set to decide
// sufficiency; a short result is the insufficient-funds signal.
func (r *Repository) SufficientBalances(ctx context.Context, tx *gorm.DB, account string, need map[uuid.UUID]decimal.Decimal) ([]*model.Balance, error) {
	if len(need) == 0 {
		return nil, nil
	}
	var frags []string
	args := []interface{}{account}
	for tokenID, amt := range need {
		frags = append(frags, "(token_id = ? AND amount >= ?)")
		args = append(args, tokenID, amt)
	}
	var rows []*model.Balance
	err := tx.WithContext(ctx).
		Where("account_id = ? AND ("+strings.Join(frags, " OR ")+")", args...).
		Find(&rows).Error
	return rows, err
}

// BalancesForTokens loads the account's existing balances for the given
// tokens, without any amount predicate.
func (r *Repository) BalancesForTokens(ctx context.Context, tx *gorm.DB, account string, tokenIDs []uuid.UUID) ([]*model.Balance, error) {
	if len(tokenIDs) == 0 {
		return nil, nil
	}
	var rows []*model.Balance
	err := tx.WithContext(ctx).
		Where("account_id = ? AND token_id IN ?", account, tokenIDs).
		Find(&rows).Error
	return rows, err
}

// AccountBalances lists all current balances of one account.
func (r *Repository) AccountBalances(ctx context.Context, account string) ([]model.Balance, error) {
	var rows []model.Balance
	err := r.db.WithContext(ctx).Where("account_id = ?", account).Find(&rows).Error
	return rows, err
}

// GetBalance loads one (account, token) balance.
func (r *Repository) GetBalance(ctx context.Context, account string, tokenID uuid.UUID) (*model.Balance, error) {
	var b model.Balance
	if err := r.db.WithContext(ctx).Where("account_id = ? AND token_id = ?", account, tokenID).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// SnapshotHistory returns the newest snapshots of one (account, token),
// head first.
func (r *Repository) SnapshotHistory(ctx context.Context, account string, tokenID uuid.UUID, limit int) ([]model.BalanceSnapshot, error) {
	var rows []model.BalanceSnapshot
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND token_id = ?", account, tokenID).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Debit subtracts the per-token delta from each balance, appending a
// snapshot per mutation. The passed balances are updated in place so the
// caller can announce the new amounts.
func (r *Repository) Debit(ctx context.Context, tx *gorm.DB, balances []*model.Balance, deltas map[uuid.UUID]decimal.Decimal, txID uuid.UUID, eventID string) error {
	for _, b := range balances {
		d, ok := deltas[b.TokenID]
		if !ok {
			continue
		}
		newAmt := b.Amount.Sub(d)
		if newAmt.IsNegative() {
			return ErrInsufficientFunds
		}
		if err := r.applyDelta(ctx, tx, b, newAmt, d.Neg(), txID, eventID); err != nil {
			return err
		}
	}
	return nil
}

// Credit adds the per-token delta to each balance, appending a snapshot
// per mutation.
func (r *Repository) Credit(ctx context.Context, tx *gorm.DB, balances []*model.Balance, deltas map[uuid.UUID]decimal.Decimal, txID uuid.UUID, eventID string) error {
	for _, b := range balances {
		d, ok := deltas[b.TokenID]
		if !ok {
			continue
		}
		if err := r.applyDelta(ctx, tx, b, b.Amount.Add(d), d, txID, eventID); err != nil {
			return err
		}
	}
	return nil
}

// applyDelta appends one snapshot linked to the current head and swings
// the balance row onto it. The snapshot_id predicate in the UPDATE guards
// against a concurrently advanced head.
func (r *Repository) applyDelta(ctx context.Context, tx *gorm.DB, b *model.Balance, newAmt, delta decimal.Decimal, txID uuid.UUID, eventID string) error {
	prev := b.SnapshotID
	snap := &model.BalanceSnapshot{
		ID:             uuid.New(),
		PrevSnapshotID: &prev,
		Amount:         newAmt,
		Delta:          delta,
		TransactionID:  txID,
		EventID:        eventID,
		TokenID:        b.TokenID,
		AccountID:      b.AccountID,
	}
	if err := tx.WithContext(ctx).Create(snap).Error; err != nil {
		return err
	}
	res := tx.WithContext(ctx).
		Model(&model.Balance{}).
		Where("id = ? AND snapshot_id = ?", b.ID, prev).
		Updates(map[string]interface{}{
			"amount":      newAmt,
			"snapshot_id": snap.ID,
			"event_id":    eventID,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleBalance
	}
	b.Amount = newAmt
	b.SnapshotID = snap.ID
	b.EventID = eventID
	return nil
}

// Balance and its first snapshot reference each other at creation, so
// both rows land in one compound statement on postgres.
const createFreshCTE = `
WITH snap AS (
	INSERT INTO balance_snapshot
		(id, prev_snapshot_id, amount, delta, transaction_id, event_id, token_id, account_id, created_at)
	VALUES (?, NULL, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	RETURNING id
)
INSERT INTO balance (id, account_id, token_id, amount, snapshot_id, event_id, updated_at)
SELECT ?, ?, ?, ?, snap.id, ?, CURRENT_TIMESTAMP FROM snap`

// CreateFresh creates a balance plus its root snapshot for each entry.
// A unique violation here means a concurrent request created the pair
// first; the engine classifies that as retriable and the retry credits
// the existing row instead.
func (r *Repository) CreateFresh(ctx context.Context, tx *gorm.DB, account string, entries []FreshEntry, txID uuid.UUID, eventID string) ([]*model.Balance, error) {
	out := make([]*model.Balance, 0, len(entries))
	for _, e := range entries {
		snapID := uuid.New()
		balID := uuid.New()
		if tx.Dialector.Name() == "postgres" {
			err := tx.WithContext(ctx).Exec(createFreshCTE,
				snapID, e.Amount, e.Amount, txID, eventID, e.TokenID, account,
				balID, account, e.TokenID, e.Amount, eventID,
			).Error
			if err != nil {
				return nil, err
			}
		} else {
			// sqlite (tests) has no data-modifying CTEs; two ordered
			// inserts in the same transaction keep the foreign key valid.
			snap := &model.BalanceSnapshot{
				ID:            snapID,
				Amount:        e.Amount,
				Delta:         e.Amount,
				TransactionID: txID,
				EventID:       eventID,
				TokenID:       e.TokenID,
				AccountID:     account,
			}
			if err := tx.WithContext(ctx).Create(snap).Error; err != nil {
				return nil, err
			}
			bal := &model.Balance{
				ID:         balID,
				AccountID:  account,
				TokenID:    e.TokenID,
				Amount:     e.Amount,
				SnapshotID: snapID,
				EventID:    eventID,
			}
			if err := tx.WithContext(ctx).Create(bal).Error; err != nil {
				return nil, err
			}
		}
		out = append(out, &model.Balance{
			ID:         balID,
			AccountID:  account,
			TokenID:    e.TokenID,
			Amount:     e.Amount,
			SnapshotID: snapID,
			EventID:    eventID,
		})
	}
	return out, nil
}
