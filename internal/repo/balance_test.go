package repo

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/nostrledger/ledger-service/internal/logger"
	"github.com/nostrledger/ledger-service/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) (*Repository, context.Context) {
	// one shared in-memory db per test; plain :memory: would give every
	// pooled connection its own database
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&model.Event{},
		&model.Token{},
		&model.TransactionType{},
		&model.Transaction{},
		&model.Balance{},
		&model.BalanceSnapshot{},
		&model.OutboxEvent{},
	))
	log, _ := logger.NewLogger()
	return NewRepository(db, nil, nil, log), context.Background()
}

func TestCreateFresh_RootSnapshot(t *testing.T) {
	r, ctx := newTestRepo(t)
	tokenID := uuid.New()
	txID := uuid.New()
	account := "acct-a"

	var created []*model.Balance
	err := r.SerializableTx(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = r.CreateFresh(ctx, tx, account,
			[]FreshEntry{{TokenID: tokenID, Amount: decimal.NewFromInt(1000)}}, txID, "ev1")
		return err
	})
	assert.NoError(t, err)
	assert.Len(t, created, 1)

	var b model.Balance
	assert.NoError(t, r.db.Where("account_id = ? AND token_id = ?", account, tokenID).First(&b).Error)
	assert.Equal(t, "1000", b.Amount.String())

	var snap model.BalanceSnapshot
	assert.NoError(t, r.db.First(&snap, "id = ?", b.SnapshotID).Error)
	assert.Nil(t, snap.PrevSnapshotID)
	assert.Equal(t, "1000", snap.Amount.String())
	assert.Equal(t, "1000", snap.Delta.String())
	assert.Equal(t, txID, snap.TransactionID)
	assert.Equal(t, "ev1", snap.EventID)
}

func TestCreateFresh_UniquePair(t *testing.T) {
	r, ctx := newTestRepo(t)
	tokenID := uuid.New()

	err := r.SerializableTx(ctx, func(tx *gorm.DB) error {
		_, err := r.CreateFresh(ctx, tx, "acct-a",
			[]FreshEntry{{TokenID: tokenID, Amount: decimal.NewFromInt(1)}}, uuid.New(), "ev1")
		return err
	})
	assert.NoError(t, err)

	err = r.SerializableTx(ctx, func(tx *gorm.DB) error {
		_, err := r.CreateFresh(ctx, tx, "acct-a",
			[]FreshEntry{{TokenID: tokenID, Amount: decimal.NewFromInt(1)}}, uuid.New(), "ev2")
		return err
	})
	assert.Error(t, err, "second create of the same (account, token) violates the unique index")
}

func TestDebitCredit_ChainIntegrity(t *testing.T) {
	r, ctx := newTestRepo(t)
	tokenID := uuid.New()
	account := "acct-a"

	err := r.SerializableTx(ctx, func(tx *gorm.DB) error {
		created, err := r.CreateFresh(ctx, tx, account,
			[]FreshEntry{{TokenID: tokenID, Amount: decimal.NewFromInt(100)}}, uuid.New(), "ev1")
		if err != nil {
			return err
		}
		deltas := map[uuid.UUID]decimal.Decimal{tokenID: decimal.NewFromInt(50)}
		if err := r.Credit(ctx, tx, created, deltas, uuid.New(), "ev2"); err != nil {
			return err
		}
		deltas[tokenID] = decimal.NewFromInt(30)
		return r.Debit(ctx, tx, created, deltas, uuid.New(), "ev3")
	})
	assert.NoError(t, err)

	var b model.Balance
	assert.NoError(t, r.db.Where("account_id = ?", account).First(&b).Error)
	assert.Equal(t, "120", b.Amount.String())
	assert.Equal(t, "ev3", b.EventID)

	// walk the chain head to root, summing deltas
	sum := decimal.Zero
	id := &b.SnapshotID
	steps := 0
	for id != nil {
		var snap model.BalanceSnapshot
		assert.NoError(t, r.db.First(&snap, "id = ?", *id).Error)
		sum = sum.Add(snap.Delta)
		id = snap.PrevSnapshotID
		steps++
	}
	assert.Equal(t, 3, steps)
	assert.True(t, sum.Equal(b.Amount), "chain deltas sum to the current amount")
}

func TestSufficientBalances_FiltersShortRows(t *testing.T) {
	r, ctx := newTestRepo(t)
	gold := uuid.New()
	silver := uuid.New()

	err := r.SerializableTx(ctx, func(tx *gorm.DB) error {
		_, err := r.CreateFresh(ctx, tx, "acct-a", []FreshEntry{
			{TokenID: gold, Amount: decimal.NewFromInt(100)},
			{TokenID: silver, Amount: decimal.NewFromInt(5)},
		}, uuid.New(), "ev1")
		return err
	})
	assert.NoError(t, err)

	need := map[uuid.UUID]decimal.Decimal{
		gold:   decimal.NewFromInt(50),
		silver: decimal.NewFromInt(10),
	}
	var rows []*model.Balance
	err = r.SerializableTx(ctx, func(tx *gorm.DB) error {
		var err error
		rows, err = r.SufficientBalances(ctx, tx, "acct-a", need)
		return err
	})
	assert.NoError(t, err)
	assert.Len(t, rows, 1, "only the covered token qualifies")
	assert.Equal(t, gold, rows[0].TokenID)
}

func TestDebit_GuardsNegative(t *testing.T) {
	r, ctx := newTestRepo(t)
	tokenID := uuid.New()

	err := r.SerializableTx(ctx, func(tx *gorm.DB) error {
		created, err := r.CreateFresh(ctx, tx, "acct-a",
			[]FreshEntry{{TokenID: tokenID, Amount: decimal.NewFromInt(10)}}, uuid.New(), "ev1")
		if err != nil {
			return err
		}
		return r.Debit(ctx, tx, created,
			map[uuid.UUID]decimal.Decimal{tokenID: decimal.NewFromInt(40)}, uuid.New(), "ev2")
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	var b model.Balance
	assert.NoError(t, r.db.Where("account_id = ?", "acct-a").First(&b).Error)
	assert.Equal(t, "10", b.Amount.String(), "aborted transaction left no effect")
}

func TestApplyDelta_StaleHead(t *testing.T) {
	r, ctx := newTestRepo(t)
	tokenID := uuid.New()

	var created []*model.Balance
	err := r.SerializableTx(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = r.CreateFresh(ctx, tx, "acct-a",
			[]FreshEntry{{TokenID: tokenID, Amount: decimal.NewFromInt(10)}}, uuid.New(), "ev1")
		return err
	})
	assert.NoError(t, err)

	stale := *created[0]
	stale.SnapshotID = uuid.New() // head moved under us

	err = r.SerializableTx(ctx, func(tx *gorm.DB) error {
		return r.Credit(ctx, tx, []*model.Balance{&stale},
			map[uuid.UUID]decimal.Decimal{tokenID: decimal.NewFromInt(1)}, uuid.New(), "ev2")
	})
	assert.ErrorIs(t, err, ErrStaleBalance)
}
