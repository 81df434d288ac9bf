package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/nostrledger/ledger-service/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInsufficientFunds is returned when a sender cannot cover a debit.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrStaleBalance is returned when a balance head moved under us between
// read and update. Safe to retry.
var ErrStaleBalance = errors.New("balance head changed concurrently")

// RepositoryInterface restricts Repo methods (keeps unit-test mocks small).
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	SerializableTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	EventExists(ctx context.Context, tx *gorm.DB, id string) (bool, error)
	CreateEvent(ctx context.Context, tx *gorm.DB, e *model.Event) error

	TokensByName(ctx context.Context, tx *gorm.DB, names []string) (map[string]model.Token, error)
	TransactionTypeByDescription(ctx context.Context, tx *gorm.DB, desc string) (*model.TransactionType, error)
	CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error

	SufficientBalances(ctx context.Context, tx *gorm.DB, account string, need map[uuid.UUID]decimal.Decimal) ([]*model.Balance, error)
	BalancesForTokens(ctx context.Context, tx *gorm.DB, account string, tokenIDs []uuid.UUID) ([]*model.Balance, error)
	AccountBalances(ctx context.Context, account string) ([]model.Balance, error)
	GetBalance(ctx context.Context, account string, tokenID uuid.UUID) (*model.Balance, error)
	SnapshotHistory(ctx context.Context, account string, tokenID uuid.UUID, limit int) ([]model.BalanceSnapshot, error)
	Tokens(ctx context.Context) ([]model.Token, error)

	Debit(ctx context.Context, tx *gorm.DB, balances []*model.Balance, deltas map[uuid.UUID]decimal.Decimal, txID uuid.UUID, eventID string) error
	Credit(ctx context.Context, tx *gorm.DB, balances []*model.Balance, deltas map[uuid.UUID]decimal.Decimal, txID uuid.UUID, eventID string) error
	CreateFresh(ctx context.Context, tx *gorm.DB, account string, entries []FreshEntry, txID uuid.UUID, eventID string) ([]*model.Balance, error)

	CreateOutboxEvents(ctx context.Context, tx *gorm.DB, evts []*model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error

	CacheBalance(ctx context.Context, account, token string, bal decimal.Decimal) error
	GetCachedBalance(ctx context.Context, account, token string) (decimal.Decimal, error)
}

// Repository implements RepositoryInterface.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// SerializableTx runs fn inside a serializable database transaction.
func (r *Repository) SerializableTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// EventExists reports whether the request id has already been handled.
func (r *Repository) EventExists(ctx context.Context, tx *gorm.DB, id string) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Model(&model.Event{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateEvent persists the durable footprint of a handled request.
func (r *Repository) CreateEvent(ctx context.Context, tx *gorm.DB, e *model.Event) error {
	return tx.WithContext(ctx).Create(e).Error
}

// TokensByName resolves token names to rows. Missing names are simply
// absent from the result map.
func (r *Repository) TokensByName(ctx context.Context, tx *gorm.DB, names []string) (map[string]model.Token, error) {
	var rows []model.Token
	if err := tx.WithContext(ctx).Where("name IN ?", names).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]model.Token, len(rows))
	for _, t := range rows {
		out[t.Name] = t
	}
	return out, nil
}

// TransactionTypeByDescription resolves a variant descriptor row.
func (r *Repository) TransactionTypeByDescription(ctx context.Context, tx *gorm.DB, desc string) (*model.TransactionType, error) {
	var tt model.TransactionType
	err := tx.WithContext(ctx).Where("description = ?", desc).First(&tt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tt, nil
}

// CreateTransaction inserts record.
func (r *Repository) CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error {
	return tx.WithContext(ctx).Create(t).Error
}

// Tokens lists all provisioned tokens.
func (r *Repository) Tokens(ctx context.Context) ([]model.Token, error) {
	var rows []model.Token
	err := r.db.WithContext(ctx).Order("name").Find(&rows).Error
	return rows, err
}

// CreateOutboxEvents appends outgoing events to the outbox table.
func (r *Repository) CreateOutboxEvents(ctx context.Context, tx *gorm.DB, evts []*model.OutboxEvent) error {
	if len(evts) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(evts).Error
}

// PollOutbox pulls unprocessed events.
func (r *Repository) PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).Where("processed = false").Order("created_at").Limit(limit).Find(&evts).Error
	return evts, err
}

// MarkOutboxProcessed sets processed flag.
func (r *Repository) MarkOutboxProcessed(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now}).Error
}

// PublishEvent sends one outbox row to the relay bridge topic.
func (r *Repository) PublishEvent(ctx context.Context, evt model.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", evt.ID)),
		Value: []byte(evt.Payload),
		Time:  time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}

// CacheBalance writes Redis. No-op without a cache client.
func (r *Repository) CacheBalance(ctx context.Context, account, token string, bal decimal.Decimal) error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Set(ctx, balanceCacheKey(account, token), bal.String(), 5*time.Minute).Err()
}

// GetCachedBalance reads Redis.
func (r *Repository) GetCachedBalance(ctx context.Context, account, token string) (decimal.Decimal, error) {
	if r.rdb == nil {
		return decimal.Zero, redis.Nil
	}
	str, err := r.rdb.Get(ctx, balanceCacheKey(account, token)).Result()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(str)
}

func balanceCacheKey(account, token string) string {
	return fmt.Sprintf("balance:%s:%s", token, account)
}
