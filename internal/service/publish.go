package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nostrledger/ledger-service/internal/metrics"
	"github.com/nostrledger/ledger-service/internal/model"
	"github.com/nostrledger/ledger-service/internal/nostr"
	"gorm.io/gorm"
)

// enqueueOutcome appends the ok outcome plus one balance announcement
// per affected balance to the outbox, inside the mutation transaction.
func (e *Engine) enqueueOutcome(ctx context.Context, tx *gorm.DB, req *TxRequest, affected []*model.Balance) error {
	rows := make([]*model.OutboxEvent, 0, 1+len(affected))

	ok := nostr.OkOutcome(e.ledgerPubKey, req.Event, req.Sender, req.Receiver, req.Variant.OkTag())
	row, err := outboxRow(ok)
	if err != nil {
		return err
	}
	rows = append(rows, row)

	for _, b := range affected {
		ann := nostr.BalanceAnnouncement(e.ledgerPubKey, b.AccountID, req.tokenName(b.TokenID), b.Amount, req.Event.ID)
		row, err := outboxRow(ann)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	if err := e.repo.CreateOutboxEvents(ctx, tx, rows); err != nil {
		return err
	}
	for _, r := range rows {
		metrics.OutboxEnqueued.WithLabelValues(strconv.Itoa(r.Kind)).Inc()
	}
	return nil
}

// reject persists the Event row and enqueues the single error outcome in
// one transaction, making the rejection durable and non-replayable.
func (e *Engine) reject(ctx context.Context, ev *nostr.Event, variant model.Variant, rej *rejection) error {
	evRow := &model.Event{
		ID:        ev.ID,
		Signature: ev.Sig,
		Signer:    ev.PubKey,
		Author:    rej.author,
		Kind:      ev.Kind,
		Payload:   eventPayload(rej.payload),
	}
	out := nostr.ErrorOutcome(e.ledgerPubKey, ev, rej.sender, rej.receiver, variant.ErrorTag(), rej.reason)
	row, err := outboxRow(out)
	if err != nil {
		return err
	}
	err = e.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := e.repo.CreateEvent(ctx, tx, evRow); err != nil {
			return err
		}
		return e.repo.CreateOutboxEvents(ctx, tx, []*model.OutboxEvent{row})
	})
	if err != nil {
		return err
	}
	metrics.OutboxEnqueued.WithLabelValues(strconv.Itoa(row.Kind)).Inc()
	e.log.Infow("request rejected", "event", ev.ID, "variant", variant, "reason", rej.reason)
	return nil
}

func outboxRow(out *nostr.Outgoing) (*model.OutboxEvent, error) {
	payload, err := out.Marshal()
	if err != nil {
		return nil, err
	}
	return &model.OutboxEvent{Kind: out.Kind, Payload: payload}, nil
}

// balancePair identifies one announced (account, token).
type balancePair struct {
	account   string
	tokenID   uuid.UUID
	tokenName string
}

func announcedPairs(req *TxRequest, affected []*model.Balance) []balancePair {
	out := make([]balancePair, 0, len(affected))
	for _, b := range affected {
		out = append(out, balancePair{account: b.AccountID, tokenID: b.TokenID, tokenName: req.tokenName(b.TokenID)})
	}
	return out
}

// cacheBalances refreshes the read cache, best-effort.
func (e *Engine) cacheBalances(ctx context.Context, req *TxRequest, affected []*model.Balance) {
	for _, b := range affected {
		if err := e.repo.CacheBalance(ctx, b.AccountID, req.tokenName(b.TokenID), b.Amount); err != nil {
			e.log.Warnf("cache balance: %v", err)
		}
	}
}

// scheduleRepublish re-announces the affected balances after the
// configured delay, with freshly queried amounts. The substrate does not
// preserve ordering, so clients that saw the outcome before the first
// announcement still receive an authoritative follow-up. Cancelled on
// shutdown.
func (e *Engine) scheduleRepublish(ctx context.Context, triggerEventID string, pairs []balancePair) {
	if len(pairs) == 0 {
		return
	}
	e.republish.Add(1)
	go func() {
		defer e.republish.Done()
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.republishInterval):
		}

		rows := make([]*model.OutboxEvent, 0, len(pairs))
		for _, p := range pairs {
			b, err := e.repo.GetBalance(ctx, p.account, p.tokenID)
			if err != nil {
				e.log.Warnw("republish balance lookup failed", "account", p.account, "token", p.tokenName, "err", err)
				continue
			}
			ann := nostr.BalanceAnnouncement(e.ledgerPubKey, p.account, p.tokenName, b.Amount, triggerEventID)
			row, err := outboxRow(ann)
			if err != nil {
				e.log.Warnf("republish marshal: %v", err)
				continue
			}
			rows = append(rows, row)
		}
		if len(rows) == 0 {
			return
		}
		if err := e.repo.CreateOutboxEvents(ctx, e.repo.DB(ctx), rows); err != nil {
			e.log.Warnw("republish enqueue failed", "event", triggerEventID, "err", err)
			return
		}
		for _, r := range rows {
			metrics.OutboxEnqueued.WithLabelValues(strconv.Itoa(r.Kind)).Inc()
		}
	}()
}
