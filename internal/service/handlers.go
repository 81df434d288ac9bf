package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/nostrledger/ledger-service/internal/model"
	"github.com/nostrledger/ledger-service/internal/repo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// commit runs the variant body inside one serializable transaction:
// Event row, Transaction row, balance mutations, and the outgoing
// outcome and balance events, all-or-nothing.
func (e *Engine) commit(ctx context.Context, req *TxRequest) ([]*model.Balance, error) {
	var affected []*model.Balance
	err := e.repo.SerializableTx(ctx, func(tx *gorm.DB) error {
		evRow := &model.Event{
			ID:        req.Event.ID,
			Signature: req.Event.Sig,
			Signer:    req.Event.PubKey,
			Author:    req.Sender,
			Kind:      req.Event.Kind,
			Payload:   eventPayload(req.Event.Content),
		}
		if err := e.repo.CreateEvent(ctx, tx, evRow); err != nil {
			return err
		}
		txRow := &model.Transaction{
			ID:                uuid.New(),
			TransactionTypeID: req.Type.ID,
			EventID:           req.Event.ID,
			Payload:           eventPayload(req.Event.Content),
		}
		if err := e.repo.CreateTransaction(ctx, tx, txRow); err != nil {
			return err
		}

		var err error
		switch req.Variant {
		case model.VariantInternal:
			affected, err = e.applyInternal(ctx, tx, req, txRow)
		case model.VariantInbound:
			affected, err = e.applyInbound(ctx, tx, req, txRow)
		case model.VariantOutbound:
			affected, err = e.applyOutbound(ctx, tx, req, txRow)
		}
		if err != nil {
			return err
		}

		return e.enqueueOutcome(ctx, tx, req, affected)
	})
	if err != nil {
		return nil, err
	}
	return affected, nil
}

// applyInternal moves the requested amounts from sender to receiver.
// Ordering is debit sender, credit existing receiver balances, create
// fresh balances for tokens the receiver has never held. A failed
// sufficiency check aborts the whole transaction before any effect on
// the receiver.
func (e *Engine) applyInternal(ctx context.Context, tx *gorm.DB, req *TxRequest, txRow *model.Transaction) ([]*model.Balance, error) {
	need := req.deltas()

	senderBals, err := e.repo.SufficientBalances(ctx, tx, req.Sender, need)
	if err != nil {
		return nil, err
	}
	if len(senderBals) < len(need) {
		return nil, repo.ErrInsufficientFunds
	}

	recvBals, err := e.repo.BalancesForTokens(ctx, tx, req.Receiver, req.tokenIDs())
	if err != nil {
		return nil, err
	}
	fresh := missingEntries(need, recvBals)

	if err := e.repo.Debit(ctx, tx, senderBals, need, txRow.ID, req.Event.ID); err != nil {
		return nil, err
	}
	if err := e.repo.Credit(ctx, tx, recvBals, need, txRow.ID, req.Event.ID); err != nil {
		return nil, err
	}
	created, err := e.repo.CreateFresh(ctx, tx, req.Receiver, fresh, txRow.ID, req.Event.ID)
	if err != nil {
		return nil, err
	}

	affected := append(senderBals, recvBals...)
	return append(affected, created...), nil
}

// applyInbound mints the requested amounts to the receiver.
func (e *Engine) applyInbound(ctx context.Context, tx *gorm.DB, req *TxRequest, txRow *model.Transaction) ([]*model.Balance, error) {
	need := req.deltas()

	recvBals, err := e.repo.BalancesForTokens(ctx, tx, req.Receiver, req.tokenIDs())
	if err != nil {
		return nil, err
	}
	fresh := missingEntries(need, recvBals)

	if err := e.repo.Credit(ctx, tx, recvBals, need, txRow.ID, req.Event.ID); err != nil {
		return nil, err
	}
	created, err := e.repo.CreateFresh(ctx, tx, req.Receiver, fresh, txRow.ID, req.Event.ID)
	if err != nil {
		return nil, err
	}
	return append(recvBals, created...), nil
}

// applyOutbound burns the requested amounts from the sender.
func (e *Engine) applyOutbound(ctx context.Context, tx *gorm.DB, req *TxRequest, txRow *model.Transaction) ([]*model.Balance, error) {
	need := req.deltas()

	senderBals, err := e.repo.SufficientBalances(ctx, tx, req.Sender, need)
	if err != nil {
		return nil, err
	}
	if len(senderBals) < len(need) {
		return nil, repo.ErrInsufficientFunds
	}
	if err := e.repo.Debit(ctx, tx, senderBals, need, txRow.ID, req.Event.ID); err != nil {
		return nil, err
	}
	return senderBals, nil
}

// missingEntries selects the requested tokens the account holds no
// balance in yet.
func missingEntries(need map[uuid.UUID]decimal.Decimal, existing []*model.Balance) []repo.FreshEntry {
	have := make(map[uuid.UUID]bool, len(existing))
	for _, b := range existing {
		have[b.TokenID] = true
	}
	var out []repo.FreshEntry
	for tokenID, amt := range need {
		if !have[tokenID] {
			out = append(out, repo.FreshEntry{TokenID: tokenID, Amount: amt})
		}
	}
	return out
}
