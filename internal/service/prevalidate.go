package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/nostrledger/ledger-service/internal/model"
	"github.com/nostrledger/ledger-service/internal/nostr"
	"github.com/shopspring/decimal"
)

// TxRequest is a fully validated request ready for the mutation phase.
type TxRequest struct {
	Event    *nostr.Event
	Variant  model.Variant
	Type     *model.TransactionType
	Sender   string
	Receiver string
	Content  *nostr.TxContent
	Tokens   map[string]model.Token
}

// deltas maps token id to the requested amount.
func (r *TxRequest) deltas() map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal, len(r.Content.Tokens))
	for name, amt := range r.Content.Tokens {
		out[r.Tokens[name].ID] = amt
	}
	return out
}

func (r *TxRequest) tokenIDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(r.Tokens))
	for _, t := range r.Tokens {
		out = append(out, t.ID)
	}
	return out
}

func (r *TxRequest) tokenName(id uuid.UUID) string {
	for name, t := range r.Tokens {
		if t.ID == id {
			return name
		}
	}
	return ""
}

// rejection is a deterministic refusal of a request. Unless silent, the
// engine persists the Event row and publishes one error outcome carrying
// the reason.
type rejection struct {
	reason   string
	sender   string
	receiver string
	author   string
	payload  string
	silent   bool
}

// prevalidate runs the shared validation pipeline in its fixed order:
// idempotency, content parse, authorship, recipient resolution, amount
// sanity, token existence, transaction-type existence. It returns exactly
// one of: a validated request, a deterministic rejection, or a transient
// error worth retrying.
func (e *Engine) prevalidate(ctx context.Context, ev *nostr.Event, variant model.Variant) (*TxRequest, *rejection, error) {
	exists, err := e.repo.EventExists(ctx, e.repo.DB(ctx), ev.ID)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, &rejection{silent: true}, nil
	}

	content, perr := nostr.ParseTxContent(ev.Content)
	if perr != nil {
		// the event is stored with an empty payload; nothing parsed
		return nil, &rejection{reason: ReasonUnparsableContent, sender: ev.PubKey, author: ev.PubKey, payload: "{}"}, nil
	}

	author, derr := ev.Author()
	if derr != nil {
		// delegation claimed but unresolvable: the signer stays accountable
		return nil, &rejection{reason: ReasonBadDelegation, sender: ev.PubKey, author: ev.PubKey, payload: ev.Content}, nil
	}

	// the first p tag is this ledger (the subscription target), the
	// second is the receiver
	var receiver string
	if recipients := ev.Recipients(); len(recipients) >= 2 {
		receiver = recipients[1]
	}
	if receiver == "" && variant != model.VariantOutbound {
		return nil, &rejection{reason: ReasonUnparsableContent, sender: author, author: author, payload: ev.Content}, nil
	}

	for _, amt := range content.Tokens {
		if !amt.IsPositive() {
			return nil, &rejection{reason: ReasonNonPositiveAmount, sender: author, receiver: receiver, author: author, payload: ev.Content}, nil
		}
	}

	tokens, err := e.repo.TokensByName(ctx, e.repo.DB(ctx), content.TokenNames())
	if err != nil {
		return nil, nil, err
	}
	if len(tokens) < len(content.Tokens) {
		return nil, &rejection{reason: ReasonUnsupportedToken, sender: author, receiver: receiver, author: author, payload: ev.Content}, nil
	}

	tt, err := e.repo.TransactionTypeByDescription(ctx, e.repo.DB(ctx), string(variant))
	if err != nil {
		return nil, nil, err
	}
	if tt == nil {
		return nil, &rejection{reason: ReasonUnsupportedType, sender: author, receiver: receiver, author: author, payload: ev.Content}, nil
	}

	return &TxRequest{
		Event:    ev,
		Variant:  variant,
		Type:     tt,
		Sender:   author,
		Receiver: receiver,
		Content:  content,
		Tokens:   tokens,
	}, nil, nil
}

// eventPayload is what lands in the Event row: the request content when
// it is valid JSON, an empty object otherwise.
func eventPayload(content string) string {
	if json.Valid([]byte(content)) && content != "" {
		return content
	}
	return "{}"
}
