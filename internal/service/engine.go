package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nostrledger/ledger-service/internal/ingest"
	"github.com/nostrledger/ledger-service/internal/metrics"
	"github.com/nostrledger/ledger-service/internal/model"
	"github.com/nostrledger/ledger-service/internal/nostr"
	"github.com/nostrledger/ledger-service/internal/repo"
	"github.com/nostrledger/ledger-service/internal/retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options tunes the engine.
type Options struct {
	LedgerPubKey      string
	MinterPubKey      string
	MaxRetries        int
	RepublishInterval time.Duration
	RetryBackoff      time.Duration
}

// Engine turns inbound request events into atomic ledger mutations and
// outgoing outcome and balance events.
type Engine struct {
	repo              repo.RepositoryInterface
	log               *zap.SugaredLogger
	ledgerPubKey      string
	minterPubKey      string
	maxRetries        int
	republishInterval time.Duration
	retryBackoff      time.Duration
	republish         sync.WaitGroup
}

// NewEngine returns Engine.
func NewEngine(r repo.RepositoryInterface, logger *zap.SugaredLogger, opts Options) *Engine {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 10
	}
	if opts.RepublishInterval <= 0 {
		opts.RepublishInterval = time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 100 * time.Millisecond
	}
	return &Engine{
		repo:              r,
		log:               logger,
		ledgerPubKey:      opts.LedgerPubKey,
		minterPubKey:      opts.MinterPubKey,
		maxRetries:        opts.MaxRetries,
		republishInterval: opts.RepublishInterval,
		retryBackoff:      opts.RetryBackoff,
	}
}

// Run consumes the subscription until ctx is cancelled, processing each
// request in one of the worker goroutines. In-flight units finish before
// Run returns; scheduled re-announcements are drained too.
func (e *Engine) Run(ctx context.Context, sub *ingest.Subscription, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	ch := make(chan *nostr.Event)

	g.Go(func() error {
		defer close(ch)
		for {
			ev, err := sub.Next(gctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || gctx.Err() != nil {
					return nil
				}
				return err
			}
			select {
			case ch <- ev:
			case <-gctx.Done():
				return nil
			}
		}
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for ev := range ch {
				e.Process(gctx, ev)
			}
			return nil
		})
	}

	err := g.Wait()
	e.republish.Wait()
	return err
}

// Wait blocks until all scheduled deferred re-announcements have run.
func (e *Engine) Wait() { e.republish.Wait() }

// Process drives one request to a terminal state. Deterministic
// rejections are published and done; transient faults re-enter from the
// top up to the retry bound, then terminate as a network error. The
// Event row is persisted only on terminal outcomes, so intermediate
// retries are not short-circuited by the idempotency check.
func (e *Engine) Process(ctx context.Context, ev *nostr.Event) {
	variant, ok := model.VariantFromStartTag(ev.TypeTag())
	if !ok {
		e.log.Debugw("ignoring event without a transaction start tag", "event", ev.ID, "type", ev.TypeTag())
		return
	}

	for attempt := 1; ; attempt++ {
		outcome, err := e.handle(ctx, ev, variant)
		if err == nil {
			metrics.RequestsProcessed.WithLabelValues(string(variant), outcome).Inc()
			if outcome != outcomeDropped {
				e.log.Infow("request handled", "event", ev.ID, "variant", variant, "outcome", outcome)
			}
			return
		}
		if ctx.Err() != nil {
			// shutting down; the substrate redelivers
			return
		}
		d := retry.Classify(err)
		if !d.IsTransient() {
			e.log.Errorw("request failed terminally", "event", ev.ID, "reason", d.Reason, "err", err)
			metrics.RequestsProcessed.WithLabelValues(string(variant), outcomeFailed).Inc()
			return
		}
		if attempt >= e.maxRetries {
			e.log.Errorw("retries exhausted", "event", ev.ID, "attempts", attempt, "err", err)
			e.failNetwork(ctx, ev, variant)
			metrics.RequestsProcessed.WithLabelValues(string(variant), outcomeFailed).Inc()
			return
		}
		metrics.RetriesTotal.WithLabelValues(string(variant)).Inc()
		e.log.Warnw("transient fault, retrying", "event", ev.ID, "attempt", attempt, "reason", d.Reason, "err", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.retryBackoff):
		}
	}
}

// handle is one attempt: prevalidate, authorize, mutate, enqueue. The
// returned error is unclassified; Process decides whether to retry.
func (e *Engine) handle(ctx context.Context, ev *nostr.Event, variant model.Variant) (string, error) {
	req, rej, err := e.prevalidate(ctx, ev, variant)
	if err != nil {
		return "", err
	}
	if rej != nil {
		if rej.silent {
			return outcomeDropped, nil
		}
		if err := e.reject(ctx, ev, variant, rej); err != nil {
			return "", err
		}
		return outcomeRejected, nil
	}

	// mint and burn are reserved to the configured minter identity
	if variant == model.VariantInbound && req.Sender != e.minterPubKey {
		return e.rejectWith(ctx, req, ReasonCannotMint)
	}
	if variant == model.VariantOutbound && req.Sender != e.minterPubKey {
		return e.rejectWith(ctx, req, ReasonCannotBurn)
	}

	affected, err := e.commit(ctx, req)
	if err != nil {
		if errors.Is(err, repo.ErrInsufficientFunds) {
			return e.rejectWith(ctx, req, ReasonInsufficientFunds)
		}
		return "", err
	}

	e.cacheBalances(ctx, req, affected)
	e.scheduleRepublish(ctx, ev.ID, announcedPairs(req, affected))
	return outcomeOK, nil
}

func (e *Engine) rejectWith(ctx context.Context, req *TxRequest, reason string) (string, error) {
	rej := &rejection{
		reason:   reason,
		sender:   req.Sender,
		receiver: req.Receiver,
		author:   req.Sender,
		payload:  req.Event.Content,
	}
	if err := e.reject(ctx, req.Event, req.Variant, rej); err != nil {
		return "", err
	}
	return outcomeRejected, nil
}

// failNetwork is the terminal outcome after exhausted retries.
func (e *Engine) failNetwork(ctx context.Context, ev *nostr.Event, variant model.Variant) {
	author, _ := ev.Author()
	var receiver string
	if recipients := ev.Recipients(); len(recipients) >= 2 {
		receiver = recipients[1]
	}
	rej := &rejection{
		reason:   ReasonNetworkError,
		sender:   author,
		receiver: receiver,
		author:   author,
		payload:  eventPayload(ev.Content),
	}
	if err := e.reject(ctx, ev, variant, rej); err != nil {
		e.log.Errorw("could not record terminal failure", "event", ev.ID, "err", err)
	}
}
