package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nostrledger/ledger-service/internal/model"
	"github.com/nostrledger/ledger-service/internal/nostr"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Filters builds the per-variant subscription filters: transaction kind,
// the ledger among the recipients, one start tag per variant.
func Filters(ledgerPubKey string) []nostr.Filter {
	out := make([]nostr.Filter, 0, len(model.Variants))
	for _, v := range model.Variants {
		out = append(out, nostr.Filter{
			Kinds: []int{nostr.KindTransaction},
			P:     []string{ledgerPubKey},
			T:     []string{v.StartTag()},
		})
	}
	return out
}

// Subscription delivers signed request events from the relay bridge
// topic, dropping anything outside the configured filters or older than
// the freshness window.
type Subscription struct {
	reader          *kafka.Reader
	filters         []nostr.Filter
	freshnessWindow time.Duration
	log             *zap.SugaredLogger
	now             func() time.Time
}

// NewSubscription constructs the adapter over a consumer-group reader.
func NewSubscription(brokers []string, topic, groupID string, filters []nostr.Filter, freshnessWindow time.Duration, log *zap.SugaredLogger) *Subscription {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	return &Subscription{
		reader:          reader,
		filters:         filters,
		freshnessWindow: freshnessWindow,
		log:             log,
		now:             time.Now,
	}
}

// Next blocks until a matching event arrives or ctx is done. Messages
// that fail to decode or match are consumed and skipped; delivery is the
// adapter's responsibility, filtering failures are not the engine's.
func (s *Subscription) Next(ctx context.Context) (*nostr.Event, error) {
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			return nil, err
		}
		var ev nostr.Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			s.log.Warnf("drop undecodable message at offset %d: %v", msg.Offset, err)
			continue
		}
		if !s.accept(&ev) {
			continue
		}
		return &ev, nil
	}
}

// accept applies the filters plus the freshness window.
func (s *Subscription) accept(ev *nostr.Event) bool {
	if s.freshnessWindow > 0 {
		cutoff := s.now().Add(-s.freshnessWindow).Unix()
		if ev.CreatedAt < cutoff {
			return false
		}
	}
	for _, f := range s.filters {
		if f.Matches(ev) {
			return true
		}
	}
	return false
}

// Close releases the underlying reader.
func (s *Subscription) Close() error { return s.reader.Close() }
