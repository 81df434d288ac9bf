package nostr

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Outgoing is an unsigned event produced by the ledger. The relay bridge
// assigns id and signature before transmission.
type Outgoing struct {
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      []Tag  `json:"tags"`
	Content   string `json:"content"`
}

// Marshal serializes the event for the outbox.
func (o *Outgoing) Marshal() (string, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// outcomeTags builds the shared tag list of an outcome event: sender and
// receiver recipients, a reference to the request, the type tag, and the
// request's own e tags carried over. Empty identities are skipped so a
// burn outcome does not emit a blank recipient. The list is complete at
// construction time.
func outcomeTags(sender, receiver, requestID, typeTag string, carried []string) []Tag {
	tags := make([]Tag, 0, 4+len(carried))
	if sender != "" {
		tags = append(tags, Tag{TagRecipient, sender})
	}
	if receiver != "" && receiver != sender {
		tags = append(tags, Tag{TagRecipient, receiver})
	}
	tags = append(tags, Tag{TagEventRef, requestID})
	tags = append(tags, Tag{TagType, typeTag})
	for _, ref := range carried {
		if ref != requestID {
			tags = append(tags, Tag{TagEventRef, ref})
		}
	}
	return tags
}

// OkOutcome builds the success outcome for a request. Content echoes the
// request payload so observers see the applied amounts verbatim.
func OkOutcome(ledger string, req *Event, sender, receiver, typeTag string) *Outgoing {
	return &Outgoing{
		PubKey:    ledger,
		CreatedAt: time.Now().Unix(),
		Kind:      KindTransaction,
		Tags:      outcomeTags(sender, receiver, req.ID, typeTag, req.EventRefs()),
		Content:   req.Content,
	}
}

// ErrorOutcome builds the rejection outcome carrying the stable reason
// string.
func ErrorOutcome(ledger string, req *Event, sender, receiver, typeTag, reason string) *Outgoing {
	content, _ := json.Marshal(map[string][]string{"messages": {reason}})
	return &Outgoing{
		PubKey:    ledger,
		CreatedAt: time.Now().Unix(),
		Kind:      KindTransaction,
		Tags:      outcomeTags(sender, receiver, req.ID, typeTag, nil),
		Content:   string(content),
	}
}

// BalanceAnnouncement builds the parametrised-replaceable event carrying
// the current amount of one (account, token). The d tag is stable per
// pair so late subscribers only see the latest value.
func BalanceAnnouncement(ledger, account, token string, amount decimal.Decimal, triggerEventID string) *Outgoing {
	return &Outgoing{
		PubKey:    ledger,
		CreatedAt: time.Now().Unix(),
		Kind:      KindBalanceAnnouncement,
		Tags: []Tag{
			{TagRecipient, account},
			{TagIdentifier, fmt.Sprintf("balance:%s:%s", token, account)},
			{TagEventRef, triggerEventID},
			{TagAmount, amount.String()},
		},
		Content: "{}",
	}
}
