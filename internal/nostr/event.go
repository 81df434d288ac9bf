package nostr

import (
	"errors"
)

// Event kinds the ledger consumes and produces.
const (
	KindTransaction         = 1112
	KindBalanceAnnouncement = 31111
)

// Well-known tag names.
const (
	TagRecipient  = "p"
	TagEventRef   = "e"
	TagType       = "t"
	TagIdentifier = "d"
	TagAmount     = "amount"
	TagDelegation = "delegation"
)

// ErrBadDelegation means a delegation tag was present but malformed.
var ErrBadDelegation = errors.New("bad delegation tag")

// Tag is one event tag: a name followed by its values.
type Tag []string

// Name returns the tag name, or "" for an empty tag.
func (t Tag) Name() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Value returns the first value after the name, or "".
func (t Tag) Value() string {
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

// Event is a signed substrate event as delivered by the relay bridge.
// Signature verification has already happened upstream.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      []Tag  `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// TagValues collects the first value of every tag with the given name,
// in tag order.
func (e *Event) TagValues(name string) []string {
	var out []string
	for _, t := range e.Tags {
		if t.Name() == name {
			out = append(out, t.Value())
		}
	}
	return out
}

// FirstTag returns the first tag with the given name.
func (e *Event) FirstTag(name string) (Tag, bool) {
	for _, t := range e.Tags {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Recipients returns the p-tag values in order. By convention the first
// recipient is the ledger itself (the subscription target) and the second
// is the transfer receiver.
func (e *Event) Recipients() []string { return e.TagValues(TagRecipient) }

// TypeTag returns the first t-tag value, or "".
func (e *Event) TypeTag() string {
	if t, ok := e.FirstTag(TagType); ok {
		return t.Value()
	}
	return ""
}

// EventRefs returns the e-tag values in order.
func (e *Event) EventRefs() []string { return e.TagValues(TagEventRef) }

// Author resolves the accountable identity for the event. Without a
// delegation tag it is the signer. A well-formed delegation tag names the
// delegator, who becomes the author while the signer stays the signer. A
// malformed delegation tag yields the signer plus ErrBadDelegation.
func (e *Event) Author() (string, error) {
	t, ok := e.FirstTag(TagDelegation)
	if !ok {
		return e.PubKey, nil
	}
	if len(t) < 4 || !isHexKey(t[1]) {
		return e.PubKey, ErrBadDelegation
	}
	return t[1], nil
}

func isHexKey(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
