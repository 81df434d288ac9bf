package nostr

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func hexKey(c byte) string { return strings.Repeat(string(c), 64) }

func TestAuthor_NoDelegation(t *testing.T) {
	ev := &Event{PubKey: hexKey('a')}
	author, err := ev.Author()
	assert.NoError(t, err)
	assert.Equal(t, hexKey('a'), author)
}

func TestAuthor_ValidDelegation(t *testing.T) {
	ev := &Event{
		PubKey: hexKey('a'),
		Tags: []Tag{
			{TagDelegation, hexKey('b'), "kind=1112", "sig"},
		},
	}
	author, err := ev.Author()
	assert.NoError(t, err)
	assert.Equal(t, hexKey('b'), author)
}

func TestAuthor_MalformedDelegation(t *testing.T) {
	cases := [][]Tag{
		{{TagDelegation}},
		{{TagDelegation, "tooshort", "cond", "sig"}},
		{{TagDelegation, strings.Repeat("X", 64), "cond", "sig"}},
		{{TagDelegation, hexKey('b')}},
	}
	for _, tags := range cases {
		ev := &Event{PubKey: hexKey('a'), Tags: tags}
		author, err := ev.Author()
		assert.ErrorIs(t, err, ErrBadDelegation)
		assert.Equal(t, hexKey('a'), author, "signer stays accountable")
	}
}

func TestRecipientsAndRefs(t *testing.T) {
	ev := &Event{Tags: []Tag{
		{TagRecipient, hexKey('1')},
		{TagEventRef, "ref1"},
		{TagRecipient, hexKey('2')},
		{TagType, "internal-transaction-start"},
		{TagEventRef, "ref2"},
	}}
	assert.Equal(t, []string{hexKey('1'), hexKey('2')}, ev.Recipients())
	assert.Equal(t, []string{"ref1", "ref2"}, ev.EventRefs())
	assert.Equal(t, "internal-transaction-start", ev.TypeTag())
}

func TestParseTxContent_BigIntegers(t *testing.T) {
	huge := "123456789012345678901234567890123456789"
	c, err := ParseTxContent(`{"tokens":{"gold":` + huge + `,"silver":7},"memo":"hi"}`)
	assert.NoError(t, err)
	assert.Equal(t, "hi", c.Memo)
	assert.Equal(t, huge, c.Tokens["gold"].String())
	assert.Equal(t, "7", c.Tokens["silver"].String())
}

func TestParseTxContent_Rejects(t *testing.T) {
	_, err := ParseTxContent(`not json`)
	assert.Error(t, err)

	_, err = ParseTxContent(`{}`)
	assert.Error(t, err, "no tokens declared")

	_, err = ParseTxContent(`{"tokens":{"gold":1.5}}`)
	assert.Error(t, err, "fractional amount")
}

func TestParseTxContent_AllowsNonPositive(t *testing.T) {
	// sign checks belong to the validation pipeline
	c, err := ParseTxContent(`{"tokens":{"gold":0,"silver":-3}}`)
	assert.NoError(t, err)
	assert.True(t, c.Tokens["gold"].IsZero())
	assert.True(t, c.Tokens["silver"].IsNegative())
}

func TestFilterMatches(t *testing.T) {
	ev := &Event{
		Kind: KindTransaction,
		Tags: []Tag{
			{TagRecipient, hexKey('f')},
			{TagType, "inbound-transaction-start"},
		},
	}

	assert.True(t, Filter{Kinds: []int{KindTransaction}, P: []string{hexKey('f')}, T: []string{"inbound-transaction-start"}}.Matches(ev))
	assert.False(t, Filter{Kinds: []int{KindBalanceAnnouncement}}.Matches(ev))
	assert.False(t, Filter{P: []string{hexKey('0')}}.Matches(ev))
	assert.False(t, Filter{T: []string{"outbound-transaction-start"}}.Matches(ev))
	assert.True(t, Filter{}.Matches(ev), "empty filter matches everything")
}

func TestOkOutcome_CarriesRequestRefs(t *testing.T) {
	req := &Event{
		ID:      "req1",
		Content: `{"tokens":{"gold":5}}`,
		Tags: []Tag{
			{TagEventRef, "parent1"},
			{TagEventRef, "parent2"},
		},
	}
	out := OkOutcome(hexKey('f'), req, hexKey('a'), hexKey('b'), "internal-transaction-ok")

	assert.Equal(t, KindTransaction, out.Kind)
	assert.Equal(t, req.Content, out.Content)
	assert.Equal(t, []Tag{
		{TagRecipient, hexKey('a')},
		{TagRecipient, hexKey('b')},
		{TagEventRef, "req1"},
		{TagType, "internal-transaction-ok"},
		{TagEventRef, "parent1"},
		{TagEventRef, "parent2"},
	}, out.Tags)
}

func TestErrorOutcome(t *testing.T) {
	req := &Event{ID: "req1"}
	out := ErrorOutcome(hexKey('f'), req, hexKey('a'), "", "outbound-transaction-error", "Not enough funds")

	assert.JSONEq(t, `{"messages":["Not enough funds"]}`, out.Content)
	assert.Equal(t, []Tag{
		{TagRecipient, hexKey('a')},
		{TagEventRef, "req1"},
		{TagType, "outbound-transaction-error"},
	}, out.Tags, "no blank recipient for a burn")
}

func TestBalanceAnnouncement(t *testing.T) {
	out := BalanceAnnouncement(hexKey('f'), hexKey('a'), "gold", decimal.NewFromInt(60), "req1")

	assert.Equal(t, KindBalanceAnnouncement, out.Kind)
	assert.Equal(t, "{}", out.Content)
	assert.Equal(t, []Tag{
		{TagRecipient, hexKey('a')},
		{TagIdentifier, "balance:gold:" + hexKey('a')},
		{TagEventRef, "req1"},
		{TagAmount, "60"},
	}, out.Tags)
}
