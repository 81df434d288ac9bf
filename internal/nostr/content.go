package nostr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TxContent is the parsed payload of a transaction request event.
type TxContent struct {
	Tokens map[string]decimal.Decimal
	Memo   string
}

// ParseTxContent deserializes a request payload. Amounts are decoded
// through json.Number and decimal so values beyond 64-bit range survive
// exactly; fractional amounts are a parse error. Sign checks belong to
// the validation pipeline, not here.
func ParseTxContent(content string) (*TxContent, error) {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	var raw struct {
		Tokens map[string]json.Number `json:"tokens"`
		Memo   string                 `json:"memo"`
	}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if len(raw.Tokens) == 0 {
		return nil, errors.New("no tokens declared")
	}
	out := &TxContent{Tokens: make(map[string]decimal.Decimal, len(raw.Tokens)), Memo: raw.Memo}
	for name, n := range raw.Tokens {
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil, fmt.Errorf("token %s: %w", name, err)
		}
		if !d.IsInteger() {
			return nil, fmt.Errorf("token %s: amount must be an integer", name)
		}
		out.Tokens[name] = d
	}
	return out, nil
}

// TokenNames returns the declared token names in unspecified order.
func (c *TxContent) TokenNames() []string {
	names := make([]string, 0, len(c.Tokens))
	for name := range c.Tokens {
		names = append(names, name)
	}
	return names
}
