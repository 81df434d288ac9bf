package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassify_ExplicitMarksWin(t *testing.T) {
	base := errors.New("whatever")

	d := Classify(Transient(base))
	assert.True(t, d.IsTransient())
	assert.Equal(t, "explicit_transient", d.Reason)

	d = Classify(Terminal(base))
	assert.False(t, d.IsTransient())
	assert.Equal(t, "explicit_terminal", d.Reason)

	// marks survive wrapping
	d = Classify(fmt.Errorf("outer: %w", Terminal(base)))
	assert.False(t, d.IsTransient())
}

func TestClassify_Sentinels(t *testing.T) {
	assert.False(t, Classify(context.Canceled).IsTransient())
	assert.True(t, Classify(context.DeadlineExceeded).IsTransient())
	assert.True(t, Classify(gorm.ErrDuplicatedKey).IsTransient())
	assert.False(t, Classify(gorm.ErrRecordNotFound).IsTransient())
}

func TestClassify_MessageTokens(t *testing.T) {
	cases := []struct {
		msg       string
		transient bool
	}{
		{"ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)", true},
		{"deadlock detected", true},
		{"duplicate key value violates unique constraint \"uk_balance_account_token\"", true},
		{"dial tcp 10.0.0.2:5432: connection refused", true},
		{"ERROR: syntax error at or near \"SELEC\"", false},
		{"ERROR: relation \"nope\" does not exist", false},
	}
	for _, c := range cases {
		d := Classify(errors.New(c.msg))
		assert.Equal(t, c.transient, d.IsTransient(), c.msg)
	}
}

func TestClassify_UnknownDefaultsTransient(t *testing.T) {
	d := Classify(errors.New("something nobody anticipated"))
	assert.True(t, d.IsTransient())
	assert.Equal(t, "unknown_transient_default", d.Reason)
}
