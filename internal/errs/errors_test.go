package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_FormatsKindContextAndCause(t *testing.T) {
	err := Wrap(errors.New("dial tcp: refused"), KindPersistence, "write catalog record").
		With("item_id", 42).
		With("cues", 3)

	assert.Equal(t,
		"[Persistence] write catalog record | context: cues=3, item_id=42 | cause: dial tcp: refused",
		err.Error(),
	)
}

func TestIs_FollowsWrappedChain(t *testing.T) {
	base := New(KindTransfer, "put object")
	wrapped := fmt.Errorf("upload video: %w", base)

	require.True(t, Is(wrapped, KindTransfer))
	assert.False(t, Is(wrapped, KindPersistence))
	assert.Equal(t, KindTransfer, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestIs_MatchesInnerKindBehindOuterError(t *testing.T) {
	inner := New(KindPersistence, "commit catalog rows")
	outer := fmt.Errorf("retry: %w", Wrap(inner, KindTransfer, "reconcile item"))

	assert.True(t, Is(outer, KindTransfer))
	assert.True(t, Is(outer, KindPersistence))
	assert.False(t, Is(outer, KindValidation))
	assert.Equal(t, KindTransfer, KindOf(outer))
	assert.False(t, Is(nil, KindTransfer))
}

func TestAdvice_CoversEveryKind(t *testing.T) {
	for k := KindValidation; k <= KindUnknown; k++ {
		assert.NotEmpty(t, Advice(New(k, "x")), k.String())
	}
}
