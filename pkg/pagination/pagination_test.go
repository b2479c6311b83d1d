package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
}

func TestCursorRoundTripAndRejects(t *testing.T) {
	offset, err := ParseCursor(EncodeCursor(120))
	require.NoError(t, err)
	assert.Equal(t, 120, offset)

	offset, err = ParseCursor("  ")
	require.NoError(t, err)
	assert.Zero(t, offset)

	_, err = ParseCursor("%%%")
	assert.Error(t, err)
	_, err = ParseCursor("aGVsbG8") // "hello"
	assert.Error(t, err)
}

func TestWindowWalksAllRows(t *testing.T) {
	start, end, next, err := Window(5, Params{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, [2]int{0, 2}, [2]int{start, end})
	require.NotEmpty(t, next)

	start, end, next, err = Window(5, Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	assert.Equal(t, [2]int{2, 4}, [2]int{start, end})

	start, end, next, err = Window(5, Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	assert.Equal(t, [2]int{4, 5}, [2]int{start, end})
	assert.Empty(t, next)

	start, end, next, err = Window(3, Params{Cursor: EncodeCursor(10)})
	require.NoError(t, err)
	assert.Equal(t, [2]int{3, 3}, [2]int{start, end})
	assert.Empty(t, next)
}
