package pagination

import (
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
	assert.Equal(t, 11, LimitWithBuffer(10))
}

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{Sequence: 42, OrderID: uuid.New()}

	out, err := ParseCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in, *out)
	assert.Equal(t, 42, out.After())
}

func TestParseCursorEmptyIsFirstPage(t *testing.T) {
	out, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 0, out.After())
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for name, raw := range map[string]string{
		"not base64":    "%%%",
		"no separator":  base64.RawURLEncoding.EncodeToString([]byte("12")),
		"zero sequence": base64.RawURLEncoding.EncodeToString([]byte("0|" + uuid.NewString())),
		"bad id":        base64.RawURLEncoding.EncodeToString([]byte("3|nope")),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCursor(raw)
			assert.Error(t, err)
		})
	}
}
