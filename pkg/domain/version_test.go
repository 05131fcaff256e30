package domain_test

import (
	"testing"

	"github.com/aretw0/ferry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_ByteForByte(t *testing.T) {
	str, err := domain.ParseVersion([]byte(`"1"`))
	require.NoError(t, err)
	num, err := domain.ParseVersion([]byte(`1`))
	require.NoError(t, err)

	assert.False(t, str.Equal(num), "string and number tokens differ")
	assert.Equal(t, "1", str.String())
	assert.Equal(t, "1", num.String())
	assert.True(t, str.Equal(domain.StringVersion("1")))
	assert.True(t, num.Equal(domain.NumberVersion(1)))
}

func TestVersion_Null(t *testing.T) {
	v, err := domain.ParseVersion([]byte(`null`))
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	data, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestVersion_Rejects(t *testing.T) {
	for _, raw := range []string{``, `true`, `[]`, `{}`, `"unterminated`} {
		_, err := domain.ParseVersion([]byte(raw))
		assert.ErrorIs(t, err, domain.ErrMalformedResponse, raw)
	}
}
