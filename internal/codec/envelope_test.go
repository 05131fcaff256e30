package codec_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/ferry/internal/codec"
	"github.com/aretw0/ferry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope(t *testing.T) {
	page, err := domain.ParsePage([]byte(`{"component":"A","props":{"x":{"b":2,"a":1}},"url":"/a#top","version":3}`))
	require.NoError(t, err)

	in := &domain.Entry{
		Key:        "tab:1",
		Page:       page,
		Remembered: map[string]json.RawMessage{"form": json.RawMessage(`{"q":"go"}`)},
		Scroll:     map[string]domain.ScrollPosition{"sidebar": {X: 3, Y: 40.5}},
		UpdatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Redacted:   true,
	}

	data, err := codec.MarshalEntry(in)
	require.NoError(t, err)

	out, err := codec.UnmarshalEntry(data)
	require.NoError(t, err)

	assert.Equal(t, in.Key, out.Key)
	assert.Equal(t, page.Props(), out.Page.Props())
	assert.True(t, out.Page.Version().Equal(domain.NumberVersion(3)))
	assert.Equal(t, `{"q":"go"}`, string(out.Remembered["form"]))
	assert.Equal(t, in.Scroll, out.Scroll)
	assert.True(t, in.UpdatedAt.Equal(out.UpdatedAt))
	assert.True(t, out.Redacted)
}

func TestEnvelope_Garbage(t *testing.T) {
	_, err := codec.UnmarshalEntry([]byte("not msgpack"))
	assert.Error(t, err)
}
