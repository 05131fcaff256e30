package tui_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ferry/internal/presentation/tui"
	"github.com/aretw0/ferry/pkg/domain"
)

func TestPageMarkdown(t *testing.T) {
	page, err := domain.NewPage("Users/Index", map[string]any{
		"users": []map[string]any{{"id": 1, "name": "Ada"}},
		"count": 1,
	}, "/users", domain.StringVersion("v1"))
	require.NoError(t, err)

	md := tui.PageMarkdown(page)
	assert.Contains(t, md, "# Users/Index\n")
	assert.Contains(t, md, "`/users` · version `v1`")
	assert.Contains(t, md, "## count\n\n```json\n1\n```")
	assert.Contains(t, md, "\"name\": \"Ada\"")
	assert.Less(t, bytes.Index([]byte(md), []byte("## count")), bytes.Index([]byte(md), []byte("## users")))
}

func TestPageMarkdown_NoProps(t *testing.T) {
	page, err := domain.NewPage("Home", nil, "/", domain.Version{})
	require.NoError(t, err)
	assert.Contains(t, tui.PageMarkdown(page), "_No props._")
}

func TestStatus_PlainOutsideTerminal(t *testing.T) {
	var buf bytes.Buffer
	tui.Status(&buf, tui.StatusOK, "committed %s", "/users")
	assert.Equal(t, "[ok] committed /users\n", buf.String())
}
