package domain_test

import (
	"testing"

	"github.com/aretw0/ferry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type usersProps struct {
	Users  []user            `json:"users"`
	Errors map[string]string `json:"errors"`
}

func TestDecodeProps(t *testing.T) {
	page, err := domain.ParsePage([]byte(`{
		"component": "Users/Index",
		"props": {"users": [{"id": 1, "name": "Al"}], "errors": {"name": "required"}},
		"url": "/users",
		"version": "v1"
	}`))
	require.NoError(t, err)

	var props usersProps
	require.NoError(t, domain.DecodeProps(page, &props))

	assert.Equal(t, []user{{ID: 1, Name: "Al"}}, props.Users)
	assert.Equal(t, "required", props.Errors["name"])
}

func TestVisitRequest_Normalize(t *testing.T) {
	req, err := domain.VisitRequest{URL: "/users", Method: "post"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, domain.MethodPost, req.Method)

	req, err = domain.VisitRequest{URL: "/users"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, domain.MethodGet, req.Method)

	_, err = domain.VisitRequest{URL: "/x", Method: "TRACE"}.Normalize()
	assert.Error(t, err)

	_, err = domain.VisitRequest{}.Normalize()
	assert.Error(t, err)
}

func TestPreserve(t *testing.T) {
	var none domain.Preserve
	assert.False(t, none.Keep(nil))
	assert.True(t, domain.Preserve(domain.PreserveAlways).Keep(nil))
	assert.True(t, domain.PreserveIf(true).Keep(nil))
}
