package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/layer-3/sfa-farcaster/adapters/tokenizer"
	"github.com/layer-3/sfa-farcaster/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginIssuer_Issue(t *testing.T) {
	issuer := NewLoginIssuer(newTestTokenizer(t), testDomain, 5*time.Minute)

	token, err := issuer.Issue(context.Background(), testAssertion("abc12345"))
	require.NoError(t, err)

	subject, err := tokenizer.DecodeSubject(token)
	require.NoError(t, err)
	assert.Equal(t, "1234", subject)

	t.Run("each call mints a new token", func(t *testing.T) {
		again, err := issuer.Issue(context.Background(), testAssertion("abc12345"))
		require.NoError(t, err)
		assert.NotEqual(t, token, again)
	})
}

func TestLoginIssuer_IssueRejects(t *testing.T) {
	issuer := NewLoginIssuer(newTestTokenizer(t), testDomain, 5*time.Minute)

	tcs := []struct {
		name   string
		modify func(a *core.Assertion) *core.Assertion
	}{
		{
			name:   "nil assertion",
			modify: func(a *core.Assertion) *core.Assertion { return nil },
		},
		{
			name: "missing fid",
			modify: func(a *core.Assertion) *core.Assertion {
				a.Fid = 0
				return a
			},
		},
		{
			name: "missing message",
			modify: func(a *core.Assertion) *core.Assertion {
				a.Message = ""
				return a
			},
		},
		{
			name: "missing signature",
			modify: func(a *core.Assertion) *core.Assertion {
				a.Signature = ""
				return a
			},
		},
		{
			name: "other domain",
			modify: func(a *core.Assertion) *core.Assertion {
				a.Message = strings.Replace(a.Message, testDomain, "evil.example", 1)
				return a
			},
		},
		{
			name: "no nonce line",
			modify: func(a *core.Assertion) *core.Assertion {
				a.Message = strings.Replace(a.Message, "Nonce: abc12345\n", "", 1)
				return a
			},
		},
		{
			name: "not a sign-in message",
			modify: func(a *core.Assertion) *core.Assertion {
				a.Message = "hello"
				return a
			},
		},
		{
			name: "address not checksummed",
			modify: func(a *core.Assertion) *core.Assertion {
				a.Message = strings.Replace(a.Message, testAddress, strings.ToLower(testAddress), 1)
				return a
			},
		},
		{
			name: "nonce too short",
			modify: func(a *core.Assertion) *core.Assertion {
				a.Message = strings.Replace(a.Message, "Nonce: abc12345\n", "Nonce: n0nce\n", 1)
				a.Nonce = "n0nce"
				return a
			},
		},
		{
			name: "nonce differs from message",
			modify: func(a *core.Assertion) *core.Assertion {
				a.Nonce = "other"
				return a
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			token, err := issuer.Issue(context.Background(), tc.modify(testAssertion("abc12345")))
			assert.ErrorIs(t, err, core.ErrInvalidAssertion)
			assert.Empty(t, token)
		})
	}
}

func TestLoginIssuer_JWKS(t *testing.T) {
	issuer := NewLoginIssuer(newTestTokenizer(t), testDomain, 5*time.Minute)

	jwks, err := issuer.JWKS()
	require.NoError(t, err)
	assert.Contains(t, string(jwks), `"kty":"EC"`)
}
