package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/layer-3/sfa-farcaster/adapters/store"
	"github.com/layer-3/sfa-farcaster/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginFlow_Run(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.keys.Init(ctx))

	result, err := env.flow.Run(ctx, testAssertion("abc12345"))
	require.NoError(t, err)

	assert.Equal(t, "alice", result.Session.User.Name)
	assert.NotEmpty(t, result.CookieToken)
	assert.NotEmpty(t, result.BearerToken)
	assert.Equal(t, "1234", result.SubjectID)
	assert.Equal(t, testAddress, result.Address)
	assert.Same(t, result.Provider, env.keys.Provider(result.Session.ID))

	require.Len(t, env.network.requests, 1)
	assert.Equal(t, result.BearerToken, env.network.requests[0].IDToken)
	assert.Equal(t, "1234", env.network.requests[0].VerifierID)

	balance, err := env.wallet.GetBalance(ctx, result.Provider)
	require.NoError(t, err)
	assert.Equal(t, "1.0", balance)

	t.Run("sign out drops the provider", func(t *testing.T) {
		require.NoError(t, env.bridge.Terminate(ctx, result.CookieToken))

		provider := env.keys.Provider(result.Session.ID)
		assert.Nil(t, provider)

		_, err := env.wallet.GetAddress(provider)
		assert.ErrorIs(t, err, core.ErrProviderNotReady)
	})
}

func TestLoginFlow_DeriveBeforeInitKeepsSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.flow.Run(ctx, testAssertion("abc12345"))
	require.Error(t, err)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepDeriveKey, stepErr.Step)
	assert.ErrorIs(t, err, core.ErrNotReady)

	require.NotNil(t, result.Session)
	assert.NotEmpty(t, result.BearerToken)
	assert.Nil(t, result.Provider)

	session, err := env.bridge.CurrentSession(ctx, result.CookieToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", session.User.Name)
	assert.Nil(t, env.keys.Provider(session.ID))
}

func TestLoginFlow_ExchangeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	tok := newTestTokenizer(t)
	keys := NewKeyProvider(&fakeKeyNetwork{}, nil, tok, simulatedChainID, "v")
	bridge := NewSessionBridge(store.NewMemoryStore(), tok, &recordingPublisher{}, keys, srv.Client(), srv.URL, time.Hour)
	flow := NewLoginFlow(bridge, keys, NewWalletActions(time.Second), tok)

	result, err := flow.Run(context.Background(), testAssertion("abc12345"))

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepExchangeToken, stepErr.Step)
	assert.ErrorIs(t, err, core.ErrTokenExchange)
	assert.NotNil(t, result.Session)
	assert.Empty(t, result.BearerToken)
}

func TestLoginFlow_DecodeSubject(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.flow.DecodeSubject("T")
	assert.ErrorIs(t, err, core.ErrDerivation)
	assert.ErrorIs(t, err, core.ErrMalformedToken)
}

func TestLoginFlow_EstablishSessionFailure(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.flow.Run(context.Background(), nil)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepEstablishSession, stepErr.Step)
	assert.Nil(t, result.Session)
	assert.Contains(t, err.Error(), "establish_session")
}
