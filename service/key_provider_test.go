package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/layer-3/sfa-farcaster/core"
	"github.com/layer-3/sfa-farcaster/internal/eth"
	"github.com/layer-3/sfa-farcaster/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, client ports.ChainClient) *SigningProvider {
	t.Helper()

	signer, err := eth.SignerFromHex(testKeyHex)
	require.NoError(t, err)
	return NewSigningProvider(signer, client, simulatedChainID)
}

func TestKeyProvider_DeriveBeforeInit(t *testing.T) {
	tok := newTestTokenizer(t)
	network := &fakeKeyNetwork{}
	keys := NewKeyProvider(network, nil, tok, simulatedChainID, "w3a-farcaster-demo")

	assert.Equal(t, KeyStateUninitialized, keys.State())

	provider, err := keys.Derive(context.Background(), mintBearer(t, tok, "1234"), "1234")
	require.Error(t, err)
	assert.Nil(t, provider)
	assert.ErrorIs(t, err, core.ErrDerivation)
	assert.ErrorIs(t, err, core.ErrNotReady)
	assert.Empty(t, network.requests)
}

func TestKeyProvider_Init(t *testing.T) {
	tok := newTestTokenizer(t)
	chain := newSimulatedChain(t, ether(1))
	network := &fakeKeyNetwork{}
	keys := NewKeyProvider(network, chain.Client(), tok, simulatedChainID, "w3a-farcaster-demo")

	require.NoError(t, keys.Init(context.Background()))
	assert.Equal(t, KeyStateReady, keys.State())

	// later calls report the first outcome
	require.NoError(t, keys.Init(context.Background()))

	bearer := mintBearer(t, tok, "1234")
	provider, err := keys.Derive(context.Background(), bearer, "1234")
	require.NoError(t, err)
	assert.Equal(t, testAddress, provider.Address().Hex())
	assert.Zero(t, simulatedChainID.Cmp(provider.ChainID()))

	require.Len(t, network.requests, 1)
	assert.Equal(t, core.KeyRequest{
		Verifier:   "w3a-farcaster-demo",
		VerifierID: "1234",
		IDToken:    bearer,
	}, network.requests[0])
}

func TestKeyProvider_InitInProgress(t *testing.T) {
	chain := newSimulatedChain(t, ether(1))
	network := &fakeKeyNetwork{release: make(chan struct{})}
	keys := NewKeyProvider(network, chain.Client(), newTestTokenizer(t), simulatedChainID, "v")

	done := make(chan error, 1)
	go func() { done <- keys.Init(context.Background()) }()

	require.Eventually(t, func() bool {
		return keys.State() == KeyStateInitializing
	}, time.Second, 5*time.Millisecond)

	err := keys.Init(context.Background())
	assert.ErrorIs(t, err, core.ErrNotReady)

	close(network.release)
	require.NoError(t, <-done)
	assert.Equal(t, KeyStateReady, keys.State())
	assert.NoError(t, keys.Init(context.Background()))
}

func TestKeyProvider_InitFailed(t *testing.T) {
	tcs := []struct {
		name    string
		network *fakeKeyNetwork
		chainID *big.Int
	}{
		{
			name:    "network unreachable",
			network: &fakeKeyNetwork{infoErr: errors.New("dial tcp: connection refused")},
			chainID: simulatedChainID,
		},
		{
			name:    "chain id mismatch",
			network: &fakeKeyNetwork{},
			chainID: big.NewInt(11155111),
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			tok := newTestTokenizer(t)
			chain := newSimulatedChain(t, ether(1))
			keys := NewKeyProvider(tc.network, chain.Client(), tok, tc.chainID, "w3a-farcaster-demo")

			require.Error(t, keys.Init(context.Background()))
			assert.Equal(t, KeyStateInitFailed, keys.State())

			err := keys.Init(context.Background())
			assert.ErrorIs(t, err, core.ErrNotReady)

			_, err = keys.Derive(context.Background(), mintBearer(t, tok, "1234"), "1234")
			assert.ErrorIs(t, err, core.ErrDerivation)
			assert.ErrorIs(t, err, core.ErrNotReady)
		})
	}
}

func TestKeyProvider_DeriveMalformedToken(t *testing.T) {
	tok := newTestTokenizer(t)
	chain := newSimulatedChain(t, ether(1))
	network := &fakeKeyNetwork{}
	keys := NewKeyProvider(network, chain.Client(), tok, simulatedChainID, "v")
	require.NoError(t, keys.Init(context.Background()))

	tcs := []struct {
		name      string
		bearer    string
		subjectID string
	}{
		{name: "empty token", bearer: "", subjectID: "1234"},
		{name: "empty subject", bearer: mintBearer(t, tok, "1234"), subjectID: ""},
		{name: "not a jwt", bearer: "not-a-jwt", subjectID: "1234"},
		{name: "token without subject", bearer: mintBearer(t, tok, ""), subjectID: "1234"},
		{name: "subject mismatch", bearer: mintBearer(t, tok, "1234"), subjectID: "5678"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			provider, err := keys.Derive(context.Background(), tc.bearer, tc.subjectID)
			assert.Nil(t, provider)
			assert.ErrorIs(t, err, core.ErrDerivation)
			assert.ErrorIs(t, err, core.ErrMalformedToken)
		})
	}

	// nothing reached the key network
	assert.Empty(t, network.requests)
}

func TestKeyProvider_DeriveNetworkRejection(t *testing.T) {
	tok := newTestTokenizer(t)
	chain := newSimulatedChain(t, ether(1))
	network := &fakeKeyNetwork{keyErr: errors.New("invalid id token")}
	keys := NewKeyProvider(network, chain.Client(), tok, simulatedChainID, "v")
	require.NoError(t, keys.Init(context.Background()))

	_, err := keys.Derive(context.Background(), mintBearer(t, tok, "1234"), "1234")
	assert.ErrorIs(t, err, core.ErrDerivation)
	assert.ErrorIs(t, err, core.ErrNetworkRejection)
}

func TestKeyProvider_Registry(t *testing.T) {
	keys := NewKeyProvider(&fakeKeyNetwork{}, nil, newTestTokenizer(t), simulatedChainID, "v")
	provider := newTestProvider(t, nil)

	assert.Nil(t, keys.Provider("s1"))

	keys.Attach("s1", provider, time.Now().Add(time.Hour))
	assert.Same(t, provider, keys.Provider("s1"))

	keys.Logout("s1")
	assert.Nil(t, keys.Provider("s1"))

	// unknown sessions are ignored
	keys.Logout("s1")

	t.Run("expired provider", func(t *testing.T) {
		keys.Attach("s2", provider, time.Now().Add(-time.Second))
		assert.Nil(t, keys.Provider("s2"))
	})
}

func TestKeyState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", KeyStateUninitialized.String())
	assert.Equal(t, "initializing", KeyStateInitializing.String())
	assert.Equal(t, "ready", KeyStateReady.String())
	assert.Equal(t, "init_failed", KeyStateInitFailed.String())
	assert.Equal(t, "KeyState(9)", KeyState(9).String())
}
