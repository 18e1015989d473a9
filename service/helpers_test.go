package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/layer-3/sfa-farcaster/adapters/store"
	"github.com/layer-3/sfa-farcaster/adapters/tokenizer"
	"github.com/layer-3/sfa-farcaster/core"
	"github.com/layer-3/sfa-farcaster/ports"
	"github.com/stretchr/testify/require"
)

const (
	testKeyHex  = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAddress = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	testDomain  = "example.com"
)

// simulatedChainID is the chain id of go-ethereum's simulated backend
var simulatedChainID = big.NewInt(1337)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func newTestTokenizer(t *testing.T) ports.Tokenizer {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tok, err := tokenizer.NewJWTTokenizer(key, "https://sfa.example", "w3a-farcaster-demo")
	require.NoError(t, err)
	return tok
}

// mintBearer issues a bearer token for subject
func mintBearer(t *testing.T, tok ports.Tokenizer, subject string) string {
	t.Helper()

	now := time.Now()
	token, err := tok.IdentityToBearerToken(&core.Identity{
		Subject:   subject,
		IssuedAt:  now,
		ExpiresAt: now.Add(5 * time.Minute),
	})
	require.NoError(t, err)
	return token
}

func newSimulatedChain(t *testing.T, balance *big.Int) *simulated.Backend {
	t.Helper()

	backend := simulated.NewBackend(types.GenesisAlloc{
		common.HexToAddress(testAddress): {Balance: balance},
	})
	t.Cleanup(func() { backend.Close() })
	return backend
}

// commitLoop mines a block every interval until the returned stop is called
func commitLoop(backend *simulated.Backend, interval time.Duration) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				backend.Commit()
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

type fakeKeyNetwork struct {
	mu       sync.Mutex
	infoErr  error
	keyErr   error
	requests []core.KeyRequest

	// Info blocks until release is closed, when set
	release chan struct{}
}

func (n *fakeKeyNetwork) Info(ctx context.Context) (*core.NetworkInfo, error) {
	if n.release != nil {
		select {
		case <-n.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n.infoErr != nil {
		return nil, n.infoErr
	}
	return &core.NetworkInfo{Network: "sapphire_mainnet", ClientID: "client"}, nil
}

func (n *fakeKeyNetwork) RequestKey(ctx context.Context, req core.KeyRequest) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.requests = append(n.requests, req)
	if n.keyErr != nil {
		return "", n.keyErr
	}
	return testKeyHex, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	logins  []string
	logouts []string
	err     error
}

func (p *recordingPublisher) PublishLogin(ctx context.Context, sessionID, subject string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logins = append(p.logins, sessionID)
	return p.err
}

func (p *recordingPublisher) PublishLogout(ctx context.Context, sessionID, subject string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts = append(p.logouts, sessionID)
	return p.err
}

type fakeRelay struct {
	channelErr error
	status     *core.ChannelStatus
	statusErr  error
	nonces     []string
}

func (r *fakeRelay) CreateChannel(ctx context.Context, nonce string) (*core.Channel, error) {
	if r.channelErr != nil {
		return nil, r.channelErr
	}
	r.nonces = append(r.nonces, nonce)
	return &core.Channel{Token: "chan-" + nonce, URL: "https://warpcast.com/~/sign-in?channelToken=chan-" + nonce, Nonce: nonce}, nil
}

func (r *fakeRelay) ChannelStatus(ctx context.Context, channelToken string) (*core.ChannelStatus, error) {
	if r.statusErr != nil {
		return nil, r.statusErr
	}
	if r.status == nil {
		return &core.ChannelStatus{State: core.ChannelPending}, nil
	}
	return r.status, nil
}

// testAssertion returns a completed relay assertion for alice
func testAssertion(nonce string) *core.Assertion {
	return &core.Assertion{
		State: core.ChannelCompleted,
		Nonce: nonce,
		Message: testDomain + " wants you to sign in with your Ethereum account:\n" +
			"0x2c7536E3605D9C16a7a3D7b1898e529396a65c23\n\n" +
			"Farcaster Auth\n\n" +
			"URI: http://example.com/login\n" +
			"Version: 1\n" +
			"Chain ID: 10\n" +
			"Nonce: " + nonce + "\n" +
			"Issued At: 2024-01-01T00:00:00.000Z\n" +
			"Resources:\n" +
			"- farcaster://fid/1234",
		Signature:   "0xsignature",
		Fid:         1234,
		Username:    "alice",
		DisplayName: "alice",
		PfpURL:      "https://example.com/alice.png",
	}
}

// newIssuerServer serves LoginIssuer over plain net/http
func newIssuerServer(t *testing.T, issuer *LoginIssuer) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		token, err := issuer.Issue(r.Context(), req.UserData)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, core.ErrInvalidAssertion) {
				status = http.StatusBadRequest
			}
			http.Error(w, err.Error(), status)
			return
		}
		_ = json.NewEncoder(w).Encode(LoginResponse{Token: token})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	tokenizer ports.Tokenizer
	store     ports.Store
	events    *recordingPublisher
	network   *fakeKeyNetwork
	chain     *simulated.Backend
	keys      *KeyProvider
	bridge    *SessionBridge
	wallet    *WalletActions
	flow      *LoginFlow
	issuer    *LoginIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		tokenizer: newTestTokenizer(t),
		store:     store.NewMemoryStore(),
		events:    &recordingPublisher{},
		network:   &fakeKeyNetwork{},
		chain:     newSimulatedChain(t, ether(1)),
	}

	env.issuer = NewLoginIssuer(env.tokenizer, testDomain, 5*time.Minute)
	srv := newIssuerServer(t, env.issuer)

	env.keys = NewKeyProvider(env.network, env.chain.Client(), env.tokenizer, simulatedChainID, "w3a-farcaster-demo")
	env.bridge = NewSessionBridge(env.store, env.tokenizer, env.events, env.keys, srv.Client(), srv.URL, time.Hour)
	env.wallet = NewWalletActions(5 * time.Second)
	env.flow = NewLoginFlow(env.bridge, env.keys, env.wallet, env.tokenizer)
	return env
}
