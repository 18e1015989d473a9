package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/layer-3/sfa-farcaster/core"
	"github.com/layer-3/sfa-farcaster/internal/eth"
	"github.com/layer-3/sfa-farcaster/ports"
)

// KeyState is the lifecycle state of the key provider
type KeyState int32

const (
	KeyStateUninitialized KeyState = iota
	KeyStateInitializing
	KeyStateReady
	KeyStateInitFailed
)

func (s KeyState) String() string {
	switch s {
	case KeyStateUninitialized:
		return "uninitialized"
	case KeyStateInitializing:
		return "initializing"
	case KeyStateReady:
		return "ready"
	case KeyStateInitFailed:
		return "init_failed"
	default:
		return fmt.Sprintf("KeyState(%d)", int32(s))
	}
}

// KeyProvider bootstraps the key network client and derives signing
// providers from bearer tokens. Derivations never wait for Init.
type KeyProvider struct {
	network   ports.KeyNetwork
	chain     ports.ChainClient
	tokenizer ports.Tokenizer
	chainID   *big.Int
	verifier  string

	state atomic.Int32

	mu        sync.RWMutex
	providers map[string]attachedProvider
}

type attachedProvider struct {
	provider  *SigningProvider
	expiresAt time.Time
}

// NewKeyProvider creates an uninitialized key provider. tokenizer decodes
// the bearer tokens handed to Derive.
func NewKeyProvider(network ports.KeyNetwork, chain ports.ChainClient, tokenizer ports.Tokenizer, chainID *big.Int, verifier string) *KeyProvider {
	return &KeyProvider{
		network:   network,
		chain:     chain,
		tokenizer: tokenizer,
		chainID:   new(big.Int).Set(chainID),
		verifier:  verifier,
		providers: make(map[string]attachedProvider),
	}
}

// State returns the current lifecycle state
func (k *KeyProvider) State() KeyState {
	return KeyState(k.state.Load())
}

// Init runs once. It checks the key network knows our client and that the
// chain endpoint serves the configured chain. Later calls are no-ops that
// report the outcome of the first.
func (k *KeyProvider) Init(ctx context.Context) error {
	if !k.state.CompareAndSwap(int32(KeyStateUninitialized), int32(KeyStateInitializing)) {
		switch k.State() {
		case KeyStateInitFailed:
			return fmt.Errorf("%w: initialization failed", core.ErrNotReady)
		case KeyStateInitializing:
			return fmt.Errorf("%w: initialization in progress", core.ErrNotReady)
		}
		return nil
	}

	if err := k.init(ctx); err != nil {
		k.state.Store(int32(KeyStateInitFailed))
		logger.Errorw("key provider initialization failed", "err", err)
		return err
	}

	k.state.Store(int32(KeyStateReady))
	logger.Infow("key provider ready", "verifier", k.verifier, "chain_id", k.chainID)
	return nil
}

func (k *KeyProvider) init(ctx context.Context) error {
	info, err := k.network.Info(ctx)
	if err != nil {
		return err
	}

	chainID, err := k.chain.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to query chain id: %w", err)
	}

	if chainID.Cmp(k.chainID) != 0 {
		return fmt.Errorf("chain endpoint serves chain %s, expected %s", chainID, k.chainID)
	}

	logger.Debugw("key network reachable", "network", info.Network)
	return nil
}

// Derive exchanges a bearer token for a signing provider. subjectID must be
// the token's sub claim; the token is decoded locally without verification.
func (k *KeyProvider) Derive(ctx context.Context, bearerToken, subjectID string) (*SigningProvider, error) {
	if k.State() != KeyStateReady {
		return nil, fmt.Errorf("%w: %w", core.ErrDerivation, core.ErrNotReady)
	}

	if bearerToken == "" || subjectID == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrDerivation, core.ErrMalformedToken)
	}

	subject, err := k.tokenizer.DecodeSubject(bearerToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", core.ErrDerivation, core.ErrMalformedToken, err)
	}
	if subject != subjectID {
		return nil, fmt.Errorf("%w: %w: token subject %q does not match %q", core.ErrDerivation, core.ErrMalformedToken, subject, subjectID)
	}

	keyHex, err := k.network.RequestKey(ctx, core.KeyRequest{
		Verifier:   k.verifier,
		VerifierID: subjectID,
		IDToken:    bearerToken,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", core.ErrDerivation, core.ErrNetworkRejection, err)
	}

	signer, err := eth.SignerFromHex(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", core.ErrDerivation, core.ErrNetworkRejection, err)
	}

	return NewSigningProvider(signer, k.chain, k.chainID), nil
}

// Attach binds a provider to a session until expiresAt, replacing any
// previous one
func (k *KeyProvider) Attach(sessionID string, provider *SigningProvider, expiresAt time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.providers[sessionID] = attachedProvider{provider: provider, expiresAt: expiresAt}
}

// Provider returns the session's provider, or nil when there is none or it
// outlived its session
func (k *KeyProvider) Provider(sessionID string) *SigningProvider {
	k.mu.RLock()
	entry, ok := k.providers[sessionID]
	k.mu.RUnlock()

	if !ok {
		return nil
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		k.Logout(sessionID)
		return nil
	}

	return entry.provider
}

// Logout drops the session's provider. Unknown sessions are ignored.
func (k *KeyProvider) Logout(sessionID string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	delete(k.providers, sessionID)
}
