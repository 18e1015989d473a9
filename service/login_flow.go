package service

import (
	"context"
	"fmt"

	"github.com/layer-3/sfa-farcaster/core"
	"github.com/layer-3/sfa-farcaster/ports"
)

// LoginStep names one step of the login flow
type LoginStep string

const (
	StepEstablishSession LoginStep = "establish_session"
	StepExchangeToken    LoginStep = "exchange_token"
	StepDecodeSubject    LoginStep = "decode_subject"
	StepDeriveKey        LoginStep = "derive_key"
	StepReadAddress      LoginStep = "read_address"
)

// StepError reports which step of the login flow failed
type StepError struct {
	Step LoginStep
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("login step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// LoginResult collects the outputs of the steps that ran
type LoginResult struct {
	Session     *core.Session
	CookieToken string
	BearerToken string
	SubjectID   string
	Provider    *SigningProvider
	Address     string
}

// LoginFlow runs the sequence that follows a completed sign-in: local
// session, bearer token, subject, key derivation, first address read.
type LoginFlow struct {
	bridge    *SessionBridge
	keys      *KeyProvider
	wallet    *WalletActions
	tokenizer ports.Tokenizer
}

// NewLoginFlow creates a new login flow
func NewLoginFlow(bridge *SessionBridge, keys *KeyProvider, wallet *WalletActions, tokenizer ports.Tokenizer) *LoginFlow {
	return &LoginFlow{
		bridge:    bridge,
		keys:      keys,
		wallet:    wallet,
		tokenizer: tokenizer,
	}
}

// Run executes every step in order and stops at the first failure. The
// result is returned alongside the error so callers keep the session when a
// later step fails.
func (f *LoginFlow) Run(ctx context.Context, assertion *core.Assertion) (*LoginResult, error) {
	result := &LoginResult{}

	session, cookieToken, err := f.EstablishSession(ctx, assertion)
	if err != nil {
		return result, &StepError{Step: StepEstablishSession, Err: err}
	}
	result.Session = session
	result.CookieToken = cookieToken

	bearer, err := f.ExchangeToken(ctx, assertion)
	if err != nil {
		return result, &StepError{Step: StepExchangeToken, Err: err}
	}
	result.BearerToken = bearer

	subject, err := f.DecodeSubject(bearer)
	if err != nil {
		return result, &StepError{Step: StepDecodeSubject, Err: err}
	}
	result.SubjectID = subject

	provider, err := f.DeriveKey(ctx, session, bearer, subject)
	if err != nil {
		return result, &StepError{Step: StepDeriveKey, Err: err}
	}
	result.Provider = provider

	address, err := f.ReadAddress(provider)
	if err != nil {
		return result, &StepError{Step: StepReadAddress, Err: err}
	}
	result.Address = address

	logger.Infow("login completed", "session", session.ID, "subject", subject, "address", address)
	return result, nil
}

// EstablishSession creates the local session
func (f *LoginFlow) EstablishSession(ctx context.Context, assertion *core.Assertion) (*core.Session, string, error) {
	return f.bridge.EstablishLocalSession(ctx, assertion)
}

// ExchangeToken obtains a bearer token for the assertion
func (f *LoginFlow) ExchangeToken(ctx context.Context, assertion *core.Assertion) (string, error) {
	return f.bridge.ExchangeForBearerToken(ctx, assertion)
}

// DecodeSubject reads the verifier id from the bearer token
func (f *LoginFlow) DecodeSubject(bearerToken string) (string, error) {
	subject, err := f.tokenizer.DecodeSubject(bearerToken)
	if err != nil {
		return "", fmt.Errorf("%w: %w: %w", core.ErrDerivation, core.ErrMalformedToken, err)
	}
	return subject, nil
}

// DeriveKey obtains the signing provider and binds it to the session
func (f *LoginFlow) DeriveKey(ctx context.Context, session *core.Session, bearerToken, subject string) (*SigningProvider, error) {
	provider, err := f.keys.Derive(ctx, bearerToken, subject)
	if err != nil {
		return nil, err
	}

	f.keys.Attach(session.ID, provider, session.ExpiresAt)
	return provider, nil
}

// ReadAddress reads the provider's address
func (f *LoginFlow) ReadAddress(provider *SigningProvider) (string, error) {
	return f.wallet.GetAddress(provider)
}
