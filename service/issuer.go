package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/layer-3/sfa-farcaster/core"
	"github.com/layer-3/sfa-farcaster/ports"
	siwe "github.com/spruceid/siwe-go"
)

// LoginIssuer backs the login-exchange endpoint. It turns a relay assertion
// into a short lived bearer token the key network can verify against our
// JWKS. Proof verification is left to the key network and the relay.
type LoginIssuer struct {
	tokenizer ports.Tokenizer
	domain    string
	bearerTTL time.Duration
}

// NewLoginIssuer creates a new login issuer for assertions made for domain
func NewLoginIssuer(tokenizer ports.Tokenizer, domain string, bearerTTL time.Duration) *LoginIssuer {
	return &LoginIssuer{
		tokenizer: tokenizer,
		domain:    domain,
		bearerTTL: bearerTTL,
	}
}

// Issue mints a fresh bearer token for the assertion's fid
func (i *LoginIssuer) Issue(ctx context.Context, assertion *core.Assertion) (string, error) {
	if err := i.check(assertion); err != nil {
		return "", err
	}

	now := time.Now()
	token, err := i.tokenizer.IdentityToBearerToken(&core.Identity{
		Subject:   strconv.FormatUint(assertion.Fid, 10),
		Name:      assertion.DisplayName,
		Username:  assertion.Username,
		Picture:   assertion.PfpURL,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.bearerTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	logger.Infow("bearer token issued", "fid", assertion.Fid, "username", assertion.Username)
	return token, nil
}

// JWKS returns the key set bearer tokens verify against
func (i *LoginIssuer) JWKS() ([]byte, error) {
	return i.tokenizer.JWKS()
}

func (i *LoginIssuer) check(assertion *core.Assertion) error {
	if assertion == nil {
		return fmt.Errorf("%w: missing user data", core.ErrInvalidAssertion)
	}
	if assertion.Fid == 0 {
		return fmt.Errorf("%w: missing fid", core.ErrInvalidAssertion)
	}
	if assertion.Message == "" || assertion.Signature == "" {
		return fmt.Errorf("%w: missing message or signature", core.ErrInvalidAssertion)
	}

	msg, err := siwe.ParseMessage(assertion.Message)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidAssertion, err)
	}
	if msg.GetDomain() != i.domain {
		return fmt.Errorf("%w: message is for domain %q", core.ErrInvalidAssertion, msg.GetDomain())
	}
	if assertion.Nonce != "" && assertion.Nonce != msg.GetNonce() {
		return fmt.Errorf("%w: nonce mismatch", core.ErrInvalidAssertion)
	}

	return nil
}
