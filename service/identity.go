package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/sfa-farcaster/core"
	"github.com/layer-3/sfa-farcaster/ports"
)

// IdentityService drives the Farcaster sign-in widget: it issues nonces and
// talks to the relay that collects the user's signature.
type IdentityService struct {
	tokenizer ports.Tokenizer
	relay     ports.Relay

	challengeTTL time.Duration
}

// NewIdentityService creates a new identity service
func NewIdentityService(tokenizer ports.Tokenizer, relay ports.Relay, challengeTTL time.Duration) *IdentityService {
	return &IdentityService{
		tokenizer:    tokenizer,
		relay:        relay,
		challengeTTL: challengeTTL,
	}
}

// RequestNonce generates a new sign-in nonce and the signed challenge token
// that carries it
func (s *IdentityService) RequestNonce() (*core.Challenge, string, error) {
	nonceBytes := make([]byte, 16)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, "", fmt.Errorf("%w: %w", core.ErrNonceUnavailable, err)
	}

	now := time.Now()
	challenge := &core.Challenge{
		ID:        uuid.New().String(),
		Nonce:     hex.EncodeToString(nonceBytes),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.challengeTTL),
	}

	token, err := s.tokenizer.ChallengeToToken(challenge)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", core.ErrNonceUnavailable, err)
	}

	return challenge, token, nil
}

// StartSignIn issues a nonce and opens a relay channel for it
func (s *IdentityService) StartSignIn(ctx context.Context) (*core.SignInRequest, error) {
	challenge, challengeToken, err := s.RequestNonce()
	if err != nil {
		return nil, err
	}

	channel, err := s.relay.CreateChannel(ctx, challenge.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to open relay channel: %w", err)
	}

	logger.Debugw("sign-in channel opened", "challenge", challenge.ID)

	return &core.SignInRequest{
		ChallengeToken: challengeToken,
		ChannelToken:   channel.Token,
		URL:            channel.URL,
		Nonce:          challenge.Nonce,
	}, nil
}

// PollSignIn checks the relay once. done is false while the user has not
// approved the request yet. A completed assertion must carry the nonce of
// the challenge, otherwise it is rejected.
func (s *IdentityService) PollSignIn(ctx context.Context, challengeToken, channelToken string) (assertion *core.Assertion, done bool, err error) {
	challenge, err := s.tokenizer.TokenToChallenge(challengeToken)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", core.ErrAssertionRejected, err)
	}

	status, err := s.relay.ChannelStatus(ctx, channelToken)
	if err != nil {
		return nil, false, fmt.Errorf("failed to poll relay: %w", err)
	}

	if status.State != core.ChannelCompleted {
		return nil, false, nil
	}

	if status.Assertion == nil || status.Assertion.Nonce != challenge.Nonce {
		return nil, true, fmt.Errorf("%w: nonce mismatch", core.ErrAssertionRejected)
	}

	if status.Assertion.Message == "" || status.Assertion.Signature == "" {
		return nil, true, fmt.Errorf("%w: missing message or signature", core.ErrAssertionRejected)
	}

	return status.Assertion, true, nil
}
