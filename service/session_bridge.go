package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/sfa-farcaster/core"
	"github.com/layer-3/sfa-farcaster/ports"
)

// LoginRequest is the body posted to the login-exchange endpoint
type LoginRequest struct {
	UserData *core.Assertion `json:"userData" binding:"required"`
}

// LoginResponse is the body returned by the login-exchange endpoint
type LoginResponse struct {
	Token string `json:"token"`
}

// SessionBridge turns an assertion into a local session and a bearer token,
// and tears both down again
type SessionBridge struct {
	store     ports.Store
	tokenizer ports.Tokenizer
	eventPub  ports.EventPublisher
	keys      *KeyProvider
	client    *http.Client

	loginURL   string
	sessionTTL time.Duration
}

// NewSessionBridge creates a new session bridge. loginURL is the endpoint
// assertions are exchanged at for bearer tokens.
func NewSessionBridge(
	store ports.Store,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
	keys *KeyProvider,
	client *http.Client,
	loginURL string,
	sessionTTL time.Duration,
) *SessionBridge {
	if client == nil {
		client = http.DefaultClient
	}

	return &SessionBridge{
		store:      store,
		tokenizer:  tokenizer,
		eventPub:   eventPub,
		keys:       keys,
		client:     client,
		loginURL:   loginURL,
		sessionTTL: sessionTTL,
	}
}

// EstablishLocalSession stores the assertion's message, signature and
// profile as a new session and returns the cookie token for it. The
// signature is not verified here.
func (b *SessionBridge) EstablishLocalSession(ctx context.Context, assertion *core.Assertion) (*core.Session, string, error) {
	if assertion == nil {
		return nil, "", core.ErrInvalidAssertion
	}

	now := time.Now()
	session := &core.Session{
		ID:        uuid.New().String(),
		TokenID:   uuid.New().String(),
		User:      assertion.Profile(),
		Message:   assertion.Message,
		Signature: assertion.Signature,
		CreatedAt: now,
		ExpiresAt: now.Add(b.sessionTTL),
	}

	token, err := b.tokenizer.SessionToToken(session)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session token: %w", err)
	}

	if err := b.store.SaveSession(ctx, session, b.sessionTTL); err != nil {
		return nil, "", fmt.Errorf("failed to save session: %w", err)
	}

	if err := b.eventPub.PublishLogin(ctx, session.ID, subjectOf(session)); err != nil {
		logger.Warnw("failed to publish login event", "session", session.ID, "err", err)
	}

	return session, token, nil
}

// ExchangeForBearerToken posts the assertion to the login endpoint and
// returns the token it answers with. Every call hits the endpoint.
func (b *SessionBridge) ExchangeForBearerToken(ctx context.Context, assertion *core.Assertion) (string, error) {
	body, err := json.Marshal(LoginRequest{UserData: assertion})
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrTokenExchange, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.loginURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrTokenExchange, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrTokenExchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: login endpoint responded %d: %s", core.ErrTokenExchange, resp.StatusCode, msg)
	}

	var login LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %w", core.ErrTokenExchange, err)
	}

	if login.Token == "" {
		return "", fmt.Errorf("%w: response has no token", core.ErrTokenExchange)
	}

	return login.Token, nil
}

// CurrentSession resolves a cookie token to its stored session
func (b *SessionBridge) CurrentSession(ctx context.Context, cookieToken string) (*core.Session, error) {
	claims, err := b.tokenizer.TokenToSession(cookieToken)
	if err != nil {
		return nil, err
	}

	invalidated, err := b.store.IsTokenInvalidated(ctx, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		return nil, core.ErrTokenInvalidated
	}

	session, err := b.store.GetSession(ctx, claims.ID)
	if err != nil {
		return nil, err
	}

	if session.TokenID != claims.TokenID || session.Expired(time.Now()) {
		return nil, core.ErrSessionNotFound
	}

	return session, nil
}

// Terminate logs the key provider out and removes the local session. It
// succeeds when either half was never established or is already gone.
func (b *SessionBridge) Terminate(ctx context.Context, cookieToken string) error {
	claims, err := b.tokenizer.TokenToSession(cookieToken)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) || errors.Is(err, core.ErrInvalidToken) {
			// nothing we can identify to tear down
			return nil
		}
		return err
	}

	b.keys.Logout(claims.ID)

	session, err := b.store.GetSession(ctx, claims.ID)
	if err != nil && !errors.Is(err, core.ErrSessionNotFound) {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if err := b.store.DeleteSession(ctx, claims.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if ttl := time.Until(claims.ExpiresAt); ttl > 0 {
		if err := b.store.InvalidateToken(ctx, claims.TokenID, ttl); err != nil {
			return fmt.Errorf("failed to invalidate session token: %w", err)
		}
	}

	if session != nil {
		if err := b.eventPub.PublishLogout(ctx, session.ID, subjectOf(session)); err != nil {
			// The session is already gone, which is the critical part
			logger.Warnw("failed to publish logout event", "session", session.ID, "err", err)
		}
	}

	return nil
}

func subjectOf(session *core.Session) string {
	if session.User.Fid == 0 {
		return session.User.Username
	}
	return strconv.FormatUint(session.User.Fid, 10)
}
