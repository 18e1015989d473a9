package tokenizer

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/sfa-farcaster/core"
	"github.com/layer-3/sfa-farcaster/ports"
)

const AudienceChallenge = "sfa:challenge"
const AudienceSession = "sfa:session"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey  *ecdsa.PrivateKey
	issuer   string
	audience string
	jwk      jose.JSONWebKey
}

// NewJWTTokenizer creates a new JWT tokenizer. Bearer tokens are issued by
// issuer for audience; the key must be a P-256 key.
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, issuer, audience string) (ports.Tokenizer, error) {
	if signKey == nil || signKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("signing key must be P-256")
	}

	key := jose.JSONWebKey{
		Key:       &signKey.PublicKey,
		Algorithm: string(jose.ES256),
		Use:       "sig",
	}

	// RFC 7638 thumbprint as key id
	thumb, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}
	key.KeyID = base64.RawURLEncoding.EncodeToString(thumb)

	return &JWTTokenizer{
		signKey:  signKey,
		issuer:   issuer,
		audience: audience,
		jwk:      key,
	}, nil
}

func (j *JWTTokenizer) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return &j.signKey.PublicKey, nil
}

// ChallengeToToken converts a Challenge to a JWT token
func (j *JWTTokenizer) ChallengeToToken(challenge *core.Challenge) (string, error) {
	claims := ChallengeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        challenge.ID,
			ExpiresAt: jwt.NewNumericDate(challenge.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(challenge.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceChallenge},
		},
		Nonce: challenge.Nonce,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// TokenToChallenge converts a JWT token to a Challenge
func (j *JWTTokenizer) TokenToChallenge(tokenStr string) (*core.Challenge, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ChallengeClaims{}, j.keyFunc, jwt.WithAudience(AudienceChallenge))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w: %w", core.ErrInvalidChallenge, err)
	}

	claims, ok := token.Claims.(*ChallengeClaims)
	if !ok || !token.Valid {
		return nil, core.ErrInvalidChallenge
	}

	return &core.Challenge{
		ID:        claims.ID,
		Nonce:     claims.Nonce,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SessionToToken converts a Session to a cookie token
func (j *JWTTokenizer) SessionToToken(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.ID,
			ID:        session.TokenID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// TokenToSession parses a cookie token. Only ID, TokenID and the
// timestamps are set on the returned session.
func (j *JWTTokenizer) TokenToSession(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, j.keyFunc, jwt.WithAudience(AudienceSession))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("failed to parse session token: %w: %w", core.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, core.ErrInvalidToken
	}

	return &core.Session{
		ID:        claims.Subject,
		TokenID:   claims.ID,
		CreatedAt: claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// IdentityToBearerToken mints an id token for the key network.
// Every call gets a fresh JWT ID.
func (j *JWTTokenizer) IdentityToBearerToken(identity *core.Identity) (string, error) {
	claims := BearerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   identity.Subject,
			Audience:  jwt.ClaimStrings{j.audience},
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(identity.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(identity.IssuedAt),
		},
		Name:     identity.Name,
		Username: identity.Username,
		Picture:  identity.Picture,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = j.jwk.KeyID

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign bearer token: %w", err)
	}

	return signedToken, nil
}

// DecodeSubject extracts the subject claim from a JWT payload.
// The signature is not checked; the key network verifies the token.
func (j *JWTTokenizer) DecodeSubject(tokenStr string) (string, error) {
	return DecodeSubject(tokenStr)
}

// DecodeSubject extracts the subject claim from any JWT without verifying it.
func DecodeSubject(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return "", fmt.Errorf("failed to decode token: %w: %w", core.ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject: %w", core.ErrInvalidToken)
	}

	return claims.Subject, nil
}

// JWKS returns the public key set as JSON
func (j *JWTTokenizer) JWKS() ([]byte, error) {
	return json.Marshal(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{j.jwk}})
}

// KeyID returns the key ID set on bearer tokens
func (j *JWTTokenizer) KeyID() string {
	return j.jwk.KeyID
}
