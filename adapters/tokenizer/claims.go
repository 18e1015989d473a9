package tokenizer

import "github.com/golang-jwt/jwt/v5"

// ChallengeClaims combines standard claims with challenge-specific ones
type ChallengeClaims struct {
	jwt.RegisteredClaims
	Nonce string `json:"nonce"`
}

// SessionClaims are the claims of the session cookie token.
// Subject is the session ID, ID is the token ID.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// BearerClaims are the claims of the id token handed to the key network
type BearerClaims struct {
	jwt.RegisteredClaims
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Picture  string `json:"picture,omitempty"`
}
