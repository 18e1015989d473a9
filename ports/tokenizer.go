package ports

import "github.com/layer-3/sfa-farcaster/core"

// Tokenizer converts between domain objects and tokens
type Tokenizer interface {
	// Challenge token operations
	ChallengeToToken(challenge *core.Challenge) (string, error)
	TokenToChallenge(token string) (*core.Challenge, error)

	// Session cookie token operations
	SessionToToken(session *core.Session) (string, error)
	TokenToSession(token string) (*core.Session, error)

	// Bearer tokens handed to the key network
	IdentityToBearerToken(identity *core.Identity) (string, error)

	// DecodeSubject reads the sub claim without verifying the signature
	DecodeSubject(token string) (string, error)

	// JWKS returns the public key set bearer tokens can be verified with
	JWKS() ([]byte, error)
}
