package core

import "errors"

var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidChallenge = errors.New("invalid challenge")
	ErrSessionNotFound  = errors.New("session not found")

	// Identity widget
	ErrNonceUnavailable  = errors.New("unable to generate nonce")
	ErrAssertionRejected = errors.New("assertion rejected")

	// Session bridge and login endpoint
	ErrTokenExchange    = errors.New("token exchange failed")
	ErrInvalidAssertion = errors.New("invalid assertion")

	// Key derivation. ErrDerivation is combined with one of the causes below.
	ErrDerivation       = errors.New("key derivation failed")
	ErrNotReady         = errors.New("key provider not initialized yet")
	ErrMalformedToken   = errors.New("malformed bearer token")
	ErrNetworkRejection = errors.New("rejected by network")

	// Wallet actions. ErrTransaction is combined with one of the causes below.
	ErrProviderNotReady    = errors.New("provider not initialized yet")
	ErrTransaction         = errors.New("transaction failed")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrConfirmationTimeout = errors.New("confirmation timed out")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrInvalidDestination  = errors.New("invalid destination address")
)
