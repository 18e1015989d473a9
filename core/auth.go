package core

import "time"

// Assertion is the signed identity proof handed back by the Farcaster relay
// once the user approves the sign-in request.
type Assertion struct {
	State         string   `json:"state,omitempty"`
	Nonce         string   `json:"nonce,omitempty"`
	URL           string   `json:"url,omitempty"`
	Message       string   `json:"message"`
	Signature     string   `json:"signature"`
	Fid           uint64   `json:"fid,omitempty"`
	Username      string   `json:"username,omitempty"`
	DisplayName   string   `json:"displayName,omitempty"`
	PfpURL        string   `json:"pfpUrl,omitempty"`
	Bio           string   `json:"bio,omitempty"`
	Custody       string   `json:"custody,omitempty"`
	Verifications []string `json:"verifications,omitempty"`
}

// Profile returns the profile fields carried by the assertion.
func (a *Assertion) Profile() Profile {
	return Profile{
		Fid:       a.Fid,
		Name:      a.DisplayName,
		Username:  a.Username,
		AvatarURL: a.PfpURL,
	}
}

// Profile holds the public profile of a signed-in user
type Profile struct {
	Fid       uint64 `json:"fid,omitempty"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Session represents a local browser session
type Session struct {
	ID        string    `json:"id"`         // Unique session identifier
	TokenID   string    `json:"token_id"`   // JWT ID of the cookie token bound to the session
	User      Profile   `json:"user"`       // Profile copied from the assertion
	Message   string    `json:"message"`    // Signed SIWE message
	Signature string    `json:"signature"`  // Signature over Message
	CreatedAt time.Time `json:"created_at"` // When the session was established
	ExpiresAt time.Time `json:"expires_at"` // When the session stops being valid
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Challenge represents a sign-in nonce issued to the identity widget
type Challenge struct {
	ID        string    // Unique identifier for the challenge
	Nonce     string    // Random nonce the relay embeds into the SIWE message
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
}

// Channel is an open sign-in channel on the Farcaster relay
type Channel struct {
	Token string `json:"channelToken"`
	URL   string `json:"url"`
	Nonce string `json:"nonce"`
}

// Channel states reported by the relay
const (
	ChannelPending   = "pending"
	ChannelCompleted = "completed"
)

// ChannelStatus is the relay's view of a sign-in channel.
// Assertion is only set once State is ChannelCompleted.
type ChannelStatus struct {
	State     string
	Assertion *Assertion
}

// SignInRequest bundles what the page needs to drive a pending sign-in
type SignInRequest struct {
	ChallengeToken string
	ChannelToken   string
	URL            string
	Nonce          string
}

// Identity is the set of claims placed in a bearer token
type Identity struct {
	Subject   string
	Name      string
	Username  string
	Picture   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// KeyRequest is sent to the key network to obtain the user's key
type KeyRequest struct {
	Verifier   string `json:"verifier"`
	VerifierID string `json:"verifier_id"`
	IDToken    string `json:"id_token"`
}

// NetworkInfo describes the key network the client is connected to
type NetworkInfo struct {
	Network  string `json:"network"`
	ClientID string `json:"client_id"`
}
