package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/ipfs/go-log/v2"
	"github.com/layer-3/sfa-farcaster/core"
	"github.com/layer-3/sfa-farcaster/service"
	"github.com/shopspring/decimal"
)

var logger = log.Logger("sfa/http")

// Cookie names
const (
	SessionCookie   = "sfa_session"
	ChallengeCookie = "sfa_challenge"
	ChannelCookie   = "sfa_channel"
	SignInURLCookie = "sfa_signin_url"
)

const signInFailedMessage = "Unable to sign in at this time."

// Options configure the handlers
type Options struct {
	SecureCookies bool
	SessionTTL    time.Duration
	ChallengeTTL  time.Duration

	ChainName     string
	ExplorerURL   string
	DemoMessage   string
	DemoRecipient string
	DemoAmount    decimal.Decimal
}

// Handlers contains the HTTP handlers of the demo
type Handlers struct {
	identity *service.IdentityService
	bridge   *service.SessionBridge
	flow     *service.LoginFlow
	keys     *service.KeyProvider
	wallet   *service.WalletActions
	issuer   *service.LoginIssuer
	opts     Options
}

// NewHandlers creates new handlers
func NewHandlers(
	identity *service.IdentityService,
	bridge *service.SessionBridge,
	flow *service.LoginFlow,
	keys *service.KeyProvider,
	wallet *service.WalletActions,
	issuer *service.LoginIssuer,
	opts Options,
) *Handlers {
	return &Handlers{
		identity: identity,
		bridge:   bridge,
		flow:     flow,
		keys:     keys,
		wallet:   wallet,
		issuer:   issuer,
		opts:     opts,
	}
}

// Index renders the demo page
func (h *Handlers) Index(c *gin.Context) {
	view := h.view(c)
	if view.Session == nil {
		if url, err := c.Cookie(SignInURLCookie); err == nil {
			view.SignInURL = url
		}
	}
	c.HTML(http.StatusOK, indexTemplate, view)
}

// Nonce issues a sign-in nonce
func (h *Handlers) Nonce(c *gin.Context) {
	challenge, token, err := h.identity.RequestNonce()
	if err != nil {
		logger.Errorw("failed to issue nonce", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to generate nonce"})
		return
	}

	h.setCookie(c, ChallengeCookie, token, h.opts.ChallengeTTL)
	c.JSON(http.StatusOK, gin.H{"nonce": challenge.Nonce})
}

// SignIn opens a relay channel for a new sign-in
func (h *Handlers) SignIn(c *gin.Context) {
	req, err := h.identity.StartSignIn(c.Request.Context())
	if err != nil {
		logger.Errorw("failed to start sign-in", "err", err)
		h.signInFailed(c, http.StatusBadGateway)
		return
	}

	h.setCookie(c, ChallengeCookie, req.ChallengeToken, h.opts.ChallengeTTL)
	h.setCookie(c, ChannelCookie, req.ChannelToken, h.opts.ChallengeTTL)
	h.setCookie(c, SignInURLCookie, req.URL, h.opts.ChallengeTTL)

	if wantsHTML(c) {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"channelToken": req.ChannelToken,
		"url":          req.URL,
		"nonce":        req.Nonce,
	})
}

// SignInStatus polls the relay once and completes the login when the user
// approved it
func (h *Handlers) SignInStatus(c *gin.Context) {
	challengeToken, _ := c.Cookie(ChallengeCookie)
	channelToken, _ := c.Cookie(ChannelCookie)
	if challengeToken == "" || channelToken == "" {
		if wantsHTML(c) {
			c.Redirect(http.StatusSeeOther, "/")
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No sign-in in progress"})
		return
	}

	assertion, done, err := h.identity.PollSignIn(c.Request.Context(), challengeToken, channelToken)
	if err != nil {
		logger.Warnw("sign-in failed", "err", err)
		h.clearSignIn(c)

		status := http.StatusBadGateway
		if errors.Is(err, core.ErrAssertionRejected) {
			status = http.StatusForbidden
		}
		h.signInFailed(c, status)
		return
	}

	if !done {
		if wantsHTML(c) {
			view := h.view(c)
			view.SignInURL, _ = c.Cookie(SignInURLCookie)
			c.HTML(http.StatusAccepted, indexTemplate, view)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"state": core.ChannelPending})
		return
	}

	h.clearSignIn(c)

	result, err := h.flow.Run(c.Request.Context(), assertion)
	if result.CookieToken != "" {
		h.setCookie(c, SessionCookie, result.CookieToken, h.opts.SessionTTL)
	}

	if err != nil && result.Session == nil {
		logger.Errorw("failed to establish session", "err", err)
		h.signInFailed(c, http.StatusInternalServerError)
		return
	}

	body := gin.H{
		"state": core.ChannelCompleted,
		"user":  result.Session.User,
	}

	view := h.view(c)
	view.Session = result.Session

	if err != nil {
		// Signed in locally but without a wallet
		logger.Errorw("login incomplete", "session", result.Session.ID, "err", err)
		body["error"] = err.Error()
		view.Output = consoleOutput("Login failed:", err.Error())
	} else {
		body["address"] = result.Address
		view.Output = consoleOutput("ETH Address:", result.Address)
	}

	if wantsHTML(c) {
		c.HTML(http.StatusOK, indexTemplate, view)
		return
	}
	c.JSON(http.StatusOK, body)
}

// SignOut ends the key-provider and local sessions
func (h *Handlers) SignOut(c *gin.Context) {
	token, _ := c.Cookie(SessionCookie)
	if err := h.bridge.Terminate(c.Request.Context(), token); err != nil {
		logger.Errorw("failed to sign out", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign out"})
		return
	}

	clearCookie(c, SessionCookie, h.opts.SecureCookies)
	h.clearSignIn(c)

	if wantsHTML(c) {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the signed in user's profile
func (h *Handlers) Me(c *gin.Context) {
	session := sessionFrom(c)
	if session == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	body := gin.H{
		"user":      session.User,
		"expiresAt": session.ExpiresAt,
	}
	if provider := h.keys.Provider(session.ID); provider != nil {
		body["address"] = provider.Address().Hex()
	}
	c.JSON(http.StatusOK, body)
}

// Login exchanges a relay assertion for a bearer token
func (h *Handlers) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, err := h.issuer.Issue(c.Request.Context(), req.UserData)
	if err != nil {
		if errors.Is(err, core.ErrInvalidAssertion) {
			logger.Infow("login rejected", "err", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user data"})
			return
		}
		logger.Errorw("failed to issue token", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, service.LoginResponse{Token: token})
}

// JWKS serves the key set bearer tokens are signed with
func (h *Handlers) JWKS(c *gin.Context) {
	jwks, err := h.issuer.JWKS()
	if err != nil {
		logger.Errorw("failed to encode jwks", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load keys"})
		return
	}

	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "application/json", jwks)
}

// Health reports the key provider state
func (h *Handlers) Health(c *gin.Context) {
	state := h.keys.State()
	status := http.StatusOK
	if state != service.KeyStateReady {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"keyProvider": state.String()})
}

func (h *Handlers) view(c *gin.Context) View {
	return View{
		Session:       sessionFrom(c),
		KeyState:      h.keys.State().String(),
		ChainName:     h.opts.ChainName,
		ExplorerURL:   h.opts.ExplorerURL,
		DemoMessage:   h.opts.DemoMessage,
		DemoRecipient: h.opts.DemoRecipient,
		DemoAmount:    h.opts.DemoAmount.String(),
	}
}

func (h *Handlers) signInFailed(c *gin.Context, status int) {
	if wantsHTML(c) {
		view := h.view(c)
		view.Error = true
		c.HTML(status, indexTemplate, view)
		return
	}
	c.JSON(status, gin.H{"error": signInFailedMessage})
}

func (h *Handlers) clearSignIn(c *gin.Context) {
	clearCookie(c, ChallengeCookie, h.opts.SecureCookies)
	clearCookie(c, ChannelCookie, h.opts.SecureCookies)
	clearCookie(c, SignInURLCookie, h.opts.SecureCookies)
}

func (h *Handlers) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(ttl.Seconds()), "/", "", h.opts.SecureCookies, true)
}

func clearCookie(c *gin.Context, name string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", secure, true)
}

// wantsHTML reports whether the client prefers a rendered page over JSON
func wantsHTML(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML
}
