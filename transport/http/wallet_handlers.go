package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/sfa-farcaster/core"
	"github.com/layer-3/sfa-farcaster/service"
	"github.com/shopspring/decimal"
)

type signRequest struct {
	Message string `form:"message" json:"message"`
}

type sendRequest struct {
	To     string `form:"to" json:"to"`
	Amount string `form:"amount" json:"amount"`
}

// Address returns the wallet address
func (h *Handlers) Address(c *gin.Context) {
	address, err := h.wallet.GetAddress(h.provider(c))
	if err != nil {
		h.walletError(c, err, nil)
		return
	}

	h.walletResult(c, gin.H{"address": address}, "ETH Address:", address)
}

// Balance returns the wallet balance in ether
func (h *Handlers) Balance(c *gin.Context) {
	balance, err := h.wallet.GetBalance(c.Request.Context(), h.provider(c))
	if err != nil {
		h.walletError(c, err, nil)
		return
	}

	h.walletResult(c, gin.H{"balance": balance}, "Balance:", balance)
}

// Sign signs the demo message, or the one in the request
func (h *Handlers) Sign(c *gin.Context) {
	req := signRequest{Message: h.opts.DemoMessage}
	if !bindOptional(c, &req) {
		return
	}
	if req.Message == "" {
		req.Message = h.opts.DemoMessage
	}

	signature, err := h.wallet.SignMessage(h.provider(c), req.Message)
	if err != nil {
		h.walletError(c, err, nil)
		return
	}

	h.walletResult(c, gin.H{"message": req.Message, "signature": signature}, signature)
}

// Send transfers the demo amount to the demo recipient, or the ones in the
// request, and waits for the receipt
func (h *Handlers) Send(c *gin.Context) {
	var req sendRequest
	if !bindOptional(c, &req) {
		return
	}

	to := req.To
	if to == "" {
		to = h.opts.DemoRecipient
	}

	amount := h.opts.DemoAmount
	if req.Amount != "" {
		var err error
		if amount, err = decimal.NewFromString(req.Amount); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
	}

	receipt, err := h.wallet.SendTransaction(c.Request.Context(), h.provider(c), to, amount)
	if err != nil {
		h.walletError(c, err, receipt)
		return
	}

	h.walletResult(c, gin.H{"receipt": receipt}, receipt)
}

func (h *Handlers) provider(c *gin.Context) *service.SigningProvider {
	session := sessionFrom(c)
	if session == nil {
		return nil
	}
	return h.keys.Provider(session.ID)
}

func (h *Handlers) walletResult(c *gin.Context, body gin.H, output ...any) {
	if wantsHTML(c) {
		view := h.view(c)
		view.Output = consoleOutput(output...)
		c.HTML(http.StatusOK, indexTemplate, view)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handlers) walletError(c *gin.Context, err error, receipt *core.Receipt) {
	status, msg := walletStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Errorw("wallet action failed", "path", c.FullPath(), "err", err)
	} else {
		logger.Infow("wallet action rejected", "path", c.FullPath(), "err", err)
	}

	if wantsHTML(c) {
		view := h.view(c)
		if receipt != nil {
			view.Output = consoleOutput(msg, err.Error(), receipt)
		} else {
			view.Output = consoleOutput(msg, err.Error())
		}
		c.HTML(status, indexTemplate, view)
		return
	}

	body := gin.H{"error": msg}
	if receipt != nil {
		body["receipt"] = receipt
	}
	c.JSON(status, body)
}

func walletStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrProviderNotReady):
		return http.StatusConflict, "Provider not initialized yet"
	case errors.Is(err, core.ErrInvalidDestination):
		return http.StatusBadRequest, "Invalid destination"
	case errors.Is(err, core.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "Insufficient funds"
	case errors.Is(err, core.ErrTransactionReverted):
		return http.StatusUnprocessableEntity, "Transaction reverted"
	case errors.Is(err, core.ErrConfirmationTimeout):
		return http.StatusGatewayTimeout, "Transaction not confirmed in time"
	case errors.Is(err, core.ErrNetworkRejection):
		return http.StatusBadGateway, "Transaction rejected by the network"
	case errors.Is(err, core.ErrTransaction):
		return http.StatusBadRequest, "Invalid transaction"
	default:
		return http.StatusInternalServerError, "Wallet action failed"
	}
}

// bindOptional binds the request body when there is one
func bindOptional(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBind(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return false
	}
	return true
}
