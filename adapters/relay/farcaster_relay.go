package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/layer-3/sfa-farcaster/core"
	"github.com/layer-3/sfa-farcaster/ports"
)

// DefaultURL is the public Farcaster auth relay
const DefaultURL = "https://relay.farcaster.xyz"

// FarcasterRelay implements the Relay interface against the auth-kit relay API
type FarcasterRelay struct {
	baseURL string
	domain  string
	siweURI string
	client  *http.Client
}

// NewFarcasterRelay creates a relay client. domain and siweURI end up in the
// SIWE message the user signs.
func NewFarcasterRelay(baseURL, domain, siweURI string, client *http.Client) ports.Relay {
	if client == nil {
		client = http.DefaultClient
	}

	return &FarcasterRelay{
		baseURL: strings.TrimRight(baseURL, "/"),
		domain:  domain,
		siweURI: siweURI,
		client:  client,
	}
}

type createChannelRequest struct {
	SiweURI string `json:"siweUri"`
	Domain  string `json:"domain"`
	Nonce   string `json:"nonce"`
}

// CreateChannel opens a sign-in channel bound to nonce
func (r *FarcasterRelay) CreateChannel(ctx context.Context, nonce string) (*core.Channel, error) {
	body, err := json.Marshal(createChannelRequest{
		SiweURI: r.siweURI,
		Domain:  r.domain,
		Nonce:   nonce,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal channel request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/channel", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var channel core.Channel
	if err := json.NewDecoder(resp.Body).Decode(&channel); err != nil {
		return nil, fmt.Errorf("failed to decode channel: %w", err)
	}

	if channel.Token == "" || channel.URL == "" {
		return nil, fmt.Errorf("relay returned an incomplete channel")
	}

	return &channel, nil
}

// ChannelStatus polls the relay for the state of a channel
func (r *FarcasterRelay) ChannelStatus(ctx context.Context, channelToken string) (*core.ChannelStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/v1/channel/status", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+channelToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, statusError(resp)
	}

	var assertion core.Assertion
	if err := json.NewDecoder(resp.Body).Decode(&assertion); err != nil {
		return nil, fmt.Errorf("failed to decode channel status: %w", err)
	}

	if assertion.State != core.ChannelCompleted {
		return &core.ChannelStatus{State: core.ChannelPending}, nil
	}

	return &core.ChannelStatus{
		State:     core.ChannelCompleted,
		Assertion: &assertion,
	}, nil
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("relay responded %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}
