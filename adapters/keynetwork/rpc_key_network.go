package keynetwork

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/layer-3/sfa-farcaster/core"
	"github.com/layer-3/sfa-farcaster/ports"
)

const (
	methodNetworkInfo = "sfa_networkInfo"
	methodRequestKey  = "sfa_requestKey"
)

// RequestKeyParams is the payload of sfa_requestKey
type RequestKeyParams struct {
	ClientID   string `json:"client_id"`
	Network    string `json:"network"`
	Verifier   string `json:"verifier"`
	VerifierID string `json:"verifier_id"`
	IDToken    string `json:"id_token"`
}

// RPCKeyNetwork implements the KeyNetwork interface over JSON-RPC
type RPCKeyNetwork struct {
	client   *rpc.Client
	clientID string
	network  string
}

// NewRPCKeyNetwork wraps an RPC client connected to the key network
func NewRPCKeyNetwork(client *rpc.Client, clientID, network string) ports.KeyNetwork {
	return &RPCKeyNetwork{
		client:   client,
		clientID: clientID,
		network:  network,
	}
}

// Dial connects to the key network endpoint
func Dial(ctx context.Context, url, clientID, network string) (ports.KeyNetwork, *rpc.Client, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial key network: %w", err)
	}

	return NewRPCKeyNetwork(client, clientID, network), client, nil
}

// Info asks the network which network the client id is registered on
func (n *RPCKeyNetwork) Info(ctx context.Context) (*core.NetworkInfo, error) {
	var info core.NetworkInfo
	if err := n.client.CallContext(ctx, &info, methodNetworkInfo, n.clientID); err != nil {
		return nil, fmt.Errorf("failed to fetch network info: %w", err)
	}

	if info.Network != n.network {
		return nil, fmt.Errorf("client %s is registered on %q, expected %q", n.clientID, info.Network, n.network)
	}

	return &info, nil
}

// RequestKey exchanges an id token for the user's private key
func (n *RPCKeyNetwork) RequestKey(ctx context.Context, req core.KeyRequest) (string, error) {
	params := RequestKeyParams{
		ClientID:   n.clientID,
		Network:    n.network,
		Verifier:   req.Verifier,
		VerifierID: req.VerifierID,
		IDToken:    req.IDToken,
	}

	var key string
	if err := n.client.CallContext(ctx, &key, methodRequestKey, params); err != nil {
		return "", fmt.Errorf("failed to request key: %w", err)
	}

	if key == "" {
		return "", fmt.Errorf("key network returned an empty key")
	}

	return key, nil
}
