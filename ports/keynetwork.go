package ports

import (
	"context"

	"github.com/layer-3/sfa-farcaster/core"
)

// KeyNetwork is the hosted single-factor key network
type KeyNetwork interface {
	// Info returns the network the client is registered on
	Info(ctx context.Context) (*core.NetworkInfo, error)
	// RequestKey exchanges a verified id token for a hex encoded private key
	RequestKey(ctx context.Context, req core.KeyRequest) (string, error)
}
