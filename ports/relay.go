package ports

import (
	"context"

	"github.com/layer-3/sfa-farcaster/core"
)

// Relay talks to the Farcaster auth relay
type Relay interface {
	CreateChannel(ctx context.Context, nonce string) (*core.Channel, error)
	ChannelStatus(ctx context.Context, channelToken string) (*core.ChannelStatus, error)
}
