package ports

import (
	"context"
	"time"

	"github.com/layer-3/sfa-farcaster/core"
)

// Store interface for sessions and token invalidation
type Store interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)

	SaveSession(ctx context.Context, session *core.Session, ttl time.Duration) error
	// GetSession returns core.ErrSessionNotFound for unknown or expired sessions
	GetSession(ctx context.Context, id string) (*core.Session, error)
	// DeleteSession is a no-op for unknown sessions
	DeleteSession(ctx context.Context, id string) error
}
