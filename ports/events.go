package ports

import "context"

// EventPublisher publishes session lifecycle events to other instances
type EventPublisher interface {
	PublishLogin(ctx context.Context, sessionID string, subject string) error
	PublishLogout(ctx context.Context, sessionID string, subject string) error
}
