package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/sfa-farcaster/ports"
)

const (
	// LoginTopic receives an event for every established session
	LoginTopic = "sfa.login"
	// LogoutTopic receives an event for every terminated session
	LogoutTopic = "sfa.logout"
)

// SessionEvent represents a session lifecycle event
type SessionEvent struct {
	SessionID string    `json:"session_id"`
	Subject   string    `json:"subject"`
	At        time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
	}
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, sessionID string, subject string) error {
	return p.publish(ctx, LoginTopic, sessionID, subject)
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, sessionID string, subject string) error {
	return p.publish(ctx, LogoutTopic, sessionID, subject)
}

func (p *WatermillPublisher) publish(ctx context.Context, topic, sessionID, subject string) error {
	event := SessionEvent{
		SessionID: sessionID,
		Subject:   subject,
		At:        time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
