package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillPublisher(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logins, err := pubSub.Subscribe(ctx, LoginTopic)
	require.NoError(t, err)
	logouts, err := pubSub.Subscribe(ctx, LogoutTopic)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubSub)
	require.NoError(t, pub.PublishLogin(ctx, "session-1", "1234"))
	require.NoError(t, pub.PublishLogout(ctx, "session-1", "1234"))

	for _, ch := range []<-chan *message.Message{logins, logouts} {
		select {
		case msg := <-ch:
			var event SessionEvent
			require.NoError(t, json.Unmarshal(msg.Payload, &event))
			assert.Equal(t, "session-1", event.SessionID)
			assert.Equal(t, "1234", event.Subject)
			msg.Ack()
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
		}
	}
}
