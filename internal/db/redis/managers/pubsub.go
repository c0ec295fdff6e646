package managers

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	r "github.com/go-redis/redis/v8"
	"norelock.dev/waveroom/backend/internal/db/redis"
	"norelock.dev/waveroom/backend/internal/utils"
)

const (
	// Channel prefixes
	GlobalChannelPrefix = "global"
	RoomChannelPrefix   = "room"
	UserChannelPrefix   = "user"
)

// MessageHandler is a function that handles a message from a channel
type MessageHandler func(channel string, payload []byte)

// Envelope is the wire frame published on pubsub channels.
type Envelope struct {
	// Type is the event name, e.g. "queue:updated".
	Type string `json:"type"`

	// RoomID is set for room-scoped events.
	RoomID string `json:"roomId,omitempty"`

	// UserID is set for user-scoped events.
	UserID string `json:"userId,omitempty"`

	// Data carries the event payload.
	Data json.RawMessage `json:"data"`

	// PublishedAtMs is the server time the event was published.
	PublishedAtMs int64 `json:"publishedAtMs"`
}

// PubSubManager handles Redis publish/subscribe operations. Handlers are
// invoked synchronously on the listener goroutine in channel order so that
// events published to a room channel reach subscribers in the order they
// were published. Handlers must not block.
type PubSubManager struct {
	client     *redis.Client
	logger     *utils.Logger
	pubSub     *r.PubSub
	handlers   map[string][]MessageHandler
	mutex      sync.RWMutex
	ctx        context.Context
	cancelFunc context.CancelFunc
	running    bool
}

// NewPubSubManager creates a new PubSub manager
func NewPubSubManager(client *redis.Client) *PubSubManager {
	ctx, cancel := context.WithCancel(context.Background())

	return &PubSubManager{
		client:     client,
		logger:     client.Logger(),
		handlers:   make(map[string][]MessageHandler),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// SubscribePatterns subscribes to channel patterns and starts the listener.
func (m *PubSubManager) SubscribePatterns(patterns ...string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.pubSub != nil {
		if err := m.pubSub.Close(); err != nil {
			m.logger.Error("Failed to close existing PubSub", err)
		}
	}

	m.pubSub = m.client.PSubscribe(m.ctx, patterns...)

	if !m.running {
		go m.messageListener()
		m.running = true
	}

	m.logger.Info("Subscribed to channel patterns", "patterns", patterns)
	return nil
}

// AddHandler adds a message handler for a channel. A channel of the form
// "room:*" matches every channel under that prefix.
func (m *PubSubManager) AddHandler(channel string, handler MessageHandler) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.handlers[channel] = append(m.handlers[channel], handler)
	m.logger.Debug("Added message handler", "channel", channel)
}

// RemoveAllHandlers removes all handlers for a channel
func (m *PubSubManager) RemoveAllHandlers(channel string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.handlers, channel)
}

// Publish publishes an envelope to a channel.
func (m *PubSubManager) Publish(ctx context.Context, channel string, envelope *Envelope) error {
	envelope.PublishedAtMs = utils.NowMs()

	data, err := json.Marshal(envelope)
	if err != nil {
		m.logger.Error("Failed to marshal message for publish", err, "channel", channel)
		return err
	}

	if err := m.client.Publish(ctx, channel, string(data)); err != nil {
		m.logger.Error("Failed to publish message", err, "channel", channel)
		return err
	}

	return nil
}

// PublishToRoom publishes an event to a room channel.
func (m *PubSubManager) PublishToRoom(ctx context.Context, roomID, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		m.logger.Error("Failed to marshal room event payload", err, "roomId", roomID, "type", eventType)
		return err
	}

	return m.Publish(ctx, FormatRoomChannel(roomID), &Envelope{
		Type:   eventType,
		RoomID: roomID,
		Data:   payload,
	})
}

// PublishToUser publishes an event to a user channel.
func (m *PubSubManager) PublishToUser(ctx context.Context, userID, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		m.logger.Error("Failed to marshal user event payload", err, "userId", userID, "type", eventType)
		return err
	}

	return m.Publish(ctx, FormatUserChannel(userID), &Envelope{
		Type:   eventType,
		UserID: userID,
		Data:   payload,
	})
}

// Close stops the message listener and closes the subscription
func (m *PubSubManager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.cancelFunc()
	m.running = false

	if m.pubSub != nil {
		if err := m.pubSub.Close(); err != nil {
			m.logger.Error("Failed to close PubSub", err)
			return err
		}
		m.pubSub = nil
	}

	m.logger.Info("Closed PubSub manager")
	return nil
}

// messageListener dispatches messages in arrival order. Dispatch stays on
// this goroutine; per-room ordering depends on it.
func (m *PubSubManager) messageListener() {
	m.logger.Info("Starting PubSub message listener")

	channel := m.pubSub.Channel()

	for {
		select {
		case msg, ok := <-channel:
			if !ok {
				m.logger.Warn("PubSub channel closed")
				return
			}
			m.handleMessage(msg.Channel, []byte(msg.Payload))

		case <-m.ctx.Done():
			m.logger.Info("PubSub message listener stopped")
			return
		}
	}
}

// handleMessage dispatches a message to the appropriate handlers
func (m *PubSubManager) handleMessage(channel string, payload []byte) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	dispatch := func(handlers []MessageHandler) {
		for _, handler := range handlers {
			func(h MessageHandler) {
				defer func() {
					if rec := recover(); rec != nil {
						m.logger.Error("Panic in message handler", nil, "panic", rec, "channel", channel)
					}
				}()
				h(channel, payload)
			}(handler)
		}
	}

	if handlers, ok := m.handlers[channel]; ok {
		dispatch(handlers)
	}

	if prefix, _, found := strings.Cut(channel, ":"); found {
		if handlers, ok := m.handlers[prefix+":*"]; ok {
			dispatch(handlers)
		}
	}
}

// FormatRoomChannel formats a channel name for a room
func FormatRoomChannel(roomID string) string {
	return redis.FormatKey(RoomChannelPrefix, roomID)
}

// FormatUserChannel formats a channel name for a user
func FormatUserChannel(userID string) string {
	return redis.FormatKey(UserChannelPrefix, userID)
}

// FormatGlobalChannel formats a channel name for global events
func FormatGlobalChannel(eventType string) string {
	return redis.FormatKey(GlobalChannelPrefix, eventType)
}
