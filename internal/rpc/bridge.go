// Package rpc provides WebSocket-based RPC functionality.
package rpc

import (
	"encoding/json"

	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/utils"
)

// Bridge relays pubsub events to connected WebSocket clients. Services
// publish through Redis so that every node sees every event; the bridge is
// the last hop from the shared channel to this node's sockets.
//
// Dispatch stays on the pubsub listener goroutine. Fan-out to clients is a
// buffered channel send, so a slow socket cannot stall the stream, and events
// for a room reach its clients in publish order.
type Bridge struct {
	hub      *Hub
	pubsub   *managers.PubSubManager
	observer EventObserver
	logger   *utils.Logger
}

// EventObserver is notified of every room event the bridge relays. The
// metrics service implements it to derive counters from the event stream.
type EventObserver interface {
	ObserveRoomEvent(eventType string, data json.RawMessage)
}

// NewBridge creates a bridge between the pubsub manager and the hub.
// observer may be nil.
func NewBridge(hub *Hub, pubsub *managers.PubSubManager, observer EventObserver, logger *utils.Logger) *Bridge {
	return &Bridge{
		hub:      hub,
		pubsub:   pubsub,
		observer: observer,
		logger:   logger.Named("bridge"),
	}
}

// Start subscribes to the room and user channel patterns and begins relaying.
func (b *Bridge) Start() error {
	b.pubsub.AddHandler(managers.RoomChannelPrefix+":*", b.handleRoomEvent)
	b.pubsub.AddHandler(managers.UserChannelPrefix+":*", b.handleUserEvent)

	return b.pubsub.SubscribePatterns(
		managers.RoomChannelPrefix+":*",
		managers.UserChannelPrefix+":*",
	)
}

func (b *Bridge) handleRoomEvent(channel string, payload []byte) {
	envelope, message := b.decode(channel, payload)
	if envelope == nil {
		return
	}
	if envelope.RoomID == "" {
		b.logger.Warn("Room event without room ID", "channel", channel, "type", envelope.Type)
		return
	}
	b.hub.BroadcastToRoom(envelope.RoomID, message)
	if b.observer != nil {
		b.observer.ObserveRoomEvent(envelope.Type, envelope.Data)
	}
}

func (b *Bridge) handleUserEvent(channel string, payload []byte) {
	envelope, message := b.decode(channel, payload)
	if envelope == nil {
		return
	}
	if envelope.UserID == "" {
		b.logger.Warn("User event without user ID", "channel", channel, "type", envelope.Type)
		return
	}
	b.hub.BroadcastToUser(envelope.UserID, message)
}

// decode unwraps a pubsub envelope and re-frames it as a JSON-RPC
// notification whose method is the event type.
func (b *Bridge) decode(channel string, payload []byte) (*managers.Envelope, []byte) {
	var envelope managers.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.logger.Error("Failed to decode pubsub envelope", err, "channel", channel)
		return nil, nil
	}

	notification := &Notification{
		JSONRPC: "2.0",
		Method:  envelope.Type,
		Params:  envelope.Data,
	}
	message, err := json.Marshal(notification)
	if err != nil {
		b.logger.Error("Failed to marshal notification", err, "channel", channel, "type", envelope.Type)
		return nil, nil
	}

	return &envelope, message
}
