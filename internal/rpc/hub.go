// Package rpc provides WebSocket-based RPC functionality.
package rpc

import (
	"sync"

	"norelock.dev/waveroom/backend/internal/utils"
)

// Hub tracks the set of active clients and fans notifications out to them.
// All operations take the hub mutex directly; a send that fails because the
// client's buffer is full marks the client for unregistration by its pumps.
type Hub struct {
	// clients is the set of all connected clients.
	clients map[*Client]bool

	// rooms maps room IDs to the clients currently subscribed to them.
	rooms map[string]map[*Client]bool

	// userClients maps user IDs to their open connections. A user with
	// several tabs has several clients here.
	userClients map[string]map[*Client]bool

	mutex sync.RWMutex

	logger *utils.Logger
}

// NewHub creates a new hub.
func NewHub(logger *utils.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		rooms:       make(map[string]map[*Client]bool),
		userClients: make(map[string]map[*Client]bool),
		logger:      logger.Named("hub"),
	}
}

// RegisterClient adds a client to the hub.
func (h *Hub) RegisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true

	if client.UserID != "" {
		if _, ok := h.userClients[client.UserID]; !ok {
			h.userClients[client.UserID] = make(map[*Client]bool)
		}
		h.userClients[client.UserID][client] = true
	}

	h.logger.Debug("Client registered", "id", client.ID, "userID", client.UserID)
}

// UnregisterClient removes a client from the hub and every room it joined.
func (h *Hub) UnregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)

	if client.UserID != "" {
		if clients, ok := h.userClients[client.UserID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.userClients, client.UserID)
			}
		}
	}

	for room := range client.rooms {
		if clients, ok := h.rooms[room]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.rooms, room)
			}
		}
	}

	h.logger.Debug("Client unregistered", "id", client.ID, "userID", client.UserID)
}

// AddClientToRoom subscribes a client to a room's notifications.
func (h *Hub) AddClientToRoom(client *Client, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	client.rooms[room] = true

	h.logger.Debug("Client added to room", "id", client.ID, "userID", client.UserID, "room", room)
}

// RemoveClientFromRoom unsubscribes a client from a room's notifications.
func (h *Hub) RemoveClientFromRoom(client *Client, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(client.rooms, room)

	h.logger.Debug("Client removed from room", "id", client.ID, "userID", client.UserID, "room", room)
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message []byte) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		client.safelySendMessage(message)
	}
}

// BroadcastToRoom sends a message to all clients subscribed to a room.
func (h *Hub) BroadcastToRoom(room string, message []byte) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if clients, ok := h.rooms[room]; ok {
		for client := range clients {
			client.safelySendMessage(message)
		}
	}
}

// BroadcastToUser sends a message to every open connection of a user.
func (h *Hub) BroadcastToUser(userID string, message []byte) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if clients, ok := h.userClients[userID]; ok {
		for client := range clients {
			client.safelySendMessage(message)
		}
	}
}

// RoomClients returns the clients currently subscribed to a room.
func (h *Hub) RoomClients(room string) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0)
	if roomClients, ok := h.rooms[room]; ok {
		for client := range roomClients {
			clients = append(clients, client)
		}
	}
	return clients
}

// UserConnectionCount returns how many open connections a user has.
func (h *Hub) UserConnectionCount(userID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.userClients[userID])
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of rooms with at least one subscriber.
func (h *Hub) RoomCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms)
}

// UserCount returns the number of distinct connected users.
func (h *Hub) UserCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.userClients)
}
