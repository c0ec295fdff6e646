// Package rpc provides WebSocket-based RPC functionality.
package rpc

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/v2/bson"
	"norelock.dev/waveroom/backend/internal/auth"
	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/services/room"
	"norelock.dev/waveroom/backend/internal/utils"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB

	// Budget for cleanup work running outside any request context.
	cleanupTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// TokenValidator validates access tokens presented on connection.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// Server handles WebSocket connections and RPC requests.
type Server struct {
	hub         *Hub
	router      *Router
	tokens      TokenValidator
	sessionMgr  *managers.SessionManager
	presenceMgr *managers.PresenceManager
	syncMgr     *managers.SyncManager
	rooms       *room.Services
	djGrace     time.Duration
	logger      *utils.Logger

	clients map[*Client]bool
	mutex   sync.Mutex

	// graceTimers holds the pending DJ disconnect timers, keyed by user ID.
	graceTimers map[string]*time.Timer
	graceMutex  sync.Mutex
}

// NewServer creates a new WebSocket server.
func NewServer(
	hub *Hub,
	router *Router,
	tokens TokenValidator,
	sessionMgr *managers.SessionManager,
	presenceMgr *managers.PresenceManager,
	syncMgr *managers.SyncManager,
	rooms *room.Services,
	djGrace time.Duration,
	logger *utils.Logger,
) *Server {
	return &Server{
		hub:         hub,
		router:      router,
		tokens:      tokens,
		sessionMgr:  sessionMgr,
		presenceMgr: presenceMgr,
		syncMgr:     syncMgr,
		rooms:       rooms,
		djGrace:     djGrace,
		logger:      logger.Named("rpc_server"),
		clients:     make(map[*Client]bool),
		graceTimers: make(map[string]*time.Timer),
	}
}

// HandleWebSocket upgrades an HTTP connection to WebSocket and handles the connection.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", err)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		s.rejectConn(conn, "No token provided")
		return
	}

	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		s.logger.Warn("Invalid token", "error", err)
		s.rejectConn(conn, "Invalid token")
		return
	}

	session, err := s.sessionMgr.GetSession(r.Context(), claims.SessionID)
	if err != nil || session == nil {
		s.logger.Warn("Invalid session", "error", err, "sessionId", claims.SessionID)
		s.rejectConn(conn, "Invalid session")
		return
	}

	clientID, err := utils.GenerateID("client")
	if err != nil {
		s.logger.Error("Failed to generate client ID", err)
		s.rejectConn(conn, "Internal error")
		return
	}

	client := NewClient(clientID, claims.UserID, claims.Username, s, conn, s.logger.Named("client"))

	s.mutex.Lock()
	s.clients[client] = true
	s.mutex.Unlock()
	s.hub.RegisterClient(client)

	// A live connection supersedes any pending DJ disconnect grace.
	s.cancelDJGrace(client.UserID)

	go client.readPump()
	go client.writePump()

	s.resumeMembership(r.Context(), client)

	s.logger.Info("WebSocket connection established", "clientID", client.ID, "userID", client.UserID)
}

// rejectConn sends a terse error and closes a connection that failed the
// handshake.
func (s *Server) rejectConn(conn *websocket.Conn, reason string) {
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"error": "`+reason+`"}`)); err != nil {
		s.logger.Error("Failed to send handshake error", err)
	}
	conn.Close()
}

// resumeMembership re-attaches a reconnecting client to the room it is still
// a member of and replays the current room state to it.
func (s *Server) resumeMembership(ctx context.Context, client *Client) {
	userID, err := bson.ObjectIDFromHex(client.UserID)
	if err != nil {
		return
	}

	membership, err := s.rooms.Rooms.ActiveMembership(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to look up membership on connect", err, "userID", client.UserID)
		return
	}

	roomID := ""
	if membership != nil {
		roomID = membership.RoomID.Hex()

		// Subscribe and replay in one room critical section so room:state
		// precedes every delta delivered to this connection.
		_, err := s.rooms.Rooms.Attach(ctx, membership.RoomID, client.UserID, func(room string) {
			s.hub.AddClientToRoom(client, room)
		}, func(state *models.RoomState) {
			client.SendNotification(models.EventRoomState, state)
		})
		if err != nil {
			s.logger.Error("Failed to replay room state on connect", err, "userID", client.UserID, "roomID", roomID)
		}
	}

	if err := s.presenceMgr.Touch(ctx, client.UserID, client.Username, roomID); err != nil {
		s.logger.Error("Failed to touch presence", err, "userID", client.UserID)
	}
}

// cleanupClientState runs when a client's pumps shut down. Sync records are
// per connection and go immediately; presence and DJ handling wait until the
// user's last connection is gone.
func (s *Server) cleanupClientState(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	s.hub.UnregisterClient(client)

	if err := s.syncMgr.Remove(ctx, client.ID); err != nil {
		s.logger.Error("Failed to remove sync record", err, "clientID", client.ID)
	}

	if client.UserID == "" || s.hub.UserConnectionCount(client.UserID) > 0 {
		return
	}

	if err := s.presenceMgr.RemovePresence(ctx, client.UserID); err != nil {
		s.logger.Error("Failed to remove presence", err, "userID", client.UserID)
	}

	userID, err := bson.ObjectIDFromHex(client.UserID)
	if err != nil {
		return
	}
	membership, err := s.rooms.Rooms.ActiveMembership(ctx, userID)
	if err != nil || membership == nil {
		return
	}

	current, err := s.rooms.DJ.CurrentDJ(ctx, membership.RoomID.Hex())
	if err != nil {
		s.logger.Error("Failed to check DJ on disconnect", err, "userID", client.UserID)
		return
	}
	if current == client.UserID {
		s.armDJGrace(membership.RoomID, client.UserID)
	}
}

// armDJGrace starts the disconnect grace period for a DJ. If the user has not
// reconnected when it fires, the DJ slot is vacated with a timeout reason.
func (s *Server) armDJGrace(roomID bson.ObjectID, userID string) {
	s.graceMutex.Lock()
	defer s.graceMutex.Unlock()

	if timer, ok := s.graceTimers[userID]; ok {
		timer.Stop()
	}

	s.graceTimers[userID] = time.AfterFunc(s.djGrace, func() {
		s.graceMutex.Lock()
		delete(s.graceTimers, userID)
		s.graceMutex.Unlock()

		if s.hub.UserConnectionCount(userID) > 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()

		if err := s.rooms.Rooms.HandleDJTimeout(ctx, roomID, userID); err != nil {
			s.logger.Error("Failed to handle DJ timeout", err, "roomID", roomID.Hex(), "userID", userID)
		}
	})

	s.logger.Debug("DJ disconnect grace armed", "roomID", roomID.Hex(), "userID", userID, "grace", s.djGrace)
}

// cancelDJGrace stops a pending DJ grace timer for a user, if any.
func (s *Server) cancelDJGrace(userID string) {
	s.graceMutex.Lock()
	defer s.graceMutex.Unlock()

	if timer, ok := s.graceTimers[userID]; ok {
		timer.Stop()
		delete(s.graceTimers, userID)
	}
}

// removeClient drops a client from the server's set and closes its send
// channel. Called exactly once per client, from its read pump teardown.
func (s *Server) removeClient(client *Client) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		client.markAsClosed()
		close(client.send)
		s.logger.Debug("Client removed", "id", client.ID, "userID", client.UserID)
	}
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Broadcast sends a message to all connected clients.
func (s *Server) Broadcast(message []byte) {
	s.hub.Broadcast(message)
}

// BroadcastToRoom sends a message to all clients in a room.
func (s *Server) BroadcastToRoom(roomID string, message []byte) {
	s.hub.BroadcastToRoom(roomID, message)
}

// BroadcastToUser sends a message to a specific user.
func (s *Server) BroadcastToUser(userID string, message []byte) {
	s.hub.BroadcastToUser(userID, message)
}

// AddClientToRoom adds a client to a room.
func (s *Server) AddClientToRoom(client *Client, roomID string) {
	s.hub.AddClientToRoom(client, roomID)
}

// RemoveClientFromRoom removes a client from a room.
func (s *Server) RemoveClientFromRoom(client *Client, roomID string) {
	s.hub.RemoveClientFromRoom(client, roomID)
}

// ClientCount gets the number of connected clients.
func (s *Server) ClientCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.clients)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down RPC server")

	s.graceMutex.Lock()
	for userID, timer := range s.graceTimers {
		timer.Stop()
		delete(s.graceTimers, userID)
	}
	s.graceMutex.Unlock()

	s.mutex.Lock()
	for client := range s.clients {
		client.conn.Close()
		delete(s.clients, client)
	}
	s.mutex.Unlock()

	return nil
}
