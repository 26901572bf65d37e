package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yugisim/duel-server-go/internal/cards"
	"github.com/yugisim/duel-server-go/internal/config"
	"github.com/yugisim/duel-server-go/internal/game"
	"go.uber.org/zap"
)

// Outbound message types.
const (
	MsgWelcome        = "welcome"
	MsgSessionCreated = "session_created"
	MsgGameState      = "game_state"
	MsgAttackResult   = "attack_result"
	MsgError          = "error"
)

// Inbound message types that are not session actions.
const (
	MsgCreate = "create"
	MsgState  = "state"
)

const (
	sendBuffer     = 256
	maxMessageSize = 64 << 10
)

// WSMessage is the envelope of every frame in both directions.
type WSMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	ActorID   string          `json:"actor_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Checksum  string          `json:"checksum,omitempty"`
}

// actionData is the payload of a session action frame.
type actionData struct {
	Name     string         `json:"name"`
	Deck     cards.DeckList `json:"deck"`
	CardID   string         `json:"card_id"`
	TargetID string         `json:"target_id"`
	Delta    int            `json:"delta"`
}

// Client is one WebSocket connection. The actor id is fixed for its lifetime.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	actorID string
}

// Hub fans session snapshots out to the connections seated in each session.
type Hub struct {
	dispatcher *game.Dispatcher
	logger     *zap.Logger

	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(dispatcher *game.Dispatcher, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		dispatcher: dispatcher,
		logger:     logger,
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.rooms = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.String("actor_id", client.actorID))

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				for _, members := range h.rooms {
					delete(members, client)
				}
				close(client.send)
			}
			h.mu.Unlock()
			if ok {
				h.logger.Debug("client unregistered", zap.String("actor_id", client.actorID))
				h.disconnect(client.actorID)
			}
		}
	}
}

// disconnect removes the actor from every session unless another connection
// still carries the same actor id.
func (h *Hub) disconnect(actorID string) {
	h.mu.RLock()
	for client := range h.clients {
		if client.actorID == actorID {
			h.mu.RUnlock()
			return
		}
	}
	h.mu.RUnlock()

	for _, dep := range h.dispatcher.LeaveAll(actorID) {
		if dep.Closed {
			h.CloseRoom(dep.SessionID, dep.View)
			continue
		}
		h.broadcastState(dep.SessionID, dep.View, dep.View.Checksum())
	}
}

func (h *Hub) joinRoom(sessionID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[sessionID]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[sessionID] = members
	}
	members[client] = true
}

func (h *Hub) leaveRoom(sessionID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[sessionID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, sessionID)
		}
	}
}

func (h *Hub) dropRoom(sessionID string) {
	h.mu.Lock()
	delete(h.rooms, sessionID)
	h.mu.Unlock()
}

// CloseRoom sends the final state of a closed session to its room and drops the room.
func (h *Hub) CloseRoom(sessionID string, final game.SessionView) {
	h.broadcastState(sessionID, final, final.Checksum())
	h.dropRoom(sessionID)
}

// RoomSize returns the number of connections subscribed to a session.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

func (h *Hub) broadcast(sessionID string, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[sessionID] {
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("dropping message for slow client",
				zap.String("actor_id", client.actorID),
				zap.String("session_id", sessionID),
			)
		}
	}
}

func (h *Hub) broadcastState(sessionID string, view game.SessionView, checksum string) {
	data, err := json.Marshal(view)
	if err != nil {
		h.logger.Error("failed to encode snapshot", zap.Error(err))
		return
	}
	h.broadcast(sessionID, WSMessage{Type: MsgGameState, SessionID: sessionID, Data: data, Checksum: checksum})
}

// reply sends to one client only. The hub lock keeps the channel open while sending.
func (h *Hub) reply(client *Client, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode message", zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

func (h *Hub) replyError(client *Client, sessionID string, err error) {
	h.reply(client, WSMessage{Type: MsgError, SessionID: sessionID, Error: err.Error()})
}

func (h *Hub) handleMessage(client *Client, msg WSMessage) {
	switch msg.Type {
	case MsgCreate:
		id := h.dispatcher.Create()
		h.reply(client, WSMessage{Type: MsgSessionCreated, SessionID: id})
		return

	case MsgState:
		res, err := h.dispatcher.Snapshot(msg.SessionID)
		if err != nil {
			h.replyError(client, msg.SessionID, err)
			return
		}
		data, _ := json.Marshal(res.View)
		h.reply(client, WSMessage{Type: MsgGameState, SessionID: msg.SessionID, Data: data, Checksum: res.Checksum})
		return
	}

	actionType, err := game.ParseActionType(msg.Type)
	if err != nil {
		h.replyError(client, msg.SessionID, err)
		return
	}

	var data actionData
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			h.replyError(client, msg.SessionID, fmt.Errorf("invalid %s payload: %w", msg.Type, err))
			return
		}
	}

	action := game.Action{
		Type:        actionType,
		ActorID:     client.actorID,
		DisplayName: data.Name,
		Deck:        data.Deck,
		CardID:      data.CardID,
		TargetID:    data.TargetID,
		Delta:       data.Delta,
	}

	res, err := h.dispatcher.Dispatch(msg.SessionID, action)
	if err != nil {
		h.replyError(client, msg.SessionID, err)
		return
	}

	switch actionType {
	case game.ActionJoin:
		h.joinRoom(msg.SessionID, client)
	case game.ActionLeave:
		h.leaveRoom(msg.SessionID, client)
		if res.Closed {
			h.dropRoom(msg.SessionID)
		}
	}

	if res.Attack != nil {
		if payload, err := json.Marshal(res.Attack); err == nil {
			h.broadcast(msg.SessionID, WSMessage{Type: MsgAttackResult, SessionID: msg.SessionID, Data: payload})
		}
	}
	h.broadcastState(msg.SessionID, res.View, res.Checksum)
}

func (c *Client) readPump(h *Hub, pongWait time.Duration) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	if pongWait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.String("actor_id", c.actorID), zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.replyError(c, "", fmt.Errorf("invalid message: %w", err))
			continue
		}
		h.handleMessage(c, msg)
	}
}

func (c *Client) writePump(pingInterval time.Duration) {
	var tick <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer c.conn.Close()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-tick:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// wsHandler upgrades connections and attaches them to the hub.
type wsHandler struct {
	hub          *Hub
	upgrader     websocket.Upgrader
	pingInterval time.Duration
}

func newWSHandler(hub *Hub, cfg config.WebSocketConfig) *wsHandler {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[strings.TrimSuffix(origin, "/")] = true
	}
	return &wsHandler{
		hub:          hub,
		pingInterval: cfg.PingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
	}
}

func (wh *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actorID := r.URL.Query().Get("actor_id")
	if actorID == "" {
		actorID = uuid.New().String()
	}

	conn, err := wh.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wh.hub.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		actorID: actorID,
	}
	// Queued before registration so it is always the first frame.
	if welcome, err := json.Marshal(WSMessage{Type: MsgWelcome, ActorID: actorID}); err == nil {
		client.send <- welcome
	}
	select {
	case wh.hub.register <- client:
	case <-wh.hub.done:
		conn.Close()
		return
	}

	go client.writePump(wh.pingInterval)
	go client.readPump(wh.hub, 2*wh.pingInterval)
}

// NewHTTPHandler serves the WebSocket endpoint and the small HTTP surface next to it.
func NewHTTPHandler(hub *Hub, cfg config.WebSocketConfig) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", newWSHandler(hub, cfg))

	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		id := hub.dispatcher.Create()
		writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
	})

	mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"sessions": hub.dispatcher.Registry().IDs()})
	})

	mux.HandleFunc("GET /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		res, err := hub.dispatcher.Snapshot(r.PathValue("id"))
		if errors.Is(err, game.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"state": res.View, "checksum": res.Checksum})
	})

	mux.HandleFunc("GET /sessions/{id}/journal", func(w http.ResponseWriter, r *http.Request) {
		session, err := hub.dispatcher.Registry().Get(r.PathValue("id"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		since := 0
		if raw := r.URL.Query().Get("since"); raw != "" {
			if since, err = strconv.Atoi(raw); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be an integer"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": session.Journal().Since(since)})
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": hub.dispatcher.Registry().Len()})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StartWebSocketServer runs the hub and the HTTP listener until ctx is done.
func StartWebSocketServer(ctx context.Context, cfg config.WebSocketConfig, hub *Hub, shutdownTimeout time.Duration, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           NewHTTPHandler(hub, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting WebSocket server", zap.String("address", cfg.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("websocket server shutdown: %w", err)
	}
	return nil
}
