package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Inbound events
const (
	EventCreateRoom        = "create_room"
	EventJoinRoom          = "join_room"
	EventConfigureRoles    = "configure_roles"
	EventStartGame         = "start_game"
	EventNightAction       = "night_action"
	EventCaptainVote       = "captain_vote"
	EventHunterAction      = "hunter_action"
	EventVote              = "vote"
	EventReconnectPlayer   = "reconnect_player"
	EventRequestGameState  = "request_game_state"
	EventRequestLobbyState = "request_lobby_state"
)

// Outbound events
const (
	EventRoomCreated = "room_created"
	EventRoomJoined  = "room_joined"
	EventJoinError   = "join_error"
	EventLobbyUpdate = "lobby_update"
	EventGameState   = "game_state"
	EventGameError   = "game_error"
	EventStory       = "story"
)

// WSMessage is the envelope of every socket message in both directions
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func (m WSMessage) decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s: missing data", m.Event)
	}
	return json.Unmarshal(m.Data, v)
}

type outboundMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type roomJoinedPayload struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

type targetPayload struct {
	TargetID string `json:"targetId"`
}

type storyPayload struct {
	RoomCode string `json:"roomCode"`
	Text     string `json:"text"`
	Done     bool   `json:"done"`
}

// Client is one websocket connection. connID is volatile: a reconnecting player gets a new one.
type Client struct {
	conn    *websocket.Conn
	connID  string
	writeMu sync.Mutex // Serialize writes to WebSocket (required by gorilla/websocket)
	limiter *rate.Limiter
}

// Hub tracks the open connections and routes messages to them
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan string
	mu         sync.RWMutex
	done       chan struct{}
	wg         sync.WaitGroup

	rateLimit rate.Limit
	rateBurst int
}

func newHub(limit float64, burst int) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan string, 64),
		done:       make(chan struct{}),
		rateLimit:  rate.Limit(limit),
		rateBurst:  burst,
	}
}

var hub = newHub(10, 20)

// stop signals the hub goroutine to exit and waits for it to finish
func (h *Hub) stop() {
	close(h.done)
	h.wg.Wait()
}

func (h *Hub) newLimiter() *rate.Limiter {
	if h.rateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(h.rateLimit, h.rateBurst)
}

// sendToConn delivers one event to one connection, if it is still open
func (h *Hub) sendToConn(connID, event string, payload any) error {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	message, err := json.Marshal(outboundMessage{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	LogWSMessage("OUT", connID, string(message))

	client.writeMu.Lock()
	err = client.conn.WriteMessage(websocket.TextMessage, message)
	client.writeMu.Unlock()
	if err != nil {
		log.Printf("WebSocket write error to %s: %v", connID, err)
	}
	return err
}

func (h *Hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) run() {
	h.wg.Add(1)
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for connID, client := range h.clients {
				client.conn.Close()
				delete(h.clients, connID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.connID] = client
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (%s). Total: %d", client.connID, total)

		case connID := <-h.unregister:
			h.mu.Lock()
			client, ok := h.clients[connID]
			if ok {
				delete(h.clients, connID)
				client.conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected (%s). Total: %d", connID, total)
			// removePlayerFromLobby broadcasts, which needs the read lock
			if ok {
				removePlayerFromLobby(connID)
			}
		}
	}
}

// gameBroadcast is one filtered snapshot bound for one connection
type gameBroadcast struct {
	connID string
	state  *GameState
}

// broadcastGameState sends every seated connection its own filtered view.
// Snapshots and queued events are taken under the room lock; writes, the game
// record and the storyteller happen after it is released.
func broadcastGameState(room *Room) {
	var outbox []gameBroadcast
	var events []GameEvent
	var code string
	var night int
	var phase Phase
	var finished *GameState

	room.update(func(g *GameState) error {
		code = g.RoomCode
		night = g.NightNumber
		phase = g.Phase
		events = g.drainEvents()
		for _, p := range g.Players {
			if p.ConnID == "" {
				continue
			}
			outbox = append(outbox, gameBroadcast{connID: p.ConnID, state: filterGameStateForPlayer(g, p.ConnID)})
		}
		if g.Phase == PhaseEnded {
			finished = g.clone()
		}
		LogStateSnapshot("broadcastGameState "+code, g)
		return nil
	})

	for _, out := range outbox {
		hub.sendToConn(out.connID, EventGameState, out.state)
	}
	afterBroadcast(room, code, night, phase, events, finished)
}

// broadcastLobbyUpdate sends the unfiltered lobby to everyone seated
func broadcastLobbyUpdate(room *Room) {
	var snapshot *GameState
	var connIDs []string
	var events []GameEvent
	var code string

	room.update(func(g *GameState) error {
		code = g.RoomCode
		snapshot = g.clone()
		events = g.drainEvents()
		for _, p := range g.Players {
			if p.ConnID != "" {
				connIDs = append(connIDs, p.ConnID)
			}
		}
		return nil
	})

	for _, connID := range connIDs {
		hub.sendToConn(connID, EventLobbyUpdate, snapshot)
	}
	if err := recordEvents(code, events); err != nil {
		logError("broadcastLobbyUpdate: recordEvents", err)
	}
}

// afterBroadcast stores the drained events and wakes the storyteller on deaths
func afterBroadcast(room *Room, code string, night int, phase Phase, events []GameEvent, finished *GameState) {
	if err := recordEvents(code, events); err != nil {
		logError("afterBroadcast: recordEvents", err)
	}

	deaths := false
	for _, ev := range events {
		switch ev.Kind {
		case EventKindNightDeath, EventKindLynch, EventKindHunterShot, EventKindHeartbreak:
			deaths = true
		case EventKindGameEnded:
			if finished != nil {
				if err := recordGameResult(finished); err != nil {
					logError("afterBroadcast: recordGameResult", err)
				}
			}
		}
	}
	if deaths {
		maybeGenerateStory(code, night, phase, func(text string, done bool) {
			broadcastStory(room, storyPayload{RoomCode: code, Text: text, Done: done})
		})
	}
}

func broadcastStory(room *Room, story storyPayload) {
	var connIDs []string
	room.update(func(g *GameState) error {
		for _, p := range g.Players {
			if p.ConnID != "" {
				connIDs = append(connIDs, p.ConnID)
			}
		}
		return nil
	})
	for _, connID := range connIDs {
		hub.sendToConn(connID, EventStory, story)
	}
}

// sendGameStateTo answers request_game_state for one connection only
func sendGameStateTo(client *Client, room *Room) {
	var view *GameState
	room.update(func(g *GameState) error {
		view = filterGameStateForPlayer(g, client.connID)
		return nil
	})
	hub.sendToConn(client.connID, EventGameState, view)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Capture the hub at entry so a test swapping it doesn't race the read loop
	currentHub := hub

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{conn: conn, connID: uuid.NewString(), limiter: currentHub.newLimiter()}
	DebugLog("WebSocket upgraded successfully for connection %s", client.connID)
	currentHub.register <- client

	// Handle messages and disconnection
	go func() {
		defer func() {
			currentHub.unregister <- client.connID
		}()
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if !client.limiter.Allow() {
				sendGameError(client, ErrRateLimited)
				continue
			}
			handleWSMessage(client, message)
		}
	}()
}
