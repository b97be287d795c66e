package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"
)

// ============================================================================
// Test logger
// ============================================================================

// TestLogger wraps AppLogger for test use with testing.T integration
type TestLogger struct {
	*AppLogger
	t *testing.T
}

// NewTestLogger creates a test logger from TEST_* environment variables
func NewTestLogger(t *testing.T) *TestLogger {
	dir := os.Getenv("TEST_OUTPUT_DIR")
	if dir != "" {
		dir = fmt.Sprintf("%s/%s", dir, strings.ReplaceAll(t.Name(), "/", "_"))
	}
	al, err := NewAppLogger(LogConfig{
		OutputDir:   dir,
		LogRequests: os.Getenv("TEST_LOG_REQUESTS") == "1",
		LogState:    os.Getenv("TEST_LOG_STATE") == "1",
		LogDB:       os.Getenv("TEST_LOG_DB") == "1",
		LogWS:       os.Getenv("TEST_LOG_WS") == "1",
		Debug:       os.Getenv("TEST_DEBUG") == "1",
	})
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}
	return &TestLogger{AppLogger: al, t: t}
}

// Debug logs a debug message using testing.T.Logf
func (tl *TestLogger) Debug(format string, args ...any) {
	if !tl.debug {
		return
	}
	tl.t.Logf("[DEBUG] "+format, args...)
}

// ============================================================================
// Engine fixtures
// ============================================================================

// noShuffle keeps decks in the order given, for deterministic deals
func noShuffle([]Role) {}

// newTestGame seats one player per role ("p0".., connections "c0"..) and deals
// the roles in that exact order
func newTestGame(t *testing.T, roles ...Role) *GameState {
	t.Helper()
	g := &GameState{RoomCode: "TESTS", Phase: PhaseLobby, DeathsThisCycle: []Death{}}
	for i := range roles {
		g.Players = append(g.Players, newPlayer(fmt.Sprintf("p%d", i), fmt.Sprintf("c%d", i), fmt.Sprintf("Player%d", i)))
	}
	g.RoleDeck = append([]Role(nil), roles...)
	if err := g.startGame(noShuffle); err != nil {
		t.Fatalf("startGame: %v", err)
	}
	return g
}

// electCaptain has every player vote for the given player id
func electCaptain(t *testing.T, g *GameState, captainID string) {
	t.Helper()
	for _, p := range g.Players {
		if err := g.submitCaptainVote(p.ConnID, captainID); err != nil {
			t.Fatalf("captain vote by %s: %v", p.ID, err)
		}
	}
}

func mustNight(t *testing.T, g *GameState, connID string, action NightAction) {
	t.Helper()
	if err := g.applyNightAction(connID, action); err != nil {
		t.Fatalf("night action by %s during %s turn: %v", connID, g.CurrentRoleTurn, err)
	}
}

func mustVote(t *testing.T, g *GameState, connID, targetID string) {
	t.Helper()
	if err := g.submitVote(connID, targetID); err != nil {
		t.Fatalf("vote by %s for %s: %v", connID, targetID, err)
	}
}

// ============================================================================
// Game record store
// ============================================================================

// newTestDB opens a private in-memory database and installs it as the global store
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	testDB, err := sqlx.Connect("sqlite3", fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	prev := db
	db = testDB
	if err := initDB(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() {
		db = prev
		testDB.Close()
	})
	return testDB
}

// ============================================================================
// Server fixtures
// ============================================================================

// TestContext holds an isolated server: its own registry, hub and store
type TestContext struct {
	t       *testing.T
	logger  *TestLogger
	server  *httptest.Server
	wsURL   string
	cleanup func()
}

func newTestContext(t *testing.T) *TestContext {
	return newRateLimitedTestContext(t, 0, 0)
}

// newRateLimitedTestContext is newTestContext with a per-connection rate limit; 0 is unlimited
func newRateLimitedTestContext(t *testing.T, limit float64, burst int) *TestContext {
	logger := NewTestLogger(t)
	newTestDB(t)

	// Disable AI storyteller in tests by default (individual tests may override)
	globalStoryteller = nil

	prevRooms, prevHub, prevLogger := rooms, hub, appLogger
	rooms = newRegistry()
	rooms.shuffle = noShuffle
	hub = newHub(limit, burst)
	appLogger = logger.AppLogger
	go hub.run()

	server := httptest.NewServer(newMux(logger.AppLogger))

	var cleanupOnce sync.Once
	cleanup := func() {
		cleanupOnce.Do(func() {
			logger.LogDB("before cleanup")
			server.Close()
			hub.stop()
			logger.Close()
			rooms, hub, appLogger = prevRooms, prevHub, prevLogger
		})
	}
	t.Cleanup(cleanup)

	return &TestContext{
		t:       t,
		logger:  logger,
		server:  server,
		wsURL:   "ws" + strings.TrimPrefix(server.URL, "http") + "/ws",
		cleanup: cleanup,
	}
}

// TestPlayer is one websocket client of a test server
type TestPlayer struct {
	Name     string
	PlayerID string
	RoomCode string
	conn     *websocket.Conn
	t        *testing.T
	logger   *TestLogger
}

func (ctx *TestContext) connect(name string) *TestPlayer {
	conn, _, err := websocket.DefaultDialer.Dial(ctx.wsURL, nil)
	if err != nil {
		ctx.t.Fatalf("Failed to dial %s: %v", ctx.wsURL, err)
	}
	tp := &TestPlayer{Name: name, conn: conn, t: ctx.t, logger: ctx.logger}
	ctx.t.Cleanup(func() { conn.Close() })
	return tp
}

func (tp *TestPlayer) send(event string, data any) {
	tp.t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		tp.t.Fatalf("marshal %s: %v", event, err)
	}
	msg := WSMessage{Event: event, Data: raw}
	tp.logger.Debug("[%s] -> %s %s", tp.Name, event, raw)
	if err := tp.conn.WriteJSON(msg); err != nil {
		tp.t.Fatalf("[%s] write %s: %v", tp.Name, event, err)
	}
}

// waitFor reads until an event with the given name arrives and returns its data
func (tp *TestPlayer) waitFor(event string) json.RawMessage {
	tp.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		tp.conn.SetReadDeadline(deadline)
		var msg WSMessage
		if err := tp.conn.ReadJSON(&msg); err != nil {
			tp.t.Fatalf("[%s] waiting for %s: %v", tp.Name, event, err)
		}
		tp.logger.Debug("[%s] <- %s", tp.Name, msg.Event)
		if msg.Event == event {
			return msg.Data
		}
	}
}

// waitForState reads game_state events until one satisfies cond
func (tp *TestPlayer) waitForState(cond func(*GameState) bool) *GameState {
	tp.t.Helper()
	for {
		var state GameState
		if err := json.Unmarshal(tp.waitFor(EventGameState), &state); err != nil {
			tp.t.Fatalf("[%s] decode game_state: %v", tp.Name, err)
		}
		if cond(&state) {
			return &state
		}
	}
}

func (tp *TestPlayer) createRoom() {
	tp.send(EventCreateRoom, tp.Name)
	var joined roomJoinedPayload
	if err := json.Unmarshal(tp.waitFor(EventRoomCreated), &joined); err != nil {
		tp.t.Fatalf("decode room_created: %v", err)
	}
	tp.PlayerID, tp.RoomCode = joined.PlayerID, joined.RoomCode
}

func (tp *TestPlayer) joinRoom(code string) {
	tp.send(EventJoinRoom, map[string]string{"roomCode": code, "playerName": tp.Name})
	var joined roomJoinedPayload
	if err := json.Unmarshal(tp.waitFor(EventRoomJoined), &joined); err != nil {
		tp.t.Fatalf("decode room_joined: %v", err)
	}
	tp.PlayerID, tp.RoomCode = joined.PlayerID, joined.RoomCode
}

// mockStoryteller is a test double for the Storyteller interface.
// It returns a fixed story text without calling any LLM.
type mockStoryteller struct {
	text string
	err  error
}

func (m *mockStoryteller) Tell(_ context.Context, _ []string, onChunk func(string)) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if onChunk != nil {
		onChunk(m.text)
	}
	return m.text, nil
}
