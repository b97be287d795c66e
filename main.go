package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/errgroup"
)

var db *sqlx.DB
var devMode bool

// logError logs an error with context and dumps the database in dev mode
func logError(context string, err error) {
	log.Printf("ERROR [%s]: %v", context, err)
	if devMode && db != nil {
		var buf strings.Builder
		dumpTables(&buf)
		log.Printf("DB dump:\n%s", buf.String())
	}
}

func handleWSMessage(client *Client, message []byte) {
	var msg WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("WebSocket unmarshal error for %s: %v", client.connID, err)
		return
	}

	LogWSMessage("IN", client.connID, string(message))

	switch msg.Event {
	case EventCreateRoom:
		handleWSCreateRoom(client, msg)
	case EventJoinRoom:
		handleWSJoinRoom(client, msg)
	case EventConfigureRoles:
		handleWSConfigureRoles(client, msg)
	case EventStartGame:
		handleWSStartGame(client)
	case EventNightAction:
		handleWSNightAction(client, msg)
	case EventCaptainVote:
		handleWSCaptainVote(client, msg)
	case EventHunterAction:
		handleWSHunterAction(client, msg)
	case EventVote:
		handleWSDayVote(client, msg)
	case EventReconnectPlayer:
		handleWSReconnect(client, msg)
	case EventRequestGameState:
		handleWSRequestGameState(client)
	case EventRequestLobbyState:
		handleWSRequestLobbyState(client, msg)
	default:
		log.Printf("Unknown event: %q from %s", msg.Event, client.connID)
	}
}

func handleWSReconnect(client *Client, msg WSMessage) {
	var payload struct {
		RoomCode string `json:"roomCode"`
		PlayerID string `json:"playerId"`
	}
	if err := msg.decode(&payload); err != nil {
		sendJoinError(client, ErrInvalidAction)
		return
	}

	if err := rooms.rebindConnection(payload.RoomCode, payload.PlayerID, client.connID); err != nil {
		sendJoinError(client, err)
		return
	}
	room, err := rooms.room(payload.RoomCode)
	if err != nil {
		sendJoinError(client, err)
		return
	}

	var code string
	var inLobby bool
	room.update(func(g *GameState) error {
		code = g.RoomCode
		inLobby = g.Phase == PhaseLobby
		return nil
	})
	log.Printf("Player %s reconnected to room %s", payload.PlayerID, code)
	hub.sendToConn(client.connID, EventRoomJoined, roomJoinedPayload{RoomCode: code, PlayerID: payload.PlayerID})

	if inLobby {
		broadcastLobbyUpdate(room)
	} else {
		sendGameStateTo(client, room)
	}
}

func handleWSRequestGameState(client *Client) {
	room, err := rooms.roomByConn(client.connID)
	if err != nil {
		sendGameError(client, err)
		return
	}
	sendGameStateTo(client, room)
}

func main() {
	cfg, err := parseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal("Failed to parse flags:", err)
	}
	devMode = cfg.Dev

	// Set up logging to both stdout and file
	logFile, err := os.OpenFile("werewolf.log", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	logger, err := NewAppLogger(cfg.toLogConfig())
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	appLogger = logger
	defer CloseAppLogger()

	if appLogger.IsEnabled() {
		log.Println("Extended logging enabled")
	}

	db, err = sqlx.Connect("sqlite3", cfg.DB)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := initDB(); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	LogDBState("after initDB")

	initStoryteller(cfg)

	hub = newHub(cfg.RateLimit, cfg.RateBurst)
	go hub.run()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(appLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Server starting on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		hub.stop()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Fatal("Server error:", err)
	}
}
