package main

import (
	"errors"
	"log"
)

// ErrorKind is the machine-readable category sent alongside an error message
type ErrorKind string

// GameError is a rejected request. The authoritative state is never touched when one is returned.
type GameError struct {
	Kind    ErrorKind
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

func newGameError(kind ErrorKind, message string) *GameError {
	return &GameError{Kind: kind, Message: message}
}

var (
	ErrRoomNotFound        = newGameError("RoomNotFound", "Room not found")
	ErrGameAlreadyStarted  = newGameError("GameAlreadyStarted", "Game already started")
	ErrInsufficientPlayers = newGameError("InsufficientPlayers", "Need at least 4 players")
	ErrNameTaken           = newGameError("NameTaken", "Name taken")
	ErrRoomFull            = newGameError("RoomFull", "Room full")
	ErrInvalidName         = newGameError("InvalidName", "Name must be 1-20 characters")
	ErrNotInRoom           = newGameError("NotInRoom", "Not in a room")
	ErrNotHost             = newGameError("NotHost", "Only host can do that")
	ErrNotLobbyPhase       = newGameError("NotLobbyPhase", "Game already started")
	ErrNotNightPhase       = newGameError("NotNightPhase", "Not night phase")
	ErrNotCaptainPhase     = newGameError("NotCaptainPhase", "Not captain phase")
	ErrNotDayPhase         = newGameError("NotDayPhase", "Not day phase")
	ErrNotHunterPhase      = newGameError("NotHunterPhase", "Not hunter phase")
	ErrInvalidPlayer       = newGameError("InvalidPlayer", "Invalid player")
	ErrInvalidTarget       = newGameError("InvalidTarget", "Invalid target")
	ErrInvalidAction       = newGameError("InvalidAction", "Invalid action")
	ErrVotingOpen          = newGameError("VotingOpen", "Not everyone has voted yet")
	ErrNotTheHunter        = newGameError("NotTheHunter", "Not the hunter")
	ErrNoHunterPending     = newGameError("NoHunterPending", "No hunter pending")
	ErrRateLimited         = newGameError("RateLimited", "Slow down")
)

// errorPayload is the data of join_error and game_error events
type errorPayload struct {
	Error string    `json:"error"`
	Kind  ErrorKind `json:"kind,omitempty"`
}

func toErrorPayload(err error) errorPayload {
	var gameErr *GameError
	if errors.As(err, &gameErr) {
		return errorPayload{Error: gameErr.Message, Kind: gameErr.Kind}
	}
	return errorPayload{Error: "Something went wrong"}
}

// sendError reports a failure back to the originating connection only
func sendError(client *Client, event string, err error) {
	var gameErr *GameError
	if !errors.As(err, &gameErr) {
		logError(event, err)
	} else {
		DebugLog("%s: rejected for connection %s: %s", event, client.connID, gameErr.Kind)
	}
	if err := hub.sendToConn(client.connID, event, toErrorPayload(err)); err != nil {
		log.Printf("Failed to send %s to %s: %v", event, client.connID, err)
	}
}

func sendGameError(client *Client, err error) {
	sendError(client, EventGameError, err)
}

func sendJoinError(client *Client, err error) {
	sendError(client, EventJoinError, err)
}
