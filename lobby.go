package main

import (
	"fmt"
	"log"
)

// configureRoles replaces the lobby's deck. Host only, and the deck must fit the room exactly.
func (g *GameState) configureRoles(connID string, deck []Role) error {
	if g.Phase != PhaseLobby {
		return ErrNotLobbyPhase
	}
	if !g.isHost(connID) {
		return ErrNotHost
	}
	if len(deck) != len(g.Players) {
		return ErrInvalidAction
	}
	for _, r := range deck {
		if !r.valid() {
			return ErrInvalidAction
		}
	}
	g.RoleDeck = append([]Role(nil), deck...)
	DebugLog("Room %s deck configured: %v", g.RoomCode, g.RoleDeck)
	return nil
}

// startGame deals the roles and opens the captain election
func (g *GameState) startGame(shuffle func([]Role)) error {
	if g.Phase != PhaseLobby {
		return ErrGameAlreadyStarted
	}
	count := len(g.Players)
	if count < minPlayers {
		return ErrInsufficientPlayers
	}

	var deck []Role
	if len(g.RoleDeck) == count {
		deck = append([]Role(nil), g.RoleDeck...)
	} else {
		deck = defaultDeck(count)
	}
	shuffle(deck)
	deck = cutDeck(deck, count)
	g.RoleDeck = append([]Role(nil), deck...)

	for i, p := range g.Players {
		p.Role = deck[i]
		p.OriginalRole = deck[i]
		p.Alive = true
		p.IsCaptain = false
		p.CanVote = true
		p.LoverID = ""
		p.VotedFor = ""
		p.VotedForCaptain = ""
		p.ElderShielded = false
		p.IdiotRevealed = false
		p.ProtectedTonight = false
	}

	g.ThiefChoices = nil
	switch {
	case g.hasRole(RoleThief):
		g.ThiefChoices = drawThiefChoices(shuffle)
		g.CurrentRoleTurn = RoleThief
	case g.hasRole(RoleCupid):
		g.CurrentRoleTurn = RoleCupid
	default:
		g.CurrentRoleTurn = RoleWolf
	}

	g.Phase = PhaseCaptain
	g.NightNumber = 1
	g.WitchHealUsed = false
	g.WitchPoisonUsed = false
	g.DeathsThisCycle = []Death{}
	g.record(EventKindGameStarted, "", "", fmt.Sprintf("The game began with %d players", count))

	log.Printf("Room %s started with %d players, first turn %s", g.RoomCode, count, g.CurrentRoleTurn)
	return nil
}

func handleWSConfigureRoles(client *Client, msg WSMessage) {
	var payload struct {
		RoleDeck []Role `json:"roleDeck"`
	}
	if err := msg.decode(&payload); err != nil {
		sendGameError(client, ErrInvalidAction)
		return
	}

	room, err := rooms.roomByConn(client.connID)
	if err != nil {
		sendGameError(client, err)
		return
	}
	err = room.update(func(g *GameState) error {
		return g.configureRoles(client.connID, payload.RoleDeck)
	})
	if err != nil {
		sendGameError(client, err)
		return
	}
	broadcastLobbyUpdate(room)
}

func handleWSStartGame(client *Client) {
	room, err := rooms.roomByConn(client.connID)
	if err != nil {
		sendGameError(client, err)
		return
	}
	err = room.update(func(g *GameState) error {
		if !g.isHost(client.connID) {
			return ErrNotHost
		}
		return g.startGame(rooms.shuffle)
	})
	if err != nil {
		sendGameError(client, err)
		return
	}
	broadcastGameState(room)
}

func handleWSCreateRoom(client *Client, msg WSMessage) {
	// create_room carries the bare host name, or {"playerName": ...}
	var hostName string
	if err := msg.decode(&hostName); err != nil {
		var payload struct {
			PlayerName string `json:"playerName"`
		}
		if err := msg.decode(&payload); err != nil {
			sendJoinError(client, ErrInvalidName)
			return
		}
		hostName = payload.PlayerName
	}

	code, hostID, err := rooms.createRoom(client.connID, hostName)
	if err != nil {
		sendJoinError(client, err)
		return
	}
	hub.sendToConn(client.connID, EventRoomCreated, roomJoinedPayload{RoomCode: code, PlayerID: hostID})

	room, err := rooms.room(code)
	if err != nil {
		logError("handleWSCreateRoom: room", err)
		return
	}
	broadcastLobbyUpdate(room)
}

func handleWSJoinRoom(client *Client, msg WSMessage) {
	var payload struct {
		RoomCode   string `json:"roomCode"`
		PlayerName string `json:"playerName"`
	}
	if err := msg.decode(&payload); err != nil {
		sendJoinError(client, ErrInvalidAction)
		return
	}

	playerID, err := rooms.joinRoom(payload.RoomCode, client.connID, payload.PlayerName)
	if err != nil {
		sendJoinError(client, err)
		return
	}

	room, err := rooms.roomByConn(client.connID)
	if err != nil {
		logError("handleWSJoinRoom: roomByConn", err)
		return
	}
	var code string
	room.update(func(g *GameState) error {
		code = g.RoomCode
		return nil
	})
	hub.sendToConn(client.connID, EventRoomJoined, roomJoinedPayload{RoomCode: code, PlayerID: playerID})
	broadcastLobbyUpdate(room)
}

func handleWSRequestLobbyState(client *Client, msg WSMessage) {
	var payload struct {
		RoomCode string `json:"roomCode"`
	}
	if err := msg.decode(&payload); err != nil {
		sendJoinError(client, ErrInvalidAction)
		return
	}
	room, err := rooms.room(payload.RoomCode)
	if err != nil {
		sendJoinError(client, err)
		return
	}

	var snapshot *GameState
	room.update(func(g *GameState) error {
		if g.Phase == PhaseLobby {
			snapshot = g.clone()
		}
		return nil
	})
	if snapshot != nil {
		hub.sendToConn(client.connID, EventLobbyUpdate, snapshot)
	}
}

// removePlayerFromLobby is called once a connection is gone for good
func removePlayerFromLobby(connID string) {
	code, changed := rooms.dropConnection(connID)
	if !changed {
		return
	}
	room, err := rooms.room(code)
	if err != nil {
		return
	}
	broadcastLobbyUpdate(room)
}
