package main

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	// roomCodeChars leaves out I and O, and there are no digits to confuse with them
	roomCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	roomCodeLength = 5
)

// Room serializes every mutation of one game. Rooms never share mutable state.
type Room struct {
	mu    sync.Mutex
	state *GameState
}

// update runs fn with exclusive access to the room's state
func (r *Room) update(fn func(g *GameState) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.state)
}

// Registry is the single access point to all rooms and the connection -> room index.
// Lock order is always registry before room.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	conns   map[string]string // connection id -> room code
	shuffle func([]Role)
	newID   func() string
}

func newRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]*Room),
		conns:   make(map[string]string),
		shuffle: shuffleRoles,
		newID:   uuid.NewString,
	}
}

var rooms = newRegistry()

func generateRoomCode() string {
	size := big.NewInt(int64(len(roomCodeChars)))
	code := make([]byte, roomCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			log.Printf("generateRoomCode: %v", err)
			return ""
		}
		code[i] = roomCodeChars[n.Int64()]
	}
	return string(code)
}

func validName(name string) bool {
	n := len([]rune(name))
	return strings.TrimSpace(name) != "" && n <= maxNameLength
}

// createRoom allocates a fresh code and seats the host alone in a lobby
func (reg *Registry) createRoom(connID, hostName string) (code, hostID string, err error) {
	if !validName(hostName) {
		return "", "", ErrInvalidName
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	for attempts := 0; attempts < 20; attempts++ {
		candidate := generateRoomCode()
		if _, exists := reg.rooms[candidate]; !exists {
			code = candidate
			break
		}
	}
	if code == "" {
		return "", "", fmt.Errorf("failed to generate unique room code")
	}

	reg.detachLocked(connID)

	host := newPlayer(reg.newID(), connID, hostName)
	state := &GameState{
		RoomCode:        code,
		Phase:           PhaseLobby,
		Players:         []*Player{host},
		RoleDeck:        append([]Role(nil), starterDeck...),
		DeathsThisCycle: []Death{},
	}
	state.record(EventKindRoomCreated, host.ID, "", hostName+" opened the room")
	reg.rooms[code] = &Room{state: state}
	reg.conns[connID] = code

	log.Printf("Room %s created by '%s'", code, hostName)
	return code, host.ID, nil
}

// joinRoom seats a new player in a lobby
func (reg *Registry) joinRoom(code, connID, name string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[code]
	if !ok {
		return "", ErrRoomNotFound
	}

	var playerID string
	err := room.update(func(g *GameState) error {
		if g.Phase != PhaseLobby {
			return ErrGameAlreadyStarted
		}
		if !validName(name) {
			return ErrInvalidName
		}
		if g.nameTaken(name) {
			return ErrNameTaken
		}
		if len(g.Players) >= maxPlayers {
			return ErrRoomFull
		}
		p := newPlayer(reg.newID(), connID, name)
		g.Players = append(g.Players, p)
		playerID = p.ID
		return nil
	})
	if err != nil {
		return "", err
	}

	if prev, ok := reg.conns[connID]; ok && prev != code {
		reg.detachLocked(connID)
	}
	reg.conns[connID] = code
	log.Printf("Player '%s' joined room %s", name, code)
	return playerID, nil
}

// rebindConnection points an existing seat at a new connection, in any phase
func (reg *Registry) rebindConnection(code, playerID, connID string) error {
	code = strings.ToUpper(strings.TrimSpace(code))

	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}

	var oldConn string
	err := room.update(func(g *GameState) error {
		p := g.playerByID(playerID)
		if p == nil {
			return ErrInvalidPlayer
		}
		// a connection speaks for one seat only
		for _, other := range g.Players {
			if other != p && other.ConnID == connID {
				other.ConnID = ""
			}
		}
		oldConn = p.ConnID
		p.ConnID = connID
		return nil
	})
	if err != nil {
		return err
	}

	if oldConn != "" && oldConn != connID && reg.conns[oldConn] == code {
		delete(reg.conns, oldConn)
	}
	if prev, ok := reg.conns[connID]; ok && prev != code {
		reg.detachLocked(connID)
	}
	reg.conns[connID] = code
	DebugLog("Player %s in room %s rebound to connection %s", playerID, code, connID)
	return nil
}

// dropConnection forgets a closed connection. In the lobby the seat goes with it;
// once the game started the roster is fixed. Returns the room code when a lobby changed.
func (reg *Registry) dropConnection(connID string) (string, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.detachLocked(connID)
}

func (reg *Registry) detachLocked(connID string) (string, bool) {
	code, ok := reg.conns[connID]
	if !ok {
		return "", false
	}
	delete(reg.conns, connID)

	room, ok := reg.rooms[code]
	if !ok {
		return "", false
	}

	removed := false
	room.update(func(g *GameState) error {
		if g.Phase != PhaseLobby {
			return nil
		}
		kept := g.Players[:0]
		for _, p := range g.Players {
			if p.ConnID == connID {
				removed = true
				log.Printf("Player '%s' left room %s lobby", p.Name, code)
				continue
			}
			kept = append(kept, p)
		}
		g.Players = kept
		return nil
	})
	return code, removed
}

func (reg *Registry) room(code string) (*Room, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	room, ok := reg.rooms[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (reg *Registry) roomByConn(connID string) (*Room, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	code, ok := reg.conns[connID]
	if !ok {
		return nil, ErrNotInRoom
	}
	room, ok := reg.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (reg *Registry) count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}
