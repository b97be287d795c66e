package main

// Phase is the top-level stage of a room
type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhaseCaptain Phase = "captain"
	PhaseNight   Phase = "night"
	PhaseDay     Phase = "day"
	PhaseHunter  Phase = "hunter"
	PhaseEnded   Phase = "ended"
)

// Winner is the side that won, empty while the game continues
type Winner string

const (
	WinnerNone      Winner = ""
	WinnerVillagers Winner = "villagers"
	WinnerWolves    Winner = "wolves"
	WinnerLovers    Winner = "lovers"
)

// Player is one seat in a room. ID survives reconnection, ConnID is rebound on reconnect.
type Player struct {
	ID               string `json:"id"`
	ConnID           string `json:"socketId,omitempty"`
	Name             string `json:"name"`
	Role             Role   `json:"role"`
	RoleKnown        bool   `json:"roleKnown"`
	OriginalRole     Role   `json:"originalRole,omitempty"`
	Alive            bool   `json:"alive"`
	IsCaptain        bool   `json:"isCaptain"`
	LoverID          string `json:"loverId,omitempty"`
	ProtectedTonight bool   `json:"protectedTonight,omitempty"`
	ElderShielded    bool   `json:"elderShielded,omitempty"` // elder already survived one wolf attack
	VotedFor         string `json:"votedFor,omitempty"`
	IdiotRevealed    bool   `json:"idiotRevealed,omitempty"`
	CanVote          bool   `json:"canVote"`
	VotedForCaptain  string `json:"votedForCaptain,omitempty"`
}

// Death is one entry of the per-cycle death log
type Death struct {
	PlayerID string `json:"playerId"`
	Role     Role   `json:"role"`
	Name     string `json:"name"`
}

// SeerReveal is attached to the seer's own filtered view only
type SeerReveal struct {
	TargetID string `json:"targetId"`
	Role     Role   `json:"role"`
	Name     string `json:"name"`
}

// Ballot is one recorded vote. Ballot slices keep submission order for tie-breaks.
type Ballot struct {
	VoterID  string `json:"voterId"`
	TargetID string `json:"targetId"`
}

// TallyEntry counts votes for one target, ordered by first appearance
type TallyEntry struct {
	TargetID string `json:"targetId"`
	Count    int    `json:"count"`
}

// GameState is the whole authoritative state of one room
type GameState struct {
	RoomCode    string    `json:"roomCode"`
	Phase       Phase     `json:"phase"`
	NightNumber int       `json:"nightNumber"`
	Players     []*Player `json:"players"` // position 0 is the host
	CaptainID   string    `json:"captainId,omitempty"`
	RoleDeck    []Role    `json:"roleDeck"`

	CurrentRoleTurn Role `json:"currentRoleTurn,omitempty"`

	// Night actor state
	WolfTarget        string   `json:"wolfTarget,omitempty"`
	WolfVictim        string   `json:"wolfVictim,omitempty"`
	WolfVotes         []Ballot `json:"wolfVotes,omitempty"`
	WitchHealUsed     bool     `json:"witchHealUsed"`
	WitchHealTarget   string   `json:"witchHealTarget,omitempty"`
	WitchPoisonUsed   bool     `json:"witchPoisonUsed"`
	WitchPoisonTarget string   `json:"witchPoisonTarget,omitempty"`
	SeerTarget        string   `json:"seerTarget,omitempty"`
	ProtectorTarget   string   `json:"protectorTarget,omitempty"`
	ThiefChoices      []Role   `json:"thiefChoices,omitempty"`

	// Day actor state
	VoteCounts    []TallyEntry `json:"voteCounts,omitempty"`
	CaptainVotes  []Ballot     `json:"captainVotes,omitempty"`
	HunterPending string       `json:"hunterPending,omitempty"`

	DeathsThisCycle   []Death     `json:"deathsThisCycle"`
	LastIdiotRevealed string      `json:"lastIdiotRevealed,omitempty"`
	Winner            Winner      `json:"winner,omitempty"`
	SeerReveal        *SeerReveal `json:"seerReveal,omitempty"`

	events []GameEvent
}

// GameEvent is a public record queued by the engine and drained into the game log
type GameEvent struct {
	Kind        string
	Night       int
	Phase       Phase
	ActorID     string
	TargetID    string
	Description string
}

// Event kinds
const (
	EventKindRoomCreated    = "room_created"
	EventKindGameStarted    = "game_started"
	EventKindCaptainElected = "captain_elected"
	EventKindNightDeath     = "night_death"
	EventKindNightQuiet     = "night_quiet"
	EventKindLynch          = "lynch"
	EventKindHeartbreak     = "heartbreak"
	EventKindIdiotRevealed  = "idiot_revealed"
	EventKindHunterShot     = "hunter_shot"
	EventKindGameEnded      = "game_ended"
	EventKindStory          = "story"
)

func newPlayer(id, connID, name string) *Player {
	return &Player{
		ID:      id,
		ConnID:  connID,
		Name:    name,
		Role:    RoleVillager,
		Alive:   true,
		CanVote: true,
	}
}

func (g *GameState) record(kind, actorID, targetID, description string) {
	g.events = append(g.events, GameEvent{
		Kind:        kind,
		Night:       g.NightNumber,
		Phase:       g.Phase,
		ActorID:     actorID,
		TargetID:    targetID,
		Description: description,
	})
}

// drainEvents hands over the queued records and forgets them
func (g *GameState) drainEvents() []GameEvent {
	events := g.events
	g.events = nil
	return events
}

func (g *GameState) playerByID(id string) *Player {
	if id == "" {
		return nil
	}
	for _, p := range g.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (g *GameState) playerByConn(connID string) *Player {
	if connID == "" {
		return nil
	}
	for _, p := range g.Players {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

// livingPlayer returns the player only if they exist and are alive
func (g *GameState) livingPlayer(id string) *Player {
	p := g.playerByID(id)
	if p == nil || !p.Alive {
		return nil
	}
	return p
}

func (g *GameState) nameTaken(name string) bool {
	for _, p := range g.Players {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (g *GameState) isHost(connID string) bool {
	return len(g.Players) > 0 && connID != "" && g.Players[0].ConnID == connID
}

func (g *GameState) alivePlayers() []*Player {
	var alive []*Player
	for _, p := range g.Players {
		if p.Alive {
			alive = append(alive, p)
		}
	}
	return alive
}

func (g *GameState) livingWolves() []*Player {
	var wolves []*Player
	for _, p := range g.Players {
		if p.Alive && p.Role == RoleWolf {
			wolves = append(wolves, p)
		}
	}
	return wolves
}

func (g *GameState) hasLivingRole(role Role) bool {
	for _, p := range g.Players {
		if p.Alive && p.Role == role {
			return true
		}
	}
	return false
}

func (g *GameState) hasRole(role Role) bool {
	for _, p := range g.Players {
		if p.Role == role {
			return true
		}
	}
	return false
}

// kill marks the player dead and logs them, then takes their living lover along.
// The chain stops there: a lover's lover is never checked.
func (g *GameState) kill(p *Player) []Death {
	if p == nil || !p.Alive {
		return nil
	}
	p.Alive = false
	deaths := []Death{{PlayerID: p.ID, Role: p.Role, Name: p.Name}}
	if lover := g.playerByID(p.LoverID); lover != nil && lover.Alive {
		lover.Alive = false
		deaths = append(deaths, Death{PlayerID: lover.ID, Role: lover.Role, Name: lover.Name})
	}
	g.DeathsThisCycle = append(g.DeathsThisCycle, deaths...)
	return deaths
}

// recordHeartbreak logs the lover who followed deaths[0] into the grave. Callers
// record the primary death first so the history reads in order.
func (g *GameState) recordHeartbreak(deaths []Death) {
	if len(deaths) < 2 {
		return
	}
	g.record(EventKindHeartbreak, deaths[0].PlayerID, deaths[1].PlayerID, deaths[1].Name+" died of a broken heart")
}

// clearNightActions forgets the kill-related night submissions. The seer target is
// left alone so the reveal stays visible through the day.
func (g *GameState) clearNightActions() {
	g.WolfTarget = ""
	g.WolfVictim = ""
	g.WolfVotes = nil
	g.WitchHealTarget = ""
	g.WitchPoisonTarget = ""
	g.ProtectorTarget = ""
}

// clearDayBallots forgets every day vote and the running tally
func (g *GameState) clearDayBallots() {
	for _, p := range g.Players {
		p.VotedFor = ""
	}
	g.VoteCounts = nil
}

// resetForNight is the single place where a finished day is wiped before the next night
func (g *GameState) resetForNight() {
	g.clearDayBallots()
	g.clearNightActions()
	g.SeerTarget = ""
	g.HunterPending = ""
	g.DeathsThisCycle = nil
}

// clone returns a deep copy that shares nothing with g
func (g *GameState) clone() *GameState {
	c := *g
	c.Players = make([]*Player, len(g.Players))
	for i, p := range g.Players {
		cp := *p
		c.Players[i] = &cp
	}
	c.RoleDeck = append([]Role(nil), g.RoleDeck...)
	c.WolfVotes = append([]Ballot(nil), g.WolfVotes...)
	c.ThiefChoices = append([]Role(nil), g.ThiefChoices...)
	c.VoteCounts = append([]TallyEntry(nil), g.VoteCounts...)
	c.CaptainVotes = append([]Ballot(nil), g.CaptainVotes...)
	c.DeathsThisCycle = append([]Death{}, g.DeathsThisCycle...)
	if g.SeerReveal != nil {
		reveal := *g.SeerReveal
		c.SeerReveal = &reveal
	}
	c.events = nil
	return &c
}

// castBallot records or replaces the voter's ballot, keeping its original position
func castBallot(ballots []Ballot, voterID, targetID string) []Ballot {
	for i := range ballots {
		if ballots[i].VoterID == voterID {
			ballots[i].TargetID = targetID
			return ballots
		}
	}
	return append(ballots, Ballot{VoterID: voterID, TargetID: targetID})
}

// tallyBallots counts ballots per target in order of first appearance
func tallyBallots(ballots []Ballot) []TallyEntry {
	var tally []TallyEntry
	for _, b := range ballots {
		tally = addToTally(tally, b.TargetID, 1)
	}
	return tally
}

func addToTally(tally []TallyEntry, targetID string, delta int) []TallyEntry {
	for i := range tally {
		if tally[i].TargetID == targetID {
			tally[i].Count += delta
			return tally
		}
	}
	return append(tally, TallyEntry{TargetID: targetID, Count: delta})
}

// plurality returns the first target seen with the highest count, plus every target tied with it
func plurality(tally []TallyEntry) (string, []string) {
	best := 0
	var pick string
	var tied []string
	for _, e := range tally {
		switch {
		case e.Count > best:
			best = e.Count
			pick = e.TargetID
			tied = []string{e.TargetID}
		case e.Count == best && best > 0:
			tied = append(tied, e.TargetID)
		}
	}
	return pick, tied
}
