package main

import (
	"fmt"
	"log"
)

var (
	nightOrder       = []Role{RoleWolf, RoleSeer, RoleWitch, RoleProtector}
	firstNightPrefix = []Role{RoleThief, RoleCupid}
)

// NightAction is the night_action payload. Which fields matter depends on whose turn it is.
type NightAction struct {
	TargetID          string `json:"targetId,omitempty"`
	Heal              bool   `json:"heal,omitempty"`
	PoisonTargetID    string `json:"poisonTargetId,omitempty"`
	ThiefRole         Role   `json:"thiefRole,omitempty"`
	CupidTarget1      string `json:"cupidTarget1,omitempty"`
	CupidTarget2      string `json:"cupidTarget2,omitempty"`
	ProtectorTargetID string `json:"protectorTargetId,omitempty"`
}

func (g *GameState) nightTurnOrder() []Role {
	if g.NightNumber == 1 {
		return append(append([]Role(nil), firstNightPrefix...), nightOrder...)
	}
	return nightOrder
}

// firstNightRole returns the first role in tonight's order with a living holder, or ""
func (g *GameState) firstNightRole() Role {
	for _, role := range g.nightTurnOrder() {
		if g.hasLivingRole(role) {
			return role
		}
	}
	return ""
}

// nextRoleTurn scans tonight's order after the current turn
func (g *GameState) nextRoleTurn() Role {
	order := g.nightTurnOrder()
	current := g.CurrentRoleTurn
	if current == "" {
		current = RoleWolf
	}
	start := 0
	for i, role := range order {
		if role == current {
			start = i + 1
			break
		}
	}
	for _, role := range order[start:] {
		if g.hasLivingRole(role) {
			return role
		}
	}
	return ""
}

// applyNightAction takes one role's submission. Everything is validated before
// anything is written, so a rejected action leaves the state as it was.
func (g *GameState) applyNightAction(connID string, action NightAction) error {
	if g.Phase != PhaseNight {
		return ErrNotNightPhase
	}
	player := g.playerByConn(connID)
	if player == nil || !player.Alive {
		return ErrInvalidPlayer
	}
	if g.CurrentRoleTurn == "" || player.Role != g.CurrentRoleTurn {
		return ErrInvalidAction
	}

	switch g.CurrentRoleTurn {
	case RoleWolf:
		return g.applyWolfVote(player, action)
	case RoleSeer:
		return g.applySeer(player, action)
	case RoleWitch:
		return g.applyWitch(player, action)
	case RoleThief:
		return g.applyThief(player, action)
	case RoleCupid:
		return g.applyCupid(player, action)
	case RoleProtector:
		return g.applyProtector(player, action)
	}
	return ErrInvalidAction
}

func (g *GameState) applyWolfVote(wolf *Player, action NightAction) error {
	if action.TargetID == "" {
		return ErrInvalidAction
	}
	target := g.livingPlayer(action.TargetID)
	if target == nil {
		return ErrInvalidTarget
	}

	g.WolfVotes = castBallot(g.WolfVotes, wolf.ID, target.ID)
	DebugLog("Wolf '%s' voted to kill '%s'", wolf.Name, target.Name)

	wolves := g.livingWolves()
	if len(g.WolfVotes) < len(wolves) {
		log.Printf("Not all wolves have voted yet (%d/%d)", len(g.WolfVotes), len(wolves))
		return nil
	}

	victim, _ := plurality(tallyBallots(g.WolfVotes))
	g.WolfTarget = victim
	g.WolfVictim = victim
	g.WolfVotes = nil
	log.Printf("Room %s: wolves settled on a victim", g.RoomCode)
	g.advanceNightTurn()
	return nil
}

func (g *GameState) applySeer(seer *Player, action NightAction) error {
	if action.TargetID == "" {
		return ErrInvalidAction
	}
	target := g.livingPlayer(action.TargetID)
	if target == nil {
		return ErrInvalidTarget
	}
	g.SeerTarget = target.ID
	DebugLog("Seer '%s' looked at '%s'", seer.Name, target.Name)
	g.advanceNightTurn()
	return nil
}

// applyWitch honours heal and poison independently; an empty submission is a skip
func (g *GameState) applyWitch(witch *Player, action NightAction) error {
	var poison *Player
	if action.PoisonTargetID != "" && !g.WitchPoisonUsed {
		poison = g.livingPlayer(action.PoisonTargetID)
		if poison == nil {
			return ErrInvalidTarget
		}
	}

	if action.Heal && g.WolfVictim != "" && !g.WitchHealUsed {
		g.WitchHealTarget = g.WolfVictim
		DebugLog("Witch '%s' brews a heal", witch.Name)
	}
	if poison != nil {
		g.WitchPoisonTarget = poison.ID
		DebugLog("Witch '%s' poisons '%s'", witch.Name, poison.Name)
	}
	g.advanceNightTurn()
	return nil
}

func (g *GameState) applyThief(thief *Player, action NightAction) error {
	if len(g.ThiefChoices) == 0 || action.ThiefRole == "" {
		return ErrInvalidAction
	}
	offered := false
	for _, r := range g.ThiefChoices {
		if r == action.ThiefRole {
			offered = true
			break
		}
	}
	if !offered {
		return ErrInvalidAction
	}

	thief.Role = action.ThiefRole
	thief.OriginalRole = action.ThiefRole
	g.ThiefChoices = nil
	DebugLog("Thief '%s' became %s", thief.Name, thief.Role)
	g.advanceNightTurn()
	return nil
}

// applyCupid links both lovers in one call; there is no half-made pair
func (g *GameState) applyCupid(cupid *Player, action NightAction) error {
	if action.CupidTarget1 == "" || action.CupidTarget2 == "" || action.CupidTarget1 == action.CupidTarget2 {
		return ErrInvalidAction
	}
	first := g.livingPlayer(action.CupidTarget1)
	second := g.livingPlayer(action.CupidTarget2)
	if first == nil || second == nil {
		return ErrInvalidTarget
	}
	if first.LoverID != "" || second.LoverID != "" {
		return ErrInvalidAction
	}

	first.LoverID = second.ID
	second.LoverID = first.ID
	DebugLog("Cupid '%s' linked '%s' and '%s'", cupid.Name, first.Name, second.Name)
	g.advanceNightTurn()
	return nil
}

func (g *GameState) applyProtector(protector *Player, action NightAction) error {
	if action.ProtectorTargetID == "" {
		return ErrInvalidAction
	}
	target := g.livingPlayer(action.ProtectorTargetID)
	if target == nil {
		return ErrInvalidTarget
	}
	g.ProtectorTarget = target.ID
	DebugLog("Protector '%s' shields '%s'", protector.Name, target.Name)
	g.advanceNightTurn()
	return nil
}

// advanceNightTurn hands the night to the next role, resolving it when nobody is left
func (g *GameState) advanceNightTurn() {
	next := g.nextRoleTurn()
	g.CurrentRoleTurn = next
	if next == "" {
		g.resolveAndGoToDay()
	}
}

// resolveNight applies tonight's submissions in fixed precedence and fills the death log.
// Running it again without new submissions kills nobody.
func (g *GameState) resolveNight() {
	g.DeathsThisCycle = []Death{}
	g.LastIdiotRevealed = ""

	for _, p := range g.Players {
		p.ProtectedTonight = false
	}
	if protected := g.playerByID(g.ProtectorTarget); protected != nil {
		protected.ProtectedTonight = true
	}

	victimID := g.WolfTarget
	if victimID == "" {
		victimID = g.WolfVictim
	}

	var toKill []*Player
	if victim := g.livingPlayer(victimID); victim != nil {
		switch {
		case g.WitchHealTarget == victim.ID && !g.WitchHealUsed:
			g.WitchHealUsed = true
			log.Printf("Witch saved %s from the wolves", victim.Name)
		case victim.ProtectedTonight:
			log.Printf("Protector saved %s from the wolves", victim.Name)
		case victim.Role == RoleElder && !victim.ElderShielded:
			victim.ElderShielded = true
			log.Printf("Elder %s survived the wolves", victim.Name)
		default:
			toKill = append(toKill, victim)
		}
	}

	if poisoned := g.playerByID(g.WitchPoisonTarget); poisoned != nil {
		toKill = append(toKill, poisoned)
		g.WitchPoisonUsed = true
	}

	seen := make(map[string]bool)
	for _, p := range toKill {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		if !p.Alive {
			continue
		}
		deaths := g.kill(p)
		g.record(EventKindNightDeath, "", p.ID, fmt.Sprintf("%s was found dead at dawn. They were the %s.", p.Name, p.Role))
		g.recordHeartbreak(deaths)
		log.Printf("Night %d: %s (%s) died", g.NightNumber, p.Name, p.Role)
	}
	if len(g.DeathsThisCycle) == 0 {
		g.record(EventKindNightQuiet, "", "", fmt.Sprintf("Night %d passed without a death", g.NightNumber))
	}

	g.clearNightActions()
}

func handleWSNightAction(client *Client, msg WSMessage) {
	var action NightAction
	if err := msg.decode(&action); err != nil {
		sendGameError(client, ErrInvalidAction)
		return
	}

	room, err := rooms.roomByConn(client.connID)
	if err != nil {
		sendGameError(client, err)
		return
	}
	err = room.update(func(g *GameState) error {
		return g.applyNightAction(client.connID, action)
	})
	if err != nil {
		sendGameError(client, err)
		return
	}
	broadcastGameState(room)
}
