package main

import (
	"fmt"
	"log"
)

// submitVote records or moves the voter's day ballot
func (g *GameState) submitVote(connID, targetID string) error {
	if g.Phase != PhaseDay {
		return ErrNotDayPhase
	}
	voter := g.playerByConn(connID)
	if voter == nil || !voter.Alive {
		return ErrInvalidPlayer
	}
	if !voter.CanVote {
		return ErrInvalidAction
	}
	target := g.livingPlayer(targetID)
	if target == nil {
		return ErrInvalidTarget
	}

	if voter.VotedFor != "" {
		g.VoteCounts = addToTally(g.VoteCounts, voter.VotedFor, -1)
	}
	voter.VotedFor = target.ID
	g.VoteCounts = addToTally(g.VoteCounts, target.ID, 1)

	DebugLog("Player '%s' voted to eliminate '%s'", voter.Name, target.Name)
	return nil
}

// allHaveVoted is true once every living player with voting rights has a ballot in
func (g *GameState) allHaveVoted() bool {
	for _, p := range g.Players {
		if p.Alive && p.CanVote && p.VotedFor == "" {
			return false
		}
	}
	return true
}

func (g *GameState) livingCaptain() *Player {
	for _, p := range g.Players {
		if p.IsCaptain && p.Alive {
			return p
		}
	}
	return nil
}

// lynchTarget counts the day ballots with the captain's counted twice. Ties go to the
// captain's pick when it is among the leaders, otherwise to the first leader seen.
func (g *GameState) lynchTarget() string {
	tally := append([]TallyEntry(nil), g.VoteCounts...)
	captain := g.livingCaptain()
	if captain != nil && captain.VotedFor != "" {
		tally = addToTally(tally, captain.VotedFor, 1)
	}

	pick, tied := plurality(tally)
	if len(tied) > 1 && captain != nil && captain.VotedFor != "" {
		for _, id := range tied {
			if id == captain.VotedFor {
				return id
			}
		}
	}
	return pick
}

// executeLynch resolves the day once every ballot is in
func (g *GameState) executeLynch() error {
	if g.Phase != PhaseDay {
		return ErrNotDayPhase
	}
	if !g.allHaveVoted() {
		return ErrVotingOpen
	}

	executed := g.livingPlayer(g.lynchTarget())
	if executed == nil {
		log.Printf("Room %s: nobody was lynched", g.RoomCode)
		g.finishDayAndGoToNight()
		return nil
	}

	if executed.Role == RoleIdiot && !executed.IdiotRevealed {
		executed.IdiotRevealed = true
		executed.CanVote = false
		g.record(EventKindIdiotRevealed, "", executed.ID, fmt.Sprintf("%s was dragged to the gallows but turned out to be the village idiot", executed.Name))
		log.Printf("Room %s: idiot %s revealed and spared", g.RoomCode, executed.Name)
		g.finishDayAndGoToNight()
		g.LastIdiotRevealed = executed.Name
		return nil
	}

	deaths := g.kill(executed)
	g.record(EventKindLynch, "", executed.ID, fmt.Sprintf("The village lynched %s. They were the %s.", executed.Name, executed.Role))
	g.recordHeartbreak(deaths)
	log.Printf("Room %s: village eliminated %s (%s)", g.RoomCode, executed.Name, executed.Role)

	for _, d := range deaths {
		if d.Role == RoleHunter {
			g.clearDayBallots()
			g.enterHunterPhase(d.PlayerID)
			return nil
		}
	}

	g.finishDayAndGoToNight()
	return nil
}

// applyHunterAction is the dead hunter's single shot
func (g *GameState) applyHunterAction(connID, targetID string) error {
	if g.Phase != PhaseHunter {
		return ErrNotHunterPhase
	}
	if g.HunterPending == "" {
		return ErrNoHunterPending
	}
	hunter := g.playerByID(g.HunterPending)
	if hunter == nil || connID == "" || hunter.ConnID != connID {
		return ErrNotTheHunter
	}
	target := g.livingPlayer(targetID)
	if target == nil {
		return ErrInvalidTarget
	}

	deaths := g.kill(target)
	g.record(EventKindHunterShot, hunter.ID, target.ID, fmt.Sprintf("With a last breath %s shot %s. They were the %s.", hunter.Name, target.Name, target.Role))
	g.recordHeartbreak(deaths)
	log.Printf("Hunter '%s' took revenge on '%s'", hunter.Name, target.Name)

	g.HunterPending = ""
	if winner := checkWin(g); winner != WinnerNone {
		g.endGame(winner)
		return nil
	}
	g.Phase = PhaseDay
	return nil
}

func handleWSDayVote(client *Client, msg WSMessage) {
	var payload targetPayload
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
		if err := g.submitVote(client.connID, payload.TargetID); err != nil {
			return err
		}
		if g.allHaveVoted() {
			return g.executeLynch()
		}
		return nil
	})
	if err != nil {
		sendGameError(client, err)
		return
	}
	broadcastGameState(room)
}

func handleWSHunterAction(client *Client, msg WSMessage) {
	var payload targetPayload
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
		return g.applyHunterAction(client.connID, payload.TargetID)
	})
	if err != nil {
		sendGameError(client, err)
		return
	}
	broadcastGameState(room)
}
