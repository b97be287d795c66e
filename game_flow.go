package main

import (
	"fmt"
	"log"
)

// checkWin looks only at living players. The mixed lover couple is checked before
// parity because one wolf and one villager would otherwise always count as a wolf win.
func checkWin(g *GameState) Winner {
	alive := g.alivePlayers()
	wolves := 0
	for _, p := range alive {
		if p.Role == RoleWolf {
			wolves++
		}
	}
	others := len(alive) - wolves

	if wolves == 0 {
		return WinnerVillagers
	}
	if len(alive) == 2 {
		a, b := alive[0], alive[1]
		if a.LoverID == b.ID && b.LoverID == a.ID && (a.Role == RoleWolf) != (b.Role == RoleWolf) {
			return WinnerLovers
		}
	}
	if wolves >= others {
		return WinnerWolves
	}
	return WinnerNone
}

// resolveAndGoToDay closes the night. A dead hunter pre-empts the day.
func (g *GameState) resolveAndGoToDay() {
	g.resolveNight()
	g.CurrentRoleTurn = ""

	for _, d := range g.DeathsThisCycle {
		if d.Role == RoleHunter {
			g.enterHunterPhase(d.PlayerID)
			return
		}
	}

	if winner := checkWin(g); winner != WinnerNone {
		g.endGame(winner)
		return
	}

	g.Phase = PhaseDay
	log.Printf("Room %s: night %d ended, transitioning to day", g.RoomCode, g.NightNumber)
}

// finishDayAndGoToNight ends the day: either the game is over or the next night begins
func (g *GameState) finishDayAndGoToNight() {
	if winner := checkWin(g); winner != WinnerNone {
		g.VoteCounts = nil
		g.endGame(winner)
		return
	}

	g.resetForNight()
	g.NightNumber++
	g.Phase = PhaseNight
	g.CurrentRoleTurn = g.firstNightRole()
	log.Printf("Room %s: day ended, transitioning to night %d", g.RoomCode, g.NightNumber)

	if g.CurrentRoleTurn == "" {
		g.resolveAndGoToDay()
	}
}

// beginFirstNight leaves the captain election. The turn seeded at deal time is kept
// if its holder is alive, otherwise the next available turn is taken.
func (g *GameState) beginFirstNight() {
	g.Phase = PhaseNight
	if g.CurrentRoleTurn == "" {
		g.CurrentRoleTurn = RoleWolf
	}
	if !g.hasLivingRole(g.CurrentRoleTurn) {
		g.CurrentRoleTurn = g.nextRoleTurn()
	}
	if g.CurrentRoleTurn == "" {
		g.resolveAndGoToDay()
	}
}

func (g *GameState) enterHunterPhase(hunterID string) {
	g.Phase = PhaseHunter
	g.HunterPending = hunterID
	g.CurrentRoleTurn = ""
	log.Printf("Room %s: hunter %s gets a last shot", g.RoomCode, hunterID)
}

// endGame is terminal: nothing transitions out of ended
func (g *GameState) endGame(winner Winner) {
	g.Phase = PhaseEnded
	g.Winner = winner
	g.CurrentRoleTurn = ""
	g.HunterPending = ""
	g.record(EventKindGameEnded, "", "", fmt.Sprintf("The %s won", winner))
	log.Printf("Room %s finished, winner: %s", g.RoomCode, winner)
}
