package main

import (
	"fmt"
	"log"
)

// submitCaptainVote takes one ballot per player; self-votes and revotes are allowed.
// The last ballot elects the captain and opens the first night.
func (g *GameState) submitCaptainVote(connID, targetID string) error {
	if g.Phase != PhaseCaptain {
		return ErrNotCaptainPhase
	}
	voter := g.playerByConn(connID)
	if voter == nil {
		return ErrInvalidPlayer
	}
	target := g.playerByID(targetID)
	if target == nil {
		return ErrInvalidTarget
	}

	g.CaptainVotes = castBallot(g.CaptainVotes, voter.ID, target.ID)
	voter.VotedForCaptain = target.ID

	if len(g.CaptainVotes) < len(g.Players) {
		DebugLog("Captain votes in room %s: %d/%d", g.RoomCode, len(g.CaptainVotes), len(g.Players))
		return nil
	}

	captainID, _ := plurality(tallyBallots(g.CaptainVotes))
	if captain := g.playerByID(captainID); captain != nil {
		captain.IsCaptain = true
		g.CaptainID = captain.ID
		g.record(EventKindCaptainElected, "", captain.ID, fmt.Sprintf("%s was elected captain", captain.Name))
		log.Printf("Room %s elected %s as captain", g.RoomCode, captain.Name)
	}
	g.CaptainVotes = nil
	g.beginFirstNight()
	return nil
}

func handleWSCaptainVote(client *Client, msg WSMessage) {
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
		return g.submitCaptainVote(client.connID, payload.TargetID)
	})
	if err != nil {
		sendGameError(client, err)
		return
	}
	broadcastGameState(room)
}
