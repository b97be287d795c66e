package main

// filterGameStateForPlayer builds the view one connection is allowed to see.
// The lobby is public. Roles are dealt at start, so redaction begins with the
// captain election rather than the first night; a living villager must never
// see another living player's role. Secret night submissions are redacted
// unless the requester may know them. Dead players watch the rest of the game
// with nothing hidden.
func filterGameStateForPlayer(g *GameState, connID string) *GameState {
	view := g.clone()
	view.SeerReveal = nil
	if g.Phase == PhaseLobby {
		return view
	}

	requester := g.playerByConn(connID)
	if requester != nil && !requester.Alive {
		for _, p := range view.Players {
			p.RoleKnown = true
		}
		view.SeerReveal = seerRevealFor(g)
		return view
	}

	var myRole Role
	var myID string
	if requester != nil {
		myRole = requester.Role
		myID = requester.ID
	}

	littleGirlPeeking := myRole == RoleLittleGirl && g.Phase == PhaseNight && g.CurrentRoleTurn == RoleWolf

	for _, p := range view.Players {
		known := requester != nil && (p.ID == myID ||
			(myRole == RoleWolf && p.Role == RoleWolf) ||
			(littleGirlPeeking && p.Role == RoleWolf))
		p.RoleKnown = known
		if !known {
			p.Role = RoleVillager
			p.OriginalRole = RoleVillager
		}

		if p.ID != myID {
			p.ConnID = ""
			p.ProtectedTonight = false
			if !(myRole == RoleCupid || p.LoverID == myID || (requester != nil && requester.LoverID == p.ID)) {
				p.LoverID = ""
			}
		}
	}

	if myRole != RoleWolf && myRole != RoleWitch {
		view.WolfTarget = ""
		view.WolfVictim = ""
		view.WolfVotes = nil
	}
	if myRole != RoleWitch {
		view.WitchHealTarget = ""
		view.WitchPoisonTarget = ""
	}
	if myRole != RoleProtector {
		view.ProtectorTarget = ""
	}
	if myRole != RoleThief {
		view.ThiefChoices = nil
	}
	if myRole != RoleSeer {
		view.SeerTarget = ""
	} else {
		view.SeerReveal = seerRevealFor(g)
	}
	return view
}

func seerRevealFor(g *GameState) *SeerReveal {
	target := g.playerByID(g.SeerTarget)
	if target == nil {
		return nil
	}
	return &SeerReveal{TargetID: target.ID, Role: target.Role, Name: target.Name}
}
