package main

import (
	"fmt"
	"testing"
	"testing/quick"
)

func countRole(deck []Role, role Role) int {
	n := 0
	for _, r := range deck {
		if r == role {
			n++
		}
	}
	return n
}

func TestDefaultDeckComposition(t *testing.T) {
	tests := []struct {
		players int
		wolves  int
		has     []Role
		lacks   []Role
	}{
		{players: 4, wolves: 1, has: []Role{RoleSeer, RoleWitch, RoleHunter, RoleCupid, RoleProtector}, lacks: []Role{RoleThief, RoleElder}},
		{players: 6, wolves: 2, lacks: []Role{RoleThief}},
		{players: 8, wolves: 2, has: []Role{RoleThief, RoleProtector}, lacks: []Role{RoleElder}},
		{players: 9, wolves: 2, has: []Role{RoleElder}, lacks: []Role{RoleIdiot}},
		{players: 10, wolves: 2, has: []Role{RoleIdiot}, lacks: []Role{RoleLittleGirl}},
		{players: 11, wolves: 2, has: []Role{RoleLittleGirl}},
		{players: 18, wolves: 2, has: []Role{RoleThief, RoleLittleGirl}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d players", tt.players), func(t *testing.T) {
			deck := defaultDeck(tt.players)
			if got := countRole(deck, RoleWolf); got != tt.wolves {
				t.Errorf("Expected %d wolves, got %d in %v", tt.wolves, got, deck)
			}
			for _, r := range tt.has {
				if countRole(deck, r) != 1 {
					t.Errorf("Expected exactly one %s in %v", r, deck)
				}
			}
			for _, r := range tt.lacks {
				if countRole(deck, r) != 0 {
					t.Errorf("Did not expect %s in %v", r, deck)
				}
			}
			if len(deck) < tt.players {
				t.Errorf("Deck of %d cards is too small for %d players", len(deck), tt.players)
			}
		})
	}
}

// Whatever the player count and shuffle, the dealt deck matches the roster
func TestDealtDeckMatchesPlayerCount(t *testing.T) {
	f := func(n uint8) bool {
		count := minPlayers + int(n)%(maxPlayers-minPlayers+1)
		g := &GameState{Phase: PhaseLobby}
		for i := 0; i < count; i++ {
			g.Players = append(g.Players, newPlayer(fmt.Sprintf("p%d", i), fmt.Sprintf("c%d", i), fmt.Sprintf("P%d", i)))
		}
		if err := g.startGame(shuffleRoles); err != nil {
			t.Errorf("startGame with %d players: %v", count, err)
			return false
		}
		if len(g.RoleDeck) != count {
			t.Errorf("Deck length %d for %d players", len(g.RoleDeck), count)
			return false
		}
		if countRole(g.RoleDeck, RoleWolf) == 0 {
			t.Errorf("No wolf dealt for %d players: %v", count, g.RoleDeck)
			return false
		}
		for i, p := range g.Players {
			if p.Role != g.RoleDeck[i] || p.OriginalRole != p.Role {
				t.Errorf("Player %d got %s/%s, deck says %s", i, p.Role, p.OriginalRole, g.RoleDeck[i])
				return false
			}
		}
		return true
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 50}); err != nil {
		t.Error(err)
	}
}

func TestCutDeckKeepsWolves(t *testing.T) {
	deck := []Role{RoleSeer, RoleWitch, RoleHunter, RoleCupid, RoleProtector, RoleWolf}
	cut := cutDeck(deck, 4)
	if len(cut) != 4 {
		t.Fatalf("Expected 4 cards, got %v", cut)
	}
	if countRole(cut, RoleWolf) != 1 {
		t.Errorf("Wolf was dropped: %v", cut)
	}
	if deck[5] != RoleWolf || len(deck) != 6 {
		t.Errorf("Input deck was modified: %v", deck)
	}
}

func TestThiefChoicesNeverRepeat(t *testing.T) {
	same := func(pool []Role) {
		pool[1] = pool[0]
	}
	choices := drawThiefChoices(same)
	if choices[0] == choices[1] && choices[0] != RoleVillager {
		t.Errorf("Thief was offered the same role twice: %v", choices)
	}
	if choices[1] != RoleVillager {
		t.Errorf("Repeated draw should fall back to villager, got %v", choices)
	}

	choices = drawThiefChoices(noShuffle)
	if choices[0] != RoleWolf || choices[1] != RoleSeer {
		t.Errorf("Expected [wolf seer] from an unshuffled pool, got %v", choices)
	}
}

func TestShuffleRolesIsPermutation(t *testing.T) {
	f := func(n uint8) bool {
		deck := defaultDeck(minPlayers + int(n)%(maxPlayers-minPlayers+1))
		shuffled := append([]Role(nil), deck...)
		shuffleRoles(shuffled)
		for _, r := range allRoles {
			if countRole(deck, r) != countRole(shuffled, r) {
				t.Errorf("Shuffle changed the count of %s: %v -> %v", r, deck, shuffled)
				return false
			}
		}
		return true
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 20}); err != nil {
		t.Error(err)
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range allRoles {
		if !r.valid() {
			t.Errorf("%s should be valid", r)
		}
	}
	for _, r := range []Role{"", "werewolf", "Wolf", "doctor"} {
		if r.valid() {
			t.Errorf("%q should not be valid", r)
		}
	}
}
