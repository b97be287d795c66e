package main

import (
	"crypto/rand"
	"math/big"
)

// Role is a card in the deck. The string values are what clients send and receive.
type Role string

const (
	RoleWolf       Role = "wolf"
	RoleVillager   Role = "villager"
	RoleSeer       Role = "seer"
	RoleWitch      Role = "witch"
	RoleHunter     Role = "hunter"
	RoleCupid      Role = "cupid"
	RoleThief      Role = "thief"
	RoleProtector  Role = "protector"
	RoleElder      Role = "elder"
	RoleIdiot      Role = "idiot"
	RoleLittleGirl Role = "littleGirl"
)

var allRoles = []Role{
	RoleWolf, RoleVillager, RoleSeer, RoleWitch, RoleHunter, RoleCupid,
	RoleThief, RoleProtector, RoleElder, RoleIdiot, RoleLittleGirl,
}

// thiefPool is what the thief's two swap choices are drawn from
var thiefPool = []Role{RoleWolf, RoleSeer, RoleWitch, RoleHunter, RoleVillager}

// starterDeck seeds every new room, so four players start with exactly these cards
var starterDeck = []Role{RoleWolf, RoleVillager, RoleSeer, RoleWitch}

const (
	minPlayers    = 4
	maxPlayers    = 18
	maxNameLength = 20
)

func (r Role) valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

// defaultDeck builds the deck used when the configured one doesn't match the player count.
// Up to six players it holds more cards than seats; see cutDeck.
func defaultDeck(count int) []Role {
	roles := []Role{RoleWolf}
	if count >= 6 {
		roles = append(roles, RoleWolf)
	}
	roles = append(roles, RoleSeer, RoleWitch, RoleHunter, RoleCupid)
	if count >= 8 {
		roles = append(roles, RoleThief)
	}
	roles = append(roles, RoleProtector)
	if count >= 9 {
		roles = append(roles, RoleElder)
	}
	if count >= 10 {
		roles = append(roles, RoleIdiot)
	}
	if count >= 11 {
		roles = append(roles, RoleLittleGirl)
	}
	for len(roles) < count {
		roles = append(roles, RoleVillager)
	}
	return roles
}

// cutDeck trims a shuffled deck to count cards by dropping surplus cards from the end.
// Wolves are never dropped, so every dealt game has its pack.
func cutDeck(deck []Role, count int) []Role {
	surplus := len(deck) - count
	if surplus <= 0 {
		return deck
	}
	cut := make([]Role, len(deck))
	copy(cut, deck)
	for i := len(cut) - 1; i >= 0 && surplus > 0; i-- {
		if cut[i] == RoleWolf {
			continue
		}
		cut = append(cut[:i], cut[i+1:]...)
		surplus--
	}
	return cut
}

// drawThiefChoices picks two offers for the thief. A repeated draw falls back to villager.
func drawThiefChoices(shuffle func([]Role)) []Role {
	pool := append([]Role(nil), thiefPool...)
	shuffle(pool)
	second := pool[1]
	if second == pool[0] {
		second = RoleVillager
	}
	return []Role{pool[0], second}
}

// shuffleRoles shuffles the role pool using crypto/rand
func shuffleRoles(roles []Role) {
	for i := len(roles) - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			// Fallback: just swap with previous element
			roles[i], roles[i-1] = roles[i-1], roles[i]
			continue
		}
		j := int(jBig.Int64())
		roles[i], roles[j] = roles[j], roles[i]
	}
}
