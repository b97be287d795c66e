package main

import (
	"reflect"
	"testing"
)

func TestRecordEventsAndHistory(t *testing.T) {
	newTestDB(t)

	events := []GameEvent{
		{Kind: EventKindGameStarted, Night: 1, Phase: PhaseCaptain, Description: "The game began with 4 players"},
		{Kind: EventKindNightDeath, Night: 1, Phase: PhaseNight, TargetID: "p1", Description: "Bob was found dead at dawn"},
		{Kind: EventKindNightQuiet, Night: 2, Phase: PhaseNight},
	}
	if err := recordEvents("ROOMA", events); err != nil {
		t.Fatalf("recordEvents: %v", err)
	}
	if err := recordEvents("ROOMB", events[:1]); err != nil {
		t.Fatalf("recordEvents: %v", err)
	}

	history, err := getRoomHistory("ROOMA")
	if err != nil {
		t.Fatalf("getRoomHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(history))
	}
	var kinds []string
	for _, r := range history {
		kinds = append(kinds, r.Kind)
	}
	if !reflect.DeepEqual(kinds, []string{EventKindGameStarted, EventKindNightDeath, EventKindNightQuiet}) {
		t.Errorf("History out of order: %v", kinds)
	}
	if history[1].TargetID != "p1" || history[1].Night != 1 || history[1].Phase != string(PhaseNight) {
		t.Errorf("Record fields not kept: %+v", history[1])
	}
	if history[0].CreatedAt.IsZero() {
		t.Errorf("Expected a timestamp")
	}

	story, err := getStoryHistory("ROOMA")
	if err != nil {
		t.Fatalf("getStoryHistory: %v", err)
	}
	if len(story) != 2 {
		t.Errorf("Records without a description should not reach the storyteller, got %v", story)
	}
}

func TestRecordGameResultAndStats(t *testing.T) {
	newTestDB(t)

	finished := []*GameState{
		{RoomCode: "AAAAA", Phase: PhaseEnded, Winner: WinnerVillagers, NightNumber: 2},
		{RoomCode: "BBBBB", Phase: PhaseEnded, Winner: WinnerWolves, NightNumber: 3},
		{RoomCode: "AAAAA", Phase: PhaseEnded, Winner: WinnerVillagers, NightNumber: 4},
	}
	for _, g := range finished {
		if err := recordGameResult(g); err != nil {
			t.Fatalf("recordGameResult: %v", err)
		}
	}
	if err := recordGameResult(&GameState{RoomCode: "CCCCC", Phase: PhaseDay}); err != nil {
		t.Fatalf("recordGameResult on a running game: %v", err)
	}

	stats, err := getWinStats()
	if err != nil {
		t.Fatalf("getWinStats: %v", err)
	}
	want := []WinStat{{Winner: "villagers", Games: 2}, {Winner: "wolves", Games: 1}}
	if !reflect.DeepEqual(stats, want) {
		t.Errorf("Expected %v, got %v", want, stats)
	}
}

func TestStoreDisabledWithoutDatabase(t *testing.T) {
	prev := db
	db = nil
	t.Cleanup(func() { db = prev })

	if err := recordEvents("ROOMA", []GameEvent{{Kind: EventKindLynch}}); err != nil {
		t.Errorf("recordEvents without a db: %v", err)
	}
	if err := recordGameResult(&GameState{Phase: PhaseEnded}); err != nil {
		t.Errorf("recordGameResult without a db: %v", err)
	}
	history, err := getRoomHistory("ROOMA")
	if err != nil || len(history) != 0 {
		t.Errorf("Expected empty history, got %v %v", history, err)
	}
	stats, err := getWinStats()
	if err != nil || len(stats) != 0 {
		t.Errorf("Expected empty stats, got %v %v", stats, err)
	}
}
