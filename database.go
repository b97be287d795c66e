package main

import (
	"fmt"
	"log"
	"time"
)

// GameRecord is one row of a room's public history
type GameRecord struct {
	ID          int64     `db:"id" json:"id"`
	RoomCode    string    `db:"room_code" json:"roomCode"`
	Night       int       `db:"night" json:"night"`
	Phase       string    `db:"phase" json:"phase"`
	Kind        string    `db:"kind" json:"kind"`
	ActorID     string    `db:"actor_id" json:"actorId,omitempty"`
	TargetID    string    `db:"target_id" json:"targetId,omitempty"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// GameResult is a finished game
type GameResult struct {
	RoomCode   string    `db:"room_code" json:"roomCode"`
	Winner     string    `db:"winner" json:"winner"`
	Nights     int       `db:"nights" json:"nights"`
	Players    int       `db:"players" json:"players"`
	FinishedAt time.Time `db:"finished_at" json:"finishedAt"`
}

// WinStat counts finished games per winning side
type WinStat struct {
	Winner string `db:"winner" json:"winner"`
	Games  int    `db:"games" json:"games"`
}

// recordEvents appends drained engine events to the room's history in one transaction.
// The store is write-only from the engine's point of view: rooms are never rebuilt from it.
func recordEvents(roomCode string, events []GameEvent) error {
	if db == nil || len(events) == 0 {
		return nil
	}

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, ev := range events {
		_, err := tx.NamedExec(`
			INSERT INTO room_event (room_code, night, phase, kind, actor_id, target_id, description, created_at)
			VALUES (:room_code, :night, :phase, :kind, :actor_id, :target_id, :description, :created_at)`,
			GameRecord{
				RoomCode:    roomCode,
				Night:       ev.Night,
				Phase:       string(ev.Phase),
				Kind:        ev.Kind,
				ActorID:     ev.ActorID,
				TargetID:    ev.TargetID,
				Description: ev.Description,
				CreatedAt:   now,
			})
		if err != nil {
			return fmt.Errorf("insert %s: %w", ev.Kind, err)
		}
	}
	return tx.Commit()
}

// recordGameResult stores the outcome of a finished game
func recordGameResult(g *GameState) error {
	if db == nil || g.Phase != PhaseEnded {
		return nil
	}
	_, err := db.NamedExec(`
		INSERT INTO game_result (room_code, winner, nights, players, finished_at)
		VALUES (:room_code, :winner, :nights, :players, :finished_at)`,
		GameResult{
			RoomCode:   g.RoomCode,
			Winner:     string(g.Winner),
			Nights:     g.NightNumber,
			Players:    len(g.Players),
			FinishedAt: time.Now().UTC(),
		})
	return err
}

func getRoomHistory(roomCode string) ([]GameRecord, error) {
	records := []GameRecord{}
	if db == nil {
		return records, nil
	}
	err := db.Select(&records, `
		SELECT rowid as id, room_code, night, phase, kind, actor_id, target_id, description, created_at
		FROM room_event
		WHERE room_code = ?
		ORDER BY rowid ASC`, roomCode)
	return records, err
}

// getStoryHistory is the public history fed to the storyteller
func getStoryHistory(roomCode string) ([]string, error) {
	var descriptions []string
	if db == nil {
		return descriptions, nil
	}
	err := db.Select(&descriptions, `
		SELECT description FROM room_event
		WHERE room_code = ? AND description != ''
		ORDER BY rowid ASC`, roomCode)
	return descriptions, err
}

func getWinStats() ([]WinStat, error) {
	stats := []WinStat{}
	if db == nil {
		return stats, nil
	}
	err := db.Select(&stats, `
		SELECT winner, COUNT(*) as games
		FROM game_result
		GROUP BY winner
		ORDER BY games DESC, winner ASC`)
	return stats, err
}

func initDB() error {
	schema := `
	PRAGMA journal_mode=WAL;

	CREATE TABLE IF NOT EXISTS room_event (
		room_code TEXT NOT NULL,
		night INTEGER NOT NULL DEFAULT 0,
		phase TEXT NOT NULL,
		kind TEXT NOT NULL,
		actor_id TEXT NOT NULL DEFAULT '',
		target_id TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_room_event_room ON room_event(room_code);

	CREATE TABLE IF NOT EXISTS game_result (
		room_code TEXT NOT NULL,
		winner TEXT NOT NULL,
		nights INTEGER NOT NULL,
		players INTEGER NOT NULL,
		finished_at DATETIME NOT NULL
	);
	`
	_, err := db.Exec(schema)
	if err != nil {
		log.Printf("initDB error: %v", err)
		return err
	}
	log.Printf("Database initialized successfully")
	return nil
}
