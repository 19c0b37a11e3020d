package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDailyCapReached is returned by the play recorder when the guarded
// counter update finds the day's cap already consumed.
var ErrDailyCapReached = errors.New("daily play cap reached")

// Game types
const (
	GameWheel      = "wheel"
	GameDice       = "dice"
	GameScratch    = "scratch"
	GameDailyBonus = "daily_bonus"
)

func IsValidGameType(gameType string) bool {
	switch gameType {
	case GameWheel, GameDice, GameScratch, GameDailyBonus:
		return true
	}
	return false
}

// GameSession is an immutable record of one play, including the free
// daily-bonus game.
type GameSession struct {
	ID        uuid.UUID `json:"id"`
	Address   string    `json:"address"`
	GameType  string    `json:"game_type"`
	Result    string    `json:"result"`
	CoinsWon  int64     `json:"coins_won"`
	CreatedAt time.Time `json:"created_at"`
}

// DailyLimit tracks plays and winnings for (address, game type, date).
// A new date means a new row, which is how the counter resets.
type DailyLimit struct {
	Address  string `json:"address"`
	GameType string `json:"game_type"`
	Date     string `json:"date"` // YYYY-MM-DD, UTC
	Plays    int    `json:"plays"`
	CoinsWon int64  `json:"coins_won"`
}

type LeaderboardEntry struct {
	Address  string `json:"address"`
	CoinsWon int64  `json:"coins_won"`
	Plays    int    `json:"plays"`
}

type GameStats struct {
	TotalSessions int64 `json:"total_sessions"`
	TotalCoinsWon int64 `json:"total_coins_won"`
	PlayersToday  int64 `json:"players_today"`
}

// DateKey formats t as the UTC calendar date used by daily limit counters.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
