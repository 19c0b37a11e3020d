package repositories

import (
	"context"
	"time"

	"github.com/coin-arcade/backend/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GameRepo owns game_sessions and daily_limits.
type GameRepo struct {
	pool *pgxpool.Pool
}

func NewGameRepo(pool *pgxpool.Pool) *GameRepo {
	return &GameRepo{pool: pool}
}

// DailyPlays returns the play count for (address, game type, date);
// zero when no counter row exists yet.
func (r *GameRepo) DailyPlays(ctx context.Context, address, gameType, date string) (int, error) {
	var plays int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(
			(SELECT plays FROM daily_limits WHERE address = $1 AND game_type = $2 AND date = $3),
			0)
	`, address, gameType, date).Scan(&plays)
	return plays, err
}

// RecordPlay appends the session row and bumps the daily counter in one
// transaction, filling in the session id and timestamp. The counter
// upsert is guarded by maxPlays: concurrent plays serialize on the
// counter row, and the loser gets ErrDailyCapReached with the session
// insert rolled back, so the counter never exceeds the cap.
func (r *GameRepo) RecordPlay(ctx context.Context, s *models.GameSession, date string, maxPlays int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO game_sessions (address, game_type, result, coins_won)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, s.Address, s.GameType, s.Result, s.CoinsWon).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO daily_limits (address, game_type, date, plays, coins_won)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (address, game_type, date) DO UPDATE SET
			plays = daily_limits.plays + 1,
			coins_won = daily_limits.coins_won + EXCLUDED.coins_won
		WHERE daily_limits.plays < $5
	`, s.Address, s.GameType, date, s.CoinsWon, maxPlays)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrDailyCapReached
	}

	return tx.Commit(ctx)
}

// BonusClaimedOn reports whether a daily_bonus session exists for the
// address on the given UTC date.
func (r *GameRepo) BonusClaimedOn(ctx context.Context, address, date string) (bool, error) {
	var claimed bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM game_sessions
			WHERE address = $1 AND game_type = $2 AND (created_at AT TIME ZONE 'UTC')::date = $3::date
		)
	`, address, models.GameDailyBonus, date).Scan(&claimed)
	return claimed, err
}

func (r *GameRepo) History(ctx context.Context, address string, limit int) ([]models.GameSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, address, game_type, result, coins_won, created_at
		FROM game_sessions
		WHERE address = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.GameSession
	for rows.Next() {
		var s models.GameSession
		if err := rows.Scan(&s.ID, &s.Address, &s.GameType, &s.Result, &s.CoinsWon, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Leaderboard aggregates winnings since the cutoff, optionally filtered
// by game type, descending, top N.
func (r *GameRepo) Leaderboard(ctx context.Context, gameType string, since time.Time, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT address, SUM(coins_won) AS coins_won, COUNT(*) AS plays
		FROM game_sessions
		WHERE created_at >= $1 AND ($2 = '' OR game_type = $2)
		GROUP BY address
		ORDER BY coins_won DESC
		LIMIT $3
	`, since, gameType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.Address, &e.CoinsWon, &e.Plays); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *GameRepo) Stats(ctx context.Context) (*models.GameStats, error) {
	var s models.GameStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(coins_won), 0),
		       COUNT(DISTINCT address) FILTER (WHERE created_at >= date_trunc('day', now() AT TIME ZONE 'UTC'))
		FROM game_sessions
	`).Scan(&s.TotalSessions, &s.TotalCoinsWon, &s.PlayersToday)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// PruneDailyLimits deletes counter rows older than the cutoff date.
// Counters reset by date, so old rows are dead weight.
func (r *GameRepo) PruneDailyLimits(ctx context.Context, before string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM daily_limits WHERE date < $1::date`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
