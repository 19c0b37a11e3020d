package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/coin-arcade/backend/internal/apperrors"
	"github.com/coin-arcade/backend/internal/events"
	"github.com/coin-arcade/backend/internal/games"
	"github.com/coin-arcade/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Soft failure reasons returned with success=false.
const (
	FailDailyLimit          = "daily_limit_reached"
	FailInsufficientBalance = "insufficient_balance"
	FailAlreadyClaimed      = "already_claimed"
)

// GameStore is what GameService needs from the game repository.
type GameStore interface {
	DailyPlays(ctx context.Context, address, gameType, date string) (int, error)
	RecordPlay(ctx context.Context, s *models.GameSession, date string, maxPlays int) error
	BonusClaimedOn(ctx context.Context, address, date string) (bool, error)
	History(ctx context.Context, address string, limit int) ([]models.GameSession, error)
	Leaderboard(ctx context.Context, gameType string, since time.Time, limit int) ([]models.LeaderboardEntry, error)
	Stats(ctx context.Context) (*models.GameStats, error)
}

// GameService enforces daily caps and records sessions. It never touches
// balances: the handler layer settles the coins through CoinService, so
// the outcome draw stays a pure function of the PRNG and the counters.
type GameService struct {
	store     GameStore
	publisher events.Publisher
	configs   map[string]games.GameConfig
	log       *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewGameService(store GameStore, publisher events.Publisher, rng *rand.Rand, log *zap.Logger) *GameService {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &GameService{
		store:     store,
		publisher: publisher,
		configs:   games.Configs(),
		rng:       rng,
		log:       log,
	}
}

type PlayResult struct {
	Success        bool       `json:"success"`
	Result         string     `json:"result"`
	GameID         *uuid.UUID `json:"game_id,omitempty"` // set only on a recorded play
	CoinsWon       int64      `json:"coins_won"`
	CoinsSpent     int64      `json:"coins_spent"`
	RemainingPlays int        `json:"remaining_plays"`
}

// Play runs one round of a paid game. currentBalance is the caller's
// coin balance; the limit and balance checks mutate nothing when they
// refuse the play.
func (s *GameService) Play(ctx context.Context, address, gameType, input string, currentBalance int64) (*PlayResult, error) {
	cfg, ok := s.configs[gameType]
	if !ok || gameType == models.GameDailyBonus {
		return nil, apperrors.Validation("unknown game type %q", gameType)
	}
	if gameType == models.GameDice && input != games.PredictionHigh && input != games.PredictionLow {
		return nil, apperrors.Validation("prediction must be %q or %q", games.PredictionHigh, games.PredictionLow)
	}

	date := models.DateKey(time.Now())
	plays, err := s.store.DailyPlays(ctx, address, gameType, date)
	if err != nil {
		return nil, fmt.Errorf("load daily counter: %w", err)
	}
	if plays >= cfg.DailyPlays {
		return &PlayResult{Success: false, Result: FailDailyLimit}, nil
	}

	if currentBalance < cfg.CostCoins {
		return &PlayResult{Success: false, Result: FailInsufficientBalance}, nil
	}

	outcome := s.draw(cfg, input)

	session := &models.GameSession{
		Address:  address,
		GameType: gameType,
		Result:   outcome.Result,
		CoinsWon: outcome.CoinsWon,
	}
	// The guarded counter update is the authoritative cap check; the read
	// above can lose a race with a concurrent play for the same address.
	if err := s.store.RecordPlay(ctx, session, date, cfg.DailyPlays); err != nil {
		if errors.Is(err, models.ErrDailyCapReached) {
			return &PlayResult{Success: false, Result: FailDailyLimit}, nil
		}
		return nil, fmt.Errorf("record session: %w", err)
	}

	_ = s.publisher.Publish(ctx, events.StreamArcade, events.Event{
		Type: events.EventGamePlayed,
		Payload: map[string]any{
			"address":   address,
			"game_type": gameType,
			"result":    outcome.Result,
			"coins_won": outcome.CoinsWon,
		},
	})

	gameID := session.ID
	return &PlayResult{
		Success:        true,
		GameID:         &gameID,
		Result:         outcome.Result,
		CoinsWon:       outcome.CoinsWon,
		CoinsSpent:     cfg.CostCoins,
		RemainingPlays: cfg.DailyPlays - plays - 1,
	}, nil
}

// ClaimDailyBonus pays the free bonus at most once per UTC calendar day.
func (s *GameService) ClaimDailyBonus(ctx context.Context, address string) (*PlayResult, error) {
	cfg := s.configs[models.GameDailyBonus]

	date := models.DateKey(time.Now())
	claimed, err := s.store.BonusClaimedOn(ctx, address, date)
	if err != nil {
		return nil, fmt.Errorf("check bonus claim: %w", err)
	}
	if claimed {
		return &PlayResult{Success: false, Result: FailAlreadyClaimed}, nil
	}

	outcome := s.draw(cfg, "")

	session := &models.GameSession{
		Address:  address,
		GameType: models.GameDailyBonus,
		Result:   outcome.Result,
		CoinsWon: outcome.CoinsWon,
	}
	// The counter guard closes the race between two concurrent claims
	// that both saw the bonus as unclaimed.
	if err := s.store.RecordPlay(ctx, session, date, cfg.DailyPlays); err != nil {
		if errors.Is(err, models.ErrDailyCapReached) {
			return &PlayResult{Success: false, Result: FailAlreadyClaimed}, nil
		}
		return nil, fmt.Errorf("record session: %w", err)
	}

	gameID := session.ID
	return &PlayResult{
		Success:  true,
		GameID:   &gameID,
		Result:   outcome.Result,
		CoinsWon: outcome.CoinsWon,
	}, nil
}

func (s *GameService) draw(cfg games.GameConfig, input string) games.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cfg.Payout.Draw(s.rng, input)
}

// Leaderboard aggregates winnings over the trailing 7 days, top 10.
func (s *GameService) Leaderboard(ctx context.Context, gameType string) ([]models.LeaderboardEntry, error) {
	if gameType != "" && !models.IsValidGameType(gameType) {
		return nil, apperrors.Validation("unknown game type %q", gameType)
	}
	since := time.Now().UTC().AddDate(0, 0, -7)
	return s.store.Leaderboard(ctx, gameType, since, 10)
}

func (s *GameService) History(ctx context.Context, address string, limit int) ([]models.GameSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.History(ctx, address, limit)
}

func (s *GameService) Stats(ctx context.Context) (*models.GameStats, error) {
	return s.store.Stats(ctx)
}

// GamesInfo describes the catalog: daily caps and costs per game.
func (s *GameService) GamesInfo() []games.GameConfig {
	info := make([]games.GameConfig, 0, len(s.configs))
	for _, gameType := range []string{models.GameWheel, models.GameDice, models.GameScratch, models.GameDailyBonus} {
		info = append(info, s.configs[gameType])
	}
	return info
}

// Config returns the configuration for a game type, for the handler to
// settle costs.
func (s *GameService) Config(gameType string) (games.GameConfig, bool) {
	cfg, ok := s.configs[gameType]
	return cfg, ok
}
