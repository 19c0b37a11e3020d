package handlers

import (
	"github.com/coin-arcade/backend/internal/http/dto"
	"github.com/coin-arcade/backend/internal/middleware"
	"github.com/coin-arcade/backend/internal/models"
	"github.com/coin-arcade/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GameHandler runs the games and settles their coins. The engine only
// decides outcomes; the debit of the stake and the credit of the win go
// through the coin service here, so every mutation lands in the ledger.
type GameHandler struct {
	games *services.GameService
	coins *services.CoinService
	log   *zap.Logger
}

func NewGameHandler(games *services.GameService, coins *services.CoinService, log *zap.Logger) *GameHandler {
	return &GameHandler{games: games, coins: coins, log: log}
}

// POST /games/wheel
func (h *GameHandler) PlayWheel(c *fiber.Ctx) error {
	return h.playPaidGame(c, models.GameWheel, "")
}

// POST /games/dice
func (h *GameHandler) PlayDice(c *fiber.Ctx) error {
	var req dto.DiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	return h.playPaidGame(c, models.GameDice, req.Prediction)
}

// POST /games/scratch
func (h *GameHandler) PlayScratch(c *fiber.Ctx) error {
	return h.playPaidGame(c, models.GameScratch, "")
}

func (h *GameHandler) playPaidGame(c *fiber.Ctx, gameType, input string) error {
	address := middleware.GetAddress(c)

	balance, err := h.coins.GetBalance(c.Context(), address)
	if err != nil {
		return respondError(c, h.log, err)
	}

	res, err := h.games.Play(c.Context(), address, gameType, input, balance.Balance)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if !res.Success {
		return c.JSON(res)
	}

	ref := "game:" + res.GameID.String()
	remaining := balance.Balance
	if res.CoinsSpent > 0 {
		earn, err := h.coins.EarnCoins(c.Context(), address, -res.CoinsSpent, &ref)
		if err != nil {
			return respondError(c, h.log, err)
		}
		remaining = earn.Balance
	}
	if res.CoinsWon > 0 {
		earn, err := h.coins.EarnCoins(c.Context(), address, res.CoinsWon, &ref)
		if err != nil {
			return respondError(c, h.log, err)
		}
		remaining = earn.Balance
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"game_id":         res.GameID,
		"result":          res.Result,
		"coins_won":       res.CoinsWon,
		"coins_spent":     res.CoinsSpent,
		"remaining_plays": res.RemainingPlays,
		"balance":         remaining,
	})
}

// POST /games/daily-bonus
func (h *GameHandler) DailyBonus(c *fiber.Ctx) error {
	address := middleware.GetAddress(c)

	res, err := h.games.ClaimDailyBonus(c.Context(), address)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if !res.Success {
		return c.JSON(res)
	}

	ref := "game:" + res.GameID.String()
	earn, err := h.coins.EarnCoins(c.Context(), address, res.CoinsWon, &ref)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"game_id":   res.GameID,
		"result":    res.Result,
		"coins_won": res.CoinsWon,
		"balance":   earn.Balance,
	})
}

// GET /games/stats
func (h *GameHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.games.Stats(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(stats)
}

// GET /games/history?limit=
func (h *GameHandler) History(c *fiber.Ctx) error {
	sessions, err := h.games.History(c.Context(), middleware.GetAddress(c), c.QueryInt("limit"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"sessions": sessions})
}

// GET /games/leaderboard?gameType=
func (h *GameHandler) Leaderboard(c *fiber.Ctx) error {
	entries, err := h.games.Leaderboard(c.Context(), c.Query("gameType"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"leaderboard": entries})
}

// GET /games/info
func (h *GameHandler) Info(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"games": h.games.GamesInfo()})
}
