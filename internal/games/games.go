// Package games holds the pure chance mechanics of the arcade: payout
// distributions and per-game configuration. Drawing an outcome touches no
// storage and no balances, so the odds are testable in isolation.
package games

import (
	"fmt"
	"math/rand"

	"github.com/coin-arcade/backend/internal/models"
)

// Dice predictions
const (
	PredictionHigh = "high" // wins on 4-6
	PredictionLow  = "low"  // wins on 1-3
)

type Outcome struct {
	Result   string
	CoinsWon int64
}

// Distribution is one game's payout scheme. Input carries the
// player-supplied choice for games that take one (the dice prediction);
// other distributions ignore it.
type Distribution interface {
	Draw(rng *rand.Rand, input string) Outcome
}

// Tier is one segment of a weighted payout wheel.
type Tier struct {
	Label  string
	Payout int64
	Weight int
}

// WeightedTiers picks a tier with probability proportional to its weight.
type WeightedTiers struct {
	Tiers []Tier
}

func (d WeightedTiers) Draw(rng *rand.Rand, _ string) Outcome {
	total := 0
	for _, t := range d.Tiers {
		total += t.Weight
	}
	roll := rng.Intn(total)
	for _, t := range d.Tiers {
		roll -= t.Weight
		if roll < 0 {
			return Outcome{Result: t.Label, CoinsWon: t.Payout}
		}
	}
	// Unreachable: weights sum to total.
	last := d.Tiers[len(d.Tiers)-1]
	return Outcome{Result: last.Label, CoinsWon: last.Payout}
}

// FixedOdds is the dice game: a d6 roll against a high/low prediction
// paying a fixed amount on a win.
type FixedOdds struct {
	Payout int64
}

func (d FixedOdds) Draw(rng *rand.Rand, prediction string) Outcome {
	roll := 1 + rng.Intn(6)
	win := (prediction == PredictionHigh && roll >= 4) ||
		(prediction == PredictionLow && roll <= 3)
	out := Outcome{Result: fmt.Sprintf("rolled_%d_lose", roll)}
	if win {
		out = Outcome{Result: fmt.Sprintf("rolled_%d_win", roll), CoinsWon: d.Payout}
	}
	return out
}

// UniformChance wins with probability WinProb, paying a uniform amount in
// [1, MaxWin].
type UniformChance struct {
	WinProb float64
	MaxWin  int64
}

func (d UniformChance) Draw(rng *rand.Rand, _ string) Outcome {
	if rng.Float64() >= d.WinProb {
		return Outcome{Result: "no_win"}
	}
	return Outcome{Result: "win", CoinsWon: 1 + rng.Int63n(d.MaxWin)}
}

// UniformRange always pays a uniform amount in [Min, Max].
type UniformRange struct {
	Min, Max int64
}

func (d UniformRange) Draw(rng *rand.Rand, _ string) Outcome {
	return Outcome{Result: "claimed", CoinsWon: d.Min + rng.Int63n(d.Max-d.Min+1)}
}

type GameConfig struct {
	Type       string       `json:"type"`
	DailyPlays int          `json:"daily_plays"`
	CostCoins  int64        `json:"cost_coins"`
	Payout     Distribution `json:"-"`
}

// Configs returns the arcade catalog keyed by game type.
func Configs() map[string]GameConfig {
	return map[string]GameConfig{
		models.GameWheel: {
			Type:       models.GameWheel,
			DailyPlays: 10,
			CostCoins:  10,
			Payout: WeightedTiers{Tiers: []Tier{
				{Label: "blank", Payout: 0, Weight: 40},
				{Label: "small", Payout: 10, Weight: 30},
				{Label: "medium", Payout: 25, Weight: 15},
				{Label: "large", Payout: 50, Weight: 10},
				{Label: "jackpot", Payout: 100, Weight: 5},
			}},
		},
		models.GameDice: {
			Type:       models.GameDice,
			DailyPlays: 10,
			CostCoins:  5,
			Payout:     FixedOdds{Payout: 10},
		},
		models.GameScratch: {
			Type:       models.GameScratch,
			DailyPlays: 5,
			CostCoins:  15,
			Payout:     UniformChance{WinProb: 0.30, MaxWin: 100},
		},
		models.GameDailyBonus: {
			Type:       models.GameDailyBonus,
			DailyPlays: 1,
			CostCoins:  0,
			Payout:     UniformRange{Min: 10, Max: 59},
		},
	}
}
