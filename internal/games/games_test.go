package games

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/coin-arcade/backend/internal/models"
)

func newRng() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestWeightedTiersCoversAllLabels(t *testing.T) {
	cfg := Configs()[models.GameWheel]
	dist := cfg.Payout.(WeightedTiers)

	payouts := map[string]int64{}
	for _, tier := range dist.Tiers {
		payouts[tier.Label] = tier.Payout
	}

	rng := newRng()
	seen := map[string]bool{}
	for i := 0; i < 10000; i++ {
		out := dist.Draw(rng, "")
		want, ok := payouts[out.Result]
		if !ok {
			t.Fatalf("drew unknown tier %q", out.Result)
		}
		if out.CoinsWon != want {
			t.Fatalf("tier %q paid %d, want %d", out.Result, out.CoinsWon, want)
		}
		seen[out.Result] = true
	}
	for label := range payouts {
		if !seen[label] {
			t.Errorf("tier %q never drawn in 10000 rounds", label)
		}
	}
}

func TestWeightedTiersFrequencies(t *testing.T) {
	dist := Configs()[models.GameWheel].Payout.(WeightedTiers)
	rng := newRng()

	counts := map[string]int{}
	const rounds = 100000
	for i := 0; i < rounds; i++ {
		counts[dist.Draw(rng, "").Result]++
	}

	// blank has weight 40/100, jackpot 5/100. Allow generous slack.
	if frac := float64(counts["blank"]) / rounds; frac < 0.35 || frac > 0.45 {
		t.Errorf("blank frequency %.3f outside [0.35, 0.45]", frac)
	}
	if frac := float64(counts["jackpot"]) / rounds; frac < 0.03 || frac > 0.07 {
		t.Errorf("jackpot frequency %.3f outside [0.03, 0.07]", frac)
	}
}

func TestFixedOddsDice(t *testing.T) {
	dist := FixedOdds{Payout: 10}
	rng := newRng()

	for i := 0; i < 1000; i++ {
		for _, prediction := range []string{PredictionHigh, PredictionLow} {
			out := dist.Draw(rng, prediction)
			if !strings.HasPrefix(out.Result, "rolled_") {
				t.Fatalf("unexpected result %q", out.Result)
			}
			win := strings.HasSuffix(out.Result, "_win")
			if win && out.CoinsWon != 10 {
				t.Fatalf("win paid %d, want 10", out.CoinsWon)
			}
			if !win && out.CoinsWon != 0 {
				t.Fatalf("loss paid %d, want 0", out.CoinsWon)
			}

			// The roll embedded in the result must agree with the outcome.
			roll, err := parseRoll(out.Result)
			if err != nil {
				t.Fatalf("cannot parse roll from %q: %v", out.Result, err)
			}
			if roll < 1 || roll > 6 {
				t.Fatalf("roll %d outside d6 range", roll)
			}
			expectWin := (prediction == PredictionHigh && roll >= 4) ||
				(prediction == PredictionLow && roll <= 3)
			if win != expectWin {
				t.Fatalf("prediction %q roll %d: win=%v, want %v", prediction, roll, win, expectWin)
			}
		}
	}
}

func parseRoll(result string) (int, error) {
	trimmed := strings.TrimPrefix(result, "rolled_")
	idx := strings.Index(trimmed, "_")
	if idx < 0 {
		return 0, fmt.Errorf("result %q has no roll segment", result)
	}
	return strconv.Atoi(trimmed[:idx])
}

func TestUniformChanceBounds(t *testing.T) {
	dist := UniformChance{WinProb: 0.30, MaxWin: 100}
	rng := newRng()

	wins := 0
	const rounds = 100000
	for i := 0; i < rounds; i++ {
		out := dist.Draw(rng, "")
		switch out.Result {
		case "win":
			wins++
			if out.CoinsWon < 1 || out.CoinsWon > 100 {
				t.Fatalf("win paid %d, want [1, 100]", out.CoinsWon)
			}
		case "no_win":
			if out.CoinsWon != 0 {
				t.Fatalf("no_win paid %d", out.CoinsWon)
			}
		default:
			t.Fatalf("unexpected result %q", out.Result)
		}
	}
	if frac := float64(wins) / rounds; frac < 0.27 || frac > 0.33 {
		t.Errorf("win frequency %.3f outside [0.27, 0.33]", frac)
	}
}

func TestUniformRangeBounds(t *testing.T) {
	dist := UniformRange{Min: 10, Max: 59}
	rng := newRng()

	seen := map[int64]bool{}
	for i := 0; i < 10000; i++ {
		out := dist.Draw(rng, "")
		if out.Result != "claimed" {
			t.Fatalf("unexpected result %q", out.Result)
		}
		if out.CoinsWon < 10 || out.CoinsWon > 59 {
			t.Fatalf("payout %d outside [10, 59]", out.CoinsWon)
		}
		seen[out.CoinsWon] = true
	}
	if !seen[10] || !seen[59] {
		t.Error("range endpoints never drawn in 10000 rounds")
	}
}

func TestConfigsCatalog(t *testing.T) {
	cfgs := Configs()

	tests := []struct {
		gameType   string
		dailyPlays int
		costCoins  int64
	}{
		{models.GameWheel, 10, 10},
		{models.GameDice, 10, 5},
		{models.GameScratch, 5, 15},
		{models.GameDailyBonus, 1, 0},
	}

	for _, tt := range tests {
		cfg, ok := cfgs[tt.gameType]
		if !ok {
			t.Errorf("game %q missing from catalog", tt.gameType)
			continue
		}
		if cfg.DailyPlays != tt.dailyPlays {
			t.Errorf("%s daily plays = %d, want %d", tt.gameType, cfg.DailyPlays, tt.dailyPlays)
		}
		if cfg.CostCoins != tt.costCoins {
			t.Errorf("%s cost = %d, want %d", tt.gameType, cfg.CostCoins, tt.costCoins)
		}
		if cfg.Payout == nil {
			t.Errorf("%s has no payout distribution", tt.gameType)
		}
	}
}
