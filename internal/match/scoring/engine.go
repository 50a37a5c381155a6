package scoring

import (
	"math"

	"github.com/gokatarajesh/quiz-duel/internal/grading"
)

// Outcome is one player's match result.
type Outcome string

const (
	Win  Outcome = "win"
	Lose Outcome = "lose"
	Draw Outcome = "draw"
)

// Tier is the display band of a rating.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
)

// RatingConfig holds the tunable constants of the rating curve.
type RatingConfig struct {
	Initial        int     `yaml:"initial"`          // default: 1000
	K              int     `yaml:"k"`                // default: 32
	HighK          int     `yaml:"high_k"`           // default: 16
	HighKThreshold int     `yaml:"high_k_threshold"` // default: 2400
	MarginScale    int     `yaml:"margin_scale"`     // points of margin for the full bonus, default: 60
	MarginBonus    float64 `yaml:"margin_bonus"`     // extra multiplier at full margin, default: 0.5
	DrawDamping    float64 `yaml:"draw_damping"`     // share of the Elo draw delta kept, default: 0.25
	Floor          int     `yaml:"floor"`            // default: 0
}

// DefaultRatingConfig returns production defaults.
func DefaultRatingConfig() RatingConfig {
	return RatingConfig{
		Initial:        1000,
		K:              32,
		HighK:          16,
		HighKThreshold: 2400,
		MarginScale:    60,
		MarginBonus:    0.5,
		DrawDamping:    0.25,
		Floor:          0,
	}
}

// Engine keeps round bookkeeping and computes end-of-match rating changes.
type Engine struct {
	config RatingConfig
}

// NewEngine creates a scoring engine with the provided config.
func NewEngine(config RatingConfig) *Engine {
	return &Engine{config: config}
}

// InitialRating is the rating assumed for players without history.
func (e *Engine) InitialRating() int {
	return e.config.Initial
}

// RoundDelta is the point delta a grade contributes to the running total.
func (e *Engine) RoundDelta(g grading.Grade) int {
	if g.Points < 0 {
		return 0
	}
	return g.Points
}

// Outcomes compares two final totals. Strictly greater wins; equal is a draw.
func Outcomes(a, b int) (Outcome, Outcome) {
	switch {
	case a > b:
		return Win, Lose
	case a < b:
		return Lose, Win
	default:
		return Draw, Draw
	}
}

// Result is the end-of-match verdict for both players, indexed by slot.
type Result struct {
	Outcomes   [2]Outcome
	Deltas     [2]int
	NewRatings [2]int
	Tiers      [2]Tier
}

// Finalize turns final scores and pre-match ratings into outcomes and rating deltas.
// It is total and deterministic over every input.
func (e *Engine) Finalize(scores, ratings [2]int) Result {
	var res Result
	res.Outcomes[0], res.Outcomes[1] = Outcomes(scores[0], scores[1])

	margin := scores[0] - scores[1]
	if margin < 0 {
		margin = -margin
	}

	for slot := 0; slot < 2; slot++ {
		mine, opp := ratings[slot], ratings[1-slot]
		delta := e.ratingDelta(res.Outcomes[slot], margin, mine, opp)

		updated := mine + delta
		if updated < e.config.Floor && mine >= e.config.Floor {
			updated = e.config.Floor
		}
		res.NewRatings[slot] = updated
		res.Deltas[slot] = updated - mine
		res.Tiers[slot] = TierFor(updated)
	}
	return res
}

func (e *Engine) ratingDelta(outcome Outcome, margin, mine, opp int) int {
	expected := 1 / (1 + math.Pow(10, float64(opp-mine)/400))
	k := float64(e.kFactor(mine))

	switch outcome {
	case Win:
		return max(0, int(math.Round(k*(1-expected)*e.marginFactor(margin))))
	case Lose:
		return min(0, int(math.Round(k*(0-expected)*e.marginFactor(margin))))
	default:
		return int(math.Round(e.config.DrawDamping * k * (0.5 - expected)))
	}
}

func (e *Engine) kFactor(rating int) int {
	if e.config.HighKThreshold > 0 && rating >= e.config.HighKThreshold {
		return e.config.HighK
	}
	return e.config.K
}

// marginFactor grows linearly with the score margin up to 1+MarginBonus.
func (e *Engine) marginFactor(margin int) float64 {
	if e.config.MarginScale <= 0 {
		return 1
	}
	ratio := float64(margin) / float64(e.config.MarginScale)
	if ratio > 1 {
		ratio = 1
	}
	return 1 + e.config.MarginBonus*ratio
}

// TierFor maps a rating to its tier.
func TierFor(rating int) Tier {
	switch {
	case rating >= 2000:
		return TierDiamond
	case rating >= 1500:
		return TierPlatinum
	case rating >= 1000:
		return TierGold
	case rating >= 500:
		return TierSilver
	default:
		return TierBronze
	}
}
