package grading

import (
	"math"

	"github.com/gokatarajesh/quiz-duel/internal/question"
)

// Classification is the correctness band of a Grade.
type Classification string

const (
	Correct   Classification = "correct"
	Partial   Classification = "partial"
	Incorrect Classification = "incorrect"
)

// Reasons a Grade was synthesized instead of produced by a grader.
const (
	SynthNoSubmission = "no_submission"
	SynthTimeout      = "timeout"
	SynthMalformed    = "malformed"
	SynthScorerError  = "scorer_error"
	SynthUnknownKind  = "unknown_kind"
	SynthEmptyAnswer  = "empty_answer"
)

const maxRawScore = 10

// Grade is the scored outcome of one submission.
type Grade struct {
	Classification Classification `json:"classification"`
	RawScore       int            `json:"raw_score"`
	Points         int            `json:"points"`
	Feedback       string         `json:"feedback,omitempty"`
	Synthesized    bool           `json:"synthesized,omitempty"`
	SynthReason    string         `json:"synth_reason,omitempty"`
}

// Correct reports whether the grade counts as a correct answer.
func (g Grade) Correct() bool {
	return g.Classification == Correct
}

// Classify maps a 0-10 raw score onto a correctness band.
func Classify(raw int) Classification {
	switch {
	case raw >= 7:
		return Correct
	case raw >= 3:
		return Partial
	default:
		return Incorrect
	}
}

// Points scales a 0-10 raw score to the tier maximum. A raw score of 0 is always 0.
func Points(raw, tierMax int) int {
	if raw <= 0 || tierMax <= 0 {
		return 0
	}
	if raw > maxRawScore {
		raw = maxRawScore
	}
	return int(math.Round(float64(raw) / maxRawScore * float64(tierMax)))
}

// NonSubmission is the defaulted grade for a player who did not answer in time.
func NonSubmission() Grade {
	return synthesized(SynthNoSubmission)
}

func synthesized(reason string) Grade {
	return Grade{
		Classification: Incorrect,
		Synthesized:    true,
		SynthReason:    reason,
	}
}

// TierPoints holds the maximum round points per difficulty band.
type TierPoints map[question.Difficulty]int

// DefaultTierPoints returns easy 10, medium 20, hard 30.
func DefaultTierPoints() TierPoints {
	return TierPoints{
		question.DifficultyEasy:   10,
		question.DifficultyMedium: 20,
		question.DifficultyHard:   30,
	}
}

// Max returns the tier maximum for a question.
func (t TierPoints) Max(q question.Question) int {
	return t[q.Difficulty()]
}

// TimedOut is the grade synthesized when a scorer result never arrived.
func TimedOut() Grade {
	return synthesized(SynthTimeout)
}
