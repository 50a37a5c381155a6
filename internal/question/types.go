package question

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed set of question formats.
type Kind string

const (
	KindMultiple Kind = "multiple"
	KindShort    Kind = "short"
	KindEssay    Kind = "essay"
)

// Kinds lists every Kind in a stable order.
var Kinds = []Kind{KindMultiple, KindShort, KindEssay}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindMultiple, KindShort, KindEssay:
		return true
	}
	return false
}

// FreeText reports whether answers of this kind need AI-assisted scoring.
func (k Kind) FreeText() bool {
	return k == KindEssay
}

// Difficulty is the band a question's numeric level falls into.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists every band from easiest to hardest.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Valid reports whether d is a known band.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// BandForLevel maps a 1-5 level to its band. Unknown levels count as medium.
func BandForLevel(level int) Difficulty {
	switch {
	case level == 1 || level == 2:
		return DifficultyEasy
	case level == 4 || level == 5:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// Question is a single quiz item as stored in the question bank.
type Question struct {
	ID          int64    `json:"id"`
	Kind        Kind     `json:"kind"`
	Level       int      `json:"level"`
	Category    string   `json:"category"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options,omitempty"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
	Rubric      string   `json:"rubric,omitempty"`
	UsageCount  int64    `json:"usage_count"`
}

// Difficulty returns the band derived from the question's level.
func (q Question) Difficulty() Difficulty {
	return BandForLevel(q.Level)
}

// Cell is one (difficulty x kind) slot requirement of a balanced set.
type Cell struct {
	Difficulty Difficulty `yaml:"difficulty" json:"difficulty"`
	Kind       Kind       `yaml:"kind" json:"kind"`
	Count      int        `yaml:"count" json:"count"`
}

func (c Cell) matches(q Question) bool {
	return q.Kind == c.Kind && q.Difficulty() == c.Difficulty
}

// Constraints describe the balanced set a match needs.
type Constraints struct {
	Category string
	Cells    []Cell
}

// Total is the number of questions the constraints require.
func (c Constraints) Total() int {
	total := 0
	for _, cell := range c.Cells {
		total += cell.Count
	}
	return total
}

// Key is a stable identifier for the constraint set, used for caching.
func (c Constraints) Key() string {
	parts := make([]string, 0, len(c.Cells))
	for _, cell := range c.Cells {
		parts = append(parts, fmt.Sprintf("%s.%s.%d", cell.Difficulty, cell.Kind, cell.Count))
	}
	category := c.Category
	if category == "" {
		category = "any"
	}
	return category + ":" + strings.Join(parts, "|")
}

// DefaultCells is the five-round balanced profile.
func DefaultCells() []Cell {
	return []Cell{
		{Difficulty: DifficultyEasy, Kind: KindMultiple, Count: 1},
		{Difficulty: DifficultyEasy, Kind: KindShort, Count: 1},
		{Difficulty: DifficultyMedium, Kind: KindMultiple, Count: 1},
		{Difficulty: DifficultyMedium, Kind: KindShort, Count: 1},
		{Difficulty: DifficultyHard, Kind: KindEssay, Count: 1},
	}
}

// ErrInsufficientQuestions is returned when the pool cannot satisfy the requested set size.
var ErrInsufficientQuestions = errors.New("insufficient questions for balanced selection")

// Store is the external question bank.
type Store interface {
	FetchCandidates(ctx context.Context, constraints Constraints) ([]Question, error)
	IncrementUsage(ctx context.Context, id int64) error
}

// CandidateCache memoizes candidate pools between matches.
type CandidateCache interface {
	Get(ctx context.Context, constraints Constraints) ([]Question, bool, error)
	Set(ctx context.Context, constraints Constraints, candidates []Question) error
	IncrementUsage(ctx context.Context, id int64) error
}
