package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gokatarajesh/quiz-duel/internal/grading"
	"github.com/gokatarajesh/quiz-duel/internal/match"
	"github.com/gokatarajesh/quiz-duel/internal/match/scoring"
	"github.com/gokatarajesh/quiz-duel/internal/question"
)

// Profile is the tunable shape of a match. Fields absent from the YAML keep
// their defaults.
type Profile struct {
	Category      string                                `yaml:"category"`
	Rounds        []question.Cell                       `yaml:"rounds"`
	Durations     map[question.Difficulty]time.Duration `yaml:"durations"`
	TierPoints    map[question.Difficulty]int           `yaml:"tier_points"`
	ReadyLead     time.Duration                         `yaml:"ready_lead"`
	ReviewPause   time.Duration                         `yaml:"review_pause"`
	GraderTimeout time.Duration                         `yaml:"grader_timeout"`
	Rating        scoring.RatingConfig                  `yaml:"rating"`
}

// DefaultProfile is the five-round profile used when no file is present.
func DefaultProfile() Profile {
	settings := match.DefaultSettings()
	return Profile{
		Rounds:        question.DefaultCells(),
		Durations:     settings.Durations,
		TierPoints:    grading.DefaultTierPoints(),
		ReadyLead:     settings.ReadyLead,
		ReviewPause:   settings.ReviewPause,
		GraderTimeout: 8 * time.Second,
		Rating:        scoring.DefaultRatingConfig(),
	}
}

// LoadProfile reads the profile at path. A missing file yields DefaultProfile.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return profile, nil
		}
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes YAML over the defaults and validates the result.
func ParseProfile(data []byte) (Profile, error) {
	profile := DefaultProfile()
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	if err := profile.Validate(); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// Validate rejects profiles a match could not run with.
func (p Profile) Validate() error {
	if len(p.Rounds) == 0 {
		return errors.New("profile: at least one round is required")
	}
	for i, cell := range p.Rounds {
		if !cell.Kind.Valid() {
			return fmt.Errorf("profile: round %d: unknown kind %q", i, cell.Kind)
		}
		if !cell.Difficulty.Valid() {
			return fmt.Errorf("profile: round %d: unknown difficulty %q", i, cell.Difficulty)
		}
		if cell.Count <= 0 {
			return fmt.Errorf("profile: round %d: count must be positive", i)
		}
	}
	for _, d := range question.Difficulties {
		if p.Durations[d] <= 0 {
			return fmt.Errorf("profile: duration for %s must be positive", d)
		}
		if p.TierPoints[d] <= 0 {
			return fmt.Errorf("profile: tier points for %s must be positive", d)
		}
	}
	for d := range p.Durations {
		if !d.Valid() {
			return fmt.Errorf("profile: unknown difficulty %q in durations", d)
		}
	}
	if p.ReadyLead < 0 || p.ReviewPause < 0 {
		return errors.New("profile: ready_lead and review_pause must not be negative")
	}
	if p.GraderTimeout <= 0 {
		return errors.New("profile: grader_timeout must be positive")
	}
	if p.Rating.Initial <= 0 || p.Rating.K <= 0 {
		return errors.New("profile: rating initial and k must be positive")
	}
	return nil
}

// MatchSettings applies the profile to the orchestrator settings.
func (p Profile) MatchSettings(rt Match) match.Settings {
	settings := match.DefaultSettings()
	settings.Constraints = question.Constraints{Category: p.Category, Cells: p.Rounds}
	settings.Durations = p.Durations
	settings.ReadyLead = p.ReadyLead
	settings.ReviewPause = p.ReviewPause
	if rt.InboxSize > 0 {
		settings.InboxSize = rt.InboxSize
	}
	return settings
}

// Points returns the per-band tier maxima.
func (p Profile) Points() grading.TierPoints {
	return grading.TierPoints(p.TierPoints)
}
