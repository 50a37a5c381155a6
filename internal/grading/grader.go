package grading

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-duel/internal/question"
)

const defaultGraderTimeout = 8 * time.Second

// ErrMalformedScore marks a scorer response that could not be used as a 0-10 score.
var ErrMalformedScore = errors.New("malformed essay score")

// EssayScore is the external scorer's judgement of a free-text answer.
type EssayScore struct {
	Raw      float64
	Feedback string
}

// EssayScorer is the AI-assisted collaborator for free-text answers.
type EssayScorer interface {
	Score(ctx context.Context, q question.Question, answer string) (EssayScore, error)
}

// Observer receives one callback per produced grade.
type Observer interface {
	ObserveGrade(kind question.Kind, g Grade, elapsed time.Duration)
}

type Options struct {
	Timeout    time.Duration
	TierPoints TierPoints
	Observer   Observer
}

type rule func(ctx context.Context, q question.Question, answer string) Grade

// rules holds one grading rule per question.Kind. It is built positionally so
// adding a Kind without a rule fails to compile.
type rules struct {
	multiple rule
	short    rule
	essay    rule
}

func (r rules) forKind(k question.Kind) rule {
	switch k {
	case question.KindMultiple:
		return r.multiple
	case question.KindShort:
		return r.short
	case question.KindEssay:
		return r.essay
	}
	return nil
}

// Grader scores sanitized answers against questions.
type Grader struct {
	scorer   EssayScorer
	timeout  time.Duration
	tiers    TierPoints
	observer Observer
	logger   zerolog.Logger
	rules    rules
}

func NewGrader(scorer EssayScorer, opts Options, logger zerolog.Logger) *Grader {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultGraderTimeout
	}
	if opts.TierPoints == nil {
		opts.TierPoints = DefaultTierPoints()
	}
	g := &Grader{
		scorer:   scorer,
		timeout:  opts.Timeout,
		tiers:    opts.TierPoints,
		observer: opts.Observer,
		logger:   logger.With().Str("component", "grader").Logger(),
	}
	g.rules = rules{g.gradeChoice, g.gradeShort, g.gradeEssay}
	return g
}

// Timeout is the upper bound of a single essay scoring call.
func (g *Grader) Timeout() time.Duration {
	return g.timeout
}

// Grade scores answer for q. It never fails: scorer problems become synthesized zero grades.
func (g *Grader) Grade(ctx context.Context, q question.Question, answer string) Grade {
	start := time.Now()

	var grade Grade
	if apply := g.rules.forKind(q.Kind); apply != nil {
		grade = apply(ctx, q, answer)
	} else {
		g.logger.Error().Str("kind", string(q.Kind)).Int64("question_id", q.ID).Msg("no grading rule for question kind")
		grade = synthesized(SynthUnknownKind)
	}

	if g.observer != nil {
		g.observer.ObserveGrade(q.Kind, grade, time.Since(start))
	}
	return grade
}

func (g *Grader) exact(q question.Question, ok bool) Grade {
	if !ok {
		return Grade{Classification: Incorrect}
	}
	return Grade{
		Classification: Correct,
		RawScore:       maxRawScore,
		Points:         Points(maxRawScore, g.tiers.Max(q)),
	}
}

func (g *Grader) gradeChoice(_ context.Context, q question.Question, answer string) Grade {
	return g.exact(q, matchChoice(q, answer))
}

func (g *Grader) gradeShort(_ context.Context, q question.Question, answer string) Grade {
	return g.exact(q, matchShort(q.Answer, answer))
}

func (g *Grader) gradeEssay(ctx context.Context, q question.Question, answer string) Grade {
	if strings.TrimSpace(answer) == "" {
		return synthesized(SynthEmptyAnswer)
	}
	if g.scorer == nil {
		return synthesized(SynthScorerError)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		score EssayScore
		err   error
	}
	// buffered so a late scorer can finish without anyone listening
	resCh := make(chan result, 1)
	go func() {
		score, err := g.scorer.Score(ctx, q, answer)
		resCh <- result{score: score, err: err}
	}()

	select {
	case <-ctx.Done():
		g.logger.Warn().Int64("question_id", q.ID).Dur("timeout", g.timeout).Msg("essay scorer timed out")
		return synthesized(SynthTimeout)
	case res := <-resCh:
		if res.err != nil {
			reason := SynthScorerError
			switch {
			case errors.Is(res.err, context.DeadlineExceeded):
				reason = SynthTimeout
			case errors.Is(res.err, ErrMalformedScore):
				reason = SynthMalformed
			}
			g.logger.Warn().Err(res.err).Int64("question_id", q.ID).Str("reason", reason).Msg("essay scoring failed")
			return synthesized(reason)
		}

		raw, ok := normalizeRaw(res.score.Raw)
		if !ok {
			g.logger.Warn().Float64("raw", res.score.Raw).Int64("question_id", q.ID).Msg("essay scorer returned unusable score")
			return synthesized(SynthMalformed)
		}
		return Grade{
			Classification: Classify(raw),
			RawScore:       raw,
			Points:         Points(raw, g.tiers.Max(q)),
			Feedback:       res.score.Feedback,
		}
	}
}

// normalizeRaw rounds a finite score to an integer within 0-10.
func normalizeRaw(raw float64) (int, bool) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, false
	}
	rounded := int(math.Round(raw))
	if rounded < 0 {
		rounded = 0
	}
	if rounded > maxRawScore {
		rounded = maxRawScore
	}
	return rounded, true
}

var choiceLetters = []string{"A", "B", "C", "D", "E", "F"}

// matchChoice accepts the option letter or the full text of the correct option.
func matchChoice(q question.Question, answer string) bool {
	want := strings.ToUpper(strings.TrimSpace(q.Answer))
	got := strings.ToUpper(strings.TrimSpace(answer))
	if got == "" {
		return false
	}
	if got == want {
		return true
	}
	for i, letter := range choiceLetters {
		if letter == want && i < len(q.Options) {
			return foldSpace(q.Options[i]) == foldSpace(answer)
		}
	}
	return false
}

// matchShort compares case-folded, space-collapsed text against every
// "|"-separated accepted answer.
func matchShort(canonical, answer string) bool {
	got := foldSpace(answer)
	if got == "" {
		return false
	}
	for _, accepted := range strings.Split(canonical, "|") {
		if foldSpace(accepted) == got {
			return true
		}
	}
	return false
}

func foldSpace(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
