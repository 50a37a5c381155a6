package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-duel/internal/grading"
	"github.com/gokatarajesh/quiz-duel/internal/question"
)

const maxResponseBytes = 64 << 10

// Config holds connection details for the essay scoring service.
type Config struct {
	ScorerURL string
	ScorerKey string
	Model     string
	Timeout   time.Duration
}

// Scorer implements grading.EssayScorer over HTTP.
type Scorer struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
	scoreURL   string
}

var _ grading.EssayScorer = (*Scorer)(nil)

func NewScorer(cfg Config, logger zerolog.Logger) *Scorer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	base := strings.TrimSuffix(cfg.ScorerURL, "/")

	return &Scorer{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config:   cfg,
		logger:   logger.With().Str("component", "ai_scorer").Logger(),
		scoreURL: base + "/score",
	}
}

// Score asks the scoring service to grade a sanitized essay answer from 0 to 10.
func (s *Scorer) Score(ctx context.Context, q question.Question, answer string) (grading.EssayScore, error) {
	if s.config.ScorerURL == "" {
		return grading.EssayScore{}, fmt.Errorf("scorer endpoint not configured")
	}

	prompt, err := grading.BuildPrompt(q, answer)
	if err != nil {
		return grading.EssayScore{}, err
	}

	body, err := json.Marshal(scoreRequest{
		QuestionID: q.ID,
		Model:      s.config.Model,
		Prompt:     prompt,
		MaxScore:   10,
	})
	if err != nil {
		return grading.EssayScore{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.scoreURL, bytes.NewReader(body))
	if err != nil {
		return grading.EssayScore{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.config.ScorerKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.config.ScorerKey)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return grading.EssayScore{}, fmt.Errorf("call scorer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return grading.EssayScore{}, fmt.Errorf("scorer returned status %d", resp.StatusCode)
	}

	var scoreResp scoreResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&scoreResp); err != nil {
		return grading.EssayScore{}, fmt.Errorf("%w: decode scorer payload: %v", grading.ErrMalformedScore, err)
	}
	if scoreResp.Score == nil {
		return grading.EssayScore{}, fmt.Errorf("%w: score missing", grading.ErrMalformedScore)
	}

	s.logger.Debug().Int64("question_id", q.ID).Float64("score", *scoreResp.Score).Msg("essay scored")
	return grading.EssayScore{Raw: *scoreResp.Score, Feedback: scoreResp.Feedback}, nil
}

type scoreRequest struct {
	QuestionID int64  `json:"question_id"`
	Model      string `json:"model,omitempty"`
	Prompt     string `json:"prompt"`
	MaxScore   int    `json:"max_score"`
}

type scoreResponse struct {
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
}
