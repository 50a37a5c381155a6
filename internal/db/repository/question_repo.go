package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gokatarajesh/quiz-duel/internal/db/queries"
	"github.com/gokatarajesh/quiz-duel/internal/question"
)

type questionStore interface {
	ListCandidateQuestions(ctx context.Context, category string) ([]queries.Question, error)
	IncrementQuestionUsage(ctx context.Context, questionID int64) (int64, error)
}

// QuestionRepository serves the question bank from Postgres.
type QuestionRepository struct {
	store questionStore
}

var _ question.Store = (*QuestionRepository)(nil)

func NewQuestionRepository(store questionStore) *QuestionRepository {
	return &QuestionRepository{store: store}
}

// FetchCandidates returns every verified question in the constraint's category.
// Rows with an unknown kind are skipped.
func (r *QuestionRepository) FetchCandidates(ctx context.Context, constraints question.Constraints) ([]question.Question, error) {
	rows, err := r.store.ListCandidateQuestions(ctx, constraints.Category)
	if err != nil {
		return nil, fmt.Errorf("list candidate questions: %w", err)
	}

	out := make([]question.Question, 0, len(rows))
	for _, row := range rows {
		kind := question.Kind(row.Kind)
		if !kind.Valid() {
			continue
		}
		out = append(out, question.Question{
			ID:          row.QuestionID,
			Kind:        kind,
			Level:       int(row.Level),
			Category:    row.Category,
			Prompt:      row.Prompt,
			Options:     row.Options,
			Answer:      row.Answer,
			Explanation: row.Explanation,
			Rubric:      row.Rubric,
			UsageCount:  row.UsageCount,
		})
	}
	return out, nil
}

// IncrementUsage bumps the usage counter in a single UPDATE so concurrent
// matches never lose an increment.
func (r *QuestionRepository) IncrementUsage(ctx context.Context, id int64) error {
	if _, err := r.store.IncrementQuestionUsage(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("question %d not found", id)
		}
		return fmt.Errorf("increment usage of question %d: %w", id, err)
	}
	return nil
}
