package queries

import (
	"context"
)

const listCandidateQuestions = `-- name: ListCandidateQuestions :many
SELECT question_id, kind, level, category, prompt, options, answer, explanation, rubric, usage_count
FROM questions
WHERE verified = TRUE
  AND ($1::text = '' OR category = $1::text)
ORDER BY question_id
`

func (q *Queries) ListCandidateQuestions(ctx context.Context, category string) ([]Question, error) {
	rows, err := q.db.Query(ctx, listCandidateQuestions, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Question
	for rows.Next() {
		var i Question
		if err := rows.Scan(
			&i.QuestionID,
			&i.Kind,
			&i.Level,
			&i.Category,
			&i.Prompt,
			&i.Options,
			&i.Answer,
			&i.Explanation,
			&i.Rubric,
			&i.UsageCount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const incrementQuestionUsage = `-- name: IncrementQuestionUsage :one
UPDATE questions
SET usage_count = usage_count + 1
WHERE question_id = $1
RETURNING usage_count
`

func (q *Queries) IncrementQuestionUsage(ctx context.Context, questionID int64) (int64, error) {
	row := q.db.QueryRow(ctx, incrementQuestionUsage, questionID)
	var usageCount int64
	err := row.Scan(&usageCount)
	return usageCount, err
}
