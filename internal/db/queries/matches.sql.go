package queries

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const insertMatch = `-- name: InsertMatch :exec
INSERT INTO matches (match_id, status, total_rounds, started_at, ended_at)
VALUES ($1, $2, $3, $4, $5)
`

type InsertMatchParams struct {
	MatchID     pgtype.UUID        `json:"match_id"`
	Status      string             `json:"status"`
	TotalRounds int32              `json:"total_rounds"`
	StartedAt   pgtype.Timestamptz `json:"started_at"`
	EndedAt     pgtype.Timestamptz `json:"ended_at"`
}

func (q *Queries) InsertMatch(ctx context.Context, arg InsertMatchParams) error {
	_, err := q.db.Exec(ctx, insertMatch,
		arg.MatchID,
		arg.Status,
		arg.TotalRounds,
		arg.StartedAt,
		arg.EndedAt,
	)
	return err
}

const insertMatchPlayer = `-- name: InsertMatchPlayer :exec
INSERT INTO match_players (match_id, player_id, slot, score, outcome, rating_before, rating_delta, rating_after)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

type InsertMatchPlayerParams struct {
	MatchID      pgtype.UUID `json:"match_id"`
	PlayerID     pgtype.UUID `json:"player_id"`
	Slot         int16       `json:"slot"`
	Score        int32       `json:"score"`
	Outcome      string      `json:"outcome"`
	RatingBefore int32       `json:"rating_before"`
	RatingDelta  int32       `json:"rating_delta"`
	RatingAfter  int32       `json:"rating_after"`
}

func (q *Queries) InsertMatchPlayer(ctx context.Context, arg InsertMatchPlayerParams) error {
	_, err := q.db.Exec(ctx, insertMatchPlayer,
		arg.MatchID,
		arg.PlayerID,
		arg.Slot,
		arg.Score,
		arg.Outcome,
		arg.RatingBefore,
		arg.RatingDelta,
		arg.RatingAfter,
	)
	return err
}

const insertMatchRound = `-- name: InsertMatchRound :exec
INSERT INTO match_rounds (match_id, round_index, question_id, slot, submitted, answer, flagged, classification, raw_score, points, synth_reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

type InsertMatchRoundParams struct {
	MatchID        pgtype.UUID `json:"match_id"`
	RoundIndex     int16       `json:"round_index"`
	QuestionID     int64       `json:"question_id"`
	Slot           int16       `json:"slot"`
	Submitted      bool        `json:"submitted"`
	Answer         string      `json:"answer"`
	Flagged        bool        `json:"flagged"`
	Classification string      `json:"classification"`
	RawScore       int32       `json:"raw_score"`
	Points         int32       `json:"points"`
	SynthReason    pgtype.Text `json:"synth_reason"`
}

func (q *Queries) InsertMatchRound(ctx context.Context, arg InsertMatchRoundParams) error {
	_, err := q.db.Exec(ctx, insertMatchRound,
		arg.MatchID,
		arg.RoundIndex,
		arg.QuestionID,
		arg.Slot,
		arg.Submitted,
		arg.Answer,
		arg.Flagged,
		arg.Classification,
		arg.RawScore,
		arg.Points,
		arg.SynthReason,
	)
	return err
}
