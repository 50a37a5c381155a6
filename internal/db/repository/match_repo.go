package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gokatarajesh/quiz-duel/internal/db/queries"
	"github.com/gokatarajesh/quiz-duel/internal/match"
	"github.com/gokatarajesh/quiz-duel/internal/match/scoring"
)

const pgUniqueViolation = "23505"

type matchStore interface {
	ArchiveMatch(ctx context.Context, arg queries.ArchiveMatchParams) error
}

// MatchRepository archives completed matches.
type MatchRepository struct {
	store matchStore
}

var _ match.Recorder = (*MatchRepository)(nil)

// NewMatchRepository constructs a new match repository.
func NewMatchRepository(store matchStore) *MatchRepository {
	return &MatchRepository{store: store}
}

// RecordMatch writes the match, its rounds and both players' new ratings in
// one transaction. A match that is already archived is rejected.
func (r *MatchRepository) RecordMatch(ctx context.Context, rec match.Record) error {
	if err := r.store.ArchiveMatch(ctx, archiveParams(rec)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("archive match %s: %w", rec.MatchID, match.ErrRecordRejected)
		}
		return fmt.Errorf("archive match %s: %w", rec.MatchID, err)
	}
	return nil
}

func archiveParams(rec match.Record) queries.ArchiveMatchParams {
	matchID := toPGUUID(rec.MatchID)
	params := queries.ArchiveMatchParams{
		Match: queries.InsertMatchParams{
			MatchID:     matchID,
			Status:      match.StatusCompleted,
			TotalRounds: int32(len(rec.Rounds)),
			StartedAt:   toTimestamptz(rec.StartedAt),
			EndedAt:     toTimestamptz(rec.EndedAt),
		},
	}

	for slot, playerID := range rec.Players {
		params.Players = append(params.Players, queries.InsertMatchPlayerParams{
			MatchID:      matchID,
			PlayerID:     toPGUUID(playerID),
			Slot:         int16(slot),
			Score:        int32(rec.Scores[slot]),
			Outcome:      string(rec.Outcomes[slot]),
			RatingBefore: int32(rec.RatingsBefore[slot]),
			RatingDelta:  int32(rec.RatingDeltas[slot]),
			RatingAfter:  int32(rec.NewRatings[slot]),
		})

		var wins int32
		if rec.Outcomes[slot] == scoring.Win {
			wins = 1
		}
		params.Ratings = append(params.Ratings, queries.UpsertPlayerRatingParams{
			PlayerID: toPGUUID(playerID),
			Rating:   int32(rec.NewRatings[slot]),
			Wins:     wins,
		})
	}

	for _, round := range rec.Rounds {
		for slot := range rec.Players {
			grade := round.Grades[slot]
			params.Rounds = append(params.Rounds, queries.InsertMatchRoundParams{
				MatchID:        matchID,
				RoundIndex:     int16(round.Index),
				QuestionID:     round.QuestionID,
				Slot:           int16(slot),
				Submitted:      round.Submitted[slot],
				Answer:         round.Answers[slot],
				Flagged:        round.Flagged[slot],
				Classification: string(grade.Classification),
				RawScore:       int32(grade.RawScore),
				Points:         int32(grade.Points),
				SynthReason:    toText(grade.SynthReason),
			})
		}
	}
	return params
}
