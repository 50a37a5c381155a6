package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gokatarajesh/quiz-duel/internal/db/queries"
	"github.com/gokatarajesh/quiz-duel/internal/match/scoring"
	"github.com/gokatarajesh/quiz-duel/internal/rating"
)

type ratingStore interface {
	GetPlayerRating(ctx context.Context, playerID pgtype.UUID) (queries.PlayerRating, error)
	TopPlayerRatings(ctx context.Context, limit int32) ([]queries.PlayerRating, error)
}

// RatingRepository reads durable player ratings.
type RatingRepository struct {
	store ratingStore
}

var _ rating.Source = (*RatingRepository)(nil)

func NewRatingRepository(store ratingStore) *RatingRepository {
	return &RatingRepository{store: store}
}

func (r *RatingRepository) GetRating(ctx context.Context, playerID uuid.UUID) (rating.Entry, bool, error) {
	row, err := r.store.GetPlayerRating(ctx, toPGUUID(playerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rating.Entry{}, false, nil
		}
		return rating.Entry{}, false, fmt.Errorf("get player rating: %w", err)
	}
	return toEntry(row), true, nil
}

func (r *RatingRepository) TopRatings(ctx context.Context, limit int) ([]rating.Entry, error) {
	rows, err := r.store.TopPlayerRatings(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("top player ratings: %w", err)
	}
	out := make([]rating.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, toEntry(row))
	}
	return out, nil
}

func toEntry(row queries.PlayerRating) rating.Entry {
	return rating.Entry{
		PlayerID: fromPGUUID(row.PlayerID),
		Rating:   int(row.Rating),
		Tier:     scoring.TierFor(int(row.Rating)),
		Games:    int(row.Games),
		Wins:     int(row.Wins),
	}
}
