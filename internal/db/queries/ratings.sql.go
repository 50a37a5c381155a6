package queries

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getPlayerRating = `-- name: GetPlayerRating :one
SELECT player_id, rating, games, wins, updated_at
FROM player_ratings
WHERE player_id = $1
`

func (q *Queries) GetPlayerRating(ctx context.Context, playerID pgtype.UUID) (PlayerRating, error) {
	row := q.db.QueryRow(ctx, getPlayerRating, playerID)
	var i PlayerRating
	err := row.Scan(
		&i.PlayerID,
		&i.Rating,
		&i.Games,
		&i.Wins,
		&i.UpdatedAt,
	)
	return i, err
}

const topPlayerRatings = `-- name: TopPlayerRatings :many
SELECT player_id, rating, games, wins, updated_at
FROM player_ratings
ORDER BY rating DESC, updated_at ASC
LIMIT $1
`

func (q *Queries) TopPlayerRatings(ctx context.Context, limit int32) ([]PlayerRating, error) {
	rows, err := q.db.Query(ctx, topPlayerRatings, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PlayerRating
	for rows.Next() {
		var i PlayerRating
		if err := rows.Scan(
			&i.PlayerID,
			&i.Rating,
			&i.Games,
			&i.Wins,
			&i.UpdatedAt,
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

const upsertPlayerRating = `-- name: UpsertPlayerRating :exec
INSERT INTO player_ratings (player_id, rating, games, wins, updated_at)
VALUES ($1, $2, 1, $3, NOW())
ON CONFLICT (player_id) DO UPDATE
SET rating = EXCLUDED.rating,
    games = player_ratings.games + 1,
    wins = player_ratings.wins + EXCLUDED.wins,
    updated_at = NOW()
`

type UpsertPlayerRatingParams struct {
	PlayerID pgtype.UUID `json:"player_id"`
	Rating   int32       `json:"rating"`
	Wins     int32       `json:"wins"`
}

func (q *Queries) UpsertPlayerRating(ctx context.Context, arg UpsertPlayerRatingParams) error {
	_, err := q.db.Exec(ctx, upsertPlayerRating, arg.PlayerID, arg.Rating, arg.Wins)
	return err
}
