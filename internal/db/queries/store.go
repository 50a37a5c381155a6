package queries

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store adds transactional operations on top of Queries.
type Store struct {
	*Queries
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Queries: New(pool), pool: pool}
}

// ExecTx runs fn inside a transaction, rolling back when it fails.
func (s *Store) ExecTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(s.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

// ArchiveMatchParams is everything written for one completed match.
type ArchiveMatchParams struct {
	Match   InsertMatchParams
	Players []InsertMatchPlayerParams
	Rounds  []InsertMatchRoundParams
	Ratings []UpsertPlayerRatingParams
}

// ArchiveMatch writes a completed match and the players' new ratings atomically.
func (s *Store) ArchiveMatch(ctx context.Context, arg ArchiveMatchParams) error {
	return s.ExecTx(ctx, func(q *Queries) error {
		if err := q.InsertMatch(ctx, arg.Match); err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
		for _, p := range arg.Players {
			if err := q.InsertMatchPlayer(ctx, p); err != nil {
				return fmt.Errorf("insert match player: %w", err)
			}
		}
		for _, r := range arg.Rounds {
			if err := q.InsertMatchRound(ctx, r); err != nil {
				return fmt.Errorf("insert match round: %w", err)
			}
		}
		for _, r := range arg.Ratings {
			if err := q.UpsertPlayerRating(ctx, r); err != nil {
				return fmt.Errorf("upsert player rating: %w", err)
			}
		}
		return nil
	})
}
