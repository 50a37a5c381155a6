package rating

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-duel/internal/match"
	"github.com/gokatarajesh/quiz-duel/internal/match/scoring"
)

// Entry is one leaderboard row.
type Entry struct {
	PlayerID uuid.UUID
	Rating   int
	Tier     scoring.Tier
	Games    int
	Wins     int
}

// Source is the durable rating table behind the cache.
type Source interface {
	GetRating(ctx context.Context, playerID uuid.UUID) (Entry, bool, error)
	TopRatings(ctx context.Context, limit int) ([]Entry, error)
}

// Options configures the rating store.
type Options struct {
	KeyPrefix     string // default: "rating"
	TopN          int    // default: 100
	InitialRating int    // default: 1000
}

// Store caches player ratings in Redis and keeps the rating leaderboard as a
// sorted set. Misses read through to Source.
type Store struct {
	redis   *redis.Client
	source  Source
	prefix  string
	topN    int
	initial int
	logger  zerolog.Logger
}

// NewStore constructs a rating store. source may be nil.
func NewStore(redis *redis.Client, source Source, opts Options, logger zerolog.Logger) *Store {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "rating"
	}
	if opts.TopN <= 0 {
		opts.TopN = 100
	}
	if opts.InitialRating <= 0 {
		opts.InitialRating = 1000
	}
	return &Store{
		redis:   redis,
		source:  source,
		prefix:  opts.KeyPrefix,
		topN:    opts.TopN,
		initial: opts.InitialRating,
		logger:  logger.With().Str("component", "rating_store").Logger(),
	}
}

// CurrentRating returns the player's rating, or the initial rating for
// players without history.
func (s *Store) CurrentRating(ctx context.Context, playerID uuid.UUID) (int, error) {
	raw, err := s.redis.HGet(ctx, s.metaKey(playerID), "rating").Result()
	switch {
	case err == nil:
		rating, convErr := strconv.Atoi(raw)
		if convErr == nil {
			return rating, nil
		}
		s.logger.Warn().Str("player_id", playerID.String()).Str("raw", raw).Msg("corrupt cached rating")
	case !errors.Is(err, redis.Nil):
		return 0, fmt.Errorf("read cached rating: %w", err)
	}

	if s.source == nil {
		return s.initial, nil
	}
	entry, found, err := s.source.GetRating(ctx, playerID)
	if err != nil {
		return 0, fmt.Errorf("read rating: %w", err)
	}
	if !found {
		return s.initial, nil
	}

	if err := s.write(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("player_id", playerID.String()).Msg("rating cache fill failed")
	}
	return entry.Rating, nil
}

// RecordMatch applies a completed match to both players' cached ratings.
func (s *Store) RecordMatch(ctx context.Context, rec match.Record) error {
	pipe := s.redis.TxPipeline()
	for slot, playerID := range rec.Players {
		metaKey := s.metaKey(playerID)
		pipe.HSet(ctx, metaKey, map[string]interface{}{
			"rating": rec.NewRatings[slot],
			"tier":   string(scoring.TierFor(rec.NewRatings[slot])),
		})
		pipe.HIncrBy(ctx, metaKey, "games", 1)
		if rec.Outcomes[slot] == scoring.Win {
			pipe.HIncrBy(ctx, metaKey, "wins", 1)
		}
		pipe.ZAdd(ctx, s.leaderboardKey(), redis.Z{Score: float64(rec.NewRatings[slot]), Member: playerID.String()})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update ratings for match %s: %w", rec.MatchID, err)
	}
	return nil
}

// Top returns the highest rated players, best first.
func (s *Store) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	results, err := s.redis.ZRevRangeWithScores(ctx, s.leaderboardKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for _, z := range results {
		member, _ := z.Member.(string)
		playerID, err := uuid.Parse(member)
		if err != nil {
			s.logger.Warn().Str("member", member).Msg("skipping malformed leaderboard member")
			continue
		}
		entry, err := s.readMeta(ctx, playerID)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard metadata")
			continue
		}
		entry.Rating = int(z.Score)
		entry.Tier = scoring.TierFor(entry.Rating)
		entries = append(entries, entry)
	}
	return entries, nil
}

// Warm loads the top of the durable rating table into the cache.
func (s *Store) Warm(ctx context.Context) (int, error) {
	if s.source == nil {
		return 0, nil
	}
	entries, err := s.source.TopRatings(ctx, s.topN)
	if err != nil {
		return 0, fmt.Errorf("load top ratings: %w", err)
	}
	for _, e := range entries {
		if err := s.write(ctx, e); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

func (s *Store) write(ctx context.Context, e Entry) error {
	metaKey := s.metaKey(e.PlayerID)
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, metaKey, map[string]interface{}{
		"rating": e.Rating,
		"tier":   string(scoring.TierFor(e.Rating)),
		"games":  e.Games,
		"wins":   e.Wins,
	})
	pipe.ZAdd(ctx, s.leaderboardKey(), redis.Z{Score: float64(e.Rating), Member: e.PlayerID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache rating %s: %w", e.PlayerID, err)
	}
	return nil
}

func (s *Store) readMeta(ctx context.Context, playerID uuid.UUID) (Entry, error) {
	data, err := s.redis.HGetAll(ctx, s.metaKey(playerID)).Result()
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		PlayerID: playerID,
		Games:    parseInt(data["games"]),
		Wins:     parseInt(data["wins"]),
	}, nil
}

func (s *Store) leaderboardKey() string {
	return s.prefix + ":leaderboard"
}

func (s *Store) metaKey(playerID uuid.UUID) string {
	return fmt.Sprintf("%s:meta:%s", s.prefix, playerID)
}

func parseInt(val string) int {
	if val == "" {
		return 0
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return i
}
