package question

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Service turns the question bank into balanced per-match question sets.
type Service struct {
	store  Store
	cache  CandidateCache
	logger zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

type ServiceOptions struct {
	// Rand seeds tie-breaking among equally used questions. Nil uses a time seed.
	Rand *rand.Rand
}

func NewService(store Store, cache CandidateCache, opts ServiceOptions, logger zerolog.Logger) *Service {
	rng := opts.Rand
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>32|1))
	}
	return &Service{
		store:  store,
		cache:  cache,
		logger: logger.With().Str("component", "question_service").Logger(),
		rng:    rng,
	}
}

// Candidates returns the candidate pool for the constraints, consulting the cache first.
func (s *Service) Candidates(ctx context.Context, constraints Constraints) ([]Question, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, constraints)
		if err != nil {
			s.logger.Warn().Err(err).Msg("candidate cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	pool, err := s.store.FetchCandidates(ctx, constraints)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	if s.cache != nil && len(pool) > 0 {
		if err := s.cache.Set(ctx, constraints, pool); err != nil {
			s.logger.Warn().Err(err).Msg("candidate cache write failed")
		}
	}
	return pool, nil
}

// SelectForMatch returns the ordered question set for a new match.
// Usage counters are not touched here; see MarkUsed.
func (s *Service) SelectForMatch(ctx context.Context, constraints Constraints) ([]Question, error) {
	pool, err := s.Candidates(ctx, constraints)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	selected, err := SelectBalanced(pool, constraints, s.rng)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn().Err(err).
			Str("category", constraints.Category).
			Int("pool", len(pool)).
			Msg("balanced selection failed")
		return nil, err
	}
	return selected, nil
}

// MarkUsed bumps the question's usage counter once it is assigned to a round.
func (s *Service) MarkUsed(ctx context.Context, id int64) error {
	if err := s.store.IncrementUsage(ctx, id); err != nil {
		return fmt.Errorf("increment usage %d: %w", id, err)
	}
	if s.cache != nil {
		if err := s.cache.IncrementUsage(ctx, id); err != nil {
			s.logger.Warn().Err(err).Int64("question_id", id).Msg("cached usage update failed")
		}
	}
	return nil
}
