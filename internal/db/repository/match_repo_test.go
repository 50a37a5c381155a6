package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/quiz-duel/internal/db/queries"
	"github.com/gokatarajesh/quiz-duel/internal/grading"
	"github.com/gokatarajesh/quiz-duel/internal/match"
	"github.com/gokatarajesh/quiz-duel/internal/match/scoring"
	"github.com/gokatarajesh/quiz-duel/internal/question"
)

type mockMatchStore struct {
	mock.Mock
}

func (m *mockMatchStore) ArchiveMatch(ctx context.Context, arg queries.ArchiveMatchParams) error {
	return m.Called(ctx, arg).Error(0)
}

func sampleRecord() match.Record {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return match.Record{
		MatchID:  uuid.New(),
		Players:  [2]uuid.UUID{uuid.New(), uuid.New()},
		Scores:   [2]int{10, 0},
		Outcomes: [2]scoring.Outcome{scoring.Win, scoring.Lose},
		Rounds: []match.RoundRecord{{
			Index:      0,
			QuestionID: 11,
			Kind:       question.KindMultiple,
			Difficulty: question.DifficultyEasy,
			Submitted:  [2]bool{true, false},
			Answers:    [2]string{"B", ""},
			Grades: [2]grading.Grade{
				{Classification: grading.Correct, RawScore: 10, Points: 10},
				grading.NonSubmission(),
			},
			Deltas: [2]int{10, 0},
		}},
		RatingsBefore: [2]int{1000, 1000},
		RatingDeltas:  [2]int{16, -16},
		NewRatings:    [2]int{1016, 984},
		StartedAt:     started,
		EndedAt:       started.Add(2 * time.Minute),
	}
}

func TestMatchRepository_RecordMatch(t *testing.T) {
	store := new(mockMatchStore)
	repo := NewMatchRepository(store)
	rec := sampleRecord()

	var got queries.ArchiveMatchParams
	store.On("ArchiveMatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(queries.ArchiveMatchParams) }).
		Return(nil)

	require.NoError(t, repo.RecordMatch(context.Background(), rec))
	store.AssertExpectations(t)

	assert.Equal(t, pgUUID(rec.MatchID), got.Match.MatchID)
	assert.Equal(t, "completed", got.Match.Status)
	assert.Equal(t, int32(1), got.Match.TotalRounds)
	assert.Equal(t, rec.EndedAt, got.Match.EndedAt.Time)

	require.Len(t, got.Players, 2)
	assert.Equal(t, "win", got.Players[0].Outcome)
	assert.Equal(t, int32(16), got.Players[0].RatingDelta)
	assert.Equal(t, int32(984), got.Players[1].RatingAfter)

	require.Len(t, got.Rounds, 2)
	assert.Equal(t, int16(1), got.Rounds[1].Slot)
	assert.False(t, got.Rounds[1].Submitted)
	assert.Equal(t, "no_submission", got.Rounds[1].SynthReason.String)
	assert.False(t, got.Rounds[0].SynthReason.Valid)

	require.Len(t, got.Ratings, 2)
	assert.Equal(t, int32(1), got.Ratings[0].Wins)
	assert.Equal(t, int32(0), got.Ratings[1].Wins)
	assert.Equal(t, pgUUID(rec.Players[1]), got.Ratings[1].PlayerID)
}

func TestMatchRepository_DuplicateIsRejected(t *testing.T) {
	store := new(mockMatchStore)
	repo := NewMatchRepository(store)
	dup := fmt.Errorf("insert match: %w", &pgconn.PgError{Code: "23505"})
	store.On("ArchiveMatch", mock.Anything, mock.Anything).Return(dup)

	err := repo.RecordMatch(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, match.ErrRecordRejected)
}

func TestMatchRepository_TransientErrorIsWrapped(t *testing.T) {
	store := new(mockMatchStore)
	repo := NewMatchRepository(store)
	store.On("ArchiveMatch", mock.Anything, mock.Anything).Return(errors.New("broken pipe"))

	err := repo.RecordMatch(context.Background(), sampleRecord())
	assert.ErrorContains(t, err, "broken pipe")
	assert.NotErrorIs(t, err, match.ErrRecordRejected)
}
