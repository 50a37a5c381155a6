package match

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordMatch(ctx context.Context, rec Record) error {
	return m.Called(ctx, rec).Error(0)
}

func fastRetry() RetryOptions {
	return RetryOptions{Attempts: 5, Base: time.Millisecond}
}

func TestRetryRecorderRecoversFromTransientFailure(t *testing.T) {
	next := &mockRecorder{}
	rec := Record{MatchID: uuid.New()}
	next.On("RecordMatch", mock.Anything, rec).Return(errors.New("connection reset")).Twice()
	next.On("RecordMatch", mock.Anything, rec).Return(nil).Once()

	r := NewRetryRecorder(next, fastRetry(), zerolog.Nop())
	require.NoError(t, r.RecordMatch(context.Background(), rec))
	next.AssertNumberOfCalls(t, "RecordMatch", 3)
}

func TestRetryRecorderGivesUpAfterAttempts(t *testing.T) {
	next := &mockRecorder{}
	next.On("RecordMatch", mock.Anything, mock.Anything).Return(errors.New("database is down"))

	r := NewRetryRecorder(next, fastRetry(), zerolog.Nop())
	err := r.RecordMatch(context.Background(), Record{MatchID: uuid.New()})
	assert.ErrorContains(t, err, "database is down")
	next.AssertNumberOfCalls(t, "RecordMatch", 5)
}

func TestRetryRecorderDoesNotRetryRejectedRecords(t *testing.T) {
	next := &mockRecorder{}
	next.On("RecordMatch", mock.Anything, mock.Anything).Return(fmt.Errorf("archive match: %w", ErrRecordRejected))

	r := NewRetryRecorder(next, fastRetry(), zerolog.Nop())
	err := r.RecordMatch(context.Background(), Record{MatchID: uuid.New()})
	assert.ErrorIs(t, err, ErrRecordRejected)
	next.AssertNumberOfCalls(t, "RecordMatch", 1)
}

func TestRetryRecorderStopsOnCancel(t *testing.T) {
	next := &mockRecorder{}
	next.On("RecordMatch", mock.Anything, mock.Anything).Return(errors.New("timeout"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRetryRecorder(next, RetryOptions{Attempts: 5, Base: time.Hour}, zerolog.Nop())
	err := r.RecordMatch(ctx, Record{MatchID: uuid.New()})
	assert.Error(t, err)
	assert.LessOrEqual(t, len(next.Calls), 1)
}
