package match

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gokatarajesh/quiz-duel/internal/grading"
	"github.com/gokatarajesh/quiz-duel/internal/match/scoring"
	"github.com/gokatarajesh/quiz-duel/internal/question"
	ws "github.com/gokatarajesh/quiz-duel/pkg/http/ws"
)

// Phase is the lifecycle state of a match's current round.
type Phase string

const (
	PhasePreparing Phase = "preparing"
	PhaseActive    Phase = "active"
	PhaseResolving Phase = "resolving"
	PhaseRoundDone Phase = "round_done"
	PhaseMatchDone Phase = "match_done"
	PhaseAbandoned Phase = "abandoned"
)

// Match end statuses reported to observers.
const (
	StatusCompleted   = "completed"
	StatusAbandoned   = "abandoned"
	StatusInterrupted = "interrupted"
)

// Player is a non-owning handle on one side of a match.
type Player struct {
	ID           uuid.UUID
	Rating       int
	Disconnected bool
}

// Submission is a player's answer for one round. Immutable once recorded.
type Submission struct {
	Answer     string
	ReceivedAt time.Time
	Verdict    grading.Verdict
}

// Round is one question cycle. Only the owning session mutates it, and never
// after terminal is set.
type Round struct {
	Index       int
	Question    question.Question
	Deadline    time.Time
	Submissions [2]*Submission
	Grades      [2]*grading.Grade
	Deltas      [2]int
	terminal    bool

	// slots with an essay grade in flight
	pending [2]bool
}

func (r *Round) submitted(slot int) bool {
	return r.Submissions[slot] != nil
}

func (r *Round) graded() bool {
	return r.Grades[0] != nil && r.Grades[1] != nil
}

// RoundRecord is the archived view of a finished round.
type RoundRecord struct {
	Index      int
	QuestionID int64
	Kind       question.Kind
	Difficulty question.Difficulty
	Submitted  [2]bool
	Answers    [2]string
	Flagged    [2]bool
	Grades     [2]grading.Grade
	Deltas     [2]int
}

// Record is a completed match handed to persistence hooks.
type Record struct {
	MatchID       uuid.UUID
	Players       [2]uuid.UUID
	Rounds        []RoundRecord
	Scores        [2]int
	Outcomes      [2]scoring.Outcome
	RatingsBefore [2]int
	RatingDeltas  [2]int
	NewRatings    [2]int
	StartedAt     time.Time
	EndedAt       time.Time
}

// QuestionSource supplies balanced question sets and tracks their usage.
type QuestionSource interface {
	SelectForMatch(ctx context.Context, constraints question.Constraints) ([]question.Question, error)
	MarkUsed(ctx context.Context, id int64) error
}

// RatingLookup returns a player's current long-term rating.
type RatingLookup interface {
	CurrentRating(ctx context.Context, playerID uuid.UUID) (int, error)
}

// Recorder receives completed matches. Called only after a match is done.
type Recorder interface {
	RecordMatch(ctx context.Context, rec Record) error
}

// Grader scores a sanitized answer. It must always return a grade.
type Grader interface {
	Grade(ctx context.Context, q question.Question, answer string) grading.Grade
	Timeout() time.Duration
}

// Outbound delivers events to a player's channel. Delivery may fail at any time.
type Outbound interface {
	SendToUser(playerID uuid.UUID, msg ws.Message) error
}

// Observer is notified of match lifecycle events, typically for metrics.
type Observer interface {
	QueueSize(n int)
	QueueWait(d time.Duration)
	LiveMatches(n int)
	MatchStarted()
	MatchFinished(status string)
	RoundResolved(kind question.Kind)
	SubmissionReceived(flagged bool)
	GradeDiscarded()
	PersistFailed()
}

type noopObserver struct{}

func (noopObserver) QueueSize(int) {}
func (noopObserver) QueueWait(time.Duration) {}
func (noopObserver) LiveMatches(int) {}
func (noopObserver) MatchStarted() {}
func (noopObserver) MatchFinished(string) {}
func (noopObserver) RoundResolved(question.Kind) {}
func (noopObserver) SubmissionReceived(bool) {}
func (noopObserver) GradeDiscarded() {}
func (noopObserver) PersistFailed() {}

// SubmitResult acknowledges an accepted submission.
type SubmitResult struct {
	RoundIndex        int
	OpponentSubmitted bool
}
