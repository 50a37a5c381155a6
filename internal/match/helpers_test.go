package match

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/quiz-duel/internal/grading"
	"github.com/gokatarajesh/quiz-duel/internal/match/queue"
	"github.com/gokatarajesh/quiz-duel/internal/match/scoring"
	"github.com/gokatarajesh/quiz-duel/internal/question"
	ws "github.com/gokatarajesh/quiz-duel/pkg/http/ws"
)

const waitFor = 2 * time.Second

// recordingOutbound captures every event per player.
type recordingOutbound struct {
	mu     sync.Mutex
	events map[uuid.UUID][]ws.Message
}

func newRecordingOutbound() *recordingOutbound {
	return &recordingOutbound{events: make(map[uuid.UUID][]ws.Message)}
}

func (r *recordingOutbound) SendToUser(playerID uuid.UUID, msg ws.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[playerID] = append(r.events[playerID], msg)
	return nil
}

func (r *recordingOutbound) ofType(playerID uuid.UUID, msgType string) []ws.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ws.Message
	for _, msg := range r.events[playerID] {
		if msg.Type == msgType {
			out = append(out, msg)
		}
	}
	return out
}

// await blocks until the player has received n events of msgType and returns the nth.
func (r *recordingOutbound) await(t *testing.T, playerID uuid.UUID, msgType string, n int) ws.Message {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(r.ofType(playerID, msgType)) >= n
	}, waitFor, 2*time.Millisecond, "waiting for %s #%d", msgType, n)
	return r.ofType(playerID, msgType)[n-1]
}

func decode[T any](t *testing.T, msg ws.Message) T {
	t.Helper()
	var payload T
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	return payload
}

type stubQuestions struct {
	mu        sync.Mutex
	questions []question.Question
	err       error
	used      []int64
}

func (s *stubQuestions) SelectForMatch(ctx context.Context, c question.Constraints) ([]question.Question, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]question.Question(nil), s.questions...), nil
}

func (s *stubQuestions) MarkUsed(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used = append(s.used, id)
	return nil
}

func (s *stubQuestions) usedIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.used...)
}

type fixedRatings map[uuid.UUID]int

func (f fixedRatings) CurrentRating(ctx context.Context, playerID uuid.UUID) (int, error) {
	if r, ok := f[playerID]; ok {
		return r, nil
	}
	return 1000, nil
}

type capturingRecorder struct {
	mu      sync.Mutex
	records []Record
}

func (c *capturingRecorder) RecordMatch(ctx context.Context, rec Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

func (c *capturingRecorder) all() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Record(nil), c.records...)
}

// gatedRatingBook stores new ratings only once its gate opens, like a
// rating hook stuck behind a slow archive write.
type gatedRatingBook struct {
	gate chan struct{}
	once sync.Once

	mu      sync.Mutex
	ratings map[uuid.UUID]int
}

func newGatedRatingBook() *gatedRatingBook {
	return &gatedRatingBook{gate: make(chan struct{}), ratings: make(map[uuid.UUID]int)}
}

func (g *gatedRatingBook) open() { g.once.Do(func() { close(g.gate) }) }

func (g *gatedRatingBook) CurrentRating(ctx context.Context, playerID uuid.UUID) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.ratings[playerID]; ok {
		return r, nil
	}
	return 1000, nil
}

func (g *gatedRatingBook) RecordMatch(ctx context.Context, rec Record) error {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for slot, playerID := range rec.Players {
		g.ratings[playerID] = rec.NewRatings[slot]
	}
	return nil
}

type countingObserver struct {
	noopObserver
	mu        sync.Mutex
	finished  map[string]int
	discarded atomic.Int32
	flagged   atomic.Int32
	queueWait atomic.Int64
}

func (c *countingObserver) QueueWait(d time.Duration) { c.queueWait.Store(int64(d)) }

func (c *countingObserver) MatchFinished(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished == nil {
		c.finished = make(map[string]int)
	}
	c.finished[status]++
}

func (c *countingObserver) finishedCount(status string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished[status]
}

func (c *countingObserver) GradeDiscarded() { c.discarded.Add(1) }

func (c *countingObserver) SubmissionReceived(flagged bool) {
	if flagged {
		c.flagged.Add(1)
	}
}

// scorerFunc adapts a function to grading.EssayScorer.
type scorerFunc func(ctx context.Context, q question.Question, answer string) (grading.EssayScore, error)

func (f scorerFunc) Score(ctx context.Context, q question.Question, answer string) (grading.EssayScore, error) {
	return f(ctx, q, answer)
}

// keywordScorer awards 7 when the answer mentions the rubric keyword and 1 otherwise.
var keywordScorer = scorerFunc(func(ctx context.Context, q question.Question, answer string) (grading.EssayScore, error) {
	if strings.Contains(strings.ToLower(answer), q.Rubric) {
		return grading.EssayScore{Raw: 7, Feedback: "covers the key idea"}, nil
	}
	return grading.EssayScore{Raw: 1, Feedback: "misses the key idea"}, nil
})

func fiveRounds() []question.Question {
	return []question.Question{
		{ID: 1, Kind: question.KindMultiple, Level: 1, Prompt: "Which planet is red?", Options: []string{"Venus", "Mars", "Jupiter", "Saturn"}, Answer: "B", Explanation: "Iron oxide."},
		{ID: 2, Kind: question.KindShort, Level: 2, Prompt: "Capital of France?", Answer: "Paris"},
		{ID: 3, Kind: question.KindMultiple, Level: 3, Prompt: "2^10?", Options: []string{"512", "1000", "1024", "2048"}, Answer: "C"},
		{ID: 4, Kind: question.KindShort, Level: 3, Prompt: "Chemical symbol of gold?", Answer: "Au"},
		{ID: 5, Kind: question.KindEssay, Level: 5, Prompt: "How do plants make food?", Answer: "Photosynthesis converts light into chemical energy.", Rubric: "photosynthesis"},
	}
}

type harness struct {
	orch      *Orchestrator
	out       *recordingOutbound
	clock     *clockwork.FakeClock
	questions *stubQuestions
	recorder  *capturingRecorder
	observer  *countingObserver
}

type harnessOptions struct {
	settings      Settings
	questions     []question.Question
	scorer        grading.EssayScorer
	graderTimeout time.Duration
	ratings       RatingLookup
	recorders     []Recorder
}

func quickSettings() Settings {
	s := DefaultSettings()
	s.ReadyLead = 0
	s.ReviewPause = 0
	s.GradeSlack = time.Second
	return s
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	if opts.settings.Durations == nil {
		opts.settings = quickSettings()
	}
	if opts.questions == nil {
		opts.questions = fiveRounds()
	}
	if opts.scorer == nil {
		opts.scorer = keywordScorer
	}
	if opts.graderTimeout == 0 {
		opts.graderTimeout = time.Second
	}
	if opts.ratings == nil {
		opts.ratings = fixedRatings{}
	}

	clock := clockwork.NewFakeClock()
	logger := zerolog.Nop()
	h := &harness{
		out:       newRecordingOutbound(),
		clock:     clock,
		questions: &stubQuestions{questions: opts.questions},
		recorder:  &capturingRecorder{},
		observer:  &countingObserver{},
	}
	h.orch = NewOrchestrator(Deps{
		Queue:     queue.NewManager(clock, logger),
		Questions: h.questions,
		Ratings:   opts.ratings,
		Grader:    grading.NewGrader(opts.scorer, grading.Options{Timeout: opts.graderTimeout}, logger),
		Engine:    scoring.NewEngine(scoring.DefaultRatingConfig()),
		Outbound:  h.out,
		Recorders: append([]Recorder{h.recorder}, opts.recorders...),
		Observer:  h.observer,
		Clock:     clock,
	}, opts.settings, logger)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = h.orch.Shutdown(ctx)
	})
	return h
}

// pair enqueues two players and returns them with their match id.
func (h *harness) pair(t *testing.T) (uuid.UUID, uuid.UUID, uuid.UUID) {
	t.Helper()
	a, b := uuid.New(), uuid.New()
	_, err := h.orch.Enqueue(context.Background(), a)
	require.NoError(t, err)
	_, err = h.orch.Enqueue(context.Background(), b)
	require.NoError(t, err)

	found := decode[ws.MatchFoundPayload](t, h.out.await(t, a, ws.TypeMatchFound, 1))
	return a, b, uuid.MustParse(found.MatchID)
}
