package match

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-duel/internal/grading"
	"github.com/gokatarajesh/quiz-duel/internal/match/scoring"
	"github.com/gokatarajesh/quiz-duel/internal/question"
	ws "github.com/gokatarajesh/quiz-duel/pkg/http/ws"
)

// Commands posted into a session's inbox.
type (
	submitCmd struct {
		playerID uuid.UUID
		answer   string
		reply    chan submitReply
	}
	submitReply struct {
		result SubmitResult
		err    error
	}
	disconnectCmd struct{ playerID uuid.UUID }
	reconnectCmd  struct{ playerID uuid.UUID }
	tickCmd       struct{}
	gradedCmd     struct {
		round int
		slot  int
		grade grading.Grade
	}
)

// session is the round state machine of one match. All of its state is owned
// by the goroutine running loop; everything else talks to it through inbox.
type session struct {
	id        uuid.UUID
	players   [2]*Player
	questions []question.Question
	rounds    []*Round
	current   *Round
	phase     Phase
	status    string
	scores    [2]int
	result    scoring.Result
	startedAt time.Time
	endedAt   time.Time

	timer clockwork.Timer
	next  func()

	inbox chan any
	done  chan struct{}
	ctx   context.Context

	orch   *Orchestrator
	logger zerolog.Logger
}

func newSession(ctx context.Context, o *Orchestrator, players [2]*Player, questions []question.Question) *session {
	id := uuid.New()
	return &session{
		id:        id,
		players:   players,
		questions: questions,
		phase:     PhasePreparing,
		startedAt: o.clock.Now(),
		inbox:     make(chan any, o.settings.InboxSize),
		done:      make(chan struct{}),
		ctx:       ctx,
		orch:      o,
		logger:    o.logger.With().Str("match_id", id.String()).Logger(),
	}
}

// run drives the match to a terminal phase, then fires completion hooks.
func (s *session) run() {
	s.loop()
	if s.phase != PhaseMatchDone {
		s.orch.release(s, nil)
		close(s.done)
		return
	}

	rec := s.record()
	s.orch.release(s, &rec)
	close(s.done)
	s.orch.record(rec)
	s.orch.settle(rec)
}

func (s *session) loop() {
	defer s.stopTimer()

	s.prepare(0)
	for !s.over() {
		var fire <-chan time.Time
		if s.timer != nil {
			fire = s.timer.Chan()
		}

		select {
		case <-s.ctx.Done():
			s.broadcast(ws.TypeError, ws.ErrorPayload{Code: ErrShuttingDown.Code, Message: ErrShuttingDown.Message})
			s.abandon(StatusInterrupted)
		case cmd := <-s.inbox:
			s.handle(cmd)
		case <-fire:
			next := s.next
			s.timer, s.next = nil, nil
			next()
		}
	}
}

func (s *session) over() bool {
	return s.phase == PhaseMatchDone || s.phase == PhaseAbandoned
}

// post delivers cmd unless the session has already ended.
func (s *session) post(ctx context.Context, cmd any) bool {
	select {
	case s.inbox <- cmd:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *session) handle(cmd any) {
	switch c := cmd.(type) {
	case submitCmd:
		result, err := s.submit(c.playerID, c.answer)
		if err == nil && s.current.submitted(0) && s.current.submitted(1) {
			s.resolve(false)
		}
		c.reply <- submitReply{result: result, err: err}
	case gradedCmd:
		s.graded(c)
	case tickCmd:
		s.tick()
	case disconnectCmd:
		s.disconnect(c.playerID)
	case reconnectCmd:
		s.reconnect(c.playerID)
	default:
		s.logger.Error().Type("command", cmd).Msg("unknown session command")
	}
}

// after arms the single phase timer. A non-positive delay runs fn at once.
func (s *session) after(d time.Duration, fn func()) {
	s.stopTimer()
	if d <= 0 {
		fn()
		return
	}
	s.timer = s.orch.clock.NewTimer(d)
	s.next = fn
}

func (s *session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer, s.next = nil, nil
}

func (s *session) prepare(idx int) {
	q := s.questions[idx]
	s.phase = PhasePreparing
	s.current = &Round{Index: idx, Question: q}

	if err := s.orch.questions.MarkUsed(s.ctx, q.ID); err != nil {
		s.logger.Warn().Err(err).Int("round", idx).Int64("question_id", q.ID).Msg("failed to mark question used")
	}

	s.broadcast(ws.TypeRoundReady, ws.RoundReadyPayload{
		RoundIndex:  idx,
		TotalRounds: len(s.questions),
		DurationSec: ceilSeconds(s.orch.settings.duration(q.Difficulty())),
	})
	s.after(s.orch.settings.ReadyLead, s.start)
}

func (s *session) start() {
	r := s.current
	duration := s.orch.settings.duration(r.Question.Difficulty())
	r.Deadline = s.orch.clock.Now().Add(duration)

	// the deadline timer exists before anyone can see the question
	s.after(duration, func() { s.resolve(true) })
	s.phase = PhaseActive

	s.logger.Info().
		Int("round", r.Index).
		Int64("question_id", r.Question.ID).
		Str("kind", string(r.Question.Kind)).
		Str("difficulty", string(r.Question.Difficulty())).
		Msg("round started")

	s.broadcast(ws.TypeRoundStart, s.roundStartPayload(r))
}

func (s *session) submit(playerID uuid.UUID, answer string) (SubmitResult, error) {
	slot := s.slotOf(playerID)
	if slot < 0 {
		return SubmitResult{}, ErrNotInMatch
	}

	r := s.current
	if s.phase != PhaseActive || r == nil {
		return SubmitResult{}, ErrRoundNotActive
	}
	now := s.orch.clock.Now()
	if !now.Before(r.Deadline) {
		return SubmitResult{}, ErrDeadlinePassed
	}
	if r.submitted(slot) {
		return SubmitResult{}, ErrAlreadySubmitted
	}

	verdict := grading.Inspect(answer)
	r.Submissions[slot] = &Submission{Answer: answer, ReceivedAt: now, Verdict: verdict}
	s.orch.observer.SubmissionReceived(verdict.Flagged)

	if verdict.Flagged {
		s.logger.Warn().
			Int("round", r.Index).
			Str("player_id", playerID.String()).
			Strs("reasons", verdict.Reasons).
			Msg("flagged submission")
	}

	if r.Question.Kind.FreeText() {
		s.gradeAsync(r, slot)
	}

	other := 1 - slot
	s.send(other, ws.TypeOpponentSubmitted, ws.OpponentSubmittedPayload{RoundIndex: r.Index})

	return SubmitResult{RoundIndex: r.Index, OpponentSubmitted: r.submitted(other)}, nil
}

// gradeAsync starts scoring a free-text answer as soon as it is received.
// The grader bounds the call with its own timeout.
func (s *session) gradeAsync(r *Round, slot int) {
	r.pending[slot] = true
	q, text, idx := r.Question, r.Submissions[slot].Verdict.Text, r.Index

	go func() {
		grade := s.orch.grader.Grade(s.ctx, q, text)
		s.post(s.ctx, gradedCmd{round: idx, slot: slot, grade: grade})
	}()
}

func (s *session) graded(c gradedCmd) {
	r := s.current
	if r == nil || r.Index != c.round || r.terminal || !r.pending[c.slot] {
		s.logger.Debug().Int("round", c.round).Int("slot", c.slot).Msg("discarding late grade")
		s.orch.observer.GradeDiscarded()
		return
	}

	r.pending[c.slot] = false
	grade := c.grade
	r.Grades[c.slot] = &grade

	if grade.Synthesized {
		s.logger.Warn().Int("round", r.Index).Int("slot", c.slot).Str("reason", grade.SynthReason).Msg("essay grade synthesized")
	}

	if s.phase == PhaseResolving && r.graded() {
		s.complete()
	}
}

// resolve grades everything that is not already graded or in flight.
// At the deadline, essays still in flight are timed out on the spot;
// an early resolve waits for them no later than the deadline.
func (s *session) resolve(atDeadline bool) {
	r := s.current
	s.stopTimer()
	s.phase = PhaseResolving

	for slot := range s.players {
		if r.Grades[slot] != nil || r.pending[slot] {
			continue
		}
		var grade grading.Grade
		if r.submitted(slot) {
			grade = s.orch.grader.Grade(s.ctx, r.Question, r.Submissions[slot].Verdict.Text)
		} else {
			grade = grading.NonSubmission()
		}
		r.Grades[slot] = &grade
	}

	if r.graded() {
		s.complete()
		return
	}
	if atDeadline {
		s.expireGrades()
		return
	}
	wait := s.orch.grader.Timeout() + s.orch.settings.GradeSlack
	if left := r.Deadline.Sub(s.orch.clock.Now()); left < wait {
		wait = left
	}
	s.after(wait, s.expireGrades)
}

// expireGrades stops waiting for scorer results that never came back.
func (s *session) expireGrades() {
	r := s.current
	for slot := range s.players {
		if r.Grades[slot] != nil {
			continue
		}
		grade := grading.TimedOut()
		r.Grades[slot] = &grade
		r.pending[slot] = false
		s.logger.Warn().Int("round", r.Index).Int("slot", slot).Msg("essay grade never arrived")
	}
	s.complete()
}

func (s *session) complete() {
	s.stopTimer()
	r := s.current

	for slot := range s.players {
		delta := s.orch.engine.RoundDelta(*r.Grades[slot])
		r.Deltas[slot] = delta
		s.scores[slot] += delta
	}
	r.terminal = true
	s.rounds = append(s.rounds, r)
	s.phase = PhaseRoundDone
	s.orch.observer.RoundResolved(r.Question.Kind)

	s.logger.Info().
		Int("round", r.Index).
		Ints("deltas", r.Deltas[:]).
		Ints("scores", s.scores[:]).
		Msg("round resolved")

	for slot := range s.players {
		s.send(slot, ws.TypeRoundEnd, s.roundEndPayload(r, slot))
	}

	if next := r.Index + 1; next < len(s.questions) {
		s.after(s.orch.settings.ReviewPause, func() { s.prepare(next) })
		return
	}
	s.finish()
}

func (s *session) finish() {
	ratings := [2]int{s.players[0].Rating, s.players[1].Rating}
	s.result = s.orch.engine.Finalize(s.scores, ratings)
	s.endedAt = s.orch.clock.Now()
	s.current = nil
	s.phase = PhaseMatchDone
	s.status = StatusCompleted

	for slot := range s.players {
		s.send(slot, ws.TypeMatchEnd, ws.MatchEndPayload{
			MatchID: s.id.String(),
			IsWin:   s.result.Outcomes[slot] == scoring.Win,
			IsDraw:  s.result.Outcomes[slot] == scoring.Draw,
			FinalScores: ws.FinalScores{
				My:       s.scores[slot],
				Opponent: s.scores[1-slot],
			},
			RatingDelta: s.result.Deltas[slot],
			NewRating:   s.result.NewRatings[slot],
			Tier:        string(s.result.Tiers[slot]),
		})
	}

	s.orch.observer.MatchFinished(StatusCompleted)
	s.logger.Info().
		Ints("scores", s.scores[:]).
		Ints("rating_deltas", s.result.Deltas[:]).
		Msg("match completed")
}

func (s *session) abandon(status string) {
	s.stopTimer()
	s.phase = PhaseAbandoned
	s.status = status
	s.orch.observer.MatchFinished(status)
	s.logger.Warn().Str("status", status).Int("rounds_played", len(s.rounds)).Msg("match abandoned")
}

func (s *session) tick() {
	if s.phase != PhaseActive {
		return
	}
	r := s.current
	s.broadcast(ws.TypeRoundTick, ws.RoundTickPayload{
		RoundIndex:  r.Index,
		RemainedSec: ceilSeconds(r.Deadline.Sub(s.orch.clock.Now())),
	})
}

func (s *session) disconnect(playerID uuid.UUID) {
	slot := s.slotOf(playerID)
	if slot < 0 {
		return
	}
	s.players[slot].Disconnected = true
	s.logger.Info().Str("player_id", playerID.String()).Msg("player disconnected")

	if s.players[0].Disconnected && s.players[1].Disconnected {
		s.abandon(StatusAbandoned)
	}
}

func (s *session) reconnect(playerID uuid.UUID) {
	slot := s.slotOf(playerID)
	if slot < 0 {
		return
	}
	s.players[slot].Disconnected = false
	s.logger.Info().Str("player_id", playerID.String()).Msg("player reconnected")

	if s.phase == PhaseActive {
		s.send(slot, ws.TypeRoundStart, s.roundStartPayload(s.current))
	}
}

func (s *session) slotOf(playerID uuid.UUID) int {
	for slot, p := range s.players {
		if p.ID == playerID {
			return slot
		}
	}
	return -1
}

func (s *session) broadcast(msgType string, payload any) {
	for slot := range s.players {
		s.send(slot, msgType, payload)
	}
}

func (s *session) send(slot int, msgType string, payload any) {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("type", msgType).Msg("failed to encode event")
		return
	}
	if err := s.orch.out.SendToUser(s.players[slot].ID, msg); err != nil {
		s.logger.Debug().Err(err).Str("type", msgType).Int("slot", slot).Msg("event not delivered")
	}
}

func (s *session) roundStartPayload(r *Round) ws.RoundStartPayload {
	q := r.Question
	return ws.RoundStartPayload{
		RoundIndex:  r.Index,
		DurationSec: ceilSeconds(s.orch.settings.duration(q.Difficulty())),
		DeadlineMs:  r.Deadline.UnixMilli(),
		Question: ws.QuestionPayload{
			ID:         q.ID,
			Kind:       string(q.Kind),
			Difficulty: string(q.Difficulty()),
			Category:   q.Category,
			Prompt:     q.Prompt,
			Options:    q.Options,
		},
	}
}

func (s *session) roundEndPayload(r *Round, slot int) ws.RoundEndPayload {
	return ws.RoundEndPayload{
		RoundIndex:  r.Index,
		My:          s.roundResult(r, slot),
		Opponent:    s.roundResult(r, 1-slot),
		BestAnswer:  bestAnswer(r.Question),
		Explanation: r.Question.Explanation,
	}
}

func (s *session) roundResult(r *Round, slot int) ws.RoundResult {
	grade := *r.Grades[slot]
	res := ws.RoundResult{
		Submitted:      r.submitted(slot),
		Classification: string(grade.Classification),
		Correct:        grade.Correct(),
		Delta:          r.Deltas[slot],
		Total:          s.scores[slot],
		Feedback:       grade.Feedback,
	}
	if res.Submitted {
		res.Answer = r.Submissions[slot].Verdict.Text
	}
	return res
}

func (s *session) record() Record {
	rec := Record{
		MatchID:       s.id,
		Players:       [2]uuid.UUID{s.players[0].ID, s.players[1].ID},
		Rounds:        make([]RoundRecord, 0, len(s.rounds)),
		Scores:        s.scores,
		Outcomes:      s.result.Outcomes,
		RatingsBefore: [2]int{s.players[0].Rating, s.players[1].Rating},
		RatingDeltas:  s.result.Deltas,
		NewRatings:    s.result.NewRatings,
		StartedAt:     s.startedAt,
		EndedAt:       s.endedAt,
	}
	for _, r := range s.rounds {
		rr := RoundRecord{
			Index:      r.Index,
			QuestionID: r.Question.ID,
			Kind:       r.Question.Kind,
			Difficulty: r.Question.Difficulty(),
			Deltas:     r.Deltas,
		}
		for slot := range s.players {
			rr.Grades[slot] = *r.Grades[slot]
			if sub := r.Submissions[slot]; sub != nil {
				rr.Submitted[slot] = true
				rr.Answers[slot] = sub.Answer
				rr.Flagged[slot] = sub.Verdict.Flagged
			}
		}
		rec.Rounds = append(rec.Rounds, rr)
	}
	return rec
}

var choiceLetters = []string{"A", "B", "C", "D", "E", "F"}

// bestAnswer renders the canonical answer shown after a round.
func bestAnswer(q question.Question) string {
	switch q.Kind {
	case question.KindMultiple:
		want := strings.ToUpper(strings.TrimSpace(q.Answer))
		for i, letter := range choiceLetters {
			if letter == want && i < len(q.Options) {
				return letter + ". " + q.Options[i]
			}
		}
	case question.KindShort:
		accepted, _, _ := strings.Cut(q.Answer, "|")
		return strings.TrimSpace(accepted)
	}
	return q.Answer
}

// ceilSeconds rounds a remaining duration up to whole seconds, never below zero.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
