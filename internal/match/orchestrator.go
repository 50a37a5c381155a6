package match

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-duel/internal/match/queue"
	"github.com/gokatarajesh/quiz-duel/internal/match/scoring"
	"github.com/gokatarajesh/quiz-duel/internal/question"
	ws "github.com/gokatarajesh/quiz-duel/pkg/http/ws"
)

// Settings tune match pacing and question balance.
type Settings struct {
	Constraints question.Constraints
	Durations   map[question.Difficulty]time.Duration
	ReadyLead   time.Duration
	ReviewPause time.Duration
	// GradeSlack is added to the grader timeout before pending essay grades are given up on.
	GradeSlack  time.Duration
	InboxSize   int
	HookTimeout time.Duration
}

// DefaultSettings returns the five-round profile with production pacing.
func DefaultSettings() Settings {
	return Settings{
		Constraints: question.Constraints{Cells: question.DefaultCells()},
		Durations: map[question.Difficulty]time.Duration{
			question.DifficultyEasy:   20 * time.Second,
			question.DifficultyMedium: 30 * time.Second,
			question.DifficultyHard:   45 * time.Second,
		},
		ReadyLead:   3 * time.Second,
		ReviewPause: 7 * time.Second,
		GradeSlack:  2 * time.Second,
		InboxSize:   32,
		HookTimeout: 45 * time.Second,
	}
}

func (s Settings) duration(d question.Difficulty) time.Duration {
	if v, ok := s.Durations[d]; ok && v > 0 {
		return v
	}
	return 30 * time.Second
}

// Deps are the collaborators an Orchestrator dispatches to.
type Deps struct {
	Queue     *queue.Manager
	Questions QuestionSource
	Ratings   RatingLookup
	Grader    Grader
	Engine    *scoring.Engine
	Outbound  Outbound
	Recorders []Recorder
	Observer  Observer
	Clock     clockwork.Clock
}

// Orchestrator owns the matchmaking queue and every live match, and routes
// inbound commands to the right match session.
type Orchestrator struct {
	queue     *queue.Manager
	questions QuestionSource
	ratings   RatingLookup
	grader    Grader
	engine    *scoring.Engine
	out       Outbound
	recorders []Recorder
	observer  Observer
	clock     clockwork.Clock
	settings  Settings
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session   // match_id -> session
	byPlayer map[uuid.UUID]*session   // player_id -> session
	held     map[uuid.UUID]heldRating // player_id -> rating whose hooks are still running
	closed   bool
}

// heldRating is a finished match's rating that RatingLookup may not reflect yet.
type heldRating struct {
	matchID uuid.UUID
	rating  int
}

// NewOrchestrator creates an orchestrator. Sessions live until their match
// ends or Shutdown is called.
func NewOrchestrator(deps Deps, settings Settings, logger zerolog.Logger) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Observer == nil {
		deps.Observer = noopObserver{}
	}
	if deps.Engine == nil {
		deps.Engine = scoring.NewEngine(scoring.DefaultRatingConfig())
	}
	if deps.Queue == nil {
		deps.Queue = queue.NewManager(deps.Clock, logger)
	}
	if settings.InboxSize <= 0 {
		settings.InboxSize = 32
	}
	if settings.HookTimeout <= 0 {
		settings.HookTimeout = 45 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		queue:     deps.Queue,
		questions: deps.Questions,
		ratings:   deps.Ratings,
		grader:    deps.Grader,
		engine:    deps.Engine,
		out:       deps.Outbound,
		recorders: deps.Recorders,
		observer:  deps.Observer,
		clock:     deps.Clock,
		settings:  settings,
		logger:    logger.With().Str("component", "match_orchestrator").Logger(),
		ctx:       ctx,
		cancel:    cancel,
		sessions:  make(map[uuid.UUID]*session),
		byPlayer:  make(map[uuid.UUID]*session),
		held:      make(map[uuid.UUID]heldRating),
	}
}

// Enqueue adds a player to the matchmaking queue and pairs waiting players.
// A content error while creating the caller's own match is returned after
// the caller has left the queue.
func (o *Orchestrator) Enqueue(ctx context.Context, playerID uuid.UUID) (queue.Entry, error) {
	if o.isClosed() {
		return queue.Entry{}, ErrShuttingDown
	}
	if _, inMatch := o.MatchOf(playerID); inMatch {
		return queue.Entry{}, ErrAlreadyInMatch
	}

	entry, err := o.queue.Enqueue(playerID, o.currentRating(ctx, playerID))
	if err != nil {
		if errors.Is(err, queue.ErrAlreadyQueued) {
			return queue.Entry{}, ErrAlreadyQueued
		}
		return queue.Entry{}, err
	}

	size := o.queue.Len()
	o.observer.QueueSize(size)
	o.notify(playerID, ws.TypeQueueUpdate, ws.QueueUpdatePayload{
		Ticket:    entry.Ticket.String(),
		Position:  o.queue.Position(entry.Ticket),
		QueueSize: size,
	})

	if err := o.pairWaiting(ctx, playerID); err != nil {
		return entry, err
	}
	return entry, nil
}

// Dequeue removes a waiting player from the queue.
func (o *Orchestrator) Dequeue(ctx context.Context, playerID uuid.UUID) error {
	if err := o.queue.Remove(playerID); err != nil {
		return ErrNotQueued
	}
	o.observer.QueueSize(o.queue.Len())
	return nil
}

// DequeueTicket removes a waiting player by the ticket they were given.
func (o *Orchestrator) DequeueTicket(ctx context.Context, playerID, ticket uuid.UUID) error {
	held, ok := o.queue.Ticket(playerID)
	if !ok {
		return ErrNotQueued
	}
	if held != ticket {
		return ErrInvalidTicket
	}
	if err := o.queue.Dequeue(ticket); err != nil {
		// lost the race against pairing
		return ErrNotQueued
	}
	o.observer.QueueSize(o.queue.Len())
	return nil
}

// SubmitAnswer hands an answer to the match session and waits for its verdict.
func (o *Orchestrator) SubmitAnswer(ctx context.Context, matchID, playerID uuid.UUID, answer string) (SubmitResult, error) {
	s := o.session(matchID)
	if s == nil {
		return SubmitResult{}, ErrMatchNotFound
	}

	reply := make(chan submitReply, 1)
	if !s.post(ctx, submitCmd{playerID: playerID, answer: answer, reply: reply}) {
		if err := ctx.Err(); err != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{}, ErrRoundNotActive
	}

	select {
	case r := <-reply:
		return r.result, r.err
	case <-s.done:
		select {
		case r := <-reply:
			return r.result, r.err
		default:
			return SubmitResult{}, ErrRoundNotActive
		}
	case <-ctx.Done():
		return SubmitResult{}, ctx.Err()
	}
}

// Disconnect removes the player from the queue and marks them gone in their match.
func (o *Orchestrator) Disconnect(playerID uuid.UUID) {
	if err := o.queue.Remove(playerID); err == nil {
		o.observer.QueueSize(o.queue.Len())
	}

	o.mu.RLock()
	s := o.byPlayer[playerID]
	o.mu.RUnlock()
	if s != nil {
		s.post(o.ctx, disconnectCmd{playerID: playerID})
	}
}

// Reconnect resumes the player's live match, if any, and returns its id.
func (o *Orchestrator) Reconnect(playerID uuid.UUID) (uuid.UUID, bool) {
	o.mu.RLock()
	s := o.byPlayer[playerID]
	o.mu.RUnlock()
	if s == nil {
		return uuid.Nil, false
	}
	if !s.post(o.ctx, reconnectCmd{playerID: playerID}) {
		return uuid.Nil, false
	}
	return s.id, true
}

// Tick asks every live match to broadcast its remaining time. Ticks are
// dropped for sessions with a full inbox.
func (o *Orchestrator) Tick() {
	o.mu.RLock()
	sessions := make([]*session, 0, len(o.sessions))
	for _, s := range o.sessions {
		sessions = append(sessions, s)
	}
	o.mu.RUnlock()

	for _, s := range sessions {
		select {
		case s.inbox <- tickCmd{}:
		default:
		}
	}
	o.observer.QueueSize(o.queue.Len())
	o.observer.QueueWait(o.queue.OldestWait())
}

// MatchOf returns the live match a player belongs to.
func (o *Orchestrator) MatchOf(playerID uuid.UUID) (uuid.UUID, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.byPlayer[playerID]
	if !ok {
		return uuid.Nil, false
	}
	return s.id, true
}

// LiveMatches returns the number of matches in progress.
func (o *Orchestrator) LiveMatches() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.sessions)
}

// QueueLen returns the number of waiting players.
func (o *Orchestrator) QueueLen() int {
	return o.queue.Len()
}

// Shutdown stops accepting players, interrupts live matches and waits for
// their sessions and completion hooks to finish.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info().Msg("all match sessions stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) pairWaiting(ctx context.Context, caller uuid.UUID) error {
	var callerErr error
	for {
		pair, ok := o.queue.PopPair()
		if !ok {
			break
		}
		o.observer.QueueSize(o.queue.Len())

		if err := o.startMatch(ctx, pair); err != nil {
			for _, e := range []queue.Entry{pair.First, pair.Second} {
				if e.PlayerID == caller {
					callerErr = err
					continue
				}
				var matchErr *Error
				if errors.As(err, &matchErr) {
					o.notify(e.PlayerID, ws.TypeError, ws.ErrorPayload{Code: matchErr.Code, Message: matchErr.Message})
				}
			}
		}
	}
	return callerErr
}

func (o *Orchestrator) startMatch(ctx context.Context, pair queue.Pair) error {
	questions, err := o.questions.SelectForMatch(ctx, o.settings.Constraints)
	if err != nil {
		o.logger.Error().Err(err).
			Str("first", pair.First.PlayerID.String()).
			Str("second", pair.Second.PlayerID.String()).
			Msg("match creation failed")
		if errors.Is(err, question.ErrInsufficientQuestions) {
			return ErrInsufficientContent
		}
		return ErrMatchCreation
	}

	players := [2]*Player{
		{ID: pair.First.PlayerID, Rating: pair.First.Rating},
		{ID: pair.Second.PlayerID, Rating: pair.Second.Rating},
	}
	s := newSession(o.ctx, o, players, questions)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrShuttingDown
	}
	o.sessions[s.id] = s
	o.byPlayer[players[0].ID] = s
	o.byPlayer[players[1].ID] = s
	live := len(o.sessions)
	o.wg.Add(1)
	o.mu.Unlock()

	o.observer.MatchStarted()
	o.observer.LiveMatches(live)
	o.logger.Info().
		Str("match_id", s.id.String()).
		Str("first", players[0].ID.String()).
		Str("second", players[1].ID.String()).
		Int("rounds", len(questions)).
		Msg("match created")

	for slot, p := range players {
		o.notify(p.ID, ws.TypeMatchFound, ws.MatchFoundPayload{
			MatchID:     s.id.String(),
			OpponentID:  players[1-slot].ID.String(),
			TotalRounds: len(questions),
		})
	}

	go func() {
		defer o.wg.Done()
		s.run()
	}()
	return nil
}

func (o *Orchestrator) session(matchID uuid.UUID) *session {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.sessions[matchID]
}

// release forgets a finished session so its players can queue again. When rec
// is set, its new ratings are held until settle so a quick requeue never reads
// a rating the completion hooks have not stored yet.
func (o *Orchestrator) release(s *session, rec *Record) {
	o.mu.Lock()
	if rec != nil {
		for slot, playerID := range rec.Players {
			o.held[playerID] = heldRating{matchID: rec.MatchID, rating: rec.NewRatings[slot]}
		}
	}
	delete(o.sessions, s.id)
	for _, p := range s.players {
		if o.byPlayer[p.ID] == s {
			delete(o.byPlayer, p.ID)
		}
	}
	live := len(o.sessions)
	o.mu.Unlock()

	o.observer.LiveMatches(live)
}

// record runs completion hooks. They outlive Shutdown's cancellation but are
// bounded by HookTimeout.
func (o *Orchestrator) record(rec Record) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(o.ctx), o.settings.HookTimeout)
	defer cancel()

	for _, r := range o.recorders {
		if err := r.RecordMatch(ctx, rec); err != nil {
			o.observer.PersistFailed()
			o.logger.Error().Err(err).Str("match_id", rec.MatchID.String()).Msg("completion hook failed")
		}
	}
}

// settle drops the ratings held for rec once its hooks have run. A newer
// match's hold for the same player is kept.
func (o *Orchestrator) settle(rec Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, playerID := range rec.Players {
		if h, ok := o.held[playerID]; ok && h.matchID == rec.MatchID {
			delete(o.held, playerID)
		}
	}
}

func (o *Orchestrator) currentRating(ctx context.Context, playerID uuid.UUID) int {
	o.mu.RLock()
	h, ok := o.held[playerID]
	o.mu.RUnlock()
	if ok {
		return h.rating
	}

	if o.ratings == nil {
		return o.engine.InitialRating()
	}
	rating, err := o.ratings.CurrentRating(ctx, playerID)
	if err != nil {
		o.logger.Warn().Err(err).Str("player_id", playerID.String()).Msg("rating lookup failed, using initial rating")
		return o.engine.InitialRating()
	}
	return rating
}

func (o *Orchestrator) notify(playerID uuid.UUID, msgType string, payload any) {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		o.logger.Error().Err(err).Str("type", msgType).Msg("failed to encode event")
		return
	}
	if err := o.out.SendToUser(playerID, msg); err != nil {
		o.logger.Debug().Err(err).Str("type", msgType).Str("player_id", playerID.String()).Msg("event not delivered")
	}
}

func (o *Orchestrator) isClosed() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.closed
}
