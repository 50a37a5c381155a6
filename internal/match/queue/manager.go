package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

var (
	ErrAlreadyQueued  = errors.New("player already queued")
	ErrTicketNotFound = errors.New("queue ticket not found")
)

// Entry is one waiting player.
type Entry struct {
	Ticket   uuid.UUID
	PlayerID uuid.UUID
	Rating   int
	QueuedAt time.Time
}

// Pair is two entries removed from the queue together, oldest first.
type Pair struct {
	First  Entry
	Second Entry
}

// Manager is the FIFO matchmaking queue. Every operation holds the same mutex,
// so pairing and dequeue on one entry can never both succeed.
type Manager struct {
	mu       sync.Mutex
	entries  []Entry
	byPlayer map[uuid.UUID]uuid.UUID // player_id -> ticket
	clock    clockwork.Clock
	logger   zerolog.Logger
}

// NewManager creates a matchmaking queue manager.
func NewManager(clock clockwork.Clock, logger zerolog.Logger) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		byPlayer: make(map[uuid.UUID]uuid.UUID),
		clock:    clock,
		logger:   logger.With().Str("component", "match_queue").Logger(),
	}
}

// Enqueue appends a player to the back of the queue.
func (m *Manager) Enqueue(playerID uuid.UUID, rating int) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byPlayer[playerID]; exists {
		return Entry{}, ErrAlreadyQueued
	}

	entry := Entry{
		Ticket:   uuid.New(),
		PlayerID: playerID,
		Rating:   rating,
		QueuedAt: m.clock.Now(),
	}
	m.entries = append(m.entries, entry)
	m.byPlayer[playerID] = entry.Ticket

	m.logger.Info().
		Str("ticket", entry.Ticket.String()).
		Str("player_id", playerID.String()).
		Int("queue_size", len(m.entries)).
		Msg("player enqueued")
	return entry, nil
}

// Dequeue removes the entry holding ticket.
func (m *Manager) Dequeue(ticket uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.dequeueLocked(ticket)
}

// Remove dequeues a player by id.
func (m *Manager) Remove(playerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticket, exists := m.byPlayer[playerID]
	if !exists {
		return ErrTicketNotFound
	}
	return m.dequeueLocked(ticket)
}

func (m *Manager) dequeueLocked(ticket uuid.UUID) error {
	idx := m.indexOf(ticket)
	if idx < 0 {
		return ErrTicketNotFound
	}
	m.removeAt(idx)
	m.logger.Info().Str("ticket", ticket.String()).Msg("player dequeued")
	return nil
}

// PopPair removes and returns the two oldest entries when at least two wait.
func (m *Manager) PopPair() (Pair, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) < 2 {
		return Pair{}, false
	}
	pair := Pair{First: m.entries[0], Second: m.entries[1]}
	m.removeAt(1)
	m.removeAt(0)

	m.logger.Info().
		Str("first", pair.First.PlayerID.String()).
		Str("second", pair.Second.PlayerID.String()).
		Msg("players paired")
	return pair, true
}

// Position returns the 0-based queue position of ticket, or -1.
func (m *Manager) Position(ticket uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexOf(ticket)
}

// Ticket returns the ticket a waiting player holds.
func (m *Manager) Ticket(playerID uuid.UUID) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticket, exists := m.byPlayer[playerID]
	return ticket, exists
}

// Len returns the number of waiting players.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// OldestWait is how long the head of the queue has been waiting.
func (m *Manager) OldestWait() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return 0
	}
	return m.clock.Since(m.entries[0].QueuedAt)
}

func (m *Manager) indexOf(ticket uuid.UUID) int {
	for i, e := range m.entries {
		if e.Ticket == ticket {
			return i
		}
	}
	return -1
}

func (m *Manager) removeAt(idx int) {
	delete(m.byPlayer, m.entries[idx].PlayerID)
	m.entries = append(m.entries[:idx], m.entries[idx+1:]...)
}
