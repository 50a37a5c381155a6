package ws

import "encoding/json"

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypeQueueJoin    = "queue:join"
	TypeQueueLeave   = "queue:leave"
	TypeAnswerSubmit = "answer:submit"
	TypePing         = "ping"

	// Server -> Client
	TypeAck               = "ack"
	TypeQueueUpdate       = "queue:update"
	TypeMatchFound        = "match:found"
	TypeRoundReady        = "round:ready"
	TypeRoundStart        = "round:start"
	TypeRoundTick         = "round:tick"
	TypeOpponentSubmitted = "opponent:submitted"
	TypeRoundEnd          = "round:end"
	TypeMatchEnd          = "match:end"
	TypeError             = "error"
	TypePong              = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage marshals payload into a typed message.
func NewMessage(msgType string, payload any) (Message, error) {
	msg := Message{Type: msgType}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Payload = data
	return msg, nil
}

// Client Messages (incoming)

type QueueLeavePayload struct {
	Ticket string `json:"ticket,omitempty"`
}

type AnswerSubmitPayload struct {
	MatchID string `json:"matchId"`
	Answer  string `json:"answer"`
}

// Server Messages (outgoing)

type AckPayload struct {
	OK                bool   `json:"ok"`
	Error             string `json:"error,omitempty"`
	Message           string `json:"message,omitempty"`
	Ticket            string `json:"ticket,omitempty"`
	OpponentSubmitted bool   `json:"opponentSubmitted,omitempty"`
}

type QueueUpdatePayload struct {
	Ticket    string `json:"ticket"`
	Position  int    `json:"position"`
	QueueSize int    `json:"queueSize"`
}

type MatchFoundPayload struct {
	MatchID     string `json:"matchId"`
	OpponentID  string `json:"opponentId"`
	TotalRounds int    `json:"totalRounds"`
}

type RoundReadyPayload struct {
	RoundIndex  int `json:"roundIndex"`
	TotalRounds int `json:"totalRounds"`
	DurationSec int `json:"durationSec"`
}

type RoundStartPayload struct {
	RoundIndex  int             `json:"roundIndex"`
	DurationSec int             `json:"durationSec"`
	DeadlineMs  int64           `json:"deadlineMs"`
	Question    QuestionPayload `json:"question"`
}

// QuestionPayload is the player-visible part of a question; the answer is withheld.
type QuestionPayload struct {
	ID         int64    `json:"id"`
	Kind       string   `json:"kind"`
	Difficulty string   `json:"difficulty"`
	Category   string   `json:"category,omitempty"`
	Prompt     string   `json:"prompt"`
	Options    []string `json:"options,omitempty"`
}

type RoundTickPayload struct {
	RoundIndex  int `json:"roundIndex"`
	RemainedSec int `json:"remainedSec"`
}

type OpponentSubmittedPayload struct {
	RoundIndex int `json:"roundIndex"`
}

type RoundEndPayload struct {
	RoundIndex  int         `json:"roundIndex"`
	My          RoundResult `json:"my"`
	Opponent    RoundResult `json:"opponent"`
	BestAnswer  string      `json:"bestAnswer"`
	Explanation string      `json:"explanation,omitempty"`
}

// RoundResult is one player's submission and grade for a finished round.
type RoundResult struct {
	Submitted      bool   `json:"submitted"`
	Answer         string `json:"answer,omitempty"`
	Classification string `json:"classification"`
	Correct        bool   `json:"correct"`
	Delta          int    `json:"delta"`
	Total          int    `json:"total"`
	Feedback       string `json:"feedback,omitempty"`
}

type MatchEndPayload struct {
	MatchID     string      `json:"matchId"`
	IsWin       bool        `json:"isWin"`
	IsDraw      bool        `json:"isDraw"`
	FinalScores FinalScores `json:"finalScores"`
	RatingDelta int         `json:"ratingDelta"`
	NewRating   int         `json:"newRating"`
	Tier        string      `json:"tier"`
}

type FinalScores struct {
	My       int `json:"my"`
	Opponent int `json:"opponent"`
}

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Rating   int    `json:"rating"`
	Tier     string `json:"tier"`
	Games    int    `json:"games"`
	Wins     int    `json:"wins"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
