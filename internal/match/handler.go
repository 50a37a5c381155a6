package match

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-duel/internal/auth/jwt"
	httperrors "github.com/gokatarajesh/quiz-duel/pkg/http/errors"
	ws "github.com/gokatarajesh/quiz-duel/pkg/http/ws"
)

// TokenValidator resolves a handshake token to a player identity.
type TokenValidator interface {
	ValidateAccessToken(token string) (*jwt.Claims, error)
}

// Handler adapts WebSocket connections to orchestrator commands.
type Handler struct {
	orch   *Orchestrator
	hub    *ws.Hub
	tokens TokenValidator
	logger zerolog.Logger
}

// NewHandler creates a match WebSocket handler.
func NewHandler(orch *Orchestrator, hub *ws.Hub, tokens TokenValidator, logger zerolog.Logger) *Handler {
	return &Handler{
		orch:   orch,
		hub:    hub,
		tokens: tokens,
		logger: logger.With().Str("component", "match_ws").Logger(),
	}
}

// HandleConnection serves an authenticated connection until the peer goes away.
func (h *Handler) HandleConnection(conn *websocket.Conn, playerID uuid.UUID) {
	wsConn := ws.NewConnection(conn, h.logger)
	h.hub.RegisterConnection(playerID, wsConn)

	go wsConn.WritePump()

	if matchID, ok := h.orch.Reconnect(playerID); ok {
		h.logger.Info().
			Str("player_id", playerID.String()).
			Str("match_id", matchID.String()).
			Msg("player resumed match")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(ctx, playerID, msg)
	})

	// a newer connection for the same player keeps the match alive
	if h.hub.UnregisterConnection(playerID, wsConn) {
		h.orch.Disconnect(playerID)
	}
}

// handleMessage routes incoming WebSocket messages.
func (h *Handler) handleMessage(ctx context.Context, playerID uuid.UUID, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeQueueJoin:
		return h.handleQueueJoin(ctx, playerID, msg)
	case ws.TypeQueueLeave:
		return h.handleQueueLeave(ctx, playerID, msg)
	case ws.TypeAnswerSubmit:
		return h.handleAnswerSubmit(ctx, playerID, msg)
	case ws.TypePing:
		return h.send(playerID, msg.RequestID, ws.TypePong, nil)
	default:
		return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *Handler) handleQueueJoin(ctx context.Context, playerID uuid.UUID, msg ws.Message) error {
	entry, err := h.orch.Enqueue(ctx, playerID)
	if err != nil {
		return h.ackError(playerID, msg.RequestID, err)
	}
	return h.send(playerID, msg.RequestID, ws.TypeAck, ws.AckPayload{OK: true, Ticket: entry.Ticket.String()})
}

func (h *Handler) handleQueueLeave(ctx context.Context, playerID uuid.UUID, msg ws.Message) error {
	var req ws.QueueLeavePayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid queue:leave payload")
		}
	}

	var err error
	if req.Ticket == "" {
		err = h.orch.Dequeue(ctx, playerID)
	} else {
		ticket, parseErr := uuid.Parse(req.Ticket)
		if parseErr != nil {
			return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeInvalidTicket, "Invalid queue ticket")
		}
		err = h.orch.DequeueTicket(ctx, playerID, ticket)
	}
	if err != nil {
		return h.ackError(playerID, msg.RequestID, err)
	}
	return h.send(playerID, msg.RequestID, ws.TypeAck, ws.AckPayload{OK: true, Ticket: req.Ticket})
}

func (h *Handler) handleAnswerSubmit(ctx context.Context, playerID uuid.UUID, msg ws.Message) error {
	var req ws.AnswerSubmitPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid answer:submit payload")
	}

	matchID, err := uuid.Parse(req.MatchID)
	if err != nil {
		return h.sendError(playerID, msg.RequestID, httperrors.ErrCodeInvalidMatchID, "Invalid match ID")
	}

	result, err := h.orch.SubmitAnswer(ctx, matchID, playerID, req.Answer)
	if err != nil {
		return h.ackError(playerID, msg.RequestID, err)
	}
	return h.send(playerID, msg.RequestID, ws.TypeAck, ws.AckPayload{OK: true, OpponentSubmitted: result.OpponentSubmitted})
}

func (h *Handler) ackError(playerID uuid.UUID, requestID string, err error) error {
	ack := ws.AckPayload{Error: ErrorCode(err), Message: err.Error()}
	return h.send(playerID, requestID, ws.TypeAck, ack)
}

func (h *Handler) sendError(playerID uuid.UUID, requestID, code, message string) error {
	return h.send(playerID, requestID, ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
}

func (h *Handler) send(playerID uuid.UUID, requestID, msgType string, payload any) error {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	msg.RequestID = requestID
	return h.hub.SendToUser(playerID, msg)
}
