package rating

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/quiz-duel/pkg/http/errors"
	ws "github.com/gokatarajesh/quiz-duel/pkg/http/ws"
)

// HTTPHandler exposes the rating leaderboard over REST.
type HTTPHandler struct {
	store  *Store
	logger zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler.
func NewHTTPHandler(store *Store, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		store:  store,
		logger: logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

// HandleGet responds with the top rated players.
// Route: GET /v1/leaderboard?limit=10
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	ctx := r.Context()
	var (
		top    []ws.LeaderboardEntry
		source = "redis"
	)

	entries, err := h.store.Top(ctx, limit)
	if err == nil {
		top = toWSEntries(entries)
	} else {
		h.logger.Warn().Err(err).Msg("redis leaderboard fetch failed")
	}

	if len(top) == 0 {
		source = "postgres"
		top, err = h.sourceFallback(ctx, limit)
		if err != nil {
			h.logger.Error().Err(err).Msg("leaderboard fallback failed")
			httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeLeaderboardFetchFailed, "failed to fetch leaderboard")
			return
		}
	}

	if top == nil {
		top = []ws.LeaderboardEntry{}
	}

	writeJSON(w, map[string]interface{}{
		"top":         top,
		"source":      source,
		"retrievedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HTTPHandler) sourceFallback(ctx context.Context, limit int) ([]ws.LeaderboardEntry, error) {
	if h.store.source == nil {
		return nil, nil
	}
	entries, err := h.store.source.TopRatings(ctx, limit)
	if err != nil {
		return nil, err
	}
	return toWSEntries(entries), nil
}

func toWSEntries(entries []Entry) []ws.LeaderboardEntry {
	out := make([]ws.LeaderboardEntry, 0, len(entries))
	for i, e := range entries {
		out = append(out, ws.LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: e.PlayerID.String(),
			Rating:   e.Rating,
			Tier:     string(e.Tier),
			Games:    e.Games,
			Wins:     e.Wins,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
