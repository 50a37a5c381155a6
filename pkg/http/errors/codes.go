package errors

// Error codes for standardized error responses and WebSocket acks.
const (
	// Authentication errors
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeInvalidToken = "invalid_token"
	ErrCodeTokenExpired = "token_expired"

	// Validation errors
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeInvalidPayload = "invalid_payload"
	ErrCodeInvalidMatchID = "invalid_match_id"
	ErrCodeInvalidTicket  = "invalid_ticket"

	// Queue errors
	ErrCodeAlreadyQueued  = "already_queued"
	ErrCodeNotQueued      = "not_queued"
	ErrCodeAlreadyInMatch = "already_in_match"

	// Match errors
	ErrCodeMatchNotFound       = "match_not_found"
	ErrCodeNotInMatch          = "not_in_match"
	ErrCodeRoundNotActive      = "round_not_active"
	ErrCodeAlreadySubmitted    = "already_submitted"
	ErrCodeDeadlinePassed      = "deadline_passed"
	ErrCodeInsufficientContent = "insufficient_content"
	ErrCodeMatchCreationFailed = "match_creation_failed"

	// WebSocket errors
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"

	// Leaderboard errors
	ErrCodeLeaderboardFetchFailed = "leaderboard_fetch_failed"
)
