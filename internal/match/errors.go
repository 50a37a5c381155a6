package match

import (
	"errors"

	httperrors "github.com/gokatarajesh/quiz-duel/pkg/http/errors"
)

// Error is an input error returned synchronously to the caller. It never
// changes match state.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrAlreadyQueued       = &Error{Code: httperrors.ErrCodeAlreadyQueued, Message: "Player is already queued"}
	ErrNotQueued           = &Error{Code: httperrors.ErrCodeNotQueued, Message: "Player is not queued"}
	ErrInvalidTicket       = &Error{Code: httperrors.ErrCodeInvalidTicket, Message: "Ticket does not belong to player"}
	ErrAlreadyInMatch      = &Error{Code: httperrors.ErrCodeAlreadyInMatch, Message: "Player is already in a match"}
	ErrMatchNotFound       = &Error{Code: httperrors.ErrCodeMatchNotFound, Message: "Match not found"}
	ErrNotInMatch          = &Error{Code: httperrors.ErrCodeNotInMatch, Message: "Player is not part of this match"}
	ErrRoundNotActive      = &Error{Code: httperrors.ErrCodeRoundNotActive, Message: "No round is accepting answers"}
	ErrAlreadySubmitted    = &Error{Code: httperrors.ErrCodeAlreadySubmitted, Message: "Answer already submitted for this round"}
	ErrDeadlinePassed      = &Error{Code: httperrors.ErrCodeDeadlinePassed, Message: "Round deadline has passed"}
	ErrInsufficientContent = &Error{Code: httperrors.ErrCodeInsufficientContent, Message: "Not enough questions to build a balanced match"}
	ErrMatchCreation       = &Error{Code: httperrors.ErrCodeMatchCreationFailed, Message: "Match could not be created"}
	ErrShuttingDown        = &Error{Code: httperrors.ErrCodeServiceUnavailable, Message: "Service is shutting down"}
)

// ErrRecordRejected marks a persistence failure that retrying cannot fix.
var ErrRecordRejected = errors.New("match record rejected")

// ErrorCode extracts the wire code of err, or internal_error.
func ErrorCode(err error) string {
	var matchErr *Error
	if errors.As(err, &matchErr) {
		return matchErr.Code
	}
	return httperrors.ErrCodeInternalError
}
