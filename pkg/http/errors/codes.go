package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeForbidden     = "forbidden"
	ErrCodeInvalidToken  = "invalid_token"
	ErrCodeTokenExpired  = "token_expired"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// Session errors
	ErrCodeSessionNotFound    = "session_not_found"
	ErrCodeSessionExists      = "session_exists"
	ErrCodeSessionStarted     = "session_already_started"
	ErrCodeSessionNotPlaying  = "session_not_playing"
	ErrCodeNotHost            = "not_host"
	ErrCodeNoTeams            = "no_teams"
	ErrCodeDuplicateTeam      = "duplicate_team"
	ErrCodeUnknownTeam        = "unknown_team"
	ErrCodeStaleQuestion      = "stale_question"
	ErrCodeOutOfOrder         = "out_of_order_advance"
	ErrCodeDuplicateAnswer    = "duplicate_answer"
	ErrCodeCodeSpaceExhausted = "code_space_exhausted"

	// Quiz library errors
	ErrCodeQuizNotFound     = "quiz_not_found"
	ErrCodeQuizSaveFailed   = "quiz_save_failed"
	ErrCodeGenerationFailed = "generation_failed"
	ErrCodeExtractionFailed = "extraction_failed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"
	ErrCodeConnectionError    = "connection_error"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"
)
