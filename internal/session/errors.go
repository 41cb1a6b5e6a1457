package session

import "errors"

// Precondition violations. These are surfaced to the caller synchronously and
// never retried: repeating the same request would reproduce the same error.
var (
	// ErrNotFound is returned when no session exists for a code.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyExists is returned when a session code collides on create.
	ErrAlreadyExists = errors.New("session already exists")
	// ErrAlreadyStarted is returned for lobby-only operations once the
	// session has left the lobby.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrNotHost is returned when a host-only operation is requested by
	// anyone but the session's host.
	ErrNotHost = errors.New("requester is not the session host")
	// ErrNoTeams is returned when a host tries to start with no teams joined.
	ErrNoTeams = errors.New("no teams have joined")
	// ErrDuplicateTeam is returned when a team name is already taken
	// (case-sensitive exact match).
	ErrDuplicateTeam = errors.New("team name already taken")
	// ErrUnknownTeam is returned when an answer arrives for a team that
	// never joined.
	ErrUnknownTeam = errors.New("team not found in session")
	// ErrNotPlaying is returned when gameplay operations arrive outside the
	// playing state.
	ErrNotPlaying = errors.New("session is not playing")
	// ErrStaleQuestion is returned when a submission targets a question the
	// host has already moved past.
	ErrStaleQuestion = errors.New("question is no longer current")
	// ErrOutOfOrder is returned when an advance skips or repeats an index.
	ErrOutOfOrder = errors.New("question advance out of order")
	// ErrDuplicateAnswer is returned for a second submission on the same
	// (team, question) pair. The first committed answer always wins.
	ErrDuplicateAnswer = errors.New("answer already recorded")
)

var (
	// ErrCodeSpaceExhausted is returned when code generation keeps colliding
	// with live sessions. With a six-digit space this means the deployment is
	// far past its design capacity.
	ErrCodeSpaceExhausted = errors.New("session code space exhausted")
	// ErrStoreUnavailable is returned after bounded retries of a merge that
	// kept losing write conflicts.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// IsPrecondition reports whether err is one of the validation errors a caller
// should surface as-is rather than retry.
func IsPrecondition(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrAlreadyExists, ErrAlreadyStarted, ErrNotHost,
		ErrNoTeams, ErrDuplicateTeam, ErrUnknownTeam, ErrNotPlaying,
		ErrStaleQuestion, ErrOutOfOrder, ErrDuplicateAnswer,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
