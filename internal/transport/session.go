package transport

import "github.com/rawblock/ecg-auth-engine/internal/auth"

// sessionShim is a thin adapter between a connection's bare session id and
// the matcher's session table, kept separate from conn so CMD:VERIFY and
// CMD:LOGOUT read as matcher operations rather than connection-state
// bookkeeping.
type sessionShim struct {
	matcher *auth.Matcher
}

func newSessionShim(matcher *auth.Matcher) *sessionShim {
	return &sessionShim{matcher: matcher}
}

// verify reports whether sessionID is currently valid.
func (s *sessionShim) verify(sessionID string) bool {
	if sessionID == "" {
		return false
	}
	_, ok := s.matcher.VerifySession(sessionID)
	return ok
}

// revoke logs a session out. A no-op on an already-absent session, since
// CMD:LOGOUT on a connection with no active session is not an error.
func (s *sessionShim) revoke(sessionID string) {
	if sessionID == "" {
		return
	}
	s.matcher.Logout(sessionID)
}
