// Package session keeps per-browser state in a signed cookie: the signed-in user id and a one-shot notice.
package session

// Session is the state associated with one browser.
// A zero user id means nobody is signed in.
type Session struct {
	userID  uint
	notice  string
	changed bool
}

// New returns an empty, anonymous session.
func New() *Session {
	return &Session{}
}

// UserID returns the signed-in user id, or zero.
func (s *Session) UserID() uint {
	return s.userID
}

// SignIn associates the session with a user id.
func (s *Session) SignIn(userID uint) {
	if s.userID == userID {
		return
	}
	s.userID = userID
	s.changed = true
}

// SignOut drops the user id.
func (s *Session) SignOut() {
	if s.userID == 0 {
		return
	}
	s.userID = 0
	s.changed = true
}

// Flash stores a notice for the next rendered page. Empty notices are ignored.
func (s *Session) Flash(notice string) {
	if notice == "" || notice == s.notice {
		return
	}
	s.notice = notice
	s.changed = true
}

// Notice returns the pending notice without consuming it.
func (s *Session) Notice() string {
	return s.notice
}

// TakeNotice returns the pending notice and clears it.
func (s *Session) TakeNotice() string {
	notice := s.notice
	if notice != "" {
		s.notice = ""
		s.changed = true
	}
	return notice
}

// Changed reports whether the session must be written back to the browser.
func (s *Session) Changed() bool {
	return s.changed
}

func (s *Session) empty() bool {
	return s.userID == 0 && s.notice == ""
}
