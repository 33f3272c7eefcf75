package entities

import "slices"

// Session binds one live connection to an authenticated user. Sessions
// are never persisted. JoinedPublic lists the Public rooms this
// connection is present in, in join order.
type Session struct {
	ConnectionID string
	UserEmail    string
	JoinedPublic []string
}

// HasJoined reports whether the session is present in roomID
func (s *Session) HasJoined(roomID string) bool {
	return slices.Contains(s.JoinedPublic, roomID)
}

// Join records presence in roomID. Returns false if already present.
func (s *Session) Join(roomID string) bool {
	if s.HasJoined(roomID) {
		return false
	}
	s.JoinedPublic = append(s.JoinedPublic, roomID)
	return true
}

// Leave forgets presence in roomID. Returns false if it was not present.
func (s *Session) Leave(roomID string) bool {
	i := slices.Index(s.JoinedPublic, roomID)
	if i < 0 {
		return false
	}
	s.JoinedPublic = slices.Delete(s.JoinedPublic, i, i+1)
	return true
}
