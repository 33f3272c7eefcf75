package services

import (
	"context"
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/application/ports"
	"github.com/BajKull/Valks-backend/domain/core/entities"
	"github.com/BajKull/Valks-backend/pkg/errors"
)

// UserView is what a freshly opened session sees: the account, its
// durable Private rooms resolved to snapshots and the featured category.
type UserView struct {
	User     *entities.User
	Rooms    []*entities.Room
	Featured string
}

// SessionRegistry maps live connections to authenticated users and
// tracks the Public rooms each connection has joined. Nothing here is
// persisted.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	byUser   map[string]map[string]struct{}

	channels *ChannelStore
	users    *UserDirectory
	featured ports.FeaturedCell
	metrics  ports.Metrics
	logger   *zap.Logger
}

type sessionEntry struct {
	mu      sync.Mutex
	session entities.Session
	closed  bool
}

// NewSessionRegistry creates an empty registry
func NewSessionRegistry(
	channels *ChannelStore,
	users *UserDirectory,
	featured ports.FeaturedCell,
	metrics ports.Metrics,
	logger *zap.Logger,
) *SessionRegistry {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &SessionRegistry{
		sessions: make(map[string]*sessionEntry),
		byUser:   make(map[string]map[string]struct{}),
		channels: channels,
		users:    users,
		featured: featured,
		metrics:  metrics,
		logger:   logger,
	}
}

// Open binds connID to the user with email
func (r *SessionRegistry) Open(ctx context.Context, email, connID string) (*UserView, error) {
	user, ok := r.users.ByEmail(email)
	if !ok {
		return nil, errors.NewNotFound(errors.CodeUnknownUser, "Try again.")
	}

	r.mu.Lock()
	if _, exists := r.sessions[connID]; exists {
		r.mu.Unlock()
		return nil, errors.NewConflict(errors.CodeDuplicateSession, "This connection already has an active session.")
	}
	r.sessions[connID] = &sessionEntry{session: entities.Session{
		ConnectionID: connID,
		UserEmail:    email,
		JoinedPublic: []string{},
	}}
	if r.byUser[email] == nil {
		r.byUser[email] = make(map[string]struct{})
	}
	r.byUser[email][connID] = struct{}{}
	count := len(r.sessions)
	r.mu.Unlock()
	r.metrics.SetActiveSessions(count)

	view := &UserView{User: user, Rooms: make([]*entities.Room, 0, len(user.Channels))}
	for _, roomID := range user.Channels {
		room, ok := r.channels.Get(roomID)
		if !ok {
			r.logger.Warn("Skipping missing room of user",
				zap.String("user", user.Name),
				zap.String("roomID", roomID),
			)
			continue
		}
		view.Rooms = append(view.Rooms, room)
	}

	featured, err := r.featured.Get(ctx)
	if err != nil {
		r.logger.Warn("Failed to read featured category", zap.Error(err))
	}
	view.Featured = featured

	r.logger.Debug("Session opened",
		zap.String("connectionID", connID),
		zap.String("user", user.Name),
	)
	return view, nil
}

// Close ends the session of connID. Public presence is withdrawn from
// every room the session joined unless another live session of the same
// user joined it too. Private rooms and durable state are untouched.
// Returns the ids of the rooms whose member list changed.
func (r *SessionRegistry) Close(ctx context.Context, connID string) []string {
	r.mu.Lock()
	entry, ok := r.sessions[connID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.sessions, connID)
	email := entry.session.UserEmail
	delete(r.byUser[email], connID)
	if len(r.byUser[email]) == 0 {
		delete(r.byUser, email)
	}
	count := len(r.sessions)
	r.mu.Unlock()
	r.metrics.SetActiveSessions(count)

	entry.mu.Lock()
	entry.closed = true
	joined := slices.Clone(entry.session.JoinedPublic)
	entry.mu.Unlock()

	affected := make([]string, 0, len(joined))
	for _, roomID := range joined {
		if r.JoinedElsewhere(email, roomID, connID) {
			continue
		}
		if _, err := r.channels.RemoveMember(ctx, roomID, email); err != nil {
			r.logger.Debug("Presence already gone",
				zap.String("roomID", roomID),
				zap.Error(err),
			)
			continue
		}
		affected = append(affected, roomID)
	}

	r.logger.Debug("Session closed",
		zap.String("connectionID", connID),
		zap.Strings("rooms", affected),
	)
	return affected
}

// Session returns a snapshot of the live session of connID
func (r *SessionRegistry) Session(connID string) (entities.Session, bool) {
	entry, ok := r.entry(connID)
	if !ok {
		return entities.Session{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return entities.Session{}, false
	}
	s := entry.session
	s.JoinedPublic = slices.Clone(s.JoinedPublic)
	return s, true
}

// AttachPublic records that connID joined the Public room roomID.
// Fails with NoActiveSession once the session has been closed.
func (r *SessionRegistry) AttachPublic(connID, roomID string) error {
	entry, ok := r.entry(connID)
	if !ok {
		return errors.ErrNoActiveSession
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return errors.ErrNoActiveSession
	}
	entry.session.Join(roomID)
	return nil
}

// DetachPublic forgets that connID joined roomID
func (r *SessionRegistry) DetachPublic(connID, roomID string) error {
	entry, ok := r.entry(connID)
	if !ok {
		return errors.ErrNoActiveSession
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return errors.ErrNoActiveSession
	}
	entry.session.Leave(roomID)
	return nil
}

// DetachPublicAll removes roomID from every session of the user
func (r *SessionRegistry) DetachPublicAll(email, roomID string) {
	for _, connID := range r.ConnectionsFor(email) {
		_ = r.DetachPublic(connID, roomID)
	}
}

// JoinedElsewhere reports whether a live session of email other than
// exceptConnID has joined roomID
func (r *SessionRegistry) JoinedElsewhere(email, roomID, exceptConnID string) bool {
	for _, connID := range r.ConnectionsFor(email) {
		if connID == exceptConnID {
			continue
		}
		if s, ok := r.Session(connID); ok && s.HasJoined(roomID) {
			return true
		}
	}
	return false
}

// EmailOf returns the user bound to connID
func (r *SessionRegistry) EmailOf(connID string) (string, bool) {
	s, ok := r.Session(connID)
	return s.UserEmail, ok
}

// ConnectionsFor returns the live connection ids of a user, sorted
func (r *SessionRegistry) ConnectionsFor(email string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]string, 0, len(r.byUser[email]))
	for connID := range r.byUser[email] {
		conns = append(conns, connID)
	}
	sort.Strings(conns)
	return conns
}

// IsOnline reports whether the user has at least one live session
func (r *SessionRegistry) IsOnline(email string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[email]) > 0
}

// DropUser closes every session of a user without touching rooms.
// Used after the account is deleted. Returns the dropped connection ids.
func (r *SessionRegistry) DropUser(email string) []string {
	r.mu.Lock()
	conns := make([]string, 0, len(r.byUser[email]))
	for connID := range r.byUser[email] {
		if entry, ok := r.sessions[connID]; ok {
			entry.mu.Lock()
			entry.closed = true
			entry.mu.Unlock()
			delete(r.sessions, connID)
		}
		conns = append(conns, connID)
	}
	delete(r.byUser, email)
	count := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(count)
	sort.Strings(conns)
	return conns
}

// Count returns the number of live sessions
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *SessionRegistry) entry(connID string) (*sessionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[connID]
	return entry, ok
}
