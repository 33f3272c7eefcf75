package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/BajKull/Valks-backend/domain/core/entities"
)

// UserStore provides an in-memory implementation of ports.UserStore
type UserStore struct {
	faults
	mu    sync.RWMutex
	users map[string]*entities.User
}

// NewUserStore creates a new in-memory user store
func NewUserStore() *UserStore {
	return &UserStore{
		users: make(map[string]*entities.User),
	}
}

// LoadUsers returns copies of every stored user ordered by name
func (s *UserStore) LoadUsers(ctx context.Context) ([]*entities.User, error) {
	if err := s.check("LoadUsers"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*entities.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user.Clone())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

// GetUser returns a copy of the user or nil when missing
func (s *UserStore) GetUser(ctx context.Context, name string) (*entities.User, error) {
	if err := s.check("GetUser"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[name]
	if !ok {
		return nil, nil
	}
	return user.Clone(), nil
}

// SaveUser stores a copy of user
func (s *UserStore) SaveUser(ctx context.Context, user *entities.User) error {
	if err := s.check("SaveUser"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Name] = user.Clone()
	return nil
}

// DeleteUser removes a user
func (s *UserStore) DeleteUser(ctx context.Context, name string) error {
	if err := s.check("DeleteUser"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, name)
	return nil
}

// AddUserChannel adds roomID to the durable room list
func (s *UserStore) AddUserChannel(ctx context.Context, name, roomID string) error {
	if err := s.check("AddUserChannel"); err != nil {
		return err
	}
	return s.update(name, func(u *entities.User) {
		if !u.HasChannel(roomID) {
			u.Channels = append(u.Channels, roomID)
		}
	})
}

// RemoveUserChannel removes roomID from the durable room list
func (s *UserStore) RemoveUserChannel(ctx context.Context, name, roomID string) error {
	if err := s.check("RemoveUserChannel"); err != nil {
		return err
	}
	return s.update(name, func(u *entities.User) {
		u.Channels = slices.DeleteFunc(u.Channels, func(id string) bool { return id == roomID })
	})
}

// AddNotification queues n
func (s *UserStore) AddNotification(ctx context.Context, name string, n entities.Notification) error {
	if err := s.check("AddNotification"); err != nil {
		return err
	}
	return s.update(name, func(u *entities.User) {
		if _, ok := u.Notification(n.ID); !ok {
			u.Notifications = append(u.Notifications, n)
		}
	})
}

// RemoveNotification drops a notification by id
func (s *UserStore) RemoveNotification(ctx context.Context, name, notificationID string) error {
	if err := s.check("RemoveNotification"); err != nil {
		return err
	}
	return s.update(name, func(u *entities.User) {
		u.Notifications = slices.DeleteFunc(u.Notifications, func(n entities.Notification) bool {
			return n.ID == notificationID
		})
	})
}

// AddBlocked adds email to the block list
func (s *UserStore) AddBlocked(ctx context.Context, name, email string) error {
	if err := s.check("AddBlocked"); err != nil {
		return err
	}
	return s.update(name, func(u *entities.User) {
		if !u.HasBlocked(email) {
			u.BlockList = append(u.BlockList, email)
		}
	})
}

// RemoveBlocked removes email from the block list
func (s *UserStore) RemoveBlocked(ctx context.Context, name, email string) error {
	if err := s.check("RemoveBlocked"); err != nil {
		return err
	}
	return s.update(name, func(u *entities.User) {
		u.BlockList = slices.DeleteFunc(u.BlockList, func(e string) bool { return e == email })
	})
}

// SetAvatar replaces the avatar url
func (s *UserStore) SetAvatar(ctx context.Context, name, url string) error {
	if err := s.check("SetAvatar"); err != nil {
		return err
	}
	return s.update(name, func(u *entities.User) { u.Avatar = url })
}

// User returns a copy of the stored user, for assertions
func (s *UserStore) User(name string) (*entities.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[name]
	if !ok {
		return nil, false
	}
	return user.Clone(), true
}

func (s *UserStore) update(name string, fn func(*entities.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[name]
	if !ok {
		return fmt.Errorf("user %s not found", name)
	}
	fn(user)
	return nil
}
