package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/application/ports"
	"github.com/BajKull/Valks-backend/domain/core/entities"
)

// UserStore implements ports.UserStore. Each user is one USER#<name>
// document; channels and block list are string sets and notifications
// a map keyed by notification id.
type UserStore struct {
	table *Table
}

var _ ports.UserStore = (*UserStore)(nil)

// NewUserStore creates a user store on table
func NewUserStore(table *Table) *UserStore {
	return &UserStore{table: table}
}

// LoadUsers scans every user document
func (s *UserStore) LoadUsers(ctx context.Context) ([]*entities.User, error) {
	items, err := s.table.scanEntities(ctx, "LoadUsers", entityUser)
	if err != nil {
		return nil, err
	}

	users := make([]*entities.User, 0, len(items))
	for _, item := range items {
		user, err := userFromItem(item)
		if err != nil {
			s.table.logger.Warn("Skipping unreadable user item", zap.Error(err))
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// GetUser reads one user, nil when missing
func (s *UserStore) GetUser(ctx context.Context, name string) (*entities.User, error) {
	item, err := s.table.get(ctx, "GetUser", userKey(name))
	if err != nil || item == nil {
		return nil, err
	}
	return userFromItem(item)
}

// SaveUser writes the whole user document
func (s *UserStore) SaveUser(ctx context.Context, user *entities.User) error {
	item, err := userToItem(user)
	if err != nil {
		return err
	}
	return s.table.put(ctx, "SaveUser", item)
}

// DeleteUser removes the user document
func (s *UserStore) DeleteUser(ctx context.Context, name string) error {
	return s.table.delete(ctx, "DeleteUser", userKey(name))
}

func (s *UserStore) AddUserChannel(ctx context.Context, name, roomID string) error {
	update := expression.Add(expression.Name("Channels"), expression.Value(stringSet{roomID}))
	return s.table.update(ctx, "AddUserChannel", userKey(name), update)
}

func (s *UserStore) RemoveUserChannel(ctx context.Context, name, roomID string) error {
	update := expression.Delete(expression.Name("Channels"), expression.Value(stringSet{roomID}))
	return s.table.update(ctx, "RemoveUserChannel", userKey(name), update)
}

// AddNotification sets Notifications.<id>
func (s *UserStore) AddNotification(ctx context.Context, name string, n entities.Notification) error {
	update := expression.Set(notificationPath(n.ID), expression.Value(toNotificationItem(n)))
	return s.table.update(ctx, "AddNotification", userKey(name), update)
}

// RemoveNotification removes Notifications.<id>
func (s *UserStore) RemoveNotification(ctx context.Context, name, notificationID string) error {
	update := expression.Remove(notificationPath(notificationID))
	return s.table.update(ctx, "RemoveNotification", userKey(name), update)
}

func (s *UserStore) AddBlocked(ctx context.Context, name, email string) error {
	update := expression.Add(expression.Name("Blocked"), expression.Value(stringSet{email}))
	return s.table.update(ctx, "AddBlocked", userKey(name), update)
}

func (s *UserStore) RemoveBlocked(ctx context.Context, name, email string) error {
	update := expression.Delete(expression.Name("Blocked"), expression.Value(stringSet{email}))
	return s.table.update(ctx, "RemoveBlocked", userKey(name), update)
}

func (s *UserStore) SetAvatar(ctx context.Context, name, url string) error {
	update := expression.Set(expression.Name("Avatar"), expression.Value(url))
	return s.table.update(ctx, "SetAvatar", userKey(name), update)
}

func notificationPath(id string) expression.NameBuilder {
	return expression.Name("Notifications." + id)
}
