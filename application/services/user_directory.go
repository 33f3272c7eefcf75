package services

import (
	"context"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/application/ports"
	"github.com/BajKull/Valks-backend/domain/core/entities"
	"github.com/BajKull/Valks-backend/pkg/errors"
)

// UserDirectory caches every User document and serializes writes per
// user. Each mutation writes the store first and only then updates the
// cached copy, so the cache never shows a state the store rejected.
type UserDirectory struct {
	mu      sync.RWMutex
	byEmail map[string]*userEntry
	byName  map[string]string

	store   ports.UserStore
	durable storeCaller
	logger  *zap.Logger
}

type userEntry struct {
	mu   sync.Mutex
	user *entities.User
	gone bool
}

// NewUserDirectory creates an empty directory
func NewUserDirectory(store ports.UserStore, settings Settings, metrics ports.Metrics, logger *zap.Logger) *UserDirectory {
	return &UserDirectory{
		byEmail: make(map[string]*userEntry),
		byName:  make(map[string]string),
		store:   store,
		durable: newStoreCaller(settings.StoreTimeout, metrics, logger),
		logger:  logger,
	}
}

// Load fills the cache from the store
func (d *UserDirectory) Load(ctx context.Context) error {
	var users []*entities.User
	err := d.durable.call(ctx, "LoadUsers", func(ctx context.Context) error {
		var err error
		users, err = d.store.LoadUsers(ctx)
		return err
	})
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, user := range users {
		d.byEmail[user.Email] = &userEntry{user: user.Clone()}
		d.byName[user.Name] = user.Email
	}
	d.logger.Info("Users loaded", zap.Int("count", len(users)))
	return nil
}

// Register creates a new account. Name and email must both be unused.
func (d *UserDirectory) Register(ctx context.Context, profile entities.Profile) (*entities.User, error) {
	if strings.TrimSpace(profile.Name) == "" || strings.TrimSpace(profile.Email) == "" {
		return nil, errors.NewValidation(errors.CodeInvalidInput, "Name and email are required.")
	}
	user := &entities.User{
		Name:          profile.Name,
		Email:         profile.Email,
		Avatar:        profile.Avatar,
		Color:         profile.Color,
		BlockList:     []string{},
		Channels:      []string{},
		Notifications: []entities.Notification{},
	}
	entry := &userEntry{user: user}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	d.mu.Lock()
	_, emailTaken := d.byEmail[user.Email]
	_, nameTaken := d.byName[user.Name]
	if emailTaken || nameTaken {
		d.mu.Unlock()
		return nil, errors.NewConflict(errors.CodeDuplicateUser, "User already exists.")
	}
	d.byEmail[user.Email] = entry
	d.byName[user.Name] = user.Email
	d.mu.Unlock()

	err := d.durable.call(ctx, "SaveUser", func(ctx context.Context) error {
		return d.store.SaveUser(ctx, user)
	})
	if err != nil {
		d.drop(entry)
		return nil, err
	}

	d.logger.Info("User registered", zap.String("user", user.Name))
	return user.Clone(), nil
}

// ByEmail returns a snapshot of the user with email
func (d *UserDirectory) ByEmail(email string) (*entities.User, bool) {
	entry, ok := d.entry(email)
	if !ok {
		return nil, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.gone {
		return nil, false
	}
	return entry.user.Clone(), true
}

// ByName returns a snapshot of the user with name
func (d *UserDirectory) ByName(name string) (*entities.User, bool) {
	d.mu.RLock()
	email, ok := d.byName[name]
	d.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return d.ByEmail(email)
}

// Profiles resolves emails to public profiles, skipping unknown ones
func (d *UserDirectory) Profiles(emails []string) []entities.Profile {
	profiles := make([]entities.Profile, 0, len(emails))
	for _, email := range emails {
		if user, ok := d.ByEmail(email); ok {
			profiles = append(profiles, user.Profile())
		}
	}
	return profiles
}

// AddChannel records a durable Private room membership
func (d *UserDirectory) AddChannel(ctx context.Context, email, roomID string) error {
	return d.mutate(ctx, email, "AddUserChannel",
		func(ctx context.Context, name string) error { return d.store.AddUserChannel(ctx, name, roomID) },
		func(u *entities.User) {
			if !u.HasChannel(roomID) {
				u.Channels = append(u.Channels, roomID)
			}
		})
}

// RemoveChannel forgets a durable Private room membership
func (d *UserDirectory) RemoveChannel(ctx context.Context, email, roomID string) error {
	return d.mutate(ctx, email, "RemoveUserChannel",
		func(ctx context.Context, name string) error { return d.store.RemoveUserChannel(ctx, name, roomID) },
		func(u *entities.User) {
			u.Channels = slices.DeleteFunc(u.Channels, func(id string) bool { return id == roomID })
		})
}

// AddNotification queues n for the user with email
func (d *UserDirectory) AddNotification(ctx context.Context, email string, n entities.Notification) error {
	return d.mutate(ctx, email, "AddNotification",
		func(ctx context.Context, name string) error { return d.store.AddNotification(ctx, name, n) },
		func(u *entities.User) {
			if _, exists := u.Notification(n.ID); !exists {
				u.Notifications = append(u.Notifications, n)
			}
		})
}

// QueueInvitation queues an invitation unless one for the same room is
// already pending
func (d *UserDirectory) QueueInvitation(ctx context.Context, email string, n entities.Notification) error {
	entry, ok := d.entry(email)
	if !ok {
		return errors.ErrUnknownUser
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.gone {
		return errors.ErrUnknownUser
	}
	if entry.user.HasPendingInvitation(n.RoomID) {
		return errors.NewConflict(errors.CodeAlreadyInvited, "User has already been invited to this channel.")
	}
	return d.apply(ctx, entry, "AddNotification",
		func(ctx context.Context, name string) error { return d.store.AddNotification(ctx, name, n) },
		func(u *entities.User) { u.Notifications = append(u.Notifications, n) })
}

// RemoveNotification drops a notification. Removing one that is not
// queued is a no-op and reports false.
func (d *UserDirectory) RemoveNotification(ctx context.Context, email, id string) (bool, error) {
	_, err := d.Retire(ctx, email, id)
	switch {
	case errors.CodeOf(err) == errors.CodeStaleInvitation:
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// Retire removes a queued notification and returns it. Exactly one
// concurrent caller can retire a given notification; the others get
// StaleInvitation.
func (d *UserDirectory) Retire(ctx context.Context, email, id string) (entities.Notification, error) {
	entry, ok := d.entry(email)
	if !ok {
		return entities.Notification{}, errors.ErrUnknownUser
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.gone {
		return entities.Notification{}, errors.ErrUnknownUser
	}

	n, queued := entry.user.Notification(id)
	if !queued {
		return entities.Notification{}, errors.ErrStaleInvitation
	}
	err := d.apply(ctx, entry, "RemoveNotification",
		func(ctx context.Context, name string) error { return d.store.RemoveNotification(ctx, name, id) },
		func(u *entities.User) {
			u.Notifications = slices.DeleteFunc(u.Notifications, func(q entities.Notification) bool { return q.ID == id })
		})
	if err != nil {
		return entities.Notification{}, err
	}
	return n, nil
}

// ToggleBlock blocks target if it is not blocked yet and unblocks it
// otherwise. Returns whether target is blocked afterwards.
func (d *UserDirectory) ToggleBlock(ctx context.Context, email, target string) (bool, error) {
	entry, ok := d.entry(email)
	if !ok {
		return false, errors.ErrUnknownUser
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.gone {
		return false, errors.ErrUnknownUser
	}

	if entry.user.HasBlocked(target) {
		err := d.apply(ctx, entry, "RemoveBlocked",
			func(ctx context.Context, name string) error { return d.store.RemoveBlocked(ctx, name, target) },
			func(u *entities.User) {
				u.BlockList = slices.DeleteFunc(u.BlockList, func(e string) bool { return e == target })
			})
		return err != nil, err
	}
	err := d.apply(ctx, entry, "AddBlocked",
		func(ctx context.Context, name string) error { return d.store.AddBlocked(ctx, name, target) },
		func(u *entities.User) { u.BlockList = append(u.BlockList, target) })
	return err == nil, err
}

// ChangeAvatar replaces the avatar url
func (d *UserDirectory) ChangeAvatar(ctx context.Context, email, url string) error {
	if strings.TrimSpace(url) == "" {
		return errors.NewValidation(errors.CodeInvalidInput, "Avatar url can't be empty.")
	}
	return d.mutate(ctx, email, "SetAvatar",
		func(ctx context.Context, name string) error { return d.store.SetAvatar(ctx, name, url) },
		func(u *entities.User) { u.Avatar = url })
}

// Delete removes the account durably and from the cache
func (d *UserDirectory) Delete(ctx context.Context, email string) error {
	entry, ok := d.entry(email)
	if !ok {
		return errors.ErrUnknownUser
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.gone {
		return errors.ErrUnknownUser
	}
	name := entry.user.Name
	err := d.durable.call(ctx, "DeleteUser", func(ctx context.Context) error {
		return d.store.DeleteUser(ctx, name)
	})
	if err != nil {
		return err
	}
	d.drop(entry)
	d.logger.Info("User deleted", zap.String("user", name))
	return nil
}

// Count returns the number of cached users
func (d *UserDirectory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byEmail)
}

func (d *UserDirectory) entry(email string) (*userEntry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.byEmail[email]
	return entry, ok
}

// mutate locks the user and applies a durable write followed by the
// matching in-memory change
func (d *UserDirectory) mutate(
	ctx context.Context,
	email, operation string,
	write func(ctx context.Context, name string) error,
	change func(u *entities.User),
) error {
	entry, ok := d.entry(email)
	if !ok {
		return errors.ErrUnknownUser
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.gone {
		return errors.ErrUnknownUser
	}
	return d.apply(ctx, entry, operation, write, change)
}

// apply runs write then change; the caller holds entry.mu
func (d *UserDirectory) apply(
	ctx context.Context,
	entry *userEntry,
	operation string,
	write func(ctx context.Context, name string) error,
	change func(u *entities.User),
) error {
	name := entry.user.Name
	if err := d.durable.call(ctx, operation, func(ctx context.Context) error { return write(ctx, name) }); err != nil {
		return err
	}
	change(entry.user)
	return nil
}

// drop removes entry from the indexes; the caller holds entry.mu
func (d *UserDirectory) drop(entry *userEntry) {
	entry.gone = true
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.byEmail[entry.user.Email] == entry {
		delete(d.byEmail, entry.user.Email)
	}
	if d.byName[entry.user.Name] == entry.user.Email {
		delete(d.byName, entry.user.Name)
	}
}
