package entities

import (
	"slices"
)

// User is a registered account. Channels holds the durable Private room
// memberships; Notifications is the pending inbox in arrival order.
type User struct {
	Name          string
	Email         string
	Avatar        string
	Color         string
	BlockList     []string
	Channels      []string
	Notifications []Notification
}

// HasBlocked reports whether u blocked the user with email
func (u *User) HasBlocked(email string) bool {
	return slices.Contains(u.BlockList, email)
}

// HasChannel reports whether roomID is among u's durable memberships
func (u *User) HasChannel(roomID string) bool {
	return slices.Contains(u.Channels, roomID)
}

// Notification looks up a queued notification by id
func (u *User) Notification(id string) (Notification, bool) {
	i := slices.IndexFunc(u.Notifications, func(n Notification) bool { return n.ID == id })
	if i < 0 {
		return Notification{}, false
	}
	return u.Notifications[i], true
}

// HasPendingInvitation reports whether an invitation to roomID is queued
func (u *User) HasPendingInvitation(roomID string) bool {
	return slices.ContainsFunc(u.Notifications, func(n Notification) bool {
		return n.IsInvitation() && n.RoomID == roomID
	})
}

// Clone returns a deep copy safe to hand to other goroutines
func (u *User) Clone() *User {
	c := *u
	c.BlockList = cloneOrEmpty(u.BlockList)
	c.Channels = cloneOrEmpty(u.Channels)
	c.Notifications = cloneOrEmpty(u.Notifications)
	return &c
}

// Profile is the public part of a user shown in member lists
type Profile struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Color  string `json:"color"`
}

// Profile returns the public view of u
func (u *User) Profile() Profile {
	return Profile{Name: u.Name, Email: u.Email, Avatar: u.Avatar, Color: u.Color}
}

func cloneOrEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return slices.Clone(s)
}
