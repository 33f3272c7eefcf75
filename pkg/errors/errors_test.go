package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_TypeChecks(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"validation", NewValidation(CodeEmptyName, "Name can't be empty."), IsValidation},
		{"not found", NewNotFound(CodeUnknownRoom, "missing"), IsNotFound},
		{"conflict", NewConflict(CodeSelfInvite, "You can't invite yourself."), IsConflict},
		{"store", NewStoreUnavailable("save room", errors.New("timeout")), IsStoreUnavailable},
		{"session", ErrNoActiveSession, IsSessionExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.True(t, tt.check(fmt.Errorf("outer: %w", tt.err)), "wrapped errors keep their type")
		})
	}
}

func TestAppError_IsMatchesTypeAndCode(t *testing.T) {
	err := fmt.Errorf("accept: %w", ErrStaleInvitation)

	assert.ErrorIs(t, err, ErrStaleInvitation)
	assert.NotErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, CodeStaleInvitation, CodeOf(err))
}

func TestWrap_PreservesType(t *testing.T) {
	err := Wrap(ErrUnknownRoom, "leave channel")

	assert.True(t, IsNotFound(err))
	assert.Equal(t, CodeUnknownRoom, CodeOf(err))
	assert.Contains(t, err.Error(), "leave channel")
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestUserMessage(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")

	assert.Equal(t, "Couldn't connect to the database. Try again.", UserMessage(NewStoreUnavailable("save room", cause)))
	assert.Equal(t, "Name can't be empty.", UserMessage(NewValidation(CodeEmptyName, "Name can't be empty.")))
	assert.Equal(t, "Something went wrong. Try again.", UserMessage(cause))
	assert.Empty(t, UserMessage(nil))
	assert.NotContains(t, UserMessage(NewStoreUnavailable("save room", cause)), "timeout")
}
