// Package identity answers "who is publishing?" for the publish saga.
//
// An Accessor returns the current user, or nil when nobody is signed in.
// The saga treats nil as unauthenticated and fails without touching the
// network.
package identity

import (
	"context"
	"errors"
	"regexp"
)

// User is the authenticated author of a post.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
}

// Accessor returns the current user. A nil user with a nil error means the
// caller is not signed in.
type Accessor interface {
	CurrentUser(ctx context.Context) (*User, error)
}

// ErrInvalidUserID is returned for user ids that are unsafe as storage path
// segments.
var ErrInvalidUserID = errors.New("invalid user id")

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateUserID checks that id can be used as a path segment.
func ValidateUserID(id string) error {
	if !userIDPattern.MatchString(id) {
		return ErrInvalidUserID
	}
	return nil
}

// Static always returns the same user. A Static with a nil User is
// permanently signed out.
type Static struct {
	User *User
}

// NewStatic returns a Static for userID, or a signed-out Static when
// userID is empty.
func NewStatic(userID, displayName string) *Static {
	if userID == "" {
		return &Static{}
	}
	return &Static{User: &User{ID: userID, DisplayName: displayName}}
}

func (s *Static) CurrentUser(ctx context.Context) (*User, error) {
	if s.User == nil {
		return nil, nil
	}
	u := *s.User
	return &u, nil
}
