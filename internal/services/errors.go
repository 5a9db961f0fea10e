package services

import (
	"errors"
	"fmt"

	"chatkaro-service/internal/models"
)

// Error kinds. Every error returned by a service wraps exactly one of these
// or is an internal failure.
var (
	ErrUnauthenticated = errors.New("authentication failed")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("validation failed")
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrUnauthenticated)
	ErrInvalidToken       = fmt.Errorf("%w: invalid or expired token", ErrUnauthenticated)

	ErrUserNotFound    = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrChatNotFound    = fmt.Errorf("%w: chat not found", ErrNotFound)
	ErrRequestNotFound = fmt.Errorf("%w: request not found", ErrNotFound)

	ErrNotGroupCreator = fmt.Errorf("%w: only the group creator can do this", ErrForbidden)
	ErrNotChatMember   = fmt.Errorf("%w: you are not allowed to access this chat", ErrForbidden)
	ErrNotReceiver     = fmt.Errorf("%w: you are not allowed to answer this request", ErrForbidden)

	ErrUsernameTaken       = fmt.Errorf("%w: username already exists", ErrValidation)
	ErrAvatarRequired      = fmt.Errorf("%w: please upload avatar", ErrValidation)
	ErrSelfRequest         = fmt.Errorf("%w: cannot send a request to yourself", ErrValidation)
	ErrRequestAlreadySent  = fmt.Errorf("%w: request already sent", ErrValidation)
	ErrNotGroupChat        = fmt.Errorf("%w: this is not a group chat", ErrValidation)
	ErrGroupTooSmall       = fmt.Errorf("%w: groups must have at least %d members", ErrValidation, models.GroupMinMembers)
	ErrGroupMemberLimit    = fmt.Errorf("%w: group members limit reached", ErrValidation)
	ErrInvalidGroupMembers = fmt.Errorf("%w: a group needs between %d and %d other members", ErrValidation, models.GroupMinMembers-1, models.GroupMaxMembers-1)
	ErrNoAttachments       = fmt.Errorf("%w: please upload between 1 and 5 attachments", ErrValidation)
	ErrInvalidID           = fmt.Errorf("%w: invalid id", ErrValidation)
)
