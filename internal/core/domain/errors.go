package domain

import (
	"errors"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrUserExists         = errors.New("user with email or username already exists")
	ErrUserNotFound       = errors.New("user does not exist")
	ErrInvalidCredentials = errors.New("invalid user credentials")
	ErrUnauthorized       = errors.New("unauthorized request")
	ErrChannelNotFound    = errors.New("channel does not exist")

	// Token verification outcomes. They never reach the client as such.
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenInvalid        = errors.New("token invalid")
	ErrSessionSlotMismatch = errors.New("refresh token does not match the active session")
	ErrRefreshInProgress   = errors.New("refresh already in progress for user")

	// ErrRefreshRejected is the single outward error of a failed refresh.
	ErrRefreshRejected = errors.New("refresh token is expired or used")
	// ErrTokenIssue masks minting and slot persistence failures during login.
	ErrTokenIssue = errors.New("something went wrong while generating refresh and access token")
)

// ValidationError lists the problems found in a request. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Details []string
}

// NewValidationError builds a ValidationError from one or more messages.
func NewValidationError(details ...string) *ValidationError {
	return &ValidationError{Details: details}
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return ErrValidation.Error()
	}
	return strings.Join(e.Details, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
