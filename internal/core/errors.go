package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownUser: a presence update named a username with no record.
	ErrUnknownUser = errors.New("unknown user")
	// ErrPersistence: the user store rejected a read or write.
	ErrPersistence = errors.New("persistence failure")

	ErrUsernameTaken      = errors.New("username already exists")
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type UnknownUserError struct {
	Username string
}

func (e *UnknownUserError) Error() string {
	return fmt.Sprintf("unknown user %q", e.Username)
}

func (e *UnknownUserError) Is(target error) bool { return target == ErrUnknownUser }

// PersistenceError wraps a store failure with the operation that caused it.
// The in-memory mutation of that operation has been rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: persist user table: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
