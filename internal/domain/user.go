// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const MaxUsernameLen = 36

// MaxPasswordLen is the most bytes bcrypt will hash.
const MaxPasswordLen = 72

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrPasswordEmpty   = errors.New("password empty")
	ErrPasswordTooLong = errors.New("password too long")
)

// UserRecord is one row of the whole-table user store.
// ConnectionID, Location and Connected are presence fields; everything
// else belongs to the registration collaborator.
type UserRecord struct {
	Username       string    `json:"username"`
	CredentialHash string    `json:"credential_hash,omitempty"`
	ConnectionID   string    `json:"connection_id,omitempty"`
	Location       *Location `json:"location,omitempty"`
	Connected      bool      `json:"connected"`
}

// PublicUser is a UserRecord without the credential, safe to send to clients.
type PublicUser struct {
	Username  string    `json:"username"`
	Connected bool      `json:"connected"`
	Location  *Location `json:"location,omitempty"`
}

// NewUserRecord is a tiny helper to avoid ad-hoc struct literals in the auth layer.
func NewUserRecord(username, credentialHash string) (UserRecord, error) {
	if err := ValidateUsername(username); err != nil {
		return UserRecord{}, err
	}
	return UserRecord{Username: username, CredentialHash: credentialHash}, nil
}

func ValidatePassword(password string) error {
	if password == "" {
		return ErrPasswordEmpty
	}
	if len(password) > MaxPasswordLen {
		return ErrPasswordTooLong
	}
	return nil
}

func ValidateUsername(username string) error {
	if len(strings.TrimSpace(username)) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	return nil
}

// Clone returns a deep copy so callers never share the Location pointer.
func (u UserRecord) Clone() UserRecord {
	if u.Location != nil {
		loc := *u.Location
		u.Location = &loc
	}
	return u
}

func (u UserRecord) Public() PublicUser {
	p := PublicUser{Username: u.Username, Connected: u.Connected}
	if u.Location != nil {
		loc := *u.Location
		p.Location = &loc
	}
	return p
}

// Offline clears every presence field.
func (u UserRecord) Offline() UserRecord {
	u.ConnectionID = ""
	u.Location = nil
	u.Connected = false
	return u
}

// CloneRecords deep-copies a table.
func CloneRecords(in []UserRecord) []UserRecord {
	out := make([]UserRecord, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
