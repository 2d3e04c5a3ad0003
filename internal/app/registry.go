package app

import (
	"context"
	"sync"

	"github.com/dkeye/Nearby/internal/core"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Username string
	Session  core.MemberSession
	Cancel   context.CancelFunc
}

// Registry is the connection table: every live connection, and for the
// ones that have identified themselves, the username they speak for.
// A username is owned by at most one connection at a time.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.ConnectionID]*sessionEntry
	owners   map[string]core.ConnectionID
}

// Binding describes what BindUser displaced.
type Binding struct {
	// Superseded is the older connection that owned the username, if any.
	Superseded core.ConnectionID
	// Released is the username this connection owned before, if it changed.
	Released string
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.ConnectionID]*sessionEntry),
		owners:   make(map[string]core.ConnectionID),
	}
}

func (r *Registry) BindSignal(cid core.ConnectionID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[cid] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Msg("bound signal")
}

// BindUser makes cid the owner of username.
func (r *Registry) BindUser(cid core.ConnectionID, username string) Binding {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b Binding
	entry, ok := r.sessions[cid]
	if !ok {
		entry = &sessionEntry{}
		r.sessions[cid] = entry
	}
	if entry.Username != "" && entry.Username != username {
		b.Released = entry.Username
		if r.owners[entry.Username] == cid {
			delete(r.owners, entry.Username)
		}
	}
	if prev, ok := r.owners[username]; ok && prev != cid {
		b.Superseded = prev
		if old, ok := r.sessions[prev]; ok && old.Username == username {
			old.Username = ""
		}
	}
	entry.Username = username
	r.owners[username] = cid

	ev := log.Info().Str("module", "app.registry").Str("cid", string(cid)).Str("username", username)
	if b.Superseded != "" {
		ev = ev.Str("superseded", string(b.Superseded))
	}
	ev.Msg("bound user")
	return b
}

func (r *Registry) GetSession(cid core.ConnectionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[cid]; ok && e.Session != nil {
		return e.Session, true
	}
	return nil, false
}

// UsernameOf returns the username cid currently owns.
func (r *Registry) UsernameOf(cid core.ConnectionID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[cid]
	if !ok || e.Username == "" {
		return "", false
	}
	return e.Username, true
}

// ConnectionOf returns the connection that owns username.
func (r *Registry) ConnectionOf(username string) (core.ConnectionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cid, ok := r.owners[username]
	return cid, ok
}

// Unbind forgets cid and returns the username it owned, if any.
func (r *Registry) Unbind(cid core.ConnectionID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[cid]
	if !ok {
		return "", false
	}
	delete(r.sessions, cid)
	if e.Username != "" && r.owners[e.Username] == cid {
		delete(r.owners, e.Username)
	}
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Str("username", e.Username).Msg("unbind session")
	return e.Username, e.Username != ""
}

// Sessions is a point-in-time copy of every live session.
func (r *Registry) Sessions() []core.MemberSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.MemberSession, 0, len(r.sessions))
	for _, e := range r.sessions {
		if e.Session != nil {
			out = append(out, e.Session)
		}
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Cancel(cid core.ConnectionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[cid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Msg("canceled session")
	return true
}
