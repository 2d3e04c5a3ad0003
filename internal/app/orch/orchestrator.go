// Package orch is the connection lifecycle manager. It keeps the connection
// registry and the presence table in step: connect, first location (which
// binds a username), supersession by a newer connection and disconnect.
package orch

import (
	"context"
	"sync"

	"github.com/dkeye/Nearby/internal/app"
	"github.com/dkeye/Nearby/internal/app/proximity"
	"github.com/dkeye/Nearby/internal/core"
	"github.com/rs/zerolog/log"
)

type Orchestrator struct {
	Registry    *app.Registry
	Engine      *proximity.Engine
	Broadcaster *app.Broadcaster
	Policy      app.Policy
	Supersede   app.SupersedeAction
	// OnSuperseded is called with the stale session under NotifyStale.
	OnSuperseded func(stale core.MemberSession, username string)

	// mu serializes lifecycle transitions so the registry and the presence
	// table never disagree about who owns a username.
	mu sync.Mutex
}

func New(reg *app.Registry, engine *proximity.Engine) *Orchestrator {
	return &Orchestrator{
		Registry:    reg,
		Engine:      engine,
		Broadcaster: app.NewBroadcaster(reg),
		Policy:      app.SimplePolicy{},
		Supersede:   app.NotifyStale,
	}
}

// OnConnect accepts a connection. No user is associated until its first
// location update.
func (o *Orchestrator) OnConnect(cid core.ConnectionID, sess core.MemberSession, cancel context.CancelFunc) {
	o.Registry.BindSignal(cid, sess, cancel)
}

// OnDisconnect marks the user bound to cid offline. A connection that never
// sent a location, or that was superseded, leaves presence untouched.
func (o *Orchestrator) OnDisconnect(ctx context.Context, cid core.ConnectionID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	username, bound := o.Registry.Unbind(cid)
	if !bound {
		return nil
	}
	changed, err := o.Engine.MarkOffline(ctx, username, cid)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("cid", string(cid)).Str("username", username).Msg("offline transition not persisted")
		return err
	}
	log.Info().Str("module", "orch").Str("cid", string(cid)).Str("username", username).Bool("changed", changed).Msg("user offline")
	return nil
}

// Kick closes a connection from the server side. Its read loop then runs
// the normal OnDisconnect path.
func (o *Orchestrator) Kick(cid core.ConnectionID) {
	sess, ok := o.Registry.GetSession(cid)
	o.Registry.Cancel(cid)
	if ok {
		sess.Signal().Close()
	}
	log.Info().Str("module", "orch").Str("cid", string(cid)).Msg("kicked")
}
