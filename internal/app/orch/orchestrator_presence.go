package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Nearby/internal/app"
	"github.com/dkeye/Nearby/internal/core"
	"github.com/dkeye/Nearby/internal/domain"
	"github.com/rs/zerolog/log"
)

// OnLocationUpdate stores the location and binds cid to username. If another
// connection owned username it is superseded according to o.Supersede.
func (o *Orchestrator) OnLocationUpdate(ctx context.Context, cid core.ConnectionID, username string, loc domain.Location) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.Engine.UpdateLocation(ctx, cid, username, loc); err != nil {
		if errors.Is(err, core.ErrUnknownUser) {
			log.Warn().Str("module", "orch").Str("cid", string(cid)).Str("username", username).Msg("location from unknown user dropped")
		} else {
			log.Error().Err(err).Str("module", "orch").Str("cid", string(cid)).Str("username", username).Msg("location update failed")
		}
		return err
	}

	b := o.Registry.BindUser(cid, username)
	if b.Released != "" {
		log.Info().Str("module", "orch").Str("cid", string(cid)).Str("released", b.Released).Str("username", username).Msg("connection switched username")
	}
	if b.Superseded != "" {
		o.supersede(b.Superseded, username)
	}
	return nil
}

func (o *Orchestrator) supersede(stale core.ConnectionID, username string) {
	sess, ok := o.Registry.GetSession(stale)
	if !ok {
		return
	}
	log.Info().Str("module", "orch").Str("stale", string(stale)).Str("username", username).Msg("connection superseded")
	switch o.Supersede {
	case app.CloseStale:
		o.Registry.Cancel(stale)
		sess.Signal().Close()
	case app.NotifyStale:
		if o.OnSuperseded != nil {
			o.OnSuperseded(sess, username)
		}
	}
}

// Nearby answers "who is near me" for the user bound to cid.
func (o *Orchestrator) Nearby(cid core.ConnectionID) []domain.PublicUser {
	return o.Engine.QueryNearby(cid)
}
