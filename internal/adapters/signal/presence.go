package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dkeye/Nearby/internal/core"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleLocation(
	ctx context.Context,
	cid core.ConnectionID,
	conn core.SignalConnection,
	data []byte,
	fallbackUser string,
) {
	var p locationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("bad location payload")
		return
	}
	username := p.Username
	if username == "" {
		username = fallbackUser
	}
	if username == "" || p.Location == nil {
		log.Warn().Str("module", "signal").Str("cid", string(cid)).Msg("location payload missing username or location")
		return
	}

	err := ctl.Orch.OnLocationUpdate(ctx, cid, username, *p.Location)
	switch {
	case err == nil, errors.Is(err, core.ErrUnknownUser):
	case errors.Is(err, core.ErrPersistence):
		ctl.sendJSON(conn, errorResponse{Type: TypeError, Error: errPersistenceFailed})
	default:
		log.Error().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("location update")
	}
}

func (ctl *SignalWSController) handleNearby(cid core.ConnectionID, conn core.SignalConnection) {
	users := ctl.Orch.Nearby(cid)
	log.Debug().Str("module", "signal").Str("cid", string(cid)).Int("nearby", len(users)).Msg("nearby users")
	ctl.sendJSON(conn, nearbyResponse{Type: TypeNearbyUsers, Users: users})
}

func (ctl *SignalWSController) notifySuperseded(stale core.MemberSession, username string) {
	ctl.sendJSON(stale.Signal(), supersededNotice{Type: TypeSuperseded, Username: username})
}
