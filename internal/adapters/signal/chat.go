package signal

import (
	"encoding/json"

	"github.com/dkeye/Nearby/internal/core"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleChat(cid core.ConnectionID, conn core.SignalConnection, data []byte) {
	var p chatPayload
	if err := json.Unmarshal(data, &p); err != nil || len(p.Message) == 0 {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("bad chat payload")
		return
	}
	if !ctl.limiter.Allow(cid) {
		log.Warn().Str("module", "signal").Str("cid", string(cid)).Msg("chat rate limited")
		ctl.sendJSON(conn, errorResponse{Type: TypeError, Error: errRateLimited})
		return
	}

	frame, err := json.Marshal(chatBroadcast{Type: TypeChatMessage, Message: p.Message})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("chat marshal")
		return
	}
	ctl.Orch.OnChat(cid, frame)
}
