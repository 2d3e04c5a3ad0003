package signal

import "github.com/dkeye/Nearby/internal/core"

func (ctl *SignalWSController) handlePing(conn core.SignalConnection) {
	ctl.sendJSON(conn, envelope{Type: TypePong})
}
