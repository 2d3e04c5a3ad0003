package orch

import (
	"github.com/dkeye/Nearby/internal/app"
	"github.com/dkeye/Nearby/internal/core"
)

// OnChat delivers data to every live connection, sender included. Delivery
// never takes the lifecycle lock, so a slow presence write cannot hold it up.
func (o *Orchestrator) OnChat(from core.ConnectionID, data core.Frame) app.PublishResult {
	res := o.Broadcaster.Broadcast(from, data)
	if o.Policy == nil {
		return res
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(slow) {
		case app.KickMember:
			o.Kick(slow.ID())
		case app.DropFrame, app.NoAction:
		}
	}
	return res
}
