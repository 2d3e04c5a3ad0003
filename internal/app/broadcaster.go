package app

import (
	"github.com/dkeye/Nearby/internal/core"
	"github.com/rs/zerolog/log"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []core.MemberSession
}

// Broadcaster fans a frame out to every live connection, sender included.
// It only reads a registry snapshot, so it never waits on the presence table.
type Broadcaster struct {
	Registry *Registry
}

func NewBroadcaster(reg *Registry) *Broadcaster {
	return &Broadcaster{Registry: reg}
}

func (b *Broadcaster) Broadcast(from core.ConnectionID, data core.Frame) PublishResult {
	res := PublishResult{}
	for _, s := range b.Registry.Sessions() {
		if err := s.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, s)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "app.broadcast").Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
