package app

import (
	"fmt"
	"testing"

	"github.com/dkeye/Nearby/internal/core"
	"github.com/dkeye/Nearby/internal/core/mocks"
	"github.com/stretchr/testify/assert"
)

func TestBroadcaster_DeliversToEveryoneIncludingSender(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	conns := map[core.ConnectionID]*mocks.FakeConn{}
	for _, id := range []core.ConnectionID{"a", "b", "c"} {
		conns[id] = mocks.NewFakeConn(16)
		reg.BindSignal(id, core.NewMemberSession(id, conns[id]), nil)
	}
	b := NewBroadcaster(reg)

	for i := range 3 {
		res := b.Broadcast("a", core.Frame(fmt.Sprintf("m%d", i)))
		assert.Equal(t, 3, res.SentTo)
		assert.Empty(t, res.Dropped)
	}
	for id, c := range conns {
		assert.Equal(t, []string{"m0", "m1", "m2"}, c.Received(), "connection %s", id)
	}
}

func TestBroadcaster_SlowRecipientDoesNotBlockOthers(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	fast := mocks.NewFakeConn(16)
	slow := mocks.NewFakeConn(0)
	reg.BindSignal("fast", core.NewMemberSession("fast", fast), nil)
	reg.BindSignal("slow", core.NewMemberSession("slow", slow), nil)

	res := NewBroadcaster(reg).Broadcast("fast", core.Frame("hi"))
	assert.Equal(t, 1, res.SentTo)
	if assert.Len(t, res.Dropped, 1) {
		assert.Equal(t, core.ConnectionID("slow"), res.Dropped[0].ID())
	}
	assert.Equal(t, []string{"hi"}, fast.Received())
}

func TestSimplePolicy(t *testing.T) {
	t.Parallel()
	assert.Equal(t, KickMember, SimplePolicy{}.OnBackPressure(nil))
}
