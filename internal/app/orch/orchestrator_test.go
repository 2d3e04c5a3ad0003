package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Nearby/internal/app"
	"github.com/dkeye/Nearby/internal/app/proximity"
	"github.com/dkeye/Nearby/internal/core"
	"github.com/dkeye/Nearby/internal/core/mocks"
	"github.com/dkeye/Nearby/internal/domain"
	"github.com/dkeye/Nearby/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	origin   = domain.Location{Latitude: 0, Longitude: 0}
	close500 = domain.Location{Latitude: 0, Longitude: 0.005}
	far2k    = domain.Location{Latitude: 0, Longitude: 0.02}
)

func engineOptions() proximity.Options {
	opts := proximity.DefaultOptions()
	opts.Retries = 1
	opts.RetryInterval = time.Millisecond
	return opts
}

func newTestOrch(t *testing.T, users ...string) *Orchestrator {
	t.Helper()
	seed := make([]domain.UserRecord, 0, len(users))
	for _, u := range users {
		seed = append(seed, domain.UserRecord{Username: u, CredentialHash: "h"})
	}
	engine := proximity.NewEngine(memory.NewStore(seed...), engineOptions())
	require.NoError(t, engine.Load(context.Background()))
	return New(app.NewRegistry(), engine)
}

func connect(o *Orchestrator, cid core.ConnectionID, capacity int) *mocks.FakeConn {
	c := mocks.NewFakeConn(capacity)
	o.OnConnect(cid, core.NewMemberSession(cid, c), nil)
	return c
}

func names(users []domain.PublicUser) []string {
	out := []string{}
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}

func TestOrchestrator_NearbyScenario(t *testing.T) {
	ctx := context.Background()
	o := newTestOrch(t, "A", "B", "C")
	for _, id := range []core.ConnectionID{"ca", "cb", "cc"} {
		connect(o, id, 8)
	}
	require.NoError(t, o.OnLocationUpdate(ctx, "ca", "A", origin))
	require.NoError(t, o.OnLocationUpdate(ctx, "cb", "B", close500))
	require.NoError(t, o.OnLocationUpdate(ctx, "cc", "C", far2k))

	assert.Equal(t, []string{"B"}, names(o.Nearby("ca")))
	assert.Equal(t, []string{"A"}, names(o.Nearby("cb")))
	assert.Empty(t, o.Nearby("cc"))
}

func TestOrchestrator_UnknownUserIsDropped(t *testing.T) {
	ctx := context.Background()
	o := newTestOrch(t, "A")
	connect(o, "c1", 8)

	err := o.OnLocationUpdate(ctx, "c1", "ghost", origin)
	assert.ErrorIs(t, err, core.ErrUnknownUser)
	_, bound := o.Registry.UsernameOf("c1")
	assert.False(t, bound)
}

func TestOrchestrator_DisconnectRemovesFromNearby(t *testing.T) {
	ctx := context.Background()
	o := newTestOrch(t, "A", "B")
	connect(o, "ca", 8)
	connect(o, "cb", 8)
	require.NoError(t, o.OnLocationUpdate(ctx, "ca", "A", origin))
	require.NoError(t, o.OnLocationUpdate(ctx, "cb", "B", origin))
	require.Equal(t, []string{"B"}, names(o.Nearby("ca")))

	require.NoError(t, o.OnDisconnect(ctx, "cb"))
	assert.Empty(t, o.Nearby("ca"))

	rec, _ := o.Engine.Lookup("B")
	assert.False(t, rec.Connected)
	assert.Empty(t, rec.ConnectionID)
	assert.Nil(t, rec.Location)
	_, ok := o.Registry.GetSession("cb")
	assert.False(t, ok)
}

func TestOrchestrator_DisconnectBeforeLocationIsNoop(t *testing.T) {
	ctx := context.Background()
	o := newTestOrch(t, "A")
	connect(o, "c1", 8)

	assert.NoError(t, o.OnDisconnect(ctx, "c1"))
	assert.NoError(t, o.OnDisconnect(ctx, "never-seen"))
	assert.Zero(t, o.Registry.Count())
}

func TestOrchestrator_SupersessionNotify(t *testing.T) {
	ctx := context.Background()
	o := newTestOrch(t, "A", "B")
	c1 := connect(o, "c1", 8)
	connect(o, "c2", 8)
	connect(o, "cb", 8)

	var notified []string
	o.OnSuperseded = func(stale core.MemberSession, username string) {
		notified = append(notified, string(stale.ID())+":"+username)
	}

	require.NoError(t, o.OnLocationUpdate(ctx, "c1", "A", origin))
	require.NoError(t, o.OnLocationUpdate(ctx, "cb", "B", origin))
	require.NoError(t, o.OnLocationUpdate(ctx, "c2", "A", origin))
	assert.Equal(t, []string{"c1:A"}, notified)
	assert.False(t, c1.IsClosed())

	// the old connection going away does not take A offline
	require.NoError(t, o.OnDisconnect(ctx, "c1"))
	rec, _ := o.Engine.Lookup("A")
	assert.True(t, rec.Connected)
	assert.Equal(t, "c2", rec.ConnectionID)
	assert.Equal(t, []string{"A"}, names(o.Nearby("cb")))

	require.NoError(t, o.OnDisconnect(ctx, "c2"))
	assert.Empty(t, o.Nearby("cb"))
}

func TestOrchestrator_SupersessionClose(t *testing.T) {
	ctx := context.Background()
	o := newTestOrch(t, "A")
	o.Supersede = app.CloseStale
	c1 := connect(o, "c1", 8)
	connect(o, "c2", 8)

	require.NoError(t, o.OnLocationUpdate(ctx, "c1", "A", origin))
	require.NoError(t, o.OnLocationUpdate(ctx, "c2", "A", origin))
	assert.True(t, c1.IsClosed())
}

func TestOrchestrator_ChatReachesEveryoneInOrder(t *testing.T) {
	o := newTestOrch(t)
	conns := []*mocks.FakeConn{connect(o, "a", 16), connect(o, "b", 16), connect(o, "c", 16)}

	for i := range 3 {
		res := o.OnChat("a", core.Frame(fmt.Sprintf("msg-%d", i)))
		assert.Equal(t, 3, res.SentTo)
	}
	for _, c := range conns {
		assert.Equal(t, []string{"msg-0", "msg-1", "msg-2"}, c.Received())
	}
}

func TestOrchestrator_ChatKicksSlowConsumer(t *testing.T) {
	o := newTestOrch(t)
	fast := connect(o, "fast", 16)
	slow := connect(o, "slow", 0)

	res := o.OnChat("fast", core.Frame("hello"))
	assert.Equal(t, 1, res.SentTo)
	assert.True(t, slow.IsClosed())
	assert.False(t, fast.IsClosed())
	assert.Equal(t, []string{"hello"}, fast.Received())
}

func TestOrchestrator_PersistenceFailureKeepsBindingUncommitted(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockUserStore(ctrl)
	gomock.InOrder(
		store.EXPECT().Load(gomock.Any()).Return([]domain.UserRecord{{Username: "A"}}, nil),
		store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil),
		store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("disk full")),
	)
	engine := proximity.NewEngine(store, engineOptions())
	require.NoError(t, engine.Load(ctx))
	o := New(app.NewRegistry(), engine)
	connect(o, "c1", 8)

	err := o.OnLocationUpdate(ctx, "c1", "A", origin)
	assert.ErrorIs(t, err, core.ErrPersistence)
	_, bound := o.Registry.UsernameOf("c1")
	assert.False(t, bound)
	rec, _ := engine.Lookup("A")
	assert.False(t, rec.Connected)
}

func TestOrchestrator_ConcurrentLifecycle(t *testing.T) {
	ctx := context.Background()
	users := make([]string, 20)
	for i := range users {
		users[i] = fmt.Sprintf("u%d", i)
	}
	o := newTestOrch(t, users...)

	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cid := core.ConnectionID("c-" + u)
			connect(o, cid, 64)
			assert.NoError(t, o.OnLocationUpdate(ctx, cid, u, domain.Location{Latitude: 0, Longitude: float64(i) * 0.0001}))
			o.OnChat(cid, core.Frame(u))
			_ = o.Nearby(cid)
			if i%2 == 0 {
				assert.NoError(t, o.OnDisconnect(ctx, cid))
			}
		}()
	}
	wg.Wait()

	st := o.Engine.Stats()
	assert.Equal(t, len(users)/2, st.Online)
	assert.Equal(t, len(users)/2, o.Registry.Count())
}
