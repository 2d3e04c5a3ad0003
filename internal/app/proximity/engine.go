// Package proximity holds the process-wide presence table: every registered
// user, who is connected and where they last said they were.
//
// Readers work on an immutable snapshot and never wait for disk I/O.
// Writers are serialized: each one clones the current table, applies its
// change, persists the whole table and only then publishes it, so a failed
// write leaves the previous table in place.
package proximity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dkeye/Nearby/internal/core"
	"github.com/dkeye/Nearby/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Options struct {
	// RadiusKm is the inclusive match distance for QueryNearby.
	RadiusKm float64
	// EarthRadiusKm is the sphere radius for the haversine formula.
	EarthRadiusKm float64
	// Retries is how many times a store write is attempted before the
	// change is abandoned. Zero means one attempt.
	Retries uint
	// RetryInterval is the first back-off delay between attempts.
	RetryInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		RadiusKm:      domain.DefaultRadiusKm,
		EarthRadiusKm: domain.DefaultEarthRadiusKm,
		Retries:       3,
		RetryInterval: 50 * time.Millisecond,
	}
}

// errUnchanged lets a mutation skip the write when it found nothing to do.
var errUnchanged = errors.New("unchanged")

type Stats struct {
	Registered int `json:"registered"`
	Online     int `json:"online"`
	Located    int `json:"located"`
}

type Engine struct {
	store core.UserStore
	opts  Options

	writeMu sync.Mutex // serializes read-modify-write cycles, held across Save

	mu  sync.RWMutex // guards cur
	cur *state
	log zerolog.Logger
}

func NewEngine(store core.UserStore, opts Options) *Engine {
	if opts.EarthRadiusKm <= 0 {
		opts.EarthRadiusKm = domain.DefaultEarthRadiusKm
	}
	return &Engine{
		store: store,
		opts:  opts,
		cur:   newState(nil),
		log:   log.With().Str("module", "proximity").Logger(),
	}
}

func (e *Engine) current() *state {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cur
}

func (e *Engine) publish(s *state) {
	e.mu.Lock()
	e.cur = s
	e.mu.Unlock()
}

// Load replaces the in-memory table with the store's contents. Presence
// fields are reset, since no connection survives a restart, and the reset
// table is written back.
func (e *Engine) Load(ctx context.Context) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	records, err := e.store.Load(ctx)
	if err != nil {
		return &core.PersistenceError{Op: "load", Err: err}
	}
	next := newState(records)
	if len(next.records) != len(records) {
		e.log.Warn().Int("stored", len(records)).Int("kept", len(next.records)).Msg("duplicate usernames in store, kept first")
	}
	for i := range next.records {
		next.records[i] = next.records[i].Offline()
	}
	if err := e.save(ctx, "load", next); err != nil {
		return err
	}
	e.publish(next)
	e.log.Info().Int("users", len(next.records)).Msg("presence table loaded")
	return nil
}

// Flush marks every user offline and persists the table. Called on shutdown.
func (e *Engine) Flush(ctx context.Context) error {
	return e.commit(ctx, "flush", func(s *state) error {
		for i := range s.records {
			s.records[i] = s.records[i].Offline()
		}
		clear(s.stale)
		return nil
	})
}

// UpdateLocation binds username to cid, stores loc and marks the user
// connected. An unknown username fails with *core.UnknownUserError.
func (e *Engine) UpdateLocation(ctx context.Context, cid core.ConnectionID, username string, loc domain.Location) error {
	return e.commit(ctx, "update_location", func(s *state) error {
		r, ok := s.lookup(username)
		if !ok {
			return &core.UnknownUserError{Username: username}
		}
		// a connection speaks for one username; switching names releases the old one
		if prev, ok := s.byConnection(cid); ok && prev.Username != username {
			*prev = prev.Offline()
		}
		r.ConnectionID = string(cid)
		r.Location = &domain.Location{Latitude: loc.Latitude, Longitude: loc.Longitude}
		r.Connected = true
		delete(s.stale, username)
		return nil
	})
}

// MarkOffline clears the presence fields of username if cid still owns it.
// It reports whether anything changed. When the write cannot be persisted
// the user is hidden from queries anyway and the offline transition is
// folded into the next successful write.
func (e *Engine) MarkOffline(ctx context.Context, username string, cid core.ConnectionID) (bool, error) {
	changed := false
	err := e.commit(ctx, "mark_offline", func(s *state) error {
		r, ok := s.lookup(username)
		if !ok || r.ConnectionID != string(cid) {
			return errUnchanged
		}
		*r = r.Offline()
		changed = true
		return nil
	})
	if err == nil {
		return changed, nil
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	next := e.current().clone()
	if r, ok := next.lookup(username); ok && r.ConnectionID == string(cid) {
		next.stale[username] = cid
		e.publish(next)
	}
	return false, err
}

// AddRecord appends a new user. It is the registration collaborator's
// entry point; the presence engine itself never creates users.
func (e *Engine) AddRecord(ctx context.Context, rec domain.UserRecord) error {
	return e.commit(ctx, "add_record", func(s *state) error {
		if _, exists := s.index[rec.Username]; exists {
			return core.ErrUsernameTaken
		}
		s.index[rec.Username] = len(s.records)
		s.records = append(s.records, rec.Offline())
		return nil
	})
}

// Lookup returns a copy of the record for username.
func (e *Engine) Lookup(username string) (domain.UserRecord, bool) {
	r, ok := e.current().lookup(username)
	if !ok {
		return domain.UserRecord{}, false
	}
	return r.Clone(), true
}

// QueryNearby returns every other online, located user within RadiusKm of
// the user owning cid. A caller without a location gets an empty result.
func (e *Engine) QueryNearby(cid core.ConnectionID) []domain.PublicUser {
	s := e.current()
	out := []domain.PublicUser{}

	me, ok := s.byConnection(cid)
	if !ok || me.Location == nil || !s.live(me) {
		return out
	}
	for i := range s.records {
		r := &s.records[i]
		if r.Username == me.Username || r.Location == nil || !s.live(r) {
			continue
		}
		if domain.Haversine(*me.Location, *r.Location, e.opts.EarthRadiusKm) <= e.opts.RadiusKm {
			out = append(out, r.Public())
		}
	}
	return out
}

// Online returns the public view of every connected user.
func (e *Engine) Online() []domain.PublicUser {
	s := e.current()
	out := []domain.PublicUser{}
	for i := range s.records {
		if s.live(&s.records[i]) {
			out = append(out, s.records[i].Public())
		}
	}
	return out
}

func (e *Engine) Stats() Stats {
	s := e.current()
	st := Stats{Registered: len(s.records)}
	for i := range s.records {
		if !s.live(&s.records[i]) {
			continue
		}
		st.Online++
		if s.records[i].Location != nil {
			st.Located++
		}
	}
	return st
}

func (e *Engine) commit(ctx context.Context, op string, mutate func(*state) error) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	next := e.current().clone()
	if err := mutate(next); err != nil {
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	next.settleStale()
	if err := e.save(ctx, op, next); err != nil {
		return err
	}
	e.publish(next)
	return nil
}

func (e *Engine) save(ctx context.Context, op string, s *state) error {
	tries := e.opts.Retries
	if tries == 0 {
		tries = 1
	}
	b := backoff.NewExponentialBackOff()
	if e.opts.RetryInterval > 0 {
		b.InitialInterval = e.opts.RetryInterval
	}
	records := domain.CloneRecords(s.records)

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := e.store.Save(ctx, records)
		if err != nil {
			e.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("save failed")
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
	if err != nil {
		e.log.Error().Err(err).Str("op", op).Msg("giving up on save")
		return &core.PersistenceError{Op: op, Err: err}
	}
	return nil
}
