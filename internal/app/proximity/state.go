package proximity

import (
	"maps"

	"github.com/dkeye/Nearby/internal/core"
	"github.com/dkeye/Nearby/internal/domain"
)

// state is one published version of the user table. Once published it is
// never mutated; writers clone, modify and publish a replacement.
type state struct {
	records []domain.UserRecord
	index   map[string]int
	// stale marks users whose disconnect is known but not yet persisted.
	stale map[string]core.ConnectionID
}

func newState(records []domain.UserRecord) *state {
	s := &state{
		records: make([]domain.UserRecord, 0, len(records)),
		index:   make(map[string]int, len(records)),
		stale:   make(map[string]core.ConnectionID),
	}
	for _, r := range records {
		if _, dup := s.index[r.Username]; dup {
			continue
		}
		s.index[r.Username] = len(s.records)
		s.records = append(s.records, r.Clone())
	}
	return s
}

func (s *state) clone() *state {
	return &state{
		records: domain.CloneRecords(s.records),
		index:   maps.Clone(s.index),
		stale:   maps.Clone(s.stale),
	}
}

func (s *state) lookup(username string) (*domain.UserRecord, bool) {
	i, ok := s.index[username]
	if !ok {
		return nil, false
	}
	return &s.records[i], true
}

// byConnection finds the record currently owned by cid.
func (s *state) byConnection(cid core.ConnectionID) (*domain.UserRecord, bool) {
	if cid == "" {
		return nil, false
	}
	for i := range s.records {
		if s.records[i].ConnectionID == string(cid) {
			return &s.records[i], true
		}
	}
	return nil, false
}

// live reports whether r is online from a reader's point of view.
func (s *state) live(r *domain.UserRecord) bool {
	if !r.Connected || r.ConnectionID == "" {
		return false
	}
	cid, pending := s.stale[r.Username]
	return !pending || string(cid) != r.ConnectionID
}

// settleStale folds pending offline transitions into the records.
func (s *state) settleStale() {
	for username, cid := range s.stale {
		if r, ok := s.lookup(username); ok && r.ConnectionID == string(cid) {
			*r = r.Offline()
		}
		delete(s.stale, username)
	}
}
