package feed

import (
	"sync"
	"time"

	"github.com/tradedeck/marketfeed/internal/model"
)

// StatusAggregator maintains the single FeedStatus snapshot for a
// session.
//
// Inbound status frames merge field by field: only fields present in
// the payload overwrite the snapshot, so partial updates never clobber
// retained values. LastUpdate is refreshed on every merge regardless of
// which fields changed.
type StatusAggregator struct {
	mu  sync.RWMutex
	cur model.FeedStatus
}

// NewStatusAggregator returns an aggregator at the disconnected
// baseline.
func NewStatusAggregator() *StatusAggregator {
	return &StatusAggregator{}
}

// Merge applies a partial status payload to the snapshot.
func (s *StatusAggregator) Merge(update model.StatusUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if update.WebsocketConnected != nil {
		s.cur.WebsocketConnected = *update.WebsocketConnected
	}
	if update.ActiveStrategies != nil {
		s.cur.ActiveStrategies = *update.ActiveStrategies
	}
	if update.LivePositions != nil {
		s.cur.LivePositions = *update.LivePositions
	}
	s.cur.LastUpdate = time.Now()
}

// Snapshot returns a copy of the current status.
func (s *StatusAggregator) Snapshot() model.FeedStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// MarkDisconnected clears the reported connectivity flag. The session
// calls this when the transport drops: a dead channel cannot report,
// so the last reported "connected" is stale. Other fields keep their
// retained values.
func (s *StatusAggregator) MarkDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur.WebsocketConnected = false
	s.cur.LastUpdate = time.Now()
}

// Reset returns the snapshot to the disconnected baseline. Called on
// manual disconnect.
func (s *StatusAggregator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = model.FeedStatus{LastUpdate: time.Now()}
}
