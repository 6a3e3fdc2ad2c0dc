package service

import (
	"sync/atomic"
	"time"

	"sunwatt2mqtt/pkg/pi30"
)

// SnapshotEntry is the last known record for one command, tagged stale
// when a later poll for that command failed. Stale data is kept, never
// cleared: the reader decides what staleness means.
type SnapshotEntry struct {
	Record *pi30.MeasurementRecord `json:"record"`
	Stale  bool                    `json:"stale"`
}

// Snapshot is one immutable view of the device: connection state plus the
// latest record per command. Readers always see a complete, consistent
// snapshot; updates swap the whole thing.
type Snapshot struct {
	ConnectionState string                   `json:"connection_state"`
	FaultReason     string                   `json:"fault_reason,omitempty"`
	UpdatedAt       time.Time                `json:"updated_at"`
	Entries         map[string]SnapshotEntry `json:"entries"`
}

// SnapshotStore publishes device snapshots to concurrent readers (the
// HTTP server) with a single atomic pointer swap per update. Only the
// polling engine writes; writes never block reads.
type SnapshotStore struct {
	current atomic.Pointer[Snapshot]
	now     func() time.Time
}

func NewSnapshotStore() *SnapshotStore {
	store := &SnapshotStore{now: time.Now}
	store.current.Store(&Snapshot{
		ConnectionState: pi30.StateDisconnected.String(),
		Entries:         map[string]SnapshotEntry{},
	})
	return store
}

// Current returns the latest published snapshot. The returned value must
// be treated as read-only.
func (s *SnapshotStore) Current() *Snapshot {
	return s.current.Load()
}

// Update publishes a fresh record for its command, replacing any previous
// entry for that command whole.
func (s *SnapshotStore) Update(record *pi30.MeasurementRecord) {
	s.swap(func(next *Snapshot) {
		next.Entries[record.Command] = SnapshotEntry{Record: record}
	})
}

// MarkStale tags the entry of one command after a failed poll. Entries
// keep their last record; a command that never succeeded has no entry to
// tag.
func (s *SnapshotStore) MarkStale(mnemonic string) {
	s.swap(func(next *Snapshot) {
		if entry, ok := next.Entries[mnemonic]; ok {
			entry.Stale = true
			next.Entries[mnemonic] = entry
		}
	})
}

// MarkAllStale tags every entry, used when the whole device goes away.
func (s *SnapshotStore) MarkAllStale() {
	s.swap(func(next *Snapshot) {
		for mnemonic, entry := range next.Entries {
			entry.Stale = true
			next.Entries[mnemonic] = entry
		}
	})
}

func (s *SnapshotStore) SetConnectionState(state pi30.ConnectionState, reason error) {
	s.swap(func(next *Snapshot) {
		next.ConnectionState = state.String()
		next.FaultReason = ""
		if reason != nil {
			next.FaultReason = reason.Error()
		}
	})
}

func (s *SnapshotStore) swap(mutate func(*Snapshot)) {
	prev := s.current.Load()
	next := &Snapshot{
		ConnectionState: prev.ConnectionState,
		FaultReason:     prev.FaultReason,
		UpdatedAt:       s.now(),
		Entries:         make(map[string]SnapshotEntry, len(prev.Entries)),
	}
	for mnemonic, entry := range prev.Entries {
		next.Entries[mnemonic] = entry
	}
	mutate(next)
	s.current.Store(next)
}
