package service

import (
	"errors"
	"testing"
	"time"

	"sunwatt2mqtt/pkg/pi30"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeTestRecord(t *testing.T, cmd pi30.Command, payload string) *pi30.MeasurementRecord {
	t.Helper()
	record, err := pi30.Decode(cmd, []byte(payload), time.Now())
	require.NoError(t, err)
	return record
}

func TestSnapshotStoreUpdate(t *testing.T) {

	assert := assert.New(t)

	store := NewSnapshotStore()
	assert.Equal("disconnected", store.Current().ConnectionState)
	assert.Empty(store.Current().Entries)

	record := decodeTestRecord(t, pi30.CommandQPIGS, pi30.TestPayloadQPIGS)
	store.Update(record)

	entry, ok := store.Current().Entries["QPIGS"]
	require.True(t, ok)
	assert.False(entry.Stale)
	assert.Same(record, entry.Record)
}

func TestSnapshotStoreStaleKeepsData(t *testing.T) {

	assert := assert.New(t)

	store := NewSnapshotStore()
	record := decodeTestRecord(t, pi30.CommandQPIGS, pi30.TestPayloadQPIGS)
	store.Update(record)

	store.MarkStale("QPIGS")

	entry := store.Current().Entries["QPIGS"]
	assert.True(entry.Stale)
	assert.Same(record, entry.Record, "stale entries keep their last record")

	// a fresh poll clears the tag
	store.Update(decodeTestRecord(t, pi30.CommandQPIGS, pi30.TestPayloadQPIGS))
	assert.False(store.Current().Entries["QPIGS"].Stale)
}

func TestSnapshotStoreStaleUnknownCommand(t *testing.T) {

	assert := assert.New(t)

	store := NewSnapshotStore()
	store.MarkStale("QPIGS")

	assert.Empty(store.Current().Entries, "no entry is created for a command that never succeeded")
}

func TestSnapshotStoreMarkAllStale(t *testing.T) {

	assert := assert.New(t)

	store := NewSnapshotStore()
	store.Update(decodeTestRecord(t, pi30.CommandQPIGS, pi30.TestPayloadQPIGS))
	store.Update(decodeTestRecord(t, pi30.CommandQMOD, pi30.TestPayloadQMOD))

	store.MarkAllStale()

	for mnemonic, entry := range store.Current().Entries {
		assert.True(entry.Stale, mnemonic)
	}
}

func TestSnapshotStoreAtomicView(t *testing.T) {

	assert := assert.New(t)

	store := NewSnapshotStore()
	store.Update(decodeTestRecord(t, pi30.CommandQPIGS, pi30.TestPayloadQPIGS))

	view := store.Current()
	store.SetConnectionState(pi30.StateFaulted, errors.New("device gone"))
	store.MarkAllStale()

	// the earlier view is untouched by later writes
	assert.Equal("disconnected", view.ConnectionState)
	assert.False(view.Entries["QPIGS"].Stale)

	now := store.Current()
	assert.Equal("faulted", now.ConnectionState)
	assert.Equal("device gone", now.FaultReason)
}
