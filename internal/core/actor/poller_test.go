package actor

import (
	"sync"
	"testing"
	"time"

	adactor "sunwatt2mqtt/internal/adapter/actor"
	"sunwatt2mqtt/internal/core/domain"
	"sunwatt2mqtt/internal/core/service"
	"sunwatt2mqtt/internal/util"
	"sunwatt2mqtt/internal/util/actorutil"
	"sunwatt2mqtt/pkg/pi30"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPollerActorCycle(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())

	reader, _ := pi30.CreateTestInverterReader(logger)

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	inverterProps := actor.PropsFromProducer(func() actor.Actor { return adactor.NewInverterActor(reader, logger) })
	inverterPID := context.Spawn(inverterProps)

	es := eventstream.EventStream{}
	snapshots := service.NewSnapshotStore()

	var mu sync.Mutex
	var published []any
	es.Subscribe(func(evt any) {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, evt)
	})

	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&cfg, inverterPID, &es, snapshots, logger)
	})
	pollerPID := context.Spawn(pollerProps)

	time.Sleep(2 * time.Second)

	snap := snapshots.Current()
	assert.Equal("connected", snap.ConnectionState, "connection state")

	entry, ok := snap.Entries["QPIGS"]
	assert.True(ok, "QPIGS entry present")
	assert.False(entry.Stale, "QPIGS entry fresh")
	voltage, ok := entry.Record.Field("battery_voltage")
	assert.True(ok, "battery voltage present")
	assert.Equal(27.10, voltage.Float, "battery voltage")

	_, ok = snap.Entries["QMOD"]
	assert.True(ok, "QMOD entry present")
	_, ok = snap.Entries["QPIWS"]
	assert.True(ok, "QPIWS entry present")

	mu.Lock()
	var sawBatteryVoltage bool
	for _, evt := range published {
		if fev, isFloat := evt.(domain.FloatSensorUpdateEvent); isFloat && fev.Id == "battery_voltage" {
			sawBatteryVoltage = true
		}
	}
	mu.Unlock()
	assert.True(sawBatteryVoltage, "battery voltage event published")

	context.Stop(pollerPID)
	context.Stop(inverterPID)

	as.Shutdown()
}

func TestPollerActorKeepsStaleData(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())

	reader, transport := pi30.CreateTestInverterReader(logger)

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	inverterProps := actor.PropsFromProducer(func() actor.Actor { return adactor.NewInverterActor(reader, logger) })
	inverterPID := context.Spawn(inverterProps)

	es := eventstream.EventStream{}
	snapshots := service.NewSnapshotStore()

	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&cfg, inverterPID, &es, snapshots, logger)
	})
	pollerPID := context.Spawn(pollerProps)

	// let a healthy cycle complete first
	time.Sleep(2 * time.Second)

	entry, ok := snapshots.Current().Entries["QPIGS"]
	assert.True(ok, "QPIGS entry present")
	assert.False(entry.Stale, "QPIGS entry fresh")

	// break one command, the others keep answering
	transport.InjectErr("QPIGS", pi30.ErrTimeout)

	time.Sleep(3 * time.Second)

	snap := snapshots.Current()
	entry, ok = snap.Entries["QPIGS"]
	assert.True(ok, "QPIGS entry kept")
	assert.True(entry.Stale, "QPIGS entry stale")
	assert.NotNil(entry.Record, "last record retained")
	voltage, ok := entry.Record.Field("battery_voltage")
	assert.True(ok, "battery voltage retained")
	assert.Equal(27.10, voltage.Float, "battery voltage retained value")

	// a single flaky command still escalates after enough bad cycles,
	// and the fault reason says so instead of blaming the whole cycle
	assert.Equal("faulted", snap.ConnectionState, "connection state after repeated failures")
	assert.Equal("3 consecutive poll cycles with failed commands", snap.FaultReason, "fault reason")

	context.Stop(pollerPID)
	context.Stop(inverterPID)

	as.Shutdown()
}

func TestPollerActorBackoffAndRecovery(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	// fast cadence so the escalation path runs many cycles within the test
	cfg.Monitor.PollIntervalMillis = 100
	cfg.Monitor.BackoffMaxFactor = 4
	logger := zap.Must(zap.NewDevelopment())

	reader, transport := pi30.CreateTestInverterReader(logger)

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	inverterProps := actor.PropsFromProducer(func() actor.Actor { return adactor.NewInverterActor(reader, logger) })
	inverterPID := context.Spawn(inverterProps)

	es := eventstream.EventStream{}
	snapshots := service.NewSnapshotStore()

	var mu sync.Mutex
	var cycles []cycleStats
	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		poller := NewPollerActor(&cfg, inverterPID, &es, snapshots, logger)
		poller.cycleHook = func(stats cycleStats) {
			mu.Lock()
			defer mu.Unlock()
			cycles = append(cycles, stats)
		}
		return poller
	})
	pollerPID := context.Spawn(pollerProps)

	// let healthy cycles fill the snapshot
	time.Sleep(1 * time.Second)
	assert.Equal("connected", snapshots.Current().ConnectionState, "baseline state")

	// the whole device stops answering
	transport.InjectErr("QPIGS", pi30.ErrTimeout)
	transport.InjectErr("QPIWS", pi30.ErrTimeout)
	transport.InjectErr("QMOD", pi30.ErrTimeout)

	time.Sleep(3 * time.Second)

	snap := snapshots.Current()
	assert.Equal("faulted", snap.ConnectionState, "state after fully failed cycles")
	assert.Equal("all 3 poll commands failed", snap.FaultReason, "fault reason")
	for _, mnemonic := range []string{"QPIGS", "QPIWS", "QMOD"} {
		entry, ok := snap.Entries[mnemonic]
		assert.True(ok, "%s entry kept", mnemonic)
		assert.True(entry.Stale, "%s entry stale", mnemonic)
	}

	mu.Lock()
	var sawGrowth, sawCap bool
	var maxFactor uint32
	sawThreeFullFails := false
	for _, stats := range cycles {
		if stats.BackoffFactor == 2 {
			sawGrowth = true
		}
		if stats.BackoffFactor == cfg.Monitor.BackoffMaxFactor {
			sawCap = true
		}
		if stats.BackoffFactor > maxFactor {
			maxFactor = stats.BackoffFactor
		}
		if stats.FullyFailedCycles >= 3 {
			sawThreeFullFails = true
		}
	}
	mu.Unlock()
	assert.True(sawThreeFullFails, "three fully failed cycles reached")
	assert.True(sawGrowth, "interval doubled after three fully failed cycles")
	assert.True(sawCap, "backoff reached the configured cap")
	assert.Equal(cfg.Monitor.BackoffMaxFactor, maxFactor, "backoff never exceeds the cap")

	// the device answers again: first clean cycle restores the base cadence
	transport.ClearErrs()

	time.Sleep(2 * time.Second)

	assert.Equal("connected", snapshots.Current().ConnectionState, "state after recovery")
	entry, ok := snapshots.Current().Entries["QPIGS"]
	assert.True(ok, "QPIGS entry present after recovery")
	assert.False(entry.Stale, "QPIGS entry fresh after recovery")

	mu.Lock()
	last := cycles[len(cycles)-1]
	mu.Unlock()
	assert.Equal(uint32(1), last.BackoffFactor, "clean cycle resets the interval")
	assert.EqualValues(0, last.FullyFailedCycles, "clean cycle resets the failure counters")

	context.Stop(pollerPID)
	context.Stop(inverterPID)

	as.Shutdown()
}

func TestPollerActorForcePoll(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	// slow cadence so only forced cycles run after the first one
	cfg.Monitor.PollIntervalMillis = 60000
	logger := zap.Must(zap.NewDevelopment())

	reader, _ := pi30.CreateTestInverterReader(logger)

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	inverterProps := actor.PropsFromProducer(func() actor.Actor { return adactor.NewInverterActor(reader, logger) })
	inverterPID := context.Spawn(inverterProps)

	es := eventstream.EventStream{}
	snapshots := service.NewSnapshotStore()

	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&cfg, inverterPID, &es, snapshots, logger)
	})
	pollerPID := context.Spawn(pollerProps)

	time.Sleep(2 * time.Second)

	before := snapshots.Current().UpdatedAt

	res, err := context.RequestFuture(pollerPID, domain.ForcePollRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	_, ok := res.(domain.ForcePollResponse)
	assert.True(ok, "force poll response")

	time.Sleep(2 * time.Second)

	assert.True(snapshots.Current().UpdatedAt.After(before), "snapshot refreshed by forced cycle")

	context.Stop(pollerPID)
	context.Stop(inverterPID)

	as.Shutdown()
}
