package actor

import (
	"fmt"
	"testing"
	"time"

	adactor "sunwatt2mqtt/internal/adapter/actor"
	"sunwatt2mqtt/internal/core/domain"
	"sunwatt2mqtt/internal/core/service"
	"sunwatt2mqtt/internal/util"
	"sunwatt2mqtt/pkg/pi30"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMasterActor(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	snapshots := service.NewSnapshotStore()

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func() *adactor.InverterActor {
			reader, _ := pi30.CreateTestInverterReader(logger)
			return adactor.NewInverterActor(reader, logger)
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, logger)
		}, snapshots, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	if err != nil {
		t.Error(err)
		return
	}

	time.Sleep(2 * time.Second)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		//return
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	fmt.Printf("Health response: %+v\n", healthResp)
	assert.NotNil(t, healthResp)

	assert.True(t, healthResp.Healthy, "healthy is true")

	// the poller drives the snapshot store once children are up
	snap := snapshots.Current()
	assert.Equal(t, "connected", snap.ConnectionState, "connection state")
	assert.NotEmpty(t, snap.Entries, "snapshot entries")

	context.Stop(pid)

	as.Shutdown()
}
