package actor

import (
	"testing"
	"time"

	"sunwatt2mqtt/internal/core/domain"
	"sunwatt2mqtt/internal/util/actorutil"
	"sunwatt2mqtt/pkg/pi30"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestGetDeviceInfoInverterActor(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())

	reader, _ := pi30.CreateTestInverterReader(logger)

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewInverterActor(reader, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.GetDeviceInfoRequest{}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetDeviceInfoResponse)

	assert.False(resp.HasResponseError(), "GetDeviceInfo error")
	assert.Equal(pi30.TestPayloadQID, resp.Info.SerialNumber, "serial number")
	assert.Equal(pi30.TestPayloadQVFW, resp.Info.FirmwareVersion, "firmware version")
	assert.Equal(int64(2400), resp.Info.RatedOutputPowerWatt, "rated power")
	assert.Equal("AGM", resp.Info.BatteryType, "battery type")

	context.Stop(pid)

	as.Shutdown()
}

func TestQueryCommandInverterActor(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())

	reader, _ := pi30.CreateTestInverterReader(logger)

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewInverterActor(reader, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.QueryCommandRequest{Command: pi30.CommandQPIGS}

	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.QueryCommandResponse)

	assert.False(resp.HasResponseError(), "QueryCommand error")
	voltage, ok := resp.Record.Field("battery_voltage")
	assert.True(ok, "battery voltage present")
	assert.Equal(27.10, voltage.Float, "battery voltage")
	power, ok := resp.Record.Field("ac_output_active_power")
	assert.True(ok, "active power present")
	assert.Equal(int64(430), power.Int, "active power")
	load, ok := resp.Record.Field("is_load_on")
	assert.True(ok, "load flag present")
	assert.True(load.Bool, "load flag")

	health, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	healthResp := health.(domain.ActorHealthResponse)
	assert.True(healthResp.Healthy, "healthy after query")
	assert.Equal("connected", healthResp.State, "state after query")

	context.Stop(pid)

	as.Shutdown()
}

func TestQueryCommandErrorInverterActor(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())

	reader, transport := pi30.CreateTestInverterReader(logger)
	transport.Errs["QPIGS"] = pi30.ErrTimeout

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewInverterActor(reader, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.QueryCommandRequest{Command: pi30.CommandQPIGS}

	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.QueryCommandResponse)

	assert.True(resp.HasResponseError(), "QueryCommand error")
	assert.ErrorIs(resp.GetResponseError(), pi30.ErrTimeout, "timeout error")

	// a timeout alone must not fault the session
	st, err := context.RequestFuture(pid, domain.GetConnectionStateRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	stateResp := st.(domain.GetConnectionStateResponse)
	assert.Equal(pi30.StateConnected, stateResp.State, "state after timeout")

	context.Stop(pid)

	as.Shutdown()
}

func TestReconnectInverterActor(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())

	reader, _ := pi30.CreateTestInverterReader(logger)

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewInverterActor(reader, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	_, err := context.RequestFuture(pid, domain.MarkFaultedRequest{Reason: "poll cycle failed"}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}

	health, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	assert.False(health.(domain.ActorHealthResponse).Healthy, "unhealthy after fault")

	result, err := context.RequestFuture(pid, domain.ReconnectRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.ReconnectResponse)

	assert.False(resp.HasResponseError(), "Reconnect error")
	assert.True(resp.Reconnected, "reconnected")

	st, err := context.RequestFuture(pid, domain.GetConnectionStateRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(pi30.StateConnected, st.(domain.GetConnectionStateResponse).State, "state after reconnect")

	context.Stop(pid)

	as.Shutdown()
}
