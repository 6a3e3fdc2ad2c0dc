package actor

import (
	"fmt"
	"time"

	"sunwatt2mqtt/internal/config"
	"sunwatt2mqtt/internal/core/domain"
	"sunwatt2mqtt/internal/core/events"
	"sunwatt2mqtt/internal/core/service"
	. "sunwatt2mqtt/internal/util/actorutil"
	"sunwatt2mqtt/pkg/pi30"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// PollerActor drives the periodic command cycle: every tick it walks the
// poll command list strictly in order, retries each command a bounded
// number of times, publishes decoded records to the event stream and the
// snapshot store, and escalates persistent failure to a reconnect with
// exponential backoff on the tick interval.
type PollerActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	inverterActor *actor.PID
	config        *config.Config
	eventStream   *eventstream.EventStream
	snapshots     *service.SnapshotStore

	// state of the cycle in flight
	pollIndex int
	attempt   uint
	failed    int

	cyclesWithFailure uint
	fullyFailedCycles uint
	backoffFactor     uint32
	cancelTick        scheduler.CancelFunc

	// cycleHook, when set, observes every finished cycle from the actor
	// goroutine. Tests use it to follow escalation and backoff.
	cycleHook func(cycleStats)

	logger *zap.Logger
}

type pollTick struct {
}

// cycleStats summarizes one finished poll cycle.
type cycleStats struct {
	Failed            int
	FullyFailedCycles uint
	BackoffFactor     uint32
}

func NewPollerActor(config *config.Config, inverterActor *actor.PID, eventStream *eventstream.EventStream,
	snapshots *service.SnapshotStore, logger *zap.Logger) *PollerActor {
	act := &PollerActor{
		config:        config,
		inverterActor: inverterActor,
		behavior:      actor.NewBehavior(),
		stash:         &Stash{},
		logger:        ActorLogger(domain.ACTOR_ID_POLLER, logger),
		eventStream:   eventStream,
		snapshots:     snapshots,
		backoffFactor: 1,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *PollerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PollerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("poller@starting started")

		state.scheduler = scheduler.NewTimerScheduler(ctx)

		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.inverterActor, domain.GetDeviceInfoRequest{}, 35*time.Second), func(err error) any {
			return domain.GetDeviceInfoResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.Become(state.WaitingInfoReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("poller@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) WaitingInfoReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetDeviceInfoResponse:
		if msg.HasResponseError() {
			// keep polling anyway, the first cycle marks the real state
			state.logger.Error("poller@waitingInfo GetDeviceInfoResponse", zap.Error(msg.GetResponseError()))
		} else {
			state.logger.Info("poller@waitingInfo device identified",
				zap.String("serial", msg.Info.SerialNumber),
				zap.String("firmware", msg.Info.FirmwareVersion))
		}
		ctx.Send(ctx.Self(), pollTick{})
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("poller@waitingInfo: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("poller@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: true,
			State:   "idle",
		})
	case pollTick:
		state.logger.Debug("poller@default tick")
		state.cancelTick = nil
		state.pollIndex = 0
		state.attempt = 1
		state.failed = 0
		state.queryCurrentCommand(ctx)
		state.behavior.BecomeStacked(state.WaitingPollReceive)
	case domain.ForcePollRequest:
		state.logger.Info("poller@default force poll")
		ForRequest(msg).Respond(ctx, domain.ForcePollResponse{})
		if state.cancelTick != nil {
			state.cancelTick()
			state.cancelTick = nil
		}
		ctx.Send(ctx.Self(), pollTick{})
	case domain.MarkFaultedResponse:
		// session is faulted, now ask for a fresh handle
		state.logger.Debug("poller@default MarkFaultedResponse")
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.inverterActor, domain.ReconnectRequest{}, 20*time.Second), func(err error) any {
			return domain.ReconnectResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	case domain.ReconnectResponse:
		if msg.HasResponseError() {
			// next tick retries with backoff
			state.logger.Error("poller@default ReconnectResponse error", zap.Error(msg.GetResponseError()))
		} else {
			state.logger.Info("poller@default device reconnected")
		}
	default:
		state.logger.Debug("poller@default: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) WaitingPollReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.QueryCommandResponse:
		command := pi30.PollCommands[state.pollIndex]
		if msg.HasResponseError() || msg.Record == nil {
			state.logger.Warn("poller@waiting command failed",
				zap.String("command", command.Mnemonic),
				zap.Uint("attempt", state.attempt),
				zap.Error(msg.GetResponseError()))
			if state.attempt < state.config.Monitor.CommandRetries {
				state.attempt++
				state.queryCurrentCommand(ctx)
				return
			}
			state.failed++
			state.snapshots.MarkStale(command.Mnemonic)
		} else {
			state.snapshots.Update(msg.Record)
			for _, ev := range events.MeasurementRecordToUpdateEvents(msg.Record) {
				state.eventStream.Publish(ev)
			}
		}

		state.pollIndex++
		if state.pollIndex < len(pi30.PollCommands) {
			state.attempt = 1
			state.queryCurrentCommand(ctx)
			return
		}

		state.behavior.UnbecomeStacked()
		state.finishCycle(ctx)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("poller@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) queryCurrentCommand(ctx actor.Context) {
	command := pi30.PollCommands[state.pollIndex]
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.inverterActor, domain.QueryCommandRequest{Command: command}, 15*time.Second), func(err error) any {
		return domain.QueryCommandResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
}

func (state *PollerActor) finishCycle(ctx actor.Context) {
	total := len(pi30.PollCommands)
	state.logger.Debug("poller@default cycle done",
		zap.Int("failed", state.failed), zap.Int("total", total))

	switch {
	case state.failed == 0:
		state.cyclesWithFailure = 0
		state.fullyFailedCycles = 0
		state.backoffFactor = 1
		state.setConnectionState(pi30.StateConnected, nil)
	case state.failed == total:
		state.fullyFailedCycles++
		state.cyclesWithFailure++
	default:
		state.fullyFailedCycles = 0
		state.cyclesWithFailure++
	}

	switch {
	case state.failed == total:
		state.triggerReconnect(ctx, fmt.Errorf("all %d poll commands failed", total))
		state.cyclesWithFailure = 0
	case state.cyclesWithFailure >= state.config.Monitor.ReconnectAfterCycles:
		state.triggerReconnect(ctx, fmt.Errorf("%d consecutive poll cycles with failed commands", state.cyclesWithFailure))
		state.cyclesWithFailure = 0
	}

	if state.fullyFailedCycles >= 3 {
		state.backoffFactor = min(state.backoffFactor*2, state.config.Monitor.BackoffMaxFactor)
	}

	if state.cycleHook != nil {
		state.cycleHook(cycleStats{
			Failed:            state.failed,
			FullyFailedCycles: state.fullyFailedCycles,
			BackoffFactor:     state.backoffFactor,
		})
	}

	interval := time.Duration(state.config.Monitor.PollIntervalMillis) * time.Millisecond * time.Duration(state.backoffFactor)
	state.cancelTick = state.scheduler.RequestOnce(interval, ctx.Self(), pollTick{})
}

func (state *PollerActor) triggerReconnect(ctx actor.Context, reason error) {
	state.logger.Warn("poller: escalating to reconnect", zap.Error(reason))

	state.snapshots.MarkAllStale()
	state.setConnectionState(pi30.StateFaulted, reason)

	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.inverterActor, domain.MarkFaultedRequest{Reason: reason.Error()}, 5*time.Second), func(err error) any {
		return domain.MarkFaultedResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
}

func (state *PollerActor) setConnectionState(connState pi30.ConnectionState, reason error) {
	if state.snapshots.Current().ConnectionState == connState.String() {
		return
	}
	state.snapshots.SetConnectionState(connState, reason)
	for _, ev := range events.ConnectionStateToUpdateEvents(connState) {
		state.eventStream.Publish(ev)
	}
}
