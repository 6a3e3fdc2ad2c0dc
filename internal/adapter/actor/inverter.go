package actor

import (
	"fmt"
	"time"

	"sunwatt2mqtt/internal/core/domain"
	"sunwatt2mqtt/internal/util/actorutil"
	"sunwatt2mqtt/pkg/pi30"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

// InverterActor owns the device session. The transport is half duplex, so
// the actor serves exactly one exchange at a time: while a command runs in
// the background, every other message is stashed.
type InverterActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	reader   pi30.InverterReader
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewInverterActor(reader pi30.InverterReader, logger *zap.Logger) *InverterActor {
	act := &InverterActor{
		reader:   reader,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_INVERTER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *InverterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *InverterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("inverter@starting started")
		if err := state.reader.Open(); err != nil {
			// let the supervisor restart with backoff
			panic(err)
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.reader.Close()
	default:
		state.logger.Debug("inverter@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *InverterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("inverter@default: ActorHealthRequest")
		connState, _ := state.reader.State()
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_INVERTER,
			Healthy: connState != pi30.StateFaulted,
			State:   connState.String(),
		})
	case domain.GetConnectionStateRequest:
		connState, reason := state.reader.State()
		resp := domain.GetConnectionStateResponse{State: connState}
		if reason != nil {
			resp.Reason = reason.Error()
		}
		actorutil.ForRequest(msg).Respond(ctx, resp)
	case domain.MarkFaultedRequest:
		state.logger.Warn("inverter@default: MarkFaultedRequest", zap.String("reason", msg.Reason))
		state.reader.MarkFaulted(fmt.Errorf("%s", msg.Reason))
		actorutil.ForRequest(msg).Respond(ctx, domain.MarkFaultedResponse{})
	case domain.QueryCommandRequest:
		state.logger.Debug("inverter@default: QueryCommandRequest", zap.String("command", msg.Command.Mnemonic))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		command := msg.Command
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.QueryCommandResponse, error) {
			return state.query(command)
		}), mapTaskResult[domain.QueryCommandResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.QueryCommandResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(10 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingDevice)
	case domain.GetDeviceInfoRequest:
		state.logger.Debug("inverter@default: GetDeviceInfoRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getDeviceInfo),
			mapTaskResult[domain.GetDeviceInfoResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetDeviceInfoResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(30 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingDevice)
	case domain.TestConnectionRequest:
		state.logger.Debug("inverter@default: TestConnectionRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.testConnection),
			mapTaskResult[domain.TestConnectionResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.TestConnectionResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(10 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingDevice)
	case domain.ReconnectRequest:
		state.logger.Info("inverter@default: ReconnectRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.reconnect),
			mapTaskResult[domain.ReconnectResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.ReconnectResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(15 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingDevice)
	case *actor.Stopping:
		state.reader.Close()
	default:
		state.logger.Debug("inverter@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *InverterActor) WaitingDevice(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("inverter@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.reader.Close()
	default:
		state.logger.Debug("inverter@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *InverterActor) query(cmd pi30.Command) (*domain.QueryCommandResponse, error) {
	record, err := a.reader.Query(cmd)
	if err != nil {
		logger.Error(err)
		return &domain.QueryCommandResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}, nil
	}
	return &domain.QueryCommandResponse{
		Record: record,
	}, nil
}

func (a *InverterActor) getDeviceInfo() (*domain.GetDeviceInfoResponse, error) {
	info, err := a.reader.GetDeviceInfo()
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetDeviceInfoResponse{
		Info: info,
	}, nil
}

func (a *InverterActor) testConnection() (*domain.TestConnectionResponse, error) {
	ok, err := a.reader.TestConnection()
	if err != nil {
		logger.Error(err)
		return &domain.TestConnectionResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}, nil
	}
	return &domain.TestConnectionResponse{Ok: ok}, nil
}

func (a *InverterActor) reconnect() (*domain.ReconnectResponse, error) {
	if err := a.reader.Reconnect(); err != nil {
		logger.Error(err)
		return &domain.ReconnectResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}, nil
	}
	return &domain.ReconnectResponse{Reconnected: true}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
