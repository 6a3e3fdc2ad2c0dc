package domain

import "sunwatt2mqtt/pkg/pi30"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_INVERTER     = "inverter"
	ACTOR_ID_POLLER       = "poller"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type GetDeviceInfoRequest struct {
	ActorRequestMixIn
}

type GetDeviceInfoResponse struct {
	ActorResponseMixIn
	Info *pi30.DeviceInfo
}

// QueryCommandRequest asks the inverter actor to run one command cycle on
// the device. Exchanges are strictly sequential: the actor serves one
// request at a time and stashes the rest.
type QueryCommandRequest struct {
	ActorRequestMixIn
	Command pi30.Command
}

type QueryCommandResponse struct {
	ActorResponseMixIn
	Record *pi30.MeasurementRecord
}

type TestConnectionRequest struct {
	ActorRequestMixIn
}

type TestConnectionResponse struct {
	ActorResponseMixIn
	Ok bool
}

type GetConnectionStateRequest struct {
	ActorRequestMixIn
}

type GetConnectionStateResponse struct {
	ActorResponseMixIn
	State  pi30.ConnectionState
	Reason string
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
	Buttons []GenericButton
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
