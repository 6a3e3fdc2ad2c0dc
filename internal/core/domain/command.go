package domain

import "fmt"

// MaintenanceRequest

type MaintenanceRequest interface {
	ActorRequest
	MaintenanceCommand() string
}

type MaintenanceRequestMixIn struct {
	ActorRequestMixIn
}

func (r MaintenanceRequestMixIn) MaintenanceCommand() string {
	return fmt.Sprintf("%T", r)
}

// Maintenance commands. These can arrive over MQTT (discovery buttons) or
// be raised internally by the polling engine.

// ReconnectRequest drops the device handle and opens a fresh one.
type ReconnectRequest struct {
	MaintenanceRequestMixIn
}

type ReconnectResponse struct {
	ActorResponseMixIn
	Reconnected bool
}

// MarkFaultedRequest forces the device session into the faulted state.
// The polling engine raises it when failures span a whole cycle.
type MarkFaultedRequest struct {
	MaintenanceRequestMixIn
	Reason string
}

type MarkFaultedResponse struct {
	ActorResponseMixIn
}

// ForcePollRequest triggers an immediate poll cycle without waiting for
// the next scheduled tick.
type ForcePollRequest struct {
	MaintenanceRequestMixIn
}

type ForcePollResponse struct {
	ActorResponseMixIn
}

// ensure interface compliance
var _ MaintenanceRequest = (*ReconnectRequest)(nil)
