package implcaps

import (
	"context"
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/persistence"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zcl/communicator"
	"github.com/shimmeringbee/zigbee"
	"time"
)

const RemoteEndpointKey = "RemoteEndpoint"

const (
	DefaultNetworkTimeout = 3000 * time.Millisecond
	DefaultNetworkRetries = 5
)

type DetachType int

const (
	// DeviceRemoved is used when a device has left the network, no communication with it is possible.
	DeviceRemoved DetachType = iota
	// NoLongerEnumerated is used when enumeration no longer produces the capability, tidying up via the network
	// may be possible.
	NoLongerEnumerated
	// FailedAttach is used when an Enumerate failed.
	FailedAttach
	// Shutdown is used when the gateway is stopping, persisted state must survive for the next Load.
	Shutdown
)

type ZDACapability interface {
	da.BasicCapability
	// Init provides the device and persistence section, it is called once upon creation.
	Init(da.Device, persistence.Section)
	// Load restores the capability from persistence at start up.
	Load(context.Context) (bool, error)
	// Enumerate attaches the capability to a device using parameters produced by the rules engine. It returns
	// true if the capability should remain attached.
	Enumerate(context.Context, map[string]any) (bool, error)
	// Detach is called when the capability is removed from a device.
	Detach(context.Context, DetachType) error
	// ImplName returns the implementation name of the capability.
	ImplName() string
}

// ZCLMatcher routes incoming ZCL messages to registered matches.
type ZCLMatcher interface {
	RegisterMatch(communicator.Match)
	UnregisterMatch(communicator.Match)
}

type ZDAInterface interface {
	// Logger returns the logger capabilities should log through.
	Logger() logwrap.Logger
	// ZCLRegister adds command definitions to the shared ZCL command registry.
	ZCLRegister(func(*zcl.CommandRegistry))
	// TransmissionLookup returns the addressing needed to talk to a device.
	TransmissionLookup(da.Device, zigbee.ProfileID) (zigbee.IEEEAddress, zigbee.Endpoint, bool, uint8)
	ZCLCommunicator() ZCLMatcher
	NodeBinder() zigbee.NodeBinder
	// SendEvent allows a capability to publish event messages.
	SendEvent(any)
}
