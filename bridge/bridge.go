package bridge

import (
	"context"
	"errors"
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/persistence"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zcl/commands/global"
	"github.com/shimmeringbee/zcl/communicator"
	"github.com/shimmeringbee/zdaremote/implcaps"
	"github.com/shimmeringbee/zdaremote/implcaps/proprietary/philips_remote"
	"github.com/shimmeringbee/zdaremote/profile"
	"github.com/shimmeringbee/zdaremote/rules"
	"github.com/shimmeringbee/zigbee"
	"sync"
)

const EventQueueSize = 100

// AdapterEndpoint is the local endpoint remotes are bound to.
const AdapterEndpoint = zigbee.Endpoint(1)

// Communicator routes incoming application messages to registered ZCL matches.
type Communicator interface {
	implcaps.ZCLMatcher
	ProcessIncomingMessage(zigbee.NodeIncomingMessageEvent) error
}

// Bridge hosts remote capabilities for configured devices on a Zigbee provider, and publishes their button
// events over MQTT.
type Bridge struct {
	provider  zigbee.Provider
	logger    logwrap.Logger
	section   persistence.Section
	profiles  *profile.Registry
	engine    *rules.Engine
	publisher Publisher
	rootTopic string

	zclCommandRegistry *zcl.CommandRegistry
	zclCommunicator    Communicator
	zdaInterface       implcaps.ZDAInterface

	ctx         context.Context
	ctxCancel   context.CancelFunc
	loopDone    chan struct{}
	publishDone chan struct{}

	events   chan any
	outbound chan philips_remote.Event

	selfDevice da.BaseDevice

	deviceLock *sync.RWMutex
	device     map[zigbee.IEEEAddress]*device
}

func New(baseCtx context.Context, p zigbee.Provider, s persistence.Section, profiles *profile.Registry) *Bridge {
	ctx, cancel := context.WithCancel(baseCtx)

	registry := zcl.NewCommandRegistry()
	global.Register(registry)

	b := &Bridge{
		provider:  p,
		logger:    logwrap.New(discard.Discard()),
		section:   s,
		profiles:  profiles,
		engine:    rules.New(),
		rootTopic: DefaultRootTopic,

		zclCommandRegistry: registry,
		zclCommunicator:    communicator.NewCommunicator(p, registry),

		ctx:       ctx,
		ctxCancel: cancel,

		events:   make(chan any, EventQueueSize),
		outbound: make(chan philips_remote.Event, EventQueueSize),

		deviceLock: &sync.RWMutex{},
		device:     map[zigbee.IEEEAddress]*device{},
	}

	b.zdaInterface = zdaInterface{b: b}

	return b
}

// WithPublisher sets where button events are published, and the root topic they are published below.
func (b *Bridge) WithPublisher(p Publisher, rootTopic string) {
	b.publisher = p
	b.rootTopic = rootTopic
}

// WithRules replaces the rules engine used to select profiles, it must have compiled rules.
func (b *Bridge) WithRules(e *rules.Engine) {
	b.engine = e
}

func (b *Bridge) WithCommunicator(c Communicator) {
	b.zclCommunicator = c
}

// AddDevice declares a remote, it must be called before Start.
func (b *Bridge) AddDevice(cfg DeviceConfig) error {
	addr, err := cfg.Address()
	if err != nil {
		return err
	}

	if _, created := b.createDevice(addr, cfg); !created {
		return errors.New("device already declared")
	}

	return nil
}

func (b *Bridge) Start() error {
	b.selfDevice = da.BaseDevice{
		DeviceGateway:      b,
		DeviceIdentifier:   b.provider.AdapterNode().IEEEAddress,
		DeviceCapabilities: []da.Capability{capabilities.DeviceDiscoveryFlag},
	}

	b.providerLoad()

	b.publishDone = make(chan struct{})
	go b.publishLoop()

	b.loopDone = make(chan struct{})
	go b.providerLoop()

	return nil
}

func (b *Bridge) Stop() error {
	b.ctxCancel()

	if b.loopDone != nil {
		<-b.loopDone
	}

	if b.publishDone != nil {
		<-b.publishDone
	}

	ctx, end := b.logger.Segment(context.Background(), "Stopping bridge.")
	defer end()

	for _, d := range b.getDevices() {
		b.detachDevice(ctx, d, implcaps.Shutdown)
	}

	return nil
}

// sendEvent is called from capability event handlers and must not block.
func (b *Bridge) sendEvent(e any) {
	b.queuePublish(e)

	select {
	case b.events <- e:
	default:
		b.logger.LogWarn(b.ctx, "Event queue full, event dropped.")
	}
}

func (b *Bridge) ReadEvent(ctx context.Context) (interface{}, error) {
	select {
	case e := <-b.events:
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Bridge) Capability(_ da.Capability) interface{} {
	return nil
}

func (b *Bridge) Capabilities() []da.Capability {
	return []da.Capability{}
}

func (b *Bridge) Self() da.Device {
	return b.selfDevice
}

func (b *Bridge) Devices() []da.Device {
	var devices []da.Device

	for _, d := range b.getDevices() {
		devices = append(devices, b.daDevice(d))
	}

	return devices
}

var _ da.Gateway = (*Bridge)(nil)
