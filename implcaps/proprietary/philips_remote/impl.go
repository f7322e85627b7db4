package philips_remote

import (
	"context"
	"fmt"
	"github.com/shimmeringbee/callbacks"
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/persistence"
	"github.com/shimmeringbee/retry"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zcl/communicator"
	"github.com/shimmeringbee/zdaremote/implcaps"
	"github.com/shimmeringbee/zdaremote/press"
	"github.com/shimmeringbee/zdaremote/profile"
	"github.com/shimmeringbee/zdaremote/proprietary/hue"
	"github.com/shimmeringbee/zdaremote/trigger"
	"github.com/shimmeringbee/zigbee"
	"golang.org/x/sync/semaphore"
	"sync"
	"time"
)

var _ implcaps.ZDACapability = (*Implementation)(nil)

// Flag is the capability flag for button remotes, in the range reserved for non standard capabilities.
const Flag = da.Capability(0xff10)

const (
	ProfileKey   = "Profile"
	ThresholdKey = "ThresholdMs"
)

// Event is published for every classified button event.
type Event struct {
	Device da.Device
	press.Event
}

func NewRemote(zi implcaps.ZDAInterface, r *profile.Registry) *Implementation {
	zi.ZCLRegister(hue.Register)

	return &Implementation{
		zi:        zi,
		logger:    zi.Logger(),
		registry:  r,
		scheduler: press.TimerScheduler{},
		sem:       semaphore.NewWeighted(1),
		m:         &sync.RWMutex{},
		callbacks: callbacks.Create(),
	}
}

type Implementation struct {
	s        persistence.Section
	d        da.Device
	zi       implcaps.ZDAInterface
	logger   logwrap.Logger
	registry *profile.Registry

	scheduler press.Scheduler
	callbacks callbacks.AdderCaller

	// sem serialises Load, Enumerate and Detach.
	sem *semaphore.Weighted

	m              *sync.RWMutex
	profile        profile.Profile
	classifier     *press.Classifier
	match          *communicator.Match
	ieeeAddress    zigbee.IEEEAddress
	remoteEndpoint zigbee.Endpoint
	localEndpoint  zigbee.Endpoint
}

func (i *Implementation) Capability() da.Capability {
	return Flag
}

func (i *Implementation) Name() string {
	return "ButtonRemote"
}

func (i *Implementation) ImplName() string {
	return "PhilipsRemote"
}

func (i *Implementation) Init(d da.Device, s persistence.Section) {
	i.d = d
	i.s = s
}

// WithScheduler replaces the scheduler used for debouncing, it must be called before Load or Enumerate.
func (i *Implementation) WithScheduler(s press.Scheduler) {
	i.scheduler = s
}

func (i *Implementation) Load(ctx context.Context) (bool, error) {
	if err := i.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer i.sem.Release(1)

	ctx, end := i.logger.Segment(ctx, "Loading Philips remote.", logwrap.Datum("Identifier", i.d.Identifier().String()))
	defer end()

	name, ok := i.s.String(ProfileKey)
	if !ok {
		i.logger.LogError(ctx, "Required config parameter missing.", logwrap.Datum("name", ProfileKey))
		return false, fmt.Errorf("%w: %s", implcaps.ErrMissingParameter, ProfileKey)
	}

	endpoint, ok := i.s.Int(implcaps.RemoteEndpointKey)
	if !ok {
		i.logger.LogError(ctx, "Required config parameter missing.", logwrap.Datum("name", implcaps.RemoteEndpointKey))
		return false, fmt.Errorf("%w: %s", implcaps.ErrMissingParameter, implcaps.RemoteEndpointKey)
	}

	p, err := i.registry.Get(name)
	if err != nil {
		i.logger.LogError(ctx, "Persisted profile is not registered.", logwrap.Datum("Profile", name), logwrap.Err(err))
		return false, err
	}

	if v, ok := i.s.Int(ThresholdKey); ok {
		p.Config.Threshold = time.Duration(v) * time.Millisecond
	}

	if err := i.attach(ctx, p, zigbee.Endpoint(endpoint)); err != nil {
		return false, err
	}

	return true, nil
}

func (i *Implementation) Enumerate(ctx context.Context, m map[string]any) (bool, error) {
	if err := i.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer i.sem.Release(1)

	ctx, end := i.logger.Segment(ctx, "Enumerating Philips remote.", logwrap.Datum("Identifier", i.d.Identifier().String()))
	defer end()

	name, err := implcaps.Require[string](m, ProfileKey)
	if err != nil {
		i.logger.LogError(ctx, "Enumeration did not select a profile.", logwrap.Err(err))
		return false, err
	}

	p, err := i.registry.Get(name)
	if err != nil {
		i.logger.LogError(ctx, "Enumeration selected an unknown profile.", logwrap.Datum("Profile", name), logwrap.Err(err))
		return false, err
	}

	endpoint := implcaps.Get(m, "ZigbeeEndpoint", p.Endpoint)
	p.Config.Threshold = implcaps.Get(m, "Threshold", p.Config.Threshold)

	i.detach(ctx)

	if err := i.attach(ctx, p, endpoint); err != nil {
		return false, err
	}

	i.s.Set(ProfileKey, p.Name)
	i.s.Set(implcaps.RemoteEndpointKey, int(endpoint))

	if p.Config.Threshold > 0 {
		i.s.Set(ThresholdKey, int(p.Config.Threshold.Milliseconds()))
	} else {
		i.s.Delete(ThresholdKey)
	}

	if err := i.bind(ctx); err != nil {
		i.logger.LogWarn(ctx, "Failed to bind remote cluster, events will only arrive if the remote is already bound.", logwrap.Err(err))
		return true, err
	}

	return true, nil
}

func (i *Implementation) Detach(ctx context.Context, detachType implcaps.DetachType) error {
	if err := i.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer i.sem.Release(1)

	i.logger.LogInfo(ctx, "Detaching Philips remote.", logwrap.Datum("DetachType", detachType))
	i.detach(ctx)

	if detachType == implcaps.DeviceRemoved || detachType == implcaps.NoLongerEnumerated {
		i.s.Delete(ProfileKey)
		i.s.Delete(implcaps.RemoteEndpointKey)
		i.s.Delete(ThresholdKey)
	}

	return nil
}

func (i *Implementation) attach(ctx context.Context, p profile.Profile, endpoint zigbee.Endpoint) error {
	ieee, local, _, _ := i.zi.TransmissionLookup(i.d, zigbee.ProfileHomeAutomation)

	c, err := press.NewClassifier(p.Config, i.scheduler, sender{i: i}, i.logger)
	if err != nil {
		i.logger.LogError(ctx, "Failed to construct classifier.", logwrap.Datum("Profile", p.Name), logwrap.Err(err))
		return err
	}

	match := communicator.NewMatch(i.zclFilter, i.zclMessage)

	i.m.Lock()
	i.profile = p
	i.classifier = c
	i.match = &match
	i.ieeeAddress = ieee
	i.localEndpoint = local
	i.remoteEndpoint = endpoint
	i.m.Unlock()

	i.zi.ZCLCommunicator().RegisterMatch(match)

	i.logger.LogInfo(ctx, "Philips remote attached.", logwrap.Datum("Profile", p.Name), logwrap.Datum("RemoteEndpoint", endpoint), logwrap.Datum("ThresholdMs", p.Config.Threshold.Milliseconds()))
	return nil
}

func (i *Implementation) detach(ctx context.Context) {
	i.m.Lock()
	match := i.match
	c := i.classifier
	i.match = nil
	i.classifier = nil
	i.m.Unlock()

	if match != nil {
		i.zi.ZCLCommunicator().UnregisterMatch(*match)
	}

	if c != nil {
		c.Close()
		i.logger.LogDebug(ctx, "Closed classifier, pending bursts abandoned.")
	}
}

func (i *Implementation) bind(ctx context.Context) error {
	i.m.RLock()
	ieee, local, remote := i.ieeeAddress, i.localEndpoint, i.remoteEndpoint
	i.m.RUnlock()

	return retry.Retry(ctx, implcaps.DefaultNetworkTimeout, implcaps.DefaultNetworkRetries, func(ctx context.Context) error {
		return i.zi.NodeBinder().BindNodeToController(ctx, ieee, local, remote, hue.RemoteClusterID)
	})
}

func (i *Implementation) zclFilter(a zigbee.IEEEAddress, _ zigbee.ApplicationMessage, m zcl.Message) bool {
	i.m.RLock()
	defer i.m.RUnlock()

	return a == i.ieeeAddress &&
		m.SourceEndpoint == i.remoteEndpoint &&
		m.ClusterID == hue.RemoteClusterID &&
		m.Direction == zcl.ServerToClient
}

func (i *Implementation) zclMessage(m communicator.MessageWithSource) {
	n, ok := m.Message.Command.(*hue.Notification)
	if !ok {
		return
	}

	i.m.RLock()
	c := i.classifier
	i.m.RUnlock()

	if c == nil {
		return
	}

	if err := c.Handle(n.Args()); err != nil {
		i.logger.LogError(context.Background(), "Failed to classify remote notification.", logwrap.Err(err))
	}
}

// Subscribe registers a local listener for button events, it must not call back into the remote.
func (i *Implementation) Subscribe(f func(context.Context, Event) error) {
	i.callbacks.Add(f)
}

// Triggers returns the automation trigger table of the attached profile.
func (i *Implementation) Triggers(_ context.Context) (trigger.Table, error) {
	i.m.RLock()
	defer i.m.RUnlock()

	if i.classifier == nil {
		return nil, fmt.Errorf("remote not attached")
	}

	return i.profile.Triggers(), nil
}

// Profile returns the name of the attached profile.
func (i *Implementation) Profile() string {
	i.m.RLock()
	defer i.m.RUnlock()

	return i.profile.Name
}

type sender struct {
	i *Implementation
}

func (s sender) SendEvent(e any) {
	pe, ok := e.(press.Event)
	if !ok {
		return
	}

	ev := Event{Device: s.i.d, Event: pe}

	s.i.zi.SendEvent(ev)

	if err := s.i.callbacks.Call(context.Background(), ev); err != nil {
		s.i.logger.LogWarn(context.Background(), "Button event listener failed.", logwrap.Datum("Event", pe.Name), logwrap.Err(err))
	}
}
