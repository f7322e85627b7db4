package bridge

import (
	"context"
	"encoding/json"
	"github.com/shimmeringbee/persistence"
	"github.com/shimmeringbee/persistence/impl/memory"
	"github.com/shimmeringbee/zdaremote/implcaps/factory"
	"github.com/shimmeringbee/zdaremote/implcaps/generic/product_information"
	"github.com/shimmeringbee/zdaremote/implcaps/proprietary/philips_remote"
	"github.com/shimmeringbee/zdaremote/press"
	"github.com/shimmeringbee/zdaremote/profile"
	"github.com/shimmeringbee/zdaremote/proprietary/hue"
	"github.com/shimmeringbee/zdaremote/rules"
	"github.com/shimmeringbee/zigbee"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"testing"
	"time"
)

func newTestBridge(t *testing.T, s persistence.Section) (*Bridge, *zigbee.MockProvider, *MockCommunicator) {
	mp := &zigbee.MockProvider{}
	mc := &MockCommunicator{}

	profiles := profile.Default()

	e := rules.New()
	e.Add(profiles.RuleSet(factory.PhilipsRemote))
	assert.NoError(t, e.CompileRules())

	b := New(context.Background(), mp, s, profiles)
	b.WithCommunicator(mc)
	b.WithRules(e)

	t.Cleanup(func() {
		b.ctxCancel()
		mp.AssertExpectations(t)
		mc.AssertExpectations(t)
	})

	return b, mp, mc
}

const (
	dimmerAddress = zigbee.IEEEAddress(0x0017880104a1b2c3)
	romAddress    = zigbee.IEEEAddress(0x001788010bc3d4e5)
)

func TestBridge_enumerateDevice(t *testing.T) {
	t.Run("a remote matched by rules gets product information and a remote capability", func(t *testing.T) {
		b, mp, mc := newTestBridge(t, memory.New())
		mc.On("RegisterMatch", mock.Anything).Once()
		mp.On("BindNodeToController", mock.Anything, dimmerAddress, AdapterEndpoint, zigbee.Endpoint(2), hue.RemoteClusterID).Return(nil).Once()

		assert.NoError(t, b.AddDevice(DeviceConfig{IEEEAddress: "0x0017880104a1b2c3", Manufacturer: profile.Philips, Model: "RWL021"}))
		d := b.getDevice(dimmerAddress)

		assert.NoError(t, b.enumerateDevice(context.Background(), d))

		r, ok := d.capability(philips_remote.Flag).(*philips_remote.Implementation)
		assert.True(t, ok)
		assert.Equal(t, profile.PhilipsRWLFirstGen, r.Profile())

		pi, ok := d.capability(factory.Mapping[factory.GenericProductInformation]).(*product_information.Implementation)
		assert.True(t, ok)
		assert.Equal(t, "RWL021", pi.Input().Name)

		assert.ElementsMatch(t, []string{factory.GenericProductInformation, factory.PhilipsRemote}, b.persistedCapabilities(dimmerAddress))
		assert.Len(t, b.Devices(), 1)
		assert.Len(t, b.Devices()[0].Capabilities(), 2)
	})

	t.Run("a configured profile and threshold override the rules", func(t *testing.T) {
		b, mp, mc := newTestBridge(t, memory.New())
		mc.On("RegisterMatch", mock.Anything).Once()
		mp.On("BindNodeToController", mock.Anything, romAddress, AdapterEndpoint, zigbee.Endpoint(1), hue.RemoteClusterID).Return(nil).Once()

		assert.NoError(t, b.AddDevice(DeviceConfig{IEEEAddress: "001788010bc3d4e5", Profile: profile.PhilipsROM001, Threshold: 450 * time.Millisecond}))
		d := b.getDevice(romAddress)

		assert.NoError(t, b.enumerateDevice(context.Background(), d))

		r := d.capability(philips_remote.Flag).(*philips_remote.Implementation)
		assert.Equal(t, profile.PhilipsROM001, r.Profile())

		v, found := b.sectionForCapability(romAddress, factory.PhilipsRemote).Section("data").Int(philips_remote.ThresholdKey)
		assert.True(t, found)
		assert.Equal(t, int64(450), int64(v))

		assert.Nil(t, d.capability(factory.Mapping[factory.GenericProductInformation]))
	})

	t.Run("an unrecognised model only gets product information", func(t *testing.T) {
		b, _, _ := newTestBridge(t, memory.New())

		assert.NoError(t, b.AddDevice(DeviceConfig{IEEEAddress: "01", Manufacturer: profile.Philips, Model: "LCT001"}))
		d := b.getDevice(1)

		assert.NoError(t, b.enumerateDevice(context.Background(), d))

		assert.Nil(t, d.capability(philips_remote.Flag))
		assert.NotNil(t, d.capability(factory.Mapping[factory.GenericProductInformation]))
	})

	t.Run("an unknown configured profile fails enumeration", func(t *testing.T) {
		b, _, _ := newTestBridge(t, memory.New())

		assert.NoError(t, b.AddDevice(DeviceConfig{IEEEAddress: "01", Profile: "missing"}))

		assert.ErrorIs(t, b.enumerateDevice(context.Background(), b.getDevice(1)), profile.ErrUnknownProfile)
	})

	t.Run("a device cannot be declared twice", func(t *testing.T) {
		b, _, _ := newTestBridge(t, memory.New())

		assert.NoError(t, b.AddDevice(DeviceConfig{IEEEAddress: "01", Profile: profile.PhilipsROM001}))
		assert.Error(t, b.AddDevice(DeviceConfig{IEEEAddress: "0x01", Profile: profile.PhilipsROM001}))
	})
}

func TestBridge_providerLoad(t *testing.T) {
	t.Run("capabilities are restored from persistence without binding again", func(t *testing.T) {
		s := memory.New()

		first, mp, mc := newTestBridge(t, s)
		mc.On("RegisterMatch", mock.Anything).Once()
		mc.On("UnregisterMatch", mock.Anything).Once()
		mp.On("BindNodeToController", mock.Anything, romAddress, AdapterEndpoint, zigbee.Endpoint(1), hue.RemoteClusterID).Return(nil).Once()

		cfg := DeviceConfig{IEEEAddress: "001788010bc3d4e5", Manufacturer: profile.Signify, Model: "RDM003"}

		assert.NoError(t, first.AddDevice(cfg))
		assert.NoError(t, first.enumerateDevice(context.Background(), first.getDevice(romAddress)))
		assert.NoError(t, first.Stop())

		second, _, mc2 := newTestBridge(t, s)
		mc2.On("RegisterMatch", mock.Anything).Once()

		assert.NoError(t, second.AddDevice(cfg))
		assert.True(t, second.providerLoadDevice(context.Background(), second.getDevice(romAddress)))

		r := second.getDevice(romAddress).capability(philips_remote.Flag).(*philips_remote.Implementation)
		assert.Equal(t, profile.PhilipsROM001, r.Profile())
	})

	t.Run("state of devices no longer configured is removed", func(t *testing.T) {
		s := memory.New()
		s.Section("device", romAddress.String(), "capability", factory.PhilipsRemote).Set(implementationKey, factory.PhilipsRemote)

		b, _, _ := newTestBridge(t, s)
		b.providerLoad()

		assert.Empty(t, b.deviceListFromPersistence())
	})
}

func TestBridge_providerLoop(t *testing.T) {
	t.Run("incoming messages are passed to the communicator", func(t *testing.T) {
		b, mp, mc := newTestBridge(t, memory.New())

		msg := zigbee.NodeIncomingMessageEvent{
			Node: zigbee.Node{IEEEAddress: romAddress},
		}

		mp.On("ReadEvent", mock.Anything).Return(msg, nil).Once()
		mp.On("ReadEvent", mock.Anything).Return(nil, context.Canceled)
		mc.On("ProcessIncomingMessage", msg).Return(nil).Once()

		b.loopDone = make(chan struct{})
		b.providerLoop()

		_, open := <-b.loopDone
		assert.False(t, open)
	})

	t.Run("a configured remote leaving the network is detached and forgotten", func(t *testing.T) {
		b, mp, mc := newTestBridge(t, memory.New())
		mc.On("RegisterMatch", mock.Anything).Once()
		mc.On("UnregisterMatch", mock.Anything).Once()
		mp.On("BindNodeToController", mock.Anything, romAddress, AdapterEndpoint, zigbee.Endpoint(1), hue.RemoteClusterID).Return(nil).Once()

		assert.NoError(t, b.AddDevice(DeviceConfig{IEEEAddress: "001788010bc3d4e5", Profile: profile.PhilipsROM001}))
		d := b.getDevice(romAddress)
		assert.NoError(t, b.enumerateDevice(context.Background(), d))

		b.handleProviderEvent(zigbee.NodeLeaveEvent{Node: zigbee.Node{IEEEAddress: romAddress}})

		assert.Nil(t, d.capability(philips_remote.Flag))
		assert.Empty(t, b.persistedCapabilities(romAddress))
	})
}

func startPublishLoop(b *Bridge) {
	b.publishDone = make(chan struct{})
	go b.publishLoop()
}

func remoteEvent(b *Bridge, name string) philips_remote.Event {
	return philips_remote.Event{
		Device: b.daDevice(b.getDevice(romAddress)),
		Event: press.Event{
			Name: name,
			Payload: press.Payload{
				Button:    "on",
				PressType: "double_press",
				Args:      press.Args{1, 0, 4, 0, 0},
			},
		},
	}
}

func TestBridge_sendEvent(t *testing.T) {
	t.Run("remote events are published as JSON and queued for ReadEvent", func(t *testing.T) {
		b, _, _ := newTestBridge(t, memory.New())

		mpub := &MockPublisher{}
		defer mpub.AssertExpectations(t)
		b.WithPublisher(mpub, "home/remotes")

		assert.NoError(t, b.AddDevice(DeviceConfig{IEEEAddress: "001788010bc3d4e5", Profile: profile.PhilipsROM001}))

		e := remoteEvent(b, "on_double_press")

		published := make(chan struct{})
		mpub.On("Publish", mock.Anything, "home/remotes/001788010bc3d4e5/action", mock.Anything).Run(func(args mock.Arguments) {
			var msg map[string]any
			assert.NoError(t, json.Unmarshal(args.Get(2).([]byte), &msg))
			assert.Equal(t, "on_double_press", msg["action"])
			assert.Equal(t, "double_press", msg["press_type"])
			assert.Contains(t, msg, "command_id")
			assert.Nil(t, msg["command_id"])
			close(published)
		}).Return(nil).Once()

		startPublishLoop(b)
		b.sendEvent(e)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		read, err := b.ReadEvent(ctx)
		assert.NoError(t, err)
		assert.Equal(t, e, read)

		select {
		case <-published:
		case <-ctx.Done():
			t.Fatal("action was not published")
		}
	})

	t.Run("a slow broker does not hold up event delivery", func(t *testing.T) {
		b, _, _ := newTestBridge(t, memory.New())

		mpub := &MockPublisher{}
		b.WithPublisher(mpub, DefaultRootTopic)

		assert.NoError(t, b.AddDevice(DeviceConfig{IEEEAddress: "001788010bc3d4e5", Profile: profile.PhilipsROM001}))

		release := make(chan struct{})
		published := make(chan string, 2)
		mpub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			<-release
			var msg ActionMessage
			assert.NoError(t, json.Unmarshal(args.Get(2).([]byte), &msg))
			published <- msg.Action
		}).Return(nil).Twice()

		startPublishLoop(b)

		sent := make(chan struct{})
		go func() {
			b.sendEvent(remoteEvent(b, "on_press"))
			b.sendEvent(remoteEvent(b, "on_short_release"))
			close(sent)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		select {
		case <-sent:
		case <-ctx.Done():
			t.Fatal("sendEvent blocked on the publisher")
		}

		for _, name := range []string{"on_press", "on_short_release"} {
			read, err := b.ReadEvent(ctx)
			assert.NoError(t, err)
			assert.Equal(t, name, read.(philips_remote.Event).Name)
		}

		close(release)

		for _, name := range []string{"on_press", "on_short_release"} {
			select {
			case action := <-published:
				assert.Equal(t, name, action)
			case <-ctx.Done():
				t.Fatal("action was not published")
			}
		}

		mpub.AssertExpectations(t)
	})

	t.Run("other events are queued but not published", func(t *testing.T) {
		b, _, _ := newTestBridge(t, memory.New())

		mpub := &MockPublisher{}
		defer mpub.AssertExpectations(t)
		b.WithPublisher(mpub, DefaultRootTopic)

		startPublishLoop(b)
		b.sendEvent("not a remote event")

		read, err := b.ReadEvent(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, "not a remote event", read)
	})

	t.Run("stop waits for the publish loop", func(t *testing.T) {
		b, _, _ := newTestBridge(t, memory.New())
		b.WithPublisher(&MockPublisher{}, DefaultRootTopic)

		startPublishLoop(b)
		assert.NoError(t, b.Stop())

		_, open := <-b.publishDone
		assert.False(t, open)
	})
}
