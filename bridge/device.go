package bridge

import (
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/zdaremote/implcaps"
	"github.com/shimmeringbee/zigbee"
	"golang.org/x/sync/semaphore"
	"sort"
	"sync"
)

type device struct {
	// Immutable data.
	address zigbee.IEEEAddress
	config  DeviceConfig
	m       *sync.RWMutex

	// Serialises enumeration, loading and detaching.
	enumerationSem *semaphore.Weighted

	// Mutable data, obtain lock first.
	capabilities map[da.Capability]implcaps.ZDACapability
}

func (b *Bridge) createDevice(addr zigbee.IEEEAddress, cfg DeviceConfig) (*device, bool) {
	b.deviceLock.Lock()
	defer b.deviceLock.Unlock()

	d, found := b.device[addr]
	if !found {
		d = &device{
			address:        addr,
			config:         cfg,
			m:              &sync.RWMutex{},
			enumerationSem: semaphore.NewWeighted(1),
			capabilities:   map[da.Capability]implcaps.ZDACapability{},
		}

		b.device[addr] = d
	}

	return d, !found
}

func (b *Bridge) getDevice(addr zigbee.IEEEAddress) *device {
	b.deviceLock.RLock()
	defer b.deviceLock.RUnlock()

	return b.device[addr]
}

func (b *Bridge) getDevices() []*device {
	b.deviceLock.RLock()
	defer b.deviceLock.RUnlock()

	var devices []*device

	for _, d := range b.device {
		devices = append(devices, d)
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].address < devices[j].address
	})

	return devices
}

func (b *Bridge) daDevice(d *device) da.BaseDevice {
	d.m.RLock()
	defer d.m.RUnlock()

	var flags []da.Capability

	for f := range d.capabilities {
		flags = append(flags, f)
	}

	sort.Slice(flags, func(i, j int) bool {
		return flags[i] < flags[j]
	})

	return da.BaseDevice{
		DeviceGateway:      b,
		DeviceIdentifier:   d.address,
		DeviceCapabilities: flags,
	}
}

func (d *device) capability(f da.Capability) implcaps.ZDACapability {
	d.m.RLock()
	defer d.m.RUnlock()

	return d.capabilities[f]
}

func (d *device) attach(c implcaps.ZDACapability) {
	d.m.Lock()
	defer d.m.Unlock()

	d.capabilities[c.Capability()] = c
}

func (d *device) remove(f da.Capability) {
	d.m.Lock()
	defer d.m.Unlock()

	delete(d.capabilities, f)
}

func (d *device) attached() []implcaps.ZDACapability {
	d.m.RLock()
	defer d.m.RUnlock()

	var caps []implcaps.ZDACapability

	for _, c := range d.capabilities {
		caps = append(caps, c)
	}

	sort.Slice(caps, func(i, j int) bool {
		return caps[i].Capability() < caps[j].Capability()
	})

	return caps
}
