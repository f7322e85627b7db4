package bridge

import (
	"context"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/zdaremote/implcaps"
	"github.com/shimmeringbee/zdaremote/implcaps/factory"
)

func (b *Bridge) providerLoad() {
	ctx, end := b.logger.Segment(b.ctx, "Loading persistence.")
	defer end()

	for _, addr := range b.deviceListFromPersistence() {
		if b.getDevice(addr) == nil {
			b.logger.LogInfo(ctx, "Removing persisted state of device no longer configured.", logwrap.Datum("IEEEAddress", addr.String()))
			b.sectionRemoveDevice(addr)
		}
	}

	for _, d := range b.getDevices() {
		if !b.providerLoadDevice(ctx, d) {
			b.queueEnumeration(d)
		}
	}
}

// providerLoadDevice restores capabilities from persistence, it returns false if the device still needs enumeration.
func (b *Bridge) providerLoadDevice(pctx context.Context, d *device) bool {
	ctx, end := b.logger.Segment(pctx, "Loading device data.", logwrap.Datum("IEEEAddress", d.address.String()))
	defer end()

	if err := d.enumerationSem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer d.enumerationSem.Release(1)

	remoteLoaded := false

	for _, implName := range b.persistedCapabilities(d.address) {
		cctx, cend := b.logger.Segment(ctx, "Loading capability data.", logwrap.Datum("implementation", implName))

		if attached := b.loadCapability(cctx, d, implName); attached && implName == factory.PhilipsRemote {
			remoteLoaded = true
		}

		cend()
	}

	return remoteLoaded
}

func (b *Bridge) loadCapability(ctx context.Context, d *device, implName string) bool {
	capI := factory.Create(implName, b.zdaInterface, b.profiles)
	if capI == nil {
		b.logger.LogError(ctx, "Could not find capability implementation.", logwrap.Datum("implementation", implName))
		return false
	}

	capI.Init(b.daDevice(d), b.sectionForCapability(d.address, implName).Section("data"))

	attached, err := capI.Load(ctx)
	if err != nil {
		b.logger.LogError(ctx, "Error while loading from persistence.", logwrap.Err(err), logwrap.Datum("implementation", implName))
	}

	if !attached {
		b.logger.LogWarn(ctx, "Rejected capability attach from persistence.", logwrap.Datum("implementation", implName))
		_ = capI.Detach(ctx, implcaps.FailedAttach)
		return false
	}

	d.attach(capI)
	b.logger.LogInfo(ctx, "Attached capability from persistence.", logwrap.Datum("implementation", implName))
	return true
}
