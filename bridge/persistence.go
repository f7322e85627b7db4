package bridge

import (
	"github.com/shimmeringbee/persistence"
	"github.com/shimmeringbee/zigbee"
	"strconv"
)

const implementationKey = "implementation"

func (b *Bridge) sectionForDevice(i zigbee.IEEEAddress) persistence.Section {
	return b.section.Section("device", i.String())
}

func (b *Bridge) sectionRemoveDevice(i zigbee.IEEEAddress) bool {
	return b.section.Section("device").SectionDelete(i.String())
}

func (b *Bridge) sectionForCapability(i zigbee.IEEEAddress, implName string) persistence.Section {
	return b.sectionForDevice(i).Section("capability", implName)
}

func (b *Bridge) sectionRemoveCapability(i zigbee.IEEEAddress, implName string) bool {
	return b.sectionForDevice(i).Section("capability").SectionDelete(implName)
}

// persistedCapabilities returns the implementation names stored for a device.
func (b *Bridge) persistedCapabilities(i zigbee.IEEEAddress) []string {
	var names []string

	capSection := b.sectionForDevice(i).Section("capability")

	for _, k := range capSection.SectionKeys() {
		if impl, ok := capSection.Section(k).String(implementationKey); ok {
			names = append(names, impl)
		}
	}

	return names
}

// deviceListFromPersistence returns the addresses of every device with stored state.
func (b *Bridge) deviceListFromPersistence() []zigbee.IEEEAddress {
	var deviceList []zigbee.IEEEAddress

	for _, k := range b.section.Section("device").SectionKeys() {
		if addr, err := strconv.ParseUint(k, 16, 64); err == nil {
			deviceList = append(deviceList, zigbee.IEEEAddress(addr))
		}
	}

	return deviceList
}
