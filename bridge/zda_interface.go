package bridge

import (
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zdaremote/implcaps"
	"github.com/shimmeringbee/zigbee"
)

var _ implcaps.ZDAInterface = (*zdaInterface)(nil)

type zdaInterface struct {
	b *Bridge
}

func (z zdaInterface) Logger() logwrap.Logger {
	return z.b.logger
}

func (z zdaInterface) ZCLRegister(f func(*zcl.CommandRegistry)) {
	f(z.b.zclCommandRegistry)
}

func (z zdaInterface) TransmissionLookup(d da.Device, id zigbee.ProfileID) (zigbee.IEEEAddress, zigbee.Endpoint, bool, uint8) {
	return z.b.transmissionLookup(d, id)
}

func (z zdaInterface) ZCLCommunicator() implcaps.ZCLMatcher {
	return z.b.zclCommunicator
}

func (z zdaInterface) NodeBinder() zigbee.NodeBinder {
	return z.b.provider
}

func (z zdaInterface) SendEvent(a any) {
	z.b.sendEvent(a)
}

// transmissionLookup addresses remotes from the adapter endpoint without APS acknowledgements.
func (b *Bridge) transmissionLookup(d da.Device, _ zigbee.ProfileID) (zigbee.IEEEAddress, zigbee.Endpoint, bool, uint8) {
	addr, ok := d.Identifier().(zigbee.IEEEAddress)
	if !ok {
		return 0, 0, false, 0
	}

	return addr, AdapterEndpoint, false, 0
}
