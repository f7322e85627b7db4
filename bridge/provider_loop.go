package bridge

import (
	"context"
	"errors"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/zdaremote/implcaps"
	"github.com/shimmeringbee/zigbee"
)

func (b *Bridge) providerLoop() {
	defer close(b.loopDone)

	for {
		event, err := b.provider.ReadEvent(b.ctx)

		if err != nil {
			if errors.Is(err, context.Canceled) {
				b.logger.LogInfo(b.ctx, "Provider loop terminating due to cancelled context.")
			} else {
				b.logger.LogError(b.ctx, "Failed to read event from Zigbee provider.", logwrap.Err(err))
			}
			return
		}

		b.handleProviderEvent(event)
	}
}

func (b *Bridge) handleProviderEvent(event any) {
	switch e := event.(type) {
	case zigbee.NodeJoinEvent:
		b.receiveNodeJoinEvent(e)
	case zigbee.NodeLeaveEvent:
		b.receiveNodeLeaveEvent(e)
	case zigbee.NodeIncomingMessageEvent:
		b.receiveNodeIncomingMessageEvent(e)
	}
}

func (b *Bridge) receiveNodeJoinEvent(e zigbee.NodeJoinEvent) {
	b.logger.LogInfo(b.ctx, "Node has joined zigbee network.", logwrap.Datum("IEEEAddress", e.IEEEAddress.String()))

	if d := b.getDevice(e.IEEEAddress); d != nil {
		b.queueEnumeration(d)
	} else {
		b.logger.LogDebug(b.ctx, "Ignoring join of node that is not a configured remote.", logwrap.Datum("IEEEAddress", e.IEEEAddress.String()))
	}
}

func (b *Bridge) receiveNodeLeaveEvent(e zigbee.NodeLeaveEvent) {
	b.logger.LogInfo(b.ctx, "Node has left zigbee network.", logwrap.Datum("IEEEAddress", e.IEEEAddress.String()))

	if d := b.getDevice(e.IEEEAddress); d != nil {
		b.detachDevice(b.ctx, d, implcaps.DeviceRemoved)
	}
}

func (b *Bridge) receiveNodeIncomingMessageEvent(e zigbee.NodeIncomingMessageEvent) {
	if err := b.zclCommunicator.ProcessIncomingMessage(e); err != nil {
		b.logger.LogDebug(b.ctx, "Failed to process incoming message.", logwrap.Datum("IEEEAddress", e.IEEEAddress.String()), logwrap.Err(err))
	}
}
