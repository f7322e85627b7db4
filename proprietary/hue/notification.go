package hue

import (
	"fmt"
	"github.com/shimmeringbee/bytecodec"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zdaremote/press"
	"github.com/shimmeringbee/zigbee"
)

const (
	RemoteClusterID = zigbee.ClusterID(0xfc00)
	Manufacturer    = zigbee.ManufacturerCode(0x100b)
)

const NotificationID zcl.CommandIdentifier = 0x00

// Notification is sent by Hue remotes for every press, hold and release.
type Notification struct {
	Button    uint8
	Param2    uint32 `bcfieldwidth:"24"`
	PressType uint8
	Param4    uint8
	Duration  uint16
}

func (n Notification) Args() press.Args {
	return press.Args{uint(n.Button), uint(n.Param2), uint(n.PressType), uint(n.Param4), uint(n.Duration)}
}

func Register(cr *zcl.CommandRegistry) {
	cr.RegisterLocal(RemoteClusterID, Manufacturer, zcl.ServerToClient, NotificationID, &Notification{})
}

// ParseNotification decodes a notification payload without its ZCL header.
func ParseNotification(payload []byte) (Notification, error) {
	var n Notification

	if err := bytecodec.Unmarshal(payload, &n); err != nil {
		return Notification{}, fmt.Errorf("failed to parse Hue remote notification: %w", err)
	}

	return n, nil
}
