package factory

import (
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/shimmeringbee/zdaremote/implcaps"
	"github.com/shimmeringbee/zdaremote/implcaps/generic/product_information"
	"github.com/shimmeringbee/zdaremote/implcaps/proprietary/philips_remote"
	"github.com/shimmeringbee/zdaremote/profile"
)

const GenericProductInformation = "GenericProductInformation"
const PhilipsRemote = "PhilipsRemote"

var Mapping = map[string]da.Capability{
	GenericProductInformation: capabilities.ProductInformationFlag,
	PhilipsRemote:             philips_remote.Flag,
}

// Create constructs a capability implementation by name, nil is returned for unknown names.
func Create(name string, iface implcaps.ZDAInterface, r *profile.Registry) implcaps.ZDACapability {
	switch name {
	case GenericProductInformation:
		return product_information.NewProductInformation()
	case PhilipsRemote:
		return philips_remote.NewRemote(iface, r)
	default:
		return nil
	}
}
