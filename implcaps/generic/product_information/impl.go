package product_information

import (
	"context"
	"errors"
	"fmt"
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/shimmeringbee/persistence"
	"github.com/shimmeringbee/zdaremote/implcaps"
	"github.com/shimmeringbee/zdaremote/rules"
	"sync"
)

const (
	ManufacturerKey = "Manufacturer"
	NameKey         = "Name"
	VersionKey      = "Version"
	SerialKey       = "Serial"
)

var ErrNoProductData = errors.New("no product data")

var keys = []string{ManufacturerKey, NameKey, VersionKey, SerialKey}

// Implementation holds the manufacturer and model identifiers a remote reported or was configured with,
// they are the product half of the rules input used to choose a button profile.
type Implementation struct {
	s persistence.Section
	m *sync.RWMutex
	v map[string]string
}

func NewProductInformation() *Implementation {
	return &Implementation{m: &sync.RWMutex{}}
}

func (g *Implementation) ImplName() string {
	return "GenericProductInformation"
}

func (g *Implementation) Init(_ da.Device, section persistence.Section) {
	g.s = section
}

func (g *Implementation) Capability() da.Capability {
	return capabilities.ProductInformationFlag
}

func (g *Implementation) Name() string {
	return capabilities.StandardNames[capabilities.ProductInformationFlag]
}

func (g *Implementation) Load(_ context.Context) (bool, error) {
	g.m.Lock()
	defer g.m.Unlock()

	v := map[string]string{}

	for _, k := range keys {
		if s, ok := g.s.String(k); ok && len(s) > 0 {
			v[k] = s
		}
	}

	if len(v) == 0 {
		return false, nil
	}

	g.v = v
	return true, nil
}

// Enumerate accepts string values for Manufacturer, Name, Version and Serial. It only attaches if at least one
// non empty value is present, a failed enumeration leaves previous data in place.
func (g *Implementation) Enumerate(_ context.Context, m map[string]any) (bool, error) {
	g.m.Lock()
	defer g.m.Unlock()

	v := map[string]string{}

	for _, k := range keys {
		raw, found := m[k]
		if !found {
			continue
		}

		s, ok := raw.(string)
		if !ok {
			return g.v != nil, fmt.Errorf("failed to cast '%s' value to string", k)
		}

		if len(s) > 0 {
			v[k] = s
		}
	}

	if len(v) == 0 {
		return g.v != nil, nil
	}

	for _, k := range keys {
		if s, found := v[k]; found {
			g.s.Set(k, s)
		} else {
			g.s.Delete(k)
		}
	}

	g.v = v
	return true, nil
}

func (g *Implementation) Detach(_ context.Context, dt implcaps.DetachType) error {
	g.m.Lock()
	defer g.m.Unlock()

	if dt == implcaps.DeviceRemoved {
		for _, k := range keys {
			g.s.Delete(k)
		}
	}

	g.v = nil
	return nil
}

func (g *Implementation) Get(_ context.Context) (capabilities.ProductInfo, error) {
	g.m.RLock()
	defer g.m.RUnlock()

	if g.v == nil {
		return capabilities.ProductInfo{}, ErrNoProductData
	}

	return capabilities.ProductInfo{
		Manufacturer: g.v[ManufacturerKey],
		Name:         g.v[NameKey],
		Version:      g.v[VersionKey],
		Serial:       g.v[SerialKey],
	}, nil
}

// Input returns the product data in the shape the rules engine filters on.
func (g *Implementation) Input() rules.InputProductData {
	g.m.RLock()
	defer g.m.RUnlock()

	return rules.InputProductData{
		Manufacturer: g.v[ManufacturerKey],
		Name:         g.v[NameKey],
		Version:      g.v[VersionKey],
		Serial:       g.v[SerialKey],
	}
}

var _ capabilities.ProductInformation = (*Implementation)(nil)
var _ implcaps.ZDACapability = (*Implementation)(nil)
