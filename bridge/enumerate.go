package bridge

import (
	"context"
	"fmt"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/zdaremote/implcaps"
	"github.com/shimmeringbee/zdaremote/implcaps/factory"
	"github.com/shimmeringbee/zdaremote/implcaps/generic/product_information"
	"github.com/shimmeringbee/zdaremote/implcaps/proprietary/philips_remote"
	"github.com/shimmeringbee/zdaremote/rules"
	"github.com/shimmeringbee/zigbee"
	"sort"
)

func (b *Bridge) queueEnumeration(d *device) {
	go func() {
		if err := b.enumerateDevice(b.ctx, d); err != nil {
			b.logger.LogError(b.ctx, "Failed to enumerate device.", logwrap.Datum("IEEEAddress", d.address.String()), logwrap.Err(err))
		}
	}()
}

// enumerateDevice resolves the capabilities a remote should have, enumerates them and detaches any that are no
// longer produced.
func (b *Bridge) enumerateDevice(pctx context.Context, d *device) error {
	ctx, end := b.logger.Segment(pctx, "Device enumeration.", logwrap.Datum("IEEEAddress", d.address.String()))
	defer end()

	if err := d.enumerationSem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("device already being enumerated: %w", err)
	}
	defer d.enumerationSem.Release(1)

	wanted, err := b.resolveCapabilities(ctx, d)
	if err != nil {
		return err
	}

	var names []string
	for name := range wanted {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b.enumerateCapability(ctx, d, name, wanted[name])
	}

	for _, c := range d.attached() {
		if _, found := wanted[c.ImplName()]; !found {
			b.logger.LogInfo(ctx, "Capability no longer enumerated, detaching.", logwrap.Datum("implementation", c.ImplName()))
			b.detachCapability(ctx, d, c, implcaps.NoLongerEnumerated)
		}
	}

	return nil
}

func (b *Bridge) enumerateCapability(pctx context.Context, d *device, implName string, settings rules.Settings) {
	ctx, end := b.logger.Segment(pctx, "Enumerating capability.", logwrap.Datum("implementation", implName))
	defer end()

	flag, found := factory.Mapping[implName]
	if !found {
		b.logger.LogError(ctx, "Rules produced an unknown capability implementation.", logwrap.Datum("implementation", implName))
		return
	}

	existing := d.capability(flag)
	if existing != nil && existing.ImplName() != implName {
		b.detachCapability(ctx, d, existing, implcaps.NoLongerEnumerated)
		existing = nil
	}

	capI := existing
	if capI == nil {
		if capI = factory.Create(implName, b.zdaInterface, b.profiles); capI == nil {
			b.logger.LogError(ctx, "Could not find capability implementation.", logwrap.Datum("implementation", implName))
			return
		}

		s := b.sectionForCapability(d.address, implName)
		s.Set(implementationKey, implName)
		capI.Init(b.daDevice(d), s.Section("data"))
	}

	attached, err := capI.Enumerate(ctx, settings.Map())
	if err != nil {
		b.logger.LogWarn(ctx, "Error while enumerating capability.", logwrap.Err(err))
	}

	if attached {
		d.attach(capI)
		b.logger.LogInfo(ctx, "Capability attached.")
	} else if existing != nil {
		b.detachCapability(ctx, d, capI, implcaps.NoLongerEnumerated)
	} else {
		_ = capI.Detach(ctx, implcaps.FailedAttach)
		b.sectionRemoveCapability(d.address, implName)
		b.logger.LogWarn(ctx, "Capability rejected enumeration.")
	}
}

func (b *Bridge) detachCapability(ctx context.Context, d *device, c implcaps.ZDACapability, dt implcaps.DetachType) {
	if err := c.Detach(ctx, dt); err != nil {
		b.logger.LogWarn(ctx, "Error while detaching capability.", logwrap.Datum("implementation", c.ImplName()), logwrap.Err(err))
	}

	d.remove(c.Capability())

	if dt != implcaps.Shutdown {
		b.sectionRemoveCapability(d.address, c.ImplName())
	}
}

func (b *Bridge) detachDevice(ctx context.Context, d *device, dt implcaps.DetachType) {
	if err := d.enumerationSem.Acquire(ctx, 1); err != nil {
		return
	}
	defer d.enumerationSem.Release(1)

	for _, c := range d.attached() {
		b.detachCapability(ctx, d, c, dt)
	}
}

// resolveCapabilities returns the settings for each capability implementation the remote should carry. Product
// information comes from configuration, the remote profile is either configured or selected by the rules engine.
func (b *Bridge) resolveCapabilities(ctx context.Context, d *device) (map[string]rules.Settings, error) {
	wanted := map[string]rules.Settings{}

	product := rules.InputProductData{Manufacturer: d.config.Manufacturer, Name: d.config.Model}

	if product.Manufacturer != "" || product.Name != "" {
		wanted[factory.GenericProductInformation] = rules.Settings{
			product_information.ManufacturerKey: product.Manufacturer,
			product_information.NameKey:         product.Name,
		}
	}

	settings, found, err := b.resolveRemote(ctx, d, product)
	if err != nil {
		return nil, err
	}

	if found {
		wanted[factory.PhilipsRemote] = settings
	} else {
		b.logger.LogWarn(ctx, "No button profile matches device.", logwrap.Datum("Manufacturer", product.Manufacturer), logwrap.Datum("Model", product.Name))
	}

	return wanted, nil
}

func (b *Bridge) resolveRemote(ctx context.Context, d *device, product rules.InputProductData) (rules.Settings, bool, error) {
	var settings rules.Settings
	var endpoint zigbee.Endpoint

	if d.config.Profile != "" {
		p, err := b.profiles.Get(d.config.Profile)
		if err != nil {
			return nil, false, err
		}

		settings = rules.Settings{philips_remote.ProfileKey: p.Name}
		endpoint = p.Endpoint

		if d.config.Endpoint != 0 {
			endpoint = zigbee.Endpoint(d.config.Endpoint)
		}
	} else {
		for _, ep := range b.candidateEndpoints(d) {
			o, err := b.engine.Execute(rules.Input{
				Product:  product,
				Endpoint: rules.InputEndpoint{ID: uint8(ep)},
			})
			if err != nil {
				return nil, false, fmt.Errorf("rules execution: %w", err)
			}

			if s, found := o.Capabilities[factory.PhilipsRemote]; found {
				b.logger.LogDebug(ctx, "Rules selected remote profile.", logwrap.Datum("Endpoint", ep), logwrap.Datum("Settings", s))
				settings = s
				endpoint = ep
				break
			}
		}

		if settings == nil {
			return nil, false, nil
		}
	}

	out := rules.Settings{}
	for k, v := range settings {
		out[k] = v
	}

	out["ZigbeeEndpoint"] = endpoint

	if threshold, ok := settings.Duration("Threshold"); ok {
		out["Threshold"] = threshold
	}

	if d.config.Threshold > 0 {
		out["Threshold"] = d.config.Threshold
	}

	return out, true, nil
}

// candidateEndpoints lists the endpoints the rules engine is asked about, the configured endpoint or every
// endpoint a registered profile listens on.
func (b *Bridge) candidateEndpoints(d *device) []zigbee.Endpoint {
	if d.config.Endpoint != 0 {
		return []zigbee.Endpoint{zigbee.Endpoint(d.config.Endpoint)}
	}

	seen := map[zigbee.Endpoint]bool{}
	var endpoints []zigbee.Endpoint

	for _, name := range b.profiles.Names() {
		p, err := b.profiles.Get(name)
		if err != nil || seen[p.Endpoint] {
			continue
		}

		seen[p.Endpoint] = true
		endpoints = append(endpoints, p.Endpoint)
	}

	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i] < endpoints[j]
	})

	return endpoints
}
