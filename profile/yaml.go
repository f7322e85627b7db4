package profile

import (
	"errors"
	"fmt"
	"github.com/shimmeringbee/zdaremote/press"
	"github.com/shimmeringbee/zdaremote/trigger"
	"github.com/shimmeringbee/zigbee"
	"gopkg.in/yaml.v3"
	"io"
	"time"
)

var ErrInvalidProfile = errors.New("invalid profile")

type ButtonDefinition struct {
	Name    string `yaml:"name"`
	Trigger string `yaml:"trigger,omitempty"`
	Command string `yaml:"command,omitempty"`
}

type PressTypeDefinition struct {
	Trigger string `yaml:"trigger"`
	Command string `yaml:"command"`
	Runtime string `yaml:"runtime,omitempty"`
}

// Definition is the YAML form of a Profile.
type Definition struct {
	Name                string                       `yaml:"name"`
	Manufacturers       []string                     `yaml:"manufacturers"`
	Models              []string                     `yaml:"models"`
	Endpoint            uint8                        `yaml:"endpoint"`
	Threshold           time.Duration                `yaml:"threshold,omitempty"`
	SimulateShortEvents bool                         `yaml:"simulate_short_events"`
	Buttons             map[uint]ButtonDefinition    `yaml:"buttons"`
	PressTypes          map[uint]PressTypeDefinition `yaml:"press_types"`
	Overrides           []trigger.Entry              `yaml:"overrides,omitempty"`
}

func (d Definition) Profile() (Profile, error) {
	if d.Name == "" {
		return Profile{}, fmt.Errorf("%w: missing name", ErrInvalidProfile)
	}

	if len(d.Buttons) == 0 {
		return Profile{}, fmt.Errorf("%w: %s: no buttons", ErrInvalidProfile, d.Name)
	}

	p := Profile{
		Name:          d.Name,
		Manufacturers: d.Manufacturers,
		Models:        d.Models,
		Endpoint:      zigbee.Endpoint(d.Endpoint),
		Config: press.Config{
			Buttons:    map[uint]press.Button{},
			PressTypes: map[uint]press.PressType{},
			Threshold:  d.Threshold,
		},
	}

	if p.Endpoint == 0 {
		p.Endpoint = 1
	}

	for id, b := range d.Buttons {
		p.Config.Buttons[id] = press.NewButton(b.Name, b.Trigger, b.Command)
	}

	for code, pt := range d.PressTypes {
		if pt.Trigger == "" || pt.Command == "" {
			return Profile{}, fmt.Errorf("%w: %s: press type %d needs a trigger and command", ErrInvalidProfile, d.Name, code)
		}

		p.Config.PressTypes[code] = press.NewPressType(pt.Trigger, pt.Command, pt.Runtime)
	}

	if d.SimulateShortEvents {
		p.Config.SimulateShortEvents = DefaultShortEvents()
	}

	if len(d.Overrides) > 0 {
		p.Overrides = trigger.Table{}

		for _, o := range d.Overrides {
			p.Overrides[o.Key] = o.Action
		}
	}

	if err := p.Config.Validate(); err != nil {
		return Profile{}, fmt.Errorf("%w: %s: %w", ErrInvalidProfile, d.Name, err)
	}

	return p, nil
}

// LoadYAML decodes a list of profile definitions.
func LoadYAML(r io.Reader) ([]Profile, error) {
	var defs []Definition

	if err := yaml.NewDecoder(r).Decode(&defs); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding profiles: %w", err)
	}

	return Profiles(defs)
}

func Profiles(defs []Definition) ([]Profile, error) {
	var profiles []Profile

	for _, d := range defs {
		p, err := d.Profile()
		if err != nil {
			return nil, err
		}

		profiles = append(profiles, p)
	}

	return profiles, nil
}
