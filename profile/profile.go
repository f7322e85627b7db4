package profile

import (
	"errors"
	"fmt"
	"github.com/shimmeringbee/zdaremote/press"
	"github.com/shimmeringbee/zdaremote/trigger"
	"github.com/shimmeringbee/zigbee"
	"sort"
	"sync"
)

var ErrUnknownProfile = errors.New("unknown profile")
var ErrDuplicateProfile = errors.New("duplicate profile")

// Profile describes a family of remotes that share a button layout.
type Profile struct {
	Name          string
	Manufacturers []string
	Models        []string
	// Endpoint hosts the manufacturer specific remote cluster.
	Endpoint zigbee.Endpoint
	Config   press.Config
	// Overrides are applied on top of the generated trigger table.
	Overrides trigger.Table
}

// Triggers returns the automation trigger table of the profile.
func (p Profile) Triggers() trigger.Table {
	return trigger.Generate(p.Config.Buttons, p.Config.PressTypes, p.Config.SimulateShortEvents).Merge(p.Overrides)
}

// Matches reports whether the profile applies to a manufacturer and model.
func (p Profile) Matches(manufacturer string, model string) bool {
	return contains(p.Manufacturers, manufacturer) && contains(p.Models, model)
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}

	return false
}

type Registry struct {
	m        *sync.RWMutex
	profiles map[string]Profile
}

func NewRegistry() *Registry {
	return &Registry{
		m:        &sync.RWMutex{},
		profiles: map[string]Profile{},
	}
}

// Default returns a registry holding the built in profiles.
func Default() *Registry {
	r := NewRegistry()

	for _, p := range Builtin() {
		if err := r.Add(p); err != nil {
			panic(err)
		}
	}

	return r
}

func (r *Registry) Add(p Profile) error {
	if err := p.Config.Validate(); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}

	r.m.Lock()
	defer r.m.Unlock()

	if _, found := r.profiles[p.Name]; found {
		return fmt.Errorf("profile %s: %w", p.Name, ErrDuplicateProfile)
	}

	r.profiles[p.Name] = p
	return nil
}

func (r *Registry) Get(name string) (Profile, error) {
	r.m.RLock()
	defer r.m.RUnlock()

	p, found := r.profiles[name]
	if !found {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}

	return p, nil
}

// Find returns the first profile, by name, matching the manufacturer and model.
func (r *Registry) Find(manufacturer string, model string) (Profile, bool) {
	for _, name := range r.Names() {
		p, err := r.Get(name)
		if err == nil && p.Matches(manufacturer, model) {
			return p, true
		}
	}

	return Profile{}, false
}

func (r *Registry) Names() []string {
	r.m.RLock()
	defer r.m.RUnlock()

	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}
