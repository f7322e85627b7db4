package trigger

import (
	"fmt"
	"github.com/shimmeringbee/zdaremote/press"
	"sort"
)

// Trigger names used by automation front ends.
const (
	ShortPress     = "remote_button_short_press"
	LongPress      = "remote_button_long_press"
	ShortRelease   = "remote_button_short_release"
	LongRelease    = "remote_button_long_release"
	DoublePress    = "remote_button_double_press"
	TriplePress    = "remote_button_triple_press"
	QuadruplePress = "remote_button_quadruple_press"
	QuintuplePress = "remote_button_quintuple_press"
)

// Button trigger keys.
const (
	TurnOn  = "turn_on"
	TurnOff = "turn_off"
	DimUp   = "dim_up"
	DimDown = "dim_down"
	Left    = "left"
	Right   = "right"
	Button1 = "button_1"
	Button2 = "button_2"
	Button3 = "button_3"
	Button4 = "button_4"
)

// Command names.
const (
	CommandOn   = "on"
	CommandOff  = "off"
	CommandHold = "hold"
)

// Key identifies an automation trigger.
type Key struct {
	Trigger string `yaml:"trigger"`
	Button  string `yaml:"button"`
}

// Action is what a trigger maps to. Only Command is populated by Generate, the
// remaining fields are set by device specific overrides.
type Action struct {
	Command    string         `yaml:"command"`
	ClusterID  *uint16        `yaml:"cluster_id,omitempty"`
	EndpointID *uint8         `yaml:"endpoint_id,omitempty"`
	Params     map[string]any `yaml:"params,omitempty"`
}

type Table map[Key]Action

// Entry is a flattened table row.
type Entry struct {
	Key    `yaml:",inline"`
	Action `yaml:",inline"`
}

// Generate derives the trigger table for a remote. Buttons and press codes are
// visited in ascending order so that colliding keys resolve deterministically.
func Generate(buttons map[uint]press.Button, types map[uint]press.PressType, simulate *press.ShortEvents) Table {
	table := Table{}

	buttonIDs := press.SortedIDs(buttons)

	for _, code := range press.SortedIDs(types) {
		pt := types[code]

		for _, id := range buttonIDs {
			table.add(buttons[id], pt.TriggerName, pt.CommandSuffix)
		}
	}

	if simulate == nil {
		return table
	}

	for _, id := range buttonIDs {
		b := buttons[id]

		table.add(b, simulate.Press.TriggerName, simulate.Press.CommandSuffix)
		table.add(b, simulate.Release.TriggerName, simulate.Release.CommandSuffix)

		for _, rank := range press.MultiPressRanks {
			name := fmt.Sprintf("%s_press", rank)
			table.add(b, fmt.Sprintf("remote_button_%s", name), name)
		}
	}

	return table
}

func (t Table) add(b press.Button, trigger string, suffix string) {
	t[Key{Trigger: trigger, Button: b.Key()}] = Action{Command: b.Command(suffix)}
}

// Merge returns a copy of the table with overrides applied on top.
func (t Table) Merge(overrides Table) Table {
	merged := make(Table, len(t)+len(overrides))

	for k, v := range t {
		merged[k] = v
	}

	for k, v := range overrides {
		merged[k] = v
	}

	return merged
}

// Entries returns the table as rows ordered by button then trigger.
func (t Table) Entries() []Entry {
	entries := make([]Entry, 0, len(t))

	for k, v := range t {
		entries = append(entries, Entry{Key: k, Action: v})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Button != entries[j].Button {
			return entries[i].Button < entries[j].Button
		}
		return entries[i].Trigger < entries[j].Trigger
	})

	return entries
}

// Lookup returns the action for a trigger on a button.
func (t Table) Lookup(trigger string, button string) (Action, bool) {
	a, found := t[Key{Trigger: trigger, Button: button}]
	return a, found
}
