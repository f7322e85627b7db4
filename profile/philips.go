package profile

import (
	"github.com/shimmeringbee/zdaremote/press"
	"github.com/shimmeringbee/zdaremote/trigger"
)

const (
	Philips = "Philips"
	Signify = "Signify Netherlands B.V."
)

const (
	PhilipsRWLFirstGen = "PhilipsRWLFirstGen"
	PhilipsRWL022      = "PhilipsRWL022"
	PhilipsROM001      = "PhilipsROM001"
	PhilipsWallSwitch  = "PhilipsWallSwitch"
	PhilipsRDM002      = "PhilipsRDM002"
)

// DefaultShortEvents are synthesized for single clicks on Philips remotes.
func DefaultShortEvents() *press.ShortEvents {
	return &press.ShortEvents{
		Press:   press.NewPressType(trigger.ShortPress, "press"),
		Release: press.NewPressType(trigger.ShortRelease, "short_release"),
	}
}

// Codes 0 and 2 are left out, single clicks are synthesized from the debounce queue.
func holdPressTypes(releaseRuntime string) map[uint]press.PressType {
	return map[uint]press.PressType{
		press.CodeRepeat:      press.NewPressType(trigger.LongPress, trigger.CommandHold),
		press.CodeLongRelease: press.NewPressType(trigger.LongRelease, "long_release", releaseRuntime),
	}
}

func dimmerButtons() map[uint]press.Button {
	return map[uint]press.Button{
		1: press.NewButton(trigger.CommandOn, trigger.TurnOn),
		2: press.NewButton("up", trigger.DimUp),
		3: press.NewButton("down", trigger.DimDown),
		4: press.NewButton(trigger.CommandOff, trigger.TurnOff),
	}
}

func Builtin() []Profile {
	return []Profile{
		{
			Name:          PhilipsRWLFirstGen,
			Manufacturers: []string{Philips, Signify},
			Models:        []string{"RWL020", "RWL021"},
			Endpoint:      2,
			Config: press.Config{
				Buttons:             dimmerButtons(),
				PressTypes:          holdPressTypes("long_release"),
				SimulateShortEvents: DefaultShortEvents(),
			},
		},
		{
			Name:          PhilipsRWL022,
			Manufacturers: []string{Signify},
			Models:        []string{"RWL022"},
			Endpoint:      1,
			Config: press.Config{
				Buttons:             dimmerButtons(),
				PressTypes:          holdPressTypes("long_release"),
				SimulateShortEvents: DefaultShortEvents(),
			},
		},
		{
			Name:          PhilipsROM001,
			Manufacturers: []string{Philips, Signify},
			Models:        []string{"ROM001", "RDM003"},
			Endpoint:      1,
			Config: press.Config{
				Buttons: map[uint]press.Button{
					1: press.NewButton(trigger.CommandOn, trigger.TurnOn, trigger.CommandOn),
				},
				PressTypes:          holdPressTypes("hold_release"),
				SimulateShortEvents: DefaultShortEvents(),
			},
		},
		{
			Name:          PhilipsWallSwitch,
			Manufacturers: []string{Signify},
			Models:        []string{"RDM001", "RDM004"},
			Endpoint:      1,
			Config: press.Config{
				Buttons: map[uint]press.Button{
					1: press.NewButton(trigger.Left, trigger.TurnOn),
					2: press.NewButton(trigger.Right, trigger.Right),
				},
				PressTypes:          holdPressTypes("hold_release"),
				SimulateShortEvents: DefaultShortEvents(),
			},
		},
		{
			Name:          PhilipsRDM002,
			Manufacturers: []string{Signify},
			Models:        []string{"RDM002"},
			Endpoint:      1,
			Config: press.Config{
				Buttons: map[uint]press.Button{
					1: press.NewButton(trigger.Button1),
					2: press.NewButton(trigger.Button2),
					3: press.NewButton(trigger.Button3),
					4: press.NewButton(trigger.Button4),
				},
				PressTypes:          holdPressTypes("hold_release"),
				SimulateShortEvents: DefaultShortEvents(),
			},
			Overrides: trigger.Table{
				{Trigger: trigger.ShortPress, Button: trigger.DimUp}:   levelStep(0),
				{Trigger: trigger.ShortPress, Button: trigger.DimDown}: levelStep(1),
			},
		},
	}
}

// levelStep is a Level Control step_with_on_off sent by the dial.
func levelStep(mode int) trigger.Action {
	cluster := uint16(0x0008)
	endpoint := uint8(1)

	return trigger.Action{
		Command:    "step_with_on_off",
		ClusterID:  &cluster,
		EndpointID: &endpoint,
		Params:     map[string]any{"step_mode": mode},
	}
}
