package press

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Raw press codes reported by remotes.
const (
	CodeInitialPress uint = 0
	CodeRepeat       uint = 1
	CodeShortRelease uint = 2
	CodeLongRelease  uint = 3
)

// MultiPressRanks names bursts of two to five clicks, in order.
var MultiPressRanks = []string{"double", "triple", "quadruple", "quintuple"}

// Args is the decoded argument vector of a remote notification:
// [button id, reserved, press code, reserved, duration].
type Args [5]uint

func (a Args) Button() uint {
	return a[0]
}

func (a Args) Code() uint {
	return a[2]
}

func (a Args) Duration() uint {
	return a[4]
}

// Button identifies one physical control on a remote.
type Button struct {
	// PrimaryName is used in runtime event names and payloads.
	PrimaryName string
	// TriggerKey identifies the button in trigger tables.
	TriggerKey string
	// CommandPrefix prefixes synthesized trigger commands.
	CommandPrefix string
}

// NewButton constructs a Button, the optional overrides are the trigger key and
// command prefix, both default to the primary name.
func NewButton(primary string, overrides ...string) Button {
	b := Button{PrimaryName: primary, TriggerKey: primary, CommandPrefix: primary}

	if len(overrides) > 0 && overrides[0] != "" {
		b.TriggerKey = overrides[0]
	}

	if len(overrides) > 1 && overrides[1] != "" {
		b.CommandPrefix = overrides[1]
	}

	return b
}

func (b Button) triggerKey() string {
	if b.TriggerKey == "" {
		return b.PrimaryName
	}
	return b.TriggerKey
}

func (b Button) commandPrefix() string {
	if b.CommandPrefix == "" {
		return b.PrimaryName
	}
	return b.CommandPrefix
}

// Key returns the button's identity in trigger tables.
func (b Button) Key() string {
	return b.triggerKey()
}

// Command synthesizes a command string for the given suffix.
func (b Button) Command(suffix string) string {
	return fmt.Sprintf("%s_%s", b.commandPrefix(), suffix)
}

// PressType describes what a raw press code means.
type PressType struct {
	TriggerName   string
	CommandSuffix string
	RuntimeName   string
}

func NewPressType(trigger string, suffix string, runtime ...string) PressType {
	pt := PressType{TriggerName: trigger, CommandSuffix: suffix}

	if len(runtime) > 0 {
		pt.RuntimeName = runtime[0]
	}

	return pt
}

// Runtime is the name used in runtime events, which defaults to the command suffix.
func (p PressType) Runtime() string {
	if p.RuntimeName == "" {
		return p.CommandSuffix
	}
	return p.RuntimeName
}

// ShortEvents are the press types synthesized from queued single clicks.
type ShortEvents struct {
	Press   PressType
	Release PressType
}

var ErrDuplicateButton = errors.New("duplicate button name")
var ErrMissingButtonName = errors.New("button missing primary name")

// Config is the static description of a remote's buttons and press codes.
type Config struct {
	Buttons             map[uint]Button
	PressTypes          map[uint]PressType
	SimulateShortEvents *ShortEvents
	Threshold           time.Duration
}

func (c Config) Validate() error {
	seen := map[string]uint{}

	for _, id := range SortedIDs(c.Buttons) {
		b := c.Buttons[id]

		if b.PrimaryName == "" {
			return fmt.Errorf("button %d: %w", id, ErrMissingButtonName)
		}

		if other, found := seen[b.PrimaryName]; found {
			return fmt.Errorf("buttons %d and %d share %q: %w", other, id, b.PrimaryName, ErrDuplicateButton)
		}

		seen[b.PrimaryName] = id
	}

	return nil
}

// SortedIDs returns the keys of a raw id keyed map in ascending order.
func SortedIDs[T any](m map[uint]T) []uint {
	ids := make([]uint, 0, len(m))

	for id := range m {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// Payload is the body of an emitted event.
type Payload struct {
	Button    string `json:"button"`
	PressType string `json:"press_type"`
	CommandID *uint8 `json:"command_id"`
	Duration  uint   `json:"duration"`
	Args      Args   `json:"args"`
}

// Event is a classified button event.
type Event struct {
	Name    string
	Payload Payload
}

// EventSender receives classified events.
type EventSender interface {
	SendEvent(any)
}
