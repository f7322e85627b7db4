package press

import (
	"context"
	"fmt"
	"github.com/shimmeringbee/logwrap"
	"sync"
)

// Classifier turns raw remote notifications into logical button events. Single and
// multi clicks are debounced per button, hold and long release codes are emitted as
// soon as they arrive.
type Classifier struct {
	logger logwrap.Logger
	sender EventSender

	// m serialises notifications and flushes for the whole device.
	m *sync.Mutex

	buttons    map[uint]Button
	pressTypes map[uint]PressType
	queues     map[uint]*Queue

	pendingPress   map[uint]Args
	pendingRelease map[uint]Args
}

func NewClassifier(cfg Config, s Scheduler, sender EventSender, l logwrap.Logger) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if s == nil {
		s = TimerScheduler{}
	}

	c := &Classifier{
		logger:         l,
		sender:         sender,
		m:              &sync.Mutex{},
		buttons:        make(map[uint]Button, len(cfg.Buttons)),
		pressTypes:     make(map[uint]PressType, len(cfg.PressTypes)),
		queues:         make(map[uint]*Queue, len(cfg.Buttons)),
		pendingPress:   map[uint]Args{},
		pendingRelease: map[uint]Args{},
	}

	for id, b := range cfg.Buttons {
		c.buttons[id] = b
		c.queues[id] = newQueue(cfg.Threshold, s, c.m)
	}

	for code, pt := range cfg.PressTypes {
		c.pressTypes[code] = pt
	}

	return c, nil
}

// Handle processes one decoded notification. Unknown buttons and codes are ignored.
// An error is only returned if the debounce flush could not be scheduled.
func (c *Classifier) Handle(args Args) error {
	c.m.Lock()
	defer c.m.Unlock()

	id := args.Button()

	button, found := c.buttons[id]
	if !found {
		c.logger.LogTrace(context.Background(), "Ignoring notification for unknown button.", logwrap.Datum("ButtonID", id))
		return nil
	}

	switch code := args.Code(); code {
	case CodeInitialPress:
		c.pendingPress[id] = args
	case CodeShortRelease:
		if err := c.queues[id].press(c.flushFor(id, button)); err != nil {
			return fmt.Errorf("button %s: %w", button.PrimaryName, err)
		}

		c.pendingRelease[id] = args
	default:
		if pt, found := c.pressTypes[code]; found {
			c.emit(button, pt.CommandSuffix, pt.Runtime(), args.Duration(), args)
		} else {
			c.logger.LogTrace(context.Background(), "Ignoring unknown press code.", logwrap.Datum("Button", button.PrimaryName), logwrap.Datum("Code", code))
		}
	}

	return nil
}

// flushFor returns the callback invoked with the final click count, it runs with c.m held.
func (c *Classifier) flushFor(id uint, button Button) func(int) {
	return func(count int) {
		switch {
		case count == 1:
			c.emit(button, "press", "press", 0, c.pendingPress[id])
			c.emit(button, "short_release", "short_release", 0, c.pendingRelease[id])
		case count >= 2 && count-2 < len(MultiPressRanks):
			rank := fmt.Sprintf("%s_press", MultiPressRanks[count-2])
			c.emit(button, rank, rank, 0, Args{id, 0, uint(count + 2), 0, 0})
		default:
			c.logger.LogWarn(context.Background(), "Dropping burst with more clicks than any known rank.", logwrap.Datum("Button", button.PrimaryName), logwrap.Datum("Count", count))
		}
	}
}

// emit names the event after the command suffix, pressType only appears in the payload.
func (c *Classifier) emit(button Button, suffix string, pressType string, duration uint, args Args) {
	if c.sender == nil {
		return
	}

	c.sender.SendEvent(Event{
		Name: fmt.Sprintf("%s_%s", button.PrimaryName, suffix),
		Payload: Payload{
			Button:    button.PrimaryName,
			PressType: pressType,
			Duration:  duration,
			Args:      args,
		},
	})
}

// Close abandons every open debounce window, no further events are emitted for them.
func (c *Classifier) Close() {
	c.m.Lock()
	defer c.m.Unlock()

	for _, q := range c.queues {
		q.stop()
	}
}

// Buttons returns a copy of the configured buttons.
func (c *Classifier) Buttons() map[uint]Button {
	c.m.Lock()
	defer c.m.Unlock()

	buttons := make(map[uint]Button, len(c.buttons))
	for id, b := range c.buttons {
		buttons[id] = b
	}

	return buttons
}
