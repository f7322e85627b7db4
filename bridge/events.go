package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/zdaremote/implcaps/proprietary/philips_remote"
	"github.com/shimmeringbee/zigbee"
	"time"
)

const publishTimeout = 5 * time.Second

// ActionMessage is the JSON body published for every button event.
type ActionMessage struct {
	Action    string  `json:"action"`
	Button    string  `json:"button"`
	PressType string  `json:"press_type"`
	CommandID *uint8  `json:"command_id"`
	Duration  uint    `json:"duration"`
	Args      [5]uint `json:"args"`
}

func actionTopic(root string, addr zigbee.IEEEAddress) string {
	return fmt.Sprintf("%s/%s/action", root, addr)
}

func newActionMessage(e philips_remote.Event) ActionMessage {
	return ActionMessage{
		Action:    e.Name,
		Button:    e.Payload.Button,
		PressType: e.Payload.PressType,
		CommandID: e.Payload.CommandID,
		Duration:  e.Payload.Duration,
		Args:      e.Payload.Args,
	}
}

func (b *Bridge) queuePublish(event any) {
	e, ok := event.(philips_remote.Event)
	if !ok || b.publisher == nil {
		return
	}

	select {
	case b.outbound <- e:
	default:
		b.logger.LogWarn(b.ctx, "Publish queue full, action dropped.", logwrap.Datum("Action", e.Name))
	}
}

// publishLoop drains queued actions to the publisher until the bridge is stopped.
func (b *Bridge) publishLoop() {
	defer close(b.publishDone)

	for {
		select {
		case <-b.ctx.Done():
			return
		case e := <-b.outbound:
			b.publish(e)
		}
	}
}

func (b *Bridge) publish(e philips_remote.Event) {
	addr, ok := e.Device.Identifier().(zigbee.IEEEAddress)
	if !ok {
		return
	}

	data, err := json.Marshal(newActionMessage(e))
	if err != nil {
		b.logger.LogError(b.ctx, "Failed to encode action message.", logwrap.Err(err))
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, publishTimeout)
	defer cancel()

	topic := actionTopic(b.rootTopic, addr)

	if err := b.publisher.Publish(ctx, topic, data); err != nil {
		b.logger.LogWarn(b.ctx, "Failed to publish action.", logwrap.Datum("Topic", topic), logwrap.Err(err))
		return
	}

	b.logger.LogDebug(b.ctx, "Published action.", logwrap.Datum("Topic", topic), logwrap.Datum("Action", e.Name))
}
