package press

import (
	"github.com/stretchr/testify/mock"
)

type MockEventSender struct {
	mock.Mock
}

func (m *MockEventSender) SendEvent(e any) {
	m.Called(e)
}

// Events returns the press events received so far, in order.
func (m *MockEventSender) Events() []Event {
	var events []Event

	for _, call := range m.Calls {
		if call.Method != "SendEvent" {
			continue
		}

		if e, ok := call.Arguments.Get(0).(Event); ok {
			events = append(events, e)
		}
	}

	return events
}

var _ EventSender = (*MockEventSender)(nil)
