package bridge

import (
	"context"
	"github.com/shimmeringbee/zcl/communicator"
	"github.com/shimmeringbee/zigbee"
	"github.com/stretchr/testify/mock"
)

type MockCommunicator struct {
	mock.Mock
}

func (m *MockCommunicator) RegisterMatch(match communicator.Match) {
	m.Called(match)
}

func (m *MockCommunicator) UnregisterMatch(match communicator.Match) {
	m.Called(match)
}

func (m *MockCommunicator) ProcessIncomingMessage(msg zigbee.NodeIncomingMessageEvent) error {
	return m.Called(msg).Error(0)
}

var _ Communicator = (*MockCommunicator)(nil)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return m.Called(ctx, topic, payload).Error(0)
}

var _ Publisher = (*MockPublisher)(nil)
