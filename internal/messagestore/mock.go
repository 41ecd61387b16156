package messagestore

import (
	"github.com/stretchr/testify/mock"

	"github.com/garrison-chat/garrison/internal/types"
)

type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) Append(msg types.ChatMessage) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockMessageStore) Fetch(barrackId string, limit int) ([]types.ChatMessage, error) {
	args := m.Called(barrackId, limit)
	return args.Get(0).([]types.ChatMessage), args.Error(1)
}

func (m *MockMessageStore) DeleteBarrackMessages(barrackId string) error {
	args := m.Called(barrackId)
	return args.Error(0)
}
