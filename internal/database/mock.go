package database

import (
	"github.com/stretchr/testify/mock"

	"github.com/garrison-chat/garrison/internal/types"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockStore) CreateUser(user types.UserAccount) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockStore) GetUserByUsername(username string) (types.UserAccount, error) {
	args := m.Called(username)
	return args.Get(0).(types.UserAccount), args.Error(1)
}

func (m *MockStore) GetUserById(userId string) (types.UserAccount, error) {
	args := m.Called(userId)
	return args.Get(0).(types.UserAccount), args.Error(1)
}

func (m *MockStore) CreateBarrack(barrack types.Barrack) error {
	args := m.Called(barrack)
	return args.Error(0)
}

func (m *MockStore) GetBarrackById(barrackId string) (types.Barrack, error) {
	args := m.Called(barrackId)
	return args.Get(0).(types.Barrack), args.Error(1)
}

func (m *MockStore) ListBarracks() ([]BarrackSummary, error) {
	args := m.Called()
	return args.Get(0).([]BarrackSummary), args.Error(1)
}

func (m *MockStore) DestroyBarrack(barrackId string) error {
	args := m.Called(barrackId)
	return args.Error(0)
}

func (m *MockStore) AddBarrackMember(member types.BarrackMember) error {
	args := m.Called(member)
	return args.Error(0)
}

func (m *MockStore) RemoveBarrackMember(barrackId, userId string) error {
	args := m.Called(barrackId, userId)
	return args.Error(0)
}

func (m *MockStore) GetBarrackMembers(barrackId string) ([]types.BarrackMember, error) {
	args := m.Called(barrackId)
	return args.Get(0).([]types.BarrackMember), args.Error(1)
}

func (m *MockStore) GetUnprocessedOutboxEvents(limit int) ([]types.OutboxEvent, error) {
	args := m.Called(limit)
	return args.Get(0).([]types.OutboxEvent), args.Error(1)
}

func (m *MockStore) DeleteOutboxEvent(eventId int64) error {
	args := m.Called(eventId)
	return args.Error(0)
}
