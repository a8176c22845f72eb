package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/teamboard/teamboard/cache"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Publish(ctx context.Context, channel string, message []byte) error {
	args := m.Called(ctx, channel, message)
	return args.Error(0)
}

func (m *MockCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	args := m.Called(ctx, channel, handler)
	return args.Error(0)
}

func (m *MockCache) AddIdea(ctx context.Context, teamId string, ideaId string, score int64, ideaData []byte) error {
	args := m.Called(ctx, teamId, ideaId, score, ideaData)
	return args.Error(0)
}

func (m *MockCache) AddIdeasBatch(ctx context.Context, teamId string, ideas []cache.IdeaCacheItem) error {
	args := m.Called(ctx, teamId, ideas)
	return args.Error(0)
}

func (m *MockCache) RemoveIdea(ctx context.Context, teamId string, ideaId string) error {
	args := m.Called(ctx, teamId, ideaId)
	return args.Error(0)
}

func (m *MockCache) GetIdeas(ctx context.Context, teamId string) ([][]byte, error) {
	args := m.Called(ctx, teamId)
	return args.Get(0).([][]byte), args.Error(1)
}

func (m *MockCache) SetTeamComplete(ctx context.Context, teamId string) error {
	args := m.Called(ctx, teamId)
	return args.Error(0)
}

func (m *MockCache) IsTeamComplete(ctx context.Context, teamId string) (bool, error) {
	args := m.Called(ctx, teamId)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) InvalidateTeams(ctx context.Context, teamIds []string) error {
	args := m.Called(ctx, teamIds)
	return args.Error(0)
}

func (m *MockCache) IncrementTeamStickyCount(ctx context.Context, teamId string) (int64, error) {
	args := m.Called(ctx, teamId)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCache) DecrementTeamStickyCount(ctx context.Context, teamId string) error {
	args := m.Called(ctx, teamId)
	return args.Error(0)
}

func (m *MockCache) SeedTeamStickyCount(ctx context.Context, teamId string, count int) error {
	args := m.Called(ctx, teamId, count)
	return args.Error(0)
}

func (m *MockCache) GetTeamStickyCount(ctx context.Context, teamId string) (int, error) {
	args := m.Called(ctx, teamId)
	return args.Int(0), args.Error(1)
}
