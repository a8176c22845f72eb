package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/teamboard/teamboard/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetUser(ctx context.Context, userId string) (models.User, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockStore) GetTeam(ctx context.Context, teamId string) (models.Team, error) {
	args := m.Called(ctx, teamId)
	return args.Get(0).(models.Team), args.Error(1)
}

func (m *MockStore) CreateIdea(ctx context.Context, idea models.Idea) (models.Idea, error) {
	args := m.Called(ctx, idea)
	return args.Get(0).(models.Idea), args.Error(1)
}

func (m *MockStore) GetTeamIdeas(ctx context.Context, teamId string, limit int32) ([]models.Idea, error) {
	args := m.Called(ctx, teamId, limit)
	return args.Get(0).([]models.Idea), args.Error(1)
}

func (m *MockStore) UpdateIdea(ctx context.Context, teamId string, ideaId string, updates models.IdeaUpdates) (models.Idea, error) {
	args := m.Called(ctx, teamId, ideaId, updates)
	return args.Get(0).(models.Idea), args.Error(1)
}

func (m *MockStore) AddIdeaReaction(ctx context.Context, teamId string, ideaId string, reaction models.ReactionType) (models.Idea, error) {
	args := m.Called(ctx, teamId, ideaId, reaction)
	return args.Get(0).(models.Idea), args.Error(1)
}

func (m *MockStore) DeleteIdea(ctx context.Context, teamId string, ideaId string) error {
	args := m.Called(ctx, teamId, ideaId)
	return args.Error(0)
}

func (m *MockStore) ClaimStickyNote(ctx context.Context, note models.StickyNote) (models.StickyNote, bool, error) {
	args := m.Called(ctx, note)
	return args.Get(0).(models.StickyNote), args.Bool(1), args.Error(2)
}

func (m *MockStore) WriteStickyBatch(ctx context.Context, notes []models.StickyNote) ([]models.StickyNote, error) {
	args := m.Called(ctx, notes)
	return args.Get(0).([]models.StickyNote), args.Error(1)
}

func (m *MockStore) GetTeamStickyNotes(ctx context.Context, teamId string) ([]models.StickyNote, error) {
	args := m.Called(ctx, teamId)
	return args.Get(0).([]models.StickyNote), args.Error(1)
}

func (m *MockStore) DeleteStickyNote(ctx context.Context, noteId string, teamId string) error {
	args := m.Called(ctx, noteId, teamId)
	return args.Error(0)
}

func (m *MockStore) DeleteTeamStickyNotes(ctx context.Context, teamId string) error {
	args := m.Called(ctx, teamId)
	return args.Error(0)
}

func (m *MockStore) GetTeamStickyCount(ctx context.Context, teamId string) (int, error) {
	args := m.Called(ctx, teamId)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) IncrementTeamStickyCount(ctx context.Context, teamId string, count int) error {
	args := m.Called(ctx, teamId, count)
	return args.Error(0)
}
