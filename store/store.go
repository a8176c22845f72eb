package store

import (
	"context"
	"errors"

	"github.com/teamboard/teamboard/models"
)

type TeamboardStore interface {
	GetUser(ctx context.Context, userId string) (models.User, error)
	GetTeam(ctx context.Context, teamId string) (models.Team, error)

	CreateIdea(ctx context.Context, idea models.Idea) (models.Idea, error)
	GetTeamIdeas(ctx context.Context, teamId string, limit int32) ([]models.Idea, error)
	UpdateIdea(ctx context.Context, teamId string, ideaId string, updates models.IdeaUpdates) (models.Idea, error)
	AddIdeaReaction(ctx context.Context, teamId string, ideaId string, reaction models.ReactionType) (models.Idea, error)
	DeleteIdea(ctx context.Context, teamId string, ideaId string) error

	ClaimStickyNote(ctx context.Context, note models.StickyNote) (models.StickyNote, bool, error)
	WriteStickyBatch(ctx context.Context, notes []models.StickyNote) ([]models.StickyNote, error)
	GetTeamStickyNotes(ctx context.Context, teamId string) ([]models.StickyNote, error)
	DeleteStickyNote(ctx context.Context, noteId string, teamId string) error
	DeleteTeamStickyNotes(ctx context.Context, teamId string) error
	GetTeamStickyCount(ctx context.Context, teamId string) (int, error)

	IncrementTeamStickyCount(ctx context.Context, teamId string, count int) error
}

// Custom error types for clarity
var (
	ErrItemNotFound    = errors.New("item does not exist")
	ErrConditionFailed = errors.New("condition not met")
)
