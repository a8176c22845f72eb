package cache

import "context"

type IdeaCacheItem struct {
	IdeaId string
	Score  int64
	Data   []byte
}

type TeamboardCache interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error

	AddIdea(ctx context.Context, teamId string, ideaId string, score int64, ideaData []byte) error
	AddIdeasBatch(ctx context.Context, teamId string, ideas []IdeaCacheItem) error
	RemoveIdea(ctx context.Context, teamId string, ideaId string) error
	GetIdeas(ctx context.Context, teamId string) ([][]byte, error)

	SetTeamComplete(ctx context.Context, teamId string) error
	IsTeamComplete(ctx context.Context, teamId string) (bool, error)
	InvalidateTeams(ctx context.Context, teamIds []string) error

	IncrementTeamStickyCount(ctx context.Context, teamId string) (int64, error)
	DecrementTeamStickyCount(ctx context.Context, teamId string) error
	SeedTeamStickyCount(ctx context.Context, teamId string, count int) error
	GetTeamStickyCount(ctx context.Context, teamId string) (int, error)
}
