package service_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	cachemocks "github.com/teamboard/teamboard/cache/mocks"
	"github.com/teamboard/teamboard/models"
	mqmocks "github.com/teamboard/teamboard/mq/mocks"
	"github.com/teamboard/teamboard/service"
	"github.com/teamboard/teamboard/store"
	storemocks "github.com/teamboard/teamboard/store/mocks"
	"github.com/teamboard/teamboard/worker"
)

func setupService(t *testing.T) (*service.Service, *storemocks.MockStore, *cachemocks.MockCache, *mqmocks.MockMQ, *worker.StickyBatcher, *worker.CounterBatcher) {
	mockStore := new(storemocks.MockStore)
	mockCache := new(cachemocks.MockCache)
	mockMQ := new(mqmocks.MockMQ)

	// Real batchers with a long ticker; the sticky batcher loop must run
	// because the service consults its pending buffer
	counterBatcher := worker.NewCounterBatcher(mockStore, 60000)
	stickyBatcher := worker.NewStickyBatcher(mockStore, 60000, counterBatcher)

	shutdownCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go stickyBatcher.Run(shutdownCtx)

	// The shutdown flush may fire after the test finishes
	mockStore.On("WriteStickyBatch", mock.Anything, mock.Anything).Return([]models.StickyNote{}, nil).Maybe()

	svc, err := service.NewService(
		mockStore,
		mockCache,
		mockMQ,
		stickyBatcher,
		counterBatcher,
		[]byte("secret"),
	)
	assert.NoError(t, err)

	return svc, mockStore, mockCache, mockMQ, stickyBatcher, counterBatcher
}

func testActor() service.Actor {
	return service.Actor{UserId: "user1", UserName: "Ada"}
}

func TestCreateIdea_Success(t *testing.T) {
	svc, mockStore, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()
	teamId := "team1"

	var storedIdea models.Idea
	mockStore.On("CreateIdea", ctx, mock.MatchedBy(func(idea models.Idea) bool {
		storedIdea = idea
		return idea.TeamId == teamId &&
			idea.Title == "Solar tracker" &&
			idea.Category == "General" &&
			idea.Id != "" &&
			idea.Hearts == 0 && idea.Fires == 0 && idea.Stars == 0 && idea.Votes == 0
	})).Return(models.Idea{
		Id: "idea1", TeamId: teamId, Title: "Solar tracker", Category: "General", CreatedAt: 1000, UpdatedAt: 1000,
	}, nil)

	mockCache.On("AddIdea", ctx, teamId, "idea1", int64(1000), mock.Anything).Return(nil)
	mockCache.On("Publish", ctx, "team:"+teamId, mock.MatchedBy(func(msg []byte) bool {
		return strings.Contains(string(msg), `"type":"idea:created"`) &&
			strings.Contains(string(msg), `"userId":"user1"`)
	})).Return(nil)

	idea, err := svc.CreateIdea(ctx, testActor(), teamId, service.CreateIdeaParams{Title: "Solar tracker"})
	assert.NoError(t, err)
	assert.Equal(t, "idea1", idea.Id)
	assert.Equal(t, "General", storedIdea.Category)

	mockCache.AssertExpectations(t)
}

func TestCreateIdea_AssignsIdAndTimestamps(t *testing.T) {
	svc, mockStore, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()

	// Id and timestamps are assigned here, once; the store persists the row
	// exactly as given
	var storedIdea models.Idea
	mockStore.On("CreateIdea", ctx, mock.MatchedBy(func(idea models.Idea) bool {
		storedIdea = idea
		return true
	})).Return(models.Idea{Id: "echo"}, nil)
	mockCache.On("AddIdea", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockCache.On("Publish", ctx, mock.Anything, mock.Anything).Return(nil)

	created, err := svc.CreateIdea(ctx, testActor(), "team1", service.CreateIdeaParams{Title: "Solar tracker"})
	assert.NoError(t, err)

	parsed, parseErr := uuid.FromString(storedIdea.Id)
	assert.NoError(t, parseErr)
	assert.Equal(t, byte(7), parsed.Version())
	assert.Greater(t, storedIdea.CreatedAt, int64(0))
	assert.Equal(t, storedIdea.CreatedAt, storedIdea.UpdatedAt)

	// The row the store returns is the row the caller gets back
	assert.Equal(t, "echo", created.Id)
}

func TestCreateIdea_EmptyTitle(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)

	_, err := svc.CreateIdea(context.Background(), testActor(), "team1", service.CreateIdeaParams{Title: ""})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "title is required")
	mockStore.AssertNotCalled(t, "CreateIdea", mock.Anything, mock.Anything)
}

func TestUpdateIdea_BroadcastsCanonicalState(t *testing.T) {
	svc, mockStore, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()
	teamId := "team1"

	newTitle := "Wind tracker"
	updates := models.IdeaUpdates{Title: &newTitle}
	updated := models.Idea{Id: "idea1", TeamId: teamId, Title: newTitle, Category: "General", CreatedAt: 1000, UpdatedAt: 2000}

	mockStore.On("UpdateIdea", ctx, teamId, "idea1", updates).Return(updated, nil)
	mockCache.On("AddIdea", ctx, teamId, "idea1", int64(1000), mock.Anything).Return(nil)
	mockCache.On("Publish", ctx, "team:"+teamId, mock.MatchedBy(func(msg []byte) bool {
		// The broadcast carries the full post-update row
		return strings.Contains(string(msg), `"type":"idea:updated"`) &&
			strings.Contains(string(msg), `"title":"Wind tracker"`)
	})).Return(nil)

	got, err := svc.UpdateIdea(ctx, testActor(), teamId, "idea1", updates)
	assert.NoError(t, err)
	assert.Equal(t, updated, got)

	mockCache.AssertExpectations(t)
}

func TestUpdateIdea_CrossTeam(t *testing.T) {
	svc, mockStore, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()

	newTitle := "Hijack"
	mockStore.On("UpdateIdea", ctx, "team2", "idea1", mock.Anything).Return(models.Idea{}, store.ErrConditionFailed)

	_, err := svc.UpdateIdea(ctx, testActor(), "team2", "idea1", models.IdeaUpdates{Title: &newTitle})
	assert.ErrorIs(t, err, service.ErrCrossTeamAccess)
	mockCache.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateIdea_NotFound(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)
	ctx := context.Background()

	newTitle := "Ghost"
	mockStore.On("UpdateIdea", ctx, "team1", "missing", mock.Anything).Return(models.Idea{}, store.ErrItemNotFound)

	_, err := svc.UpdateIdea(ctx, testActor(), "team1", "missing", models.IdeaUpdates{Title: &newTitle})
	assert.ErrorIs(t, err, service.ErrEntityNotFound)
}

func TestReactToIdea_Success(t *testing.T) {
	svc, mockStore, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()
	teamId := "team1"

	updated := models.Idea{Id: "idea1", TeamId: teamId, Title: "Solar tracker", Fires: 3, CreatedAt: 1000, UpdatedAt: 2000}
	mockStore.On("AddIdeaReaction", ctx, teamId, "idea1", models.ReactionFire).Return(updated, nil)
	mockCache.On("AddIdea", ctx, teamId, "idea1", int64(1000), mock.Anything).Return(nil)
	mockCache.On("Publish", ctx, "team:"+teamId, mock.MatchedBy(func(msg []byte) bool {
		return strings.Contains(string(msg), `"type":"idea:reacted"`) &&
			strings.Contains(string(msg), `"fires":3`)
	})).Return(nil)

	got, err := svc.ReactToIdea(ctx, testActor(), teamId, "idea1", "fire")
	assert.NoError(t, err)
	assert.Equal(t, 3, got.Fires)

	mockCache.AssertExpectations(t)
}

func TestReactToIdea_UnknownReaction(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)

	_, err := svc.ReactToIdea(context.Background(), testActor(), "team1", "idea1", "thumbsdown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown reaction type")
	mockStore.AssertNotCalled(t, "AddIdeaReaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteIdea_Success(t *testing.T) {
	svc, mockStore, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()
	teamId := "team1"

	mockStore.On("DeleteIdea", ctx, teamId, "idea1").Return(nil)
	mockCache.On("RemoveIdea", ctx, teamId, "idea1").Return(nil)
	mockCache.On("Publish", ctx, "team:"+teamId, mock.MatchedBy(func(msg []byte) bool {
		return strings.Contains(string(msg), `"type":"idea:deleted"`) &&
			strings.Contains(string(msg), `"ideaId":"idea1"`)
	})).Return(nil)

	err := svc.DeleteIdea(ctx, testActor(), teamId, "idea1")
	assert.NoError(t, err)

	mockCache.AssertExpectations(t)
}

func TestListTeamIdeas_CompleteCacheSkipsStore(t *testing.T) {
	svc, mockStore, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()
	teamId := "team1"

	older, _ := json.Marshal(models.Idea{Id: "idea1", TeamId: teamId, Title: "First", CreatedAt: 1000})
	newer, _ := json.Marshal(models.Idea{Id: "idea2", TeamId: teamId, Title: "Second", CreatedAt: 2000})

	// Cache stores ascending by creation time
	mockCache.On("GetIdeas", ctx, teamId).Return([][]byte{older, newer}, nil)
	mockCache.On("IsTeamComplete", ctx, teamId).Return(true, nil)

	ideas, err := svc.ListTeamIdeas(ctx, teamId)
	assert.NoError(t, err)
	assert.Len(t, ideas, 2)
	assert.Equal(t, "idea2", ideas[0].Id)
	assert.Equal(t, "idea1", ideas[1].Id)

	mockStore.AssertNotCalled(t, "GetTeamIdeas", mock.Anything, mock.Anything, mock.Anything)
}

func TestListTeamIdeas_ColdCacheLoadsAndCachesBack(t *testing.T) {
	svc, mockStore, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()
	teamId := "team1"

	dbIdeas := []models.Idea{
		{Id: "idea1", TeamId: teamId, Title: "First", CreatedAt: 1000},
		{Id: "idea2", TeamId: teamId, Title: "Second", CreatedAt: 2000},
	}

	mockCache.On("GetIdeas", ctx, teamId).Return([][]byte{}, nil)
	mockCache.On("IsTeamComplete", ctx, teamId).Return(false, nil)
	mockStore.On("GetTeamIdeas", ctx, teamId, int32(50)).Return(dbIdeas, nil)
	mockCache.On("AddIdeasBatch", ctx, teamId, mock.Anything).Return(nil)
	// Fewer rows than the page size marks the cache complete
	mockCache.On("SetTeamComplete", ctx, teamId).Return(nil)

	ideas, err := svc.ListTeamIdeas(ctx, teamId)
	assert.NoError(t, err)
	assert.Len(t, ideas, 2)
	assert.Equal(t, "idea2", ideas[0].Id)

	mockCache.AssertExpectations(t)
}

func TestListTeamIdeas_MergePrefersNewerCachedRow(t *testing.T) {
	svc, mockStore, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()
	teamId := "team1"

	// The cached copy was written post-mutation; a lagging store read still
	// holds the old title
	cachedNewer, _ := json.Marshal(models.Idea{Id: "idea1", TeamId: teamId, Title: "Renamed", CreatedAt: 1000, UpdatedAt: 3000})
	dbIdeas := []models.Idea{
		{Id: "idea1", TeamId: teamId, Title: "Original", CreatedAt: 1000, UpdatedAt: 1000},
	}

	mockCache.On("GetIdeas", ctx, teamId).Return([][]byte{cachedNewer}, nil)
	mockCache.On("IsTeamComplete", ctx, teamId).Return(false, nil)
	mockStore.On("GetTeamIdeas", ctx, teamId, int32(50)).Return(dbIdeas, nil)
	mockCache.On("AddIdeasBatch", ctx, teamId, mock.Anything).Return(nil)
	mockCache.On("SetTeamComplete", ctx, teamId).Return(nil)

	ideas, err := svc.ListTeamIdeas(ctx, teamId)
	assert.NoError(t, err)
	assert.Len(t, ideas, 1)
	assert.Equal(t, "Renamed", ideas[0].Title)
}
