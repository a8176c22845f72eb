package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/teamboard/teamboard/cache"
	"github.com/teamboard/teamboard/models"
)

// Hydration and list reads return at most this many ideas, newest first.
const maxIdeasPerLoad = 50

const defaultIdeaCategory = "General"

type CreateIdeaParams struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type ideaCreatedData struct {
	Idea      models.Idea `json:"idea"`
	CreatedBy Actor       `json:"createdBy"`
	Timestamp string      `json:"timestamp"`
}

type ideaUpdatedData struct {
	IdeaId    string             `json:"ideaId"`
	Idea      models.Idea        `json:"idea"`
	Updates   models.IdeaUpdates `json:"updates"`
	UpdatedBy Actor              `json:"updatedBy"`
	Timestamp string             `json:"timestamp"`
}

type ideaReactedData struct {
	IdeaId       string      `json:"ideaId"`
	Idea         models.Idea `json:"idea"`
	ReactionType string      `json:"reactionType"`
	ReactedBy    Actor       `json:"reactedBy"`
	Timestamp    string      `json:"timestamp"`
}

type ideaDeletedData struct {
	IdeaId    string `json:"ideaId"`
	DeletedBy Actor  `json:"deletedBy"`
	Timestamp string `json:"timestamp"`
}

// CreateIdea persists a new idea, caches it and broadcasts the canonical
// row to the whole room, originator included.
func (s *Service) CreateIdea(ctx context.Context, actor Actor, teamId string, params CreateIdeaParams) (models.Idea, error) {
	if err := validateIdeaTitle(params.Title); err != nil {
		return models.Idea{}, err
	}
	if len(params.Description) > maxIdeaDescriptionLen {
		return models.Idea{}, fmt.Errorf("idea description exceeds %d characters", maxIdeaDescriptionLen)
	}

	category := params.Category
	if category == "" {
		category = defaultIdeaCategory
	}

	// UUIDv7 so ids sort by creation time, which the team index relies on
	ideaId, err := uuid.NewV7()
	if err != nil {
		return models.Idea{}, fmt.Errorf("failed to generate idea id: %w", err)
	}

	now := time.Now().UnixMilli()
	idea := models.Idea{
		Id:          ideaId.String(),
		TeamId:      teamId,
		Title:       params.Title,
		Description: params.Description,
		Category:    category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := s.Store.CreateIdea(ctx, idea)
	if err != nil {
		return models.Idea{}, err
	}

	s.cacheIdea(ctx, created)
	s.publish(ctx, teamId, "idea:created", ideaCreatedData{
		Idea:      created,
		CreatedBy: actor,
		Timestamp: nowRFC3339(),
	})

	return created, nil
}

// UpdateIdea applies a partial update to an idea the team owns. The
// broadcast carries the full post-update row, not the delta, so every
// client converges on the same state regardless of delivery races.
func (s *Service) UpdateIdea(ctx context.Context, actor Actor, teamId string, ideaId string, updates models.IdeaUpdates) (models.Idea, error) {
	if ideaId == "" {
		return models.Idea{}, fmt.Errorf("idea id is required")
	}
	if err := validateIdeaUpdates(updates); err != nil {
		return models.Idea{}, err
	}

	updated, err := s.Store.UpdateIdea(ctx, teamId, ideaId, updates)
	if err != nil {
		return models.Idea{}, mapStoreErr(err)
	}

	s.cacheIdea(ctx, updated)
	s.publish(ctx, teamId, "idea:updated", ideaUpdatedData{
		IdeaId:    ideaId,
		Idea:      updated,
		Updates:   updates,
		UpdatedBy: actor,
		Timestamp: nowRFC3339(),
	})

	return updated, nil
}

// ReactToIdea bumps one reaction counter atomically. Concurrent reactions
// from different members all land; each broadcast carries the counter state
// as of that increment.
func (s *Service) ReactToIdea(ctx context.Context, actor Actor, teamId string, ideaId string, reaction string) (models.Idea, error) {
	if ideaId == "" {
		return models.Idea{}, fmt.Errorf("idea id is required")
	}
	if err := validateReaction(reaction); err != nil {
		return models.Idea{}, err
	}

	updated, err := s.Store.AddIdeaReaction(ctx, teamId, ideaId, models.ReactionType(reaction))
	if err != nil {
		return models.Idea{}, mapStoreErr(err)
	}

	s.cacheIdea(ctx, updated)
	s.publish(ctx, teamId, "idea:reacted", ideaReactedData{
		IdeaId:       ideaId,
		Idea:         updated,
		ReactionType: reaction,
		ReactedBy:    actor,
		Timestamp:    nowRFC3339(),
	})

	return updated, nil
}

func (s *Service) DeleteIdea(ctx context.Context, actor Actor, teamId string, ideaId string) error {
	if ideaId == "" {
		return fmt.Errorf("idea id is required")
	}

	if err := s.Store.DeleteIdea(ctx, teamId, ideaId); err != nil {
		return mapStoreErr(err)
	}

	if err := s.Cache.RemoveIdea(ctx, teamId, ideaId); err != nil {
		log.Printf("Failed to remove idea %s from cache: %v", ideaId, err)
	}

	s.publish(ctx, teamId, "idea:deleted", ideaDeletedData{
		IdeaId:    ideaId,
		DeletedBy: actor,
		Timestamp: nowRFC3339(),
	})

	return nil
}

// ListTeamIdeas returns the team's most recent ideas, newest first.
// Cache-first: when redis holds the complete set the store is not touched.
// On a partial or cold cache the store result is merged with whatever the
// cache has (the cache is written post-mutation, so its rows can be newer
// than a lagging read) and written back.
func (s *Service) ListTeamIdeas(ctx context.Context, teamId string) ([]models.Idea, error) {
	cachedRaw, cacheErr := s.Cache.GetIdeas(ctx, teamId)
	if cacheErr != nil {
		log.Printf("Failed to read idea cache for team %s: %v", teamId, cacheErr)
	}

	cached := make([]models.Idea, 0, len(cachedRaw))
	for _, raw := range cachedRaw {
		var idea models.Idea
		if err := json.Unmarshal(raw, &idea); err == nil {
			cached = append(cached, idea)
		}
	}

	if cacheErr == nil {
		complete, err := s.Cache.IsTeamComplete(ctx, teamId)
		if err == nil && complete {
			return newestFirst(cached), nil
		}
	}

	dbIdeas, err := s.Store.GetTeamIdeas(ctx, teamId, maxIdeasPerLoad)
	if err != nil {
		// Degrade to whatever the cache had rather than failing hydration
		if len(cached) > 0 {
			log.Printf("Failed to load ideas for team %s, serving cache: %v", teamId, err)
			return newestFirst(cached), nil
		}
		return nil, err
	}

	merged := mergeIdeas(dbIdeas, cached)
	if len(merged) > maxIdeasPerLoad {
		merged = merged[len(merged)-maxIdeasPerLoad:]
	}

	if len(dbIdeas) > 0 {
		items := make([]cache.IdeaCacheItem, 0, len(dbIdeas))
		for _, idea := range dbIdeas {
			data, marshalErr := json.Marshal(idea)
			if marshalErr != nil {
				continue
			}
			items = append(items, cache.IdeaCacheItem{IdeaId: idea.Id, Score: idea.CreatedAt, Data: data})
		}
		if err := s.Cache.AddIdeasBatch(ctx, teamId, items); err != nil {
			log.Printf("Failed to cache ideas for team %s: %v", teamId, err)
		}
	}

	// Fewer rows than the page size means the store had nothing older;
	// the cache now holds everything
	if len(dbIdeas) < maxIdeasPerLoad {
		if err := s.Cache.SetTeamComplete(ctx, teamId); err != nil {
			log.Printf("Failed to mark idea cache complete for team %s: %v", teamId, err)
		}
	}

	return newestFirst(merged), nil
}

func (s *Service) cacheIdea(ctx context.Context, idea models.Idea) {
	ideaData, err := json.Marshal(idea)
	if err != nil {
		return
	}
	// Score by creation time so updates keep their position in the index
	if err := s.Cache.AddIdea(ctx, idea.TeamId, idea.Id, idea.CreatedAt, ideaData); err != nil {
		log.Printf("Failed to cache idea %s: %v", idea.Id, err)
	}
}

// mergeIdeas combines a store page with cached rows, deduplicating by id
// and preferring the more recently updated copy.
func mergeIdeas(dbIdeas []models.Idea, cachedIdeas []models.Idea) []models.Idea {
	byId := make(map[string]models.Idea, len(dbIdeas)+len(cachedIdeas))
	for _, idea := range dbIdeas {
		byId[idea.Id] = idea
	}
	for _, idea := range cachedIdeas {
		if existing, ok := byId[idea.Id]; !ok || idea.UpdatedAt >= existing.UpdatedAt {
			byId[idea.Id] = idea
		}
	}

	merged := make([]models.Idea, 0, len(byId))
	for _, idea := range byId {
		merged = append(merged, idea)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].CreatedAt != merged[j].CreatedAt {
			return merged[i].CreatedAt < merged[j].CreatedAt
		}
		return merged[i].Id < merged[j].Id
	})

	return merged
}

func newestFirst(ideas []models.Idea) []models.Idea {
	out := make([]models.Idea, len(ideas))
	for i, idea := range ideas {
		out[len(ideas)-1-i] = idea
	}
	return out
}
