package redis

import (
	"context"
	"crypto/tls"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/teamboard/teamboard/cache"
)

type RedisTeamboardCache struct {
	client redis.UniversalClient
}

func NewRedisTeamboardCache(ctx context.Context, devMode bool, redisEndpoint string) (*RedisTeamboardCache, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
			// AWS elasticache endpoints require TLS
			TLSConfig: &tls.Config{},
		})
	}

	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return &RedisTeamboardCache{client: client}, nil
}

func (redisCache *RedisTeamboardCache) Publish(ctx context.Context, channel string, message []byte) error {
	if err := redisCache.client.Publish(ctx, channel, message).Err(); err != nil {
		return err
	}
	return nil
}

func (redisCache *RedisTeamboardCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	pubsub := redisCache.client.Subscribe(ctx, channel)
	// Ensure subscription is established
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		log.Printf("Pubsub channel closed: %s", channel)
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}

// Helper functions to generate Redis keys with hash tags for cluster compatibility
func buildIdeasKey(teamId string) string {
	return "ideas:{" + teamId + "}"
}

func buildIdeasDataKey(teamId string) string {
	return "ideas:{" + teamId + "}:data"
}

func buildIdeasCompleteKey(teamId string) string {
	return "ideas:{" + teamId + "}:complete"
}

const cacheTTL = 10 * time.Minute

// Split index/data pattern for the per-team idea board:
// 1. ZSet ("ideas:{teamId}"): ideaIds ordered by creation time (score).
//   - Keeps chronological order and allows O(1) eviction by id (ZREM)
//     when an idea is deleted.
//
// 2. Hash ("ideas:{teamId}:data"): ideaId -> canonical JSON.
//   - Mutations overwrite the hash entry, so late joiners hydrate the
//     post-mutation state without touching the store.
func (redisCache *RedisTeamboardCache) AddIdea(ctx context.Context, teamId string, ideaId string, score int64, ideaData []byte) error {
	key := buildIdeasKey(teamId)
	dataKey := buildIdeasDataKey(teamId)
	completeKey := buildIdeasCompleteKey(teamId)

	pipe := redisCache.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: ideaId})
	pipe.HSet(ctx, dataKey, ideaId, ideaData)
	pipe.Expire(ctx, completeKey, cacheTTL)
	pipe.Expire(ctx, key, cacheTTL)
	pipe.Expire(ctx, dataKey, cacheTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (redisCache *RedisTeamboardCache) AddIdeasBatch(ctx context.Context, teamId string, ideas []cache.IdeaCacheItem) error {
	if len(ideas) == 0 {
		return nil
	}

	key := buildIdeasKey(teamId)
	dataKey := buildIdeasDataKey(teamId)
	completeKey := buildIdeasCompleteKey(teamId)

	zMembers := make([]redis.Z, len(ideas))
	hValues := make([]interface{}, len(ideas)*2)

	for i, item := range ideas {
		zMembers[i] = redis.Z{
			Score:  float64(item.Score),
			Member: item.IdeaId,
		}
		hValues[i*2] = item.IdeaId
		hValues[i*2+1] = item.Data
	}

	pipe := redisCache.client.Pipeline()
	pipe.ZAdd(ctx, key, zMembers...)
	pipe.HSet(ctx, dataKey, hValues...)
	pipe.Expire(ctx, completeKey, cacheTTL)
	pipe.Expire(ctx, key, cacheTTL)
	pipe.Expire(ctx, dataKey, cacheTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (redisCache *RedisTeamboardCache) RemoveIdea(ctx context.Context, teamId string, ideaId string) error {
	key := buildIdeasKey(teamId)
	dataKey := buildIdeasDataKey(teamId)
	completeKey := buildIdeasCompleteKey(teamId)

	pipe := redisCache.client.Pipeline()
	pipe.ZRem(ctx, key, ideaId)
	pipe.HDel(ctx, dataKey, ideaId)
	pipe.Expire(ctx, completeKey, cacheTTL)
	pipe.Expire(ctx, key, cacheTTL)
	pipe.Expire(ctx, dataKey, cacheTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (redisCache *RedisTeamboardCache) GetIdeas(ctx context.Context, teamId string) ([][]byte, error) {
	key := buildIdeasKey(teamId)
	dataKey := buildIdeasDataKey(teamId)
	completeKey := buildIdeasCompleteKey(teamId)

	// 1. Get last 50 ids from ZSet ordered by score
	ids, err := redisCache.client.ZRange(ctx, key, -50, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return [][]byte{}, nil
	}

	// 2. Fetch data from Hash
	dataMap, err := redisCache.client.HMGet(ctx, dataKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	// 3. Assemble result
	ideas := make([][]byte, 0, len(ids))
	for _, item := range dataMap {
		if item == nil {
			continue // Should not happen if consistency is maintained
		}
		if s, ok := item.(string); ok {
			ideas = append(ideas, []byte(s))
		}
	}

	// Refresh TTL
	pipe := redisCache.client.Pipeline()
	pipe.Expire(ctx, completeKey, cacheTTL)
	pipe.Expire(ctx, key, cacheTTL)
	pipe.Expire(ctx, dataKey, cacheTTL)
	_, _ = pipe.Exec(ctx)

	return ideas, nil
}

func (redisCache *RedisTeamboardCache) SetTeamComplete(ctx context.Context, teamId string) error {
	completeKey := buildIdeasCompleteKey(teamId)
	return redisCache.client.Set(ctx, completeKey, "true", cacheTTL).Err()
}

func (redisCache *RedisTeamboardCache) IsTeamComplete(ctx context.Context, teamId string) (bool, error) {
	completeKey := buildIdeasCompleteKey(teamId)
	val, err := redisCache.client.Exists(ctx, completeKey).Result()
	if err != nil {
		return false, err
	}
	return val > 0, nil
}

func (redisCache *RedisTeamboardCache) InvalidateTeams(ctx context.Context, teamIds []string) error {
	if len(teamIds) == 0 {
		return nil
	}

	// In Redis Cluster, keys with different hash tags hash to different
	// slots, so each team's keys are deleted separately.
	for _, teamId := range teamIds {
		key := buildIdeasKey(teamId)
		dataKey := buildIdeasDataKey(teamId)
		completeKey := buildIdeasCompleteKey(teamId)
		countKey := buildStickyCountKey(teamId)

		if err := redisCache.client.Del(ctx, key, dataKey, completeKey, countKey).Err(); err != nil {
			return err
		}
	}

	return nil
}

// Team sticky-note count, used for the per-team board quota
func buildStickyCountKey(teamId string) string {
	return "team:{" + teamId + "}:sticky_count"
}

func (redisCache *RedisTeamboardCache) IncrementTeamStickyCount(ctx context.Context, teamId string) (int64, error) {
	key := buildStickyCountKey(teamId)
	count, err := redisCache.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	redisCache.client.Expire(ctx, key, cacheTTL)
	return count, nil
}

func (redisCache *RedisTeamboardCache) DecrementTeamStickyCount(ctx context.Context, teamId string) error {
	key := buildStickyCountKey(teamId)
	err := redisCache.client.Decr(ctx, key).Err()
	if err != nil {
		return err
	}
	redisCache.client.Expire(ctx, key, cacheTTL)
	return nil
}

func (redisCache *RedisTeamboardCache) SeedTeamStickyCount(ctx context.Context, teamId string, count int) error {
	key := buildStickyCountKey(teamId)
	return redisCache.client.SetNX(ctx, key, count, cacheTTL).Err()
}

func (redisCache *RedisTeamboardCache) GetTeamStickyCount(ctx context.Context, teamId string) (int, error) {
	key := buildStickyCountKey(teamId)
	val, err := redisCache.client.Get(ctx, key).Int()
	if err != nil {
		if err == redis.Nil {
			return -1, nil // Not found
		}
		return 0, err
	}
	return val, nil
}
