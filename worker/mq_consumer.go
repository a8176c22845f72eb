package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/teamboard/teamboard/cache"
	"github.com/teamboard/teamboard/mq"
	"github.com/teamboard/teamboard/store"
)

type BoardClearMessage struct {
	TeamId        string `json:"teamId"`
	RequestedById string `json:"requestedById"`
	RequestedBy   string `json:"requestedBy"`
}

type boardClearedData struct {
	TeamId    string `json:"teamId"`
	ClearedBy struct {
		UserId   string `json:"userId"`
		UserName string `json:"userName"`
	} `json:"clearedBy"`
	Timestamp string `json:"timestamp"`
}

type boardClearedMessage struct {
	Type string           `json:"type"`
	Data boardClearedData `json:"data"`
}

// MQConsumer drains the board-clear queue: deleting a whole team's sticky
// notes is too slow for a request handler, so the REST endpoint enqueues a
// job and this worker performs the throttled bulk delete.
type MQConsumer struct {
	boardClearQueue mq.MessageQueue
	teamboardStore  store.TeamboardStore
	teamboardCache  cache.TeamboardCache
	counterBatcher  *CounterBatcher
}

func NewMQConsumer(boardClearQueue mq.MessageQueue, teamboardStore store.TeamboardStore, teamboardCache cache.TeamboardCache, counterBatcher *CounterBatcher) *MQConsumer {
	return &MQConsumer{
		boardClearQueue: boardClearQueue,
		teamboardStore:  teamboardStore,
		teamboardCache:  teamboardCache,
		counterBatcher:  counterBatcher,
	}
}

// Allow up to 5 minutes for the throttled batch deletion of a board
const visibilityTimeout = 300

func (mqConsumer MQConsumer) Run(shutdownCtx context.Context) {
	for {
		msg, err := mqConsumer.boardClearQueue.Receive(shutdownCtx, visibilityTimeout)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("mqConsumer receive error: %v", err)
			continue
		}

		if msg == nil {
			continue
		}

		var clearMsg BoardClearMessage
		if err := json.Unmarshal([]byte(msg.Body), &clearMsg); err != nil {
			continue
		}

		// timeout should be a little less than queue visibility timeout
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(visibilityTimeout-1)*time.Second)

		// Count first so the durable counter can be decremented after the
		// delete succeeds
		totalDeleted, countErr := mqConsumer.teamboardStore.GetTeamStickyCount(ctx, clearMsg.TeamId)
		if countErr != nil {
			log.Printf("Failed to count sticky notes for team %s: %v", clearMsg.TeamId, countErr)
		}

		err = mqConsumer.teamboardStore.DeleteTeamStickyNotes(ctx, clearMsg.TeamId)

		if err == nil {
			if cacheErr := mqConsumer.teamboardCache.InvalidateTeams(ctx, []string{clearMsg.TeamId}); cacheErr != nil {
				log.Printf("Failed to invalidate team cache: %v", cacheErr)
			}

			if totalDeleted > 0 {
				mqConsumer.counterBatcher.UpdateCh <- TeamCounterUpdate{
					TeamId: clearMsg.TeamId,
					Delta:  -totalDeleted,
				}
			}

			// Tell the room the board is empty
			cleared := boardClearedMessage{Type: "whiteboard:cleared"}
			cleared.Data.TeamId = clearMsg.TeamId
			cleared.Data.ClearedBy.UserId = clearMsg.RequestedById
			cleared.Data.ClearedBy.UserName = clearMsg.RequestedBy
			cleared.Data.Timestamp = time.Now().UTC().Format(time.RFC3339)
			if clearedBytes, marshalErr := json.Marshal(cleared); marshalErr == nil {
				mqConsumer.teamboardCache.Publish(ctx, "team:"+clearMsg.TeamId, clearedBytes)
			}

			log.Printf("Cleared %d sticky notes for team %s", totalDeleted, clearMsg.TeamId)
		}

		cancel()

		if err != nil {
			log.Printf("teamboardStore board clear error: %v", err)
			continue
		}

		err = mqConsumer.boardClearQueue.Delete(context.Background(), msg)
		if err != nil {
			log.Printf("mqConsumer delete error: %v", err)
			continue
		}
	}
}
