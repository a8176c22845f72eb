package worker

import (
	"context"
	"log"
	"time"

	"github.com/teamboard/teamboard/models"
	"github.com/teamboard/teamboard/store"
)

type BatchedSticky struct {
	Note  models.StickyNote
	IsNew bool
}

type DeleteStickyRequest struct {
	NoteId string
	TeamId string
}

type StickyLookup struct {
	NoteId string
	Reply  chan *models.StickyNote
}

// StickyBatcher is the autosave debounce for sticky notes: edits are
// broadcast immediately but persisted on a ticker, so a burst of drags and
// keystrokes collapses into one durable write per note. Pending writes are
// keyed by noteId, which is what makes replaying a create after an update
// safe: the later state simply replaces the earlier one in the buffer.
type StickyBatcher struct {
	WriteCh            chan BatchedSticky
	DeleteCh           chan DeleteStickyRequest
	LookupCh           chan StickyLookup
	teamboardStore     store.TeamboardStore
	counterBatcher     *CounterBatcher
	tickerMilliseconds int
}

// Note: deletes are NOT batched for persistence because DynamoDB
// BatchWriteItem does not support ConditionExpression, and deletes need the
// TeamId ownership check. DeleteCh only removes *pending* writes from the
// buffer before they are flushed, effectively cancelling the write.
func NewStickyBatcher(teamboardStore store.TeamboardStore, tickerMilliseconds int, counterBatcher *CounterBatcher) *StickyBatcher {
	return &StickyBatcher{
		WriteCh:            make(chan BatchedSticky, 1024), // buffer to absorb bursts
		DeleteCh:           make(chan DeleteStickyRequest, 1024),
		LookupCh:           make(chan StickyLookup, 256),
		teamboardStore:     teamboardStore,
		counterBatcher:     counterBatcher,
		tickerMilliseconds: tickerMilliseconds,
	}
}

// Pending returns the buffered (not yet flushed) state of a note, or nil.
// The buffered state is newer than whatever the store holds, so mutation
// handlers consult it before merging partial updates.
func (b *StickyBatcher) Pending(noteId string) *models.StickyNote {
	reply := make(chan *models.StickyNote, 1)
	b.LookupCh <- StickyLookup{NoteId: noteId, Reply: reply}
	return <-reply
}

func (b *StickyBatcher) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(time.Duration(b.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()

	pending := make(map[string]BatchedSticky, 25)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		// Background ctx, not shutdownCtx: the flush fired on shutdown must
		// still complete
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		batch := make([]models.StickyNote, 0, len(pending))
		for _, item := range pending {
			batch = append(batch, item.Note)
		}

		unprocessed, err := b.teamboardStore.WriteStickyBatch(ctx, batch)
		if err != nil {
			log.Printf("Error writing sticky batch to dynamo: %v", err)
		}

		// Successes: everything in the batch minus unprocessed. Newly
		// claimed notes bump the team's durable sticky count.
		failedMap := make(map[string]bool)
		for _, u := range unprocessed {
			failedMap[u.NoteId] = true
		}

		for noteId, item := range pending {
			if !failedMap[noteId] && item.IsNew {
				b.counterBatcher.UpdateCh <- TeamCounterUpdate{
					TeamId: item.Note.TeamId,
					Delta:  1,
				}
			}
		}

		clear(pending)
	}

	for {
		select {
		case item := <-b.WriteCh:
			if prev, ok := pending[item.Note.NoteId]; ok {
				// Keep the IsNew marker from the first buffered write so
				// the counter update isn't lost when an update lands on an
				// unflushed create
				item.IsNew = item.IsNew || prev.IsNew
			}
			pending[item.Note.NoteId] = item
			if len(pending) >= 25 {
				flush()
			}

		case deleteReq := <-b.DeleteCh:
			if item, ok := pending[deleteReq.NoteId]; ok {
				if item.Note.TeamId == deleteReq.TeamId {
					delete(pending, deleteReq.NoteId)
				}
			}

		case lookup := <-b.LookupCh:
			if item, ok := pending[lookup.NoteId]; ok {
				note := item.Note
				lookup.Reply <- &note
			} else {
				lookup.Reply <- nil
			}

		case <-ticker.C:
			flush()

		case <-shutdownCtx.Done():
			flush()
			return
		}
	}
}
