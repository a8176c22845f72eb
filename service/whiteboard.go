package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/teamboard/teamboard/models"
	"github.com/teamboard/teamboard/store"
	"github.com/teamboard/teamboard/worker"
)

var ErrBoardFull = errors.New("sticky note limit reached for this board")

const (
	defaultStickyColor  = "#FFE66D"
	defaultStickyX      = 100
	defaultStickyY      = 100
	defaultStickyWidth  = 200
	defaultStickyHeight = 150
)

type stickyCreatedData struct {
	Sticky    models.StickyNote `json:"sticky"`
	CreatedBy Actor             `json:"createdBy"`
	Timestamp string            `json:"timestamp"`
}

type stickyUpdatedData struct {
	Sticky    models.StickyNote `json:"sticky"`
	UpdatedBy Actor             `json:"updatedBy"`
	Timestamp string            `json:"timestamp"`
}

type stickyDeletedData struct {
	StickyId  string `json:"stickyId"`
	DeletedBy Actor  `json:"deletedBy"`
	Timestamp string `json:"timestamp"`
}

// UpsertStickyNote handles both sticky creation and edits. The note id is
// client-generated, so a create replayed after a reconnect degrades into an
// update of the same note instead of a duplicate. The merged note is
// broadcast immediately; durable persistence goes through the autosave
// batcher.
func (s *Service) UpsertStickyNote(ctx context.Context, actor Actor, teamId string, update models.StickyNoteUpdate, isCreate bool) (models.StickyNote, error) {
	if err := ValidateStickyUpdate(update); err != nil {
		return models.StickyNote{}, err
	}

	if isCreate {
		if err := s.enforceStickyQuota(ctx, teamId); err != nil {
			return models.StickyNote{}, err
		}
	}

	now := time.Now().UnixMilli()
	incoming := models.StickyNote{
		NoteId:    update.Id,
		TeamId:    teamId,
		X:         defaultStickyX,
		Y:         defaultStickyY,
		Color:     defaultStickyColor,
		Width:     defaultStickyWidth,
		Height:    defaultStickyHeight,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyStickyUpdate(&incoming, update)

	// Claim writes the row if the id is unclaimed and verifies team
	// ownership otherwise, so cross-team edits fail before anything is
	// buffered or broadcast
	persisted, isNew, err := s.Store.ClaimStickyNote(ctx, incoming)
	if err != nil {
		return models.StickyNote{}, mapStoreErr(err)
	}

	// The batcher buffer can hold edits newer than the persisted row;
	// merge the partial update over the freshest state we have
	canonical := persisted
	if pendingNote := s.StickyBatcher.Pending(update.Id); pendingNote != nil {
		canonical = *pendingNote
	}
	applyStickyUpdate(&canonical, update)
	canonical.UpdatedAt = now

	if isNew {
		if _, err := s.Cache.IncrementTeamStickyCount(ctx, teamId); err != nil {
			log.Printf("Failed to increment sticky count for team %s: %v", teamId, err)
		}
	}

	s.StickyBatcher.WriteCh <- worker.BatchedSticky{Note: canonical, IsNew: isNew}

	if isCreate {
		s.publish(ctx, teamId, "whiteboard:sticky-created", stickyCreatedData{
			Sticky:    canonical,
			CreatedBy: actor,
			Timestamp: nowRFC3339(),
		})
	} else {
		s.publish(ctx, teamId, "whiteboard:sticky-updated", stickyUpdatedData{
			Sticky:    canonical,
			UpdatedBy: actor,
			Timestamp: nowRFC3339(),
		})
	}

	return canonical, nil
}

// DeleteStickyNote cancels any buffered write for the note and removes the
// durable row, with the team ownership check on the conditional delete.
func (s *Service) DeleteStickyNote(ctx context.Context, actor Actor, teamId string, noteId string) error {
	if noteId == "" {
		return fmt.Errorf("sticky note id is required")
	}

	pendingNote := s.StickyBatcher.Pending(noteId)
	if pendingNote != nil && pendingNote.TeamId != teamId {
		return ErrCrossTeamAccess
	}

	s.StickyBatcher.DeleteCh <- worker.DeleteStickyRequest{NoteId: noteId, TeamId: teamId}

	err := s.Store.DeleteStickyNote(ctx, noteId, teamId)
	switch {
	case err == nil:
		// Durable row existed; reverse its count contribution
		s.CounterBatcher.UpdateCh <- worker.TeamCounterUpdate{TeamId: teamId, Delta: -1}
	case errors.Is(err, store.ErrItemNotFound) && pendingNote != nil:
		// Created and deleted within one autosave window; the buffered
		// write was cancelled above and nothing ever reached the store
	default:
		return mapStoreErr(err)
	}

	if err := s.Cache.DecrementTeamStickyCount(ctx, teamId); err != nil {
		log.Printf("Failed to decrement sticky count for team %s: %v", teamId, err)
	}

	s.publish(ctx, teamId, "whiteboard:sticky-deleted", stickyDeletedData{
		StickyId:  noteId,
		DeletedBy: actor,
		Timestamp: nowRFC3339(),
	})

	return nil
}

func (s *Service) ListTeamStickyNotes(ctx context.Context, teamId string) ([]models.StickyNote, error) {
	return s.Store.GetTeamStickyNotes(ctx, teamId)
}

// ClearBoard enqueues an async bulk delete of the team's sticky notes. The
// room hears "whiteboard:cleared" when the worker finishes, not when the
// request is accepted.
func (s *Service) ClearBoard(ctx context.Context, actor Actor, teamId string) error {
	clearMsg := worker.BoardClearMessage{
		TeamId:        teamId,
		RequestedById: actor.UserId,
		RequestedBy:   actor.UserName,
	}

	body, err := json.Marshal(clearMsg)
	if err != nil {
		return err
	}

	return s.MQ.Send(ctx, string(body))
}

// BroadcastEphemeral relays a client payload to the whole room without
// validating or persisting it. Text elements live only in connected
// clients; the server is just the relay.
func (s *Service) BroadcastEphemeral(ctx context.Context, teamId string, msgType string, payload json.RawMessage) {
	s.publish(ctx, teamId, msgType, payload)
}

// enforceStickyQuota checks the cached per-team note count, seeding it from
// the store on a miss. The counter is advisory: concurrent creates can
// overshoot by a few notes, which is fine for an abuse guard.
func (s *Service) enforceStickyQuota(ctx context.Context, teamId string) error {
	count, err := s.Cache.GetTeamStickyCount(ctx, teamId)
	if err != nil {
		log.Printf("Failed to read sticky count for team %s: %v", teamId, err)
		return nil
	}

	if count < 0 {
		storeCount, storeErr := s.Store.GetTeamStickyCount(ctx, teamId)
		if storeErr != nil {
			log.Printf("Failed to count sticky notes for team %s: %v", teamId, storeErr)
			return nil
		}
		if seedErr := s.Cache.SeedTeamStickyCount(ctx, teamId, storeCount); seedErr != nil {
			log.Printf("Failed to seed sticky count for team %s: %v", teamId, seedErr)
		}
		count = storeCount
	}

	if count >= MaxTeamStickyNotes {
		return ErrBoardFull
	}

	return nil
}

func applyStickyUpdate(note *models.StickyNote, update models.StickyNoteUpdate) {
	if update.Text != nil {
		note.Text = *update.Text
	}
	if update.X != nil {
		note.X = *update.X
	}
	if update.Y != nil {
		note.Y = *update.Y
	}
	if update.Color != nil {
		note.Color = *update.Color
	}
	if update.Width != nil {
		note.Width = *update.Width
	}
	if update.Height != nil {
		note.Height = *update.Height
	}
}
