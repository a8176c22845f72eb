package worker_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/teamboard/teamboard/models"
	storemocks "github.com/teamboard/teamboard/store/mocks"
	"github.com/teamboard/teamboard/worker"
)

func setupBatcher(t *testing.T, tickerMilliseconds int) (*worker.StickyBatcher, *worker.CounterBatcher, *storemocks.MockStore) {
	mockStore := new(storemocks.MockStore)
	counterBatcher := worker.NewCounterBatcher(mockStore, 60000)
	stickyBatcher := worker.NewStickyBatcher(mockStore, tickerMilliseconds, counterBatcher)

	shutdownCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go stickyBatcher.Run(shutdownCtx)

	return stickyBatcher, counterBatcher, mockStore
}

func TestStickyBatcher_CoalescesWritesPerNote(t *testing.T) {
	stickyBatcher, counterBatcher, mockStore := setupBatcher(t, 50)

	flushed := make(chan []models.StickyNote, 1)
	mockStore.On("WriteStickyBatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		flushed <- args.Get(1).([]models.StickyNote)
	}).Return([]models.StickyNote{}, nil).Once()

	// A create followed by a drag of the same note inside one window
	stickyBatcher.WriteCh <- worker.BatchedSticky{
		Note:  models.StickyNote{NoteId: "note1", TeamId: "team1", Text: "hi", X: 100, Y: 100},
		IsNew: true,
	}
	stickyBatcher.WriteCh <- worker.BatchedSticky{
		Note:  models.StickyNote{NoteId: "note1", TeamId: "team1", Text: "hi", X: 400, Y: 250},
		IsNew: false,
	}

	select {
	case batch := <-flushed:
		assert.Len(t, batch, 1)
		assert.Equal(t, float64(400), batch[0].X)
	case <-time.After(time.Second):
		assert.Fail(t, "timed out waiting for flush")
	}

	// The IsNew marker from the create survives the coalesce, so the
	// durable counter still hears about the new note
	select {
	case update := <-counterBatcher.UpdateCh:
		assert.Equal(t, worker.TeamCounterUpdate{TeamId: "team1", Delta: 1}, update)
	case <-time.After(time.Second):
		assert.Fail(t, "timed out waiting for counter update")
	}
}

func TestStickyBatcher_DeleteCancelsPendingWrite(t *testing.T) {
	stickyBatcher, _, mockStore := setupBatcher(t, 50)

	stickyBatcher.WriteCh <- worker.BatchedSticky{
		Note: models.StickyNote{NoteId: "note1", TeamId: "team1", Text: "doomed"},
	}
	stickyBatcher.DeleteCh <- worker.DeleteStickyRequest{NoteId: "note1", TeamId: "team1"}

	assert.Eventually(t, func() bool {
		return stickyBatcher.Pending("note1") == nil
	}, time.Second, 10*time.Millisecond)

	// Give the ticker a chance to fire; nothing should reach the store
	time.Sleep(150 * time.Millisecond)
	mockStore.AssertNotCalled(t, "WriteStickyBatch", mock.Anything, mock.Anything)
}

func TestStickyBatcher_DeleteFromWrongTeamIgnored(t *testing.T) {
	stickyBatcher, _, mockStore := setupBatcher(t, 50)

	flushed := make(chan struct{}, 1)
	mockStore.On("WriteStickyBatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		flushed <- struct{}{}
	}).Return([]models.StickyNote{}, nil)

	stickyBatcher.WriteCh <- worker.BatchedSticky{
		Note: models.StickyNote{NoteId: "note1", TeamId: "team1", Text: "keep me"},
	}
	stickyBatcher.DeleteCh <- worker.DeleteStickyRequest{NoteId: "note1", TeamId: "team2"}

	select {
	case <-flushed:
	case <-time.After(time.Second):
		assert.Fail(t, "note cancelled by a delete from another team")
	}
}

func TestStickyBatcher_FlushesAtBatchLimit(t *testing.T) {
	// Long ticker: only the batch size limit can trigger the flush
	stickyBatcher, _, mockStore := setupBatcher(t, 60000)

	flushed := make(chan []models.StickyNote, 1)
	mockStore.On("WriteStickyBatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		flushed <- args.Get(1).([]models.StickyNote)
	}).Return([]models.StickyNote{}, nil)

	for i := 0; i < 25; i++ {
		stickyBatcher.WriteCh <- worker.BatchedSticky{
			Note: models.StickyNote{NoteId: fmt.Sprintf("note%d", i), TeamId: "team1"},
		}
	}

	select {
	case batch := <-flushed:
		assert.Len(t, batch, 25)
	case <-time.After(time.Second):
		assert.Fail(t, "timed out waiting for size-triggered flush")
	}
}

func TestStickyBatcher_PendingReflectsBufferedState(t *testing.T) {
	stickyBatcher, _, _ := setupBatcher(t, 60000)

	assert.Nil(t, stickyBatcher.Pending("note1"))

	stickyBatcher.WriteCh <- worker.BatchedSticky{
		Note: models.StickyNote{NoteId: "note1", TeamId: "team1", Text: "draft"},
	}

	assert.Eventually(t, func() bool {
		pending := stickyBatcher.Pending("note1")
		return pending != nil && pending.Text == "draft"
	}, time.Second, 10*time.Millisecond)
}
