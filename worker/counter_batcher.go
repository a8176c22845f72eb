package worker

import (
	"context"
	"log"
	"time"

	"github.com/teamboard/teamboard/store"
)

type TeamCounterUpdate struct {
	TeamId string
	Delta  int
}

// CounterBatcher aggregates per-team sticky-count deltas and flushes them
// as single atomic increments, keeping the durable count on the team
// profile roughly current without a write per note.
type CounterBatcher struct {
	UpdateCh           chan TeamCounterUpdate
	teamboardStore     store.TeamboardStore
	tickerMilliseconds int
}

func NewCounterBatcher(teamboardStore store.TeamboardStore, tickerMilliseconds int) *CounterBatcher {
	return &CounterBatcher{
		UpdateCh:           make(chan TeamCounterUpdate, 1024),
		teamboardStore:     teamboardStore,
		tickerMilliseconds: tickerMilliseconds,
	}
}

func (b *CounterBatcher) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(time.Duration(b.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()

	teamCounts := make(map[string]int)

	flush := func() {
		for teamId, count := range teamCounts {
			if count == 0 {
				continue
			}
			go func(tid string, c int) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := b.teamboardStore.IncrementTeamStickyCount(ctx, tid, c); err != nil {
					log.Printf("Failed to update sticky count for team %s: %v", tid, err)
				}
			}(teamId, count)
		}
		teamCounts = make(map[string]int)
	}

	for {
		select {
		case update := <-b.UpdateCh:
			if update.TeamId != "" {
				teamCounts[update.TeamId] += update.Delta
			}

			if len(teamCounts) >= 100 {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-shutdownCtx.Done():
			flush()
			return
		}
	}
}
