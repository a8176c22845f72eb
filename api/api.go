package api

import (
	"context"
	"log"
	"net/http"

	"github.com/teamboard/teamboard/api/rest"
	"github.com/teamboard/teamboard/api/ws"
	"github.com/teamboard/teamboard/cache"
	"github.com/teamboard/teamboard/mq"
	"github.com/teamboard/teamboard/service"
	"github.com/teamboard/teamboard/store"
	"github.com/teamboard/teamboard/worker"
)

type TeamboardAPI struct {
	restHandler *rest.Handler
	wsHandler   *ws.Handler
	shutdownCtx context.Context
}

func NewTeamboardAPI(
	teamboardStore store.TeamboardStore,
	boardClearQueue mq.MessageQueue,
	teamboardCache cache.TeamboardCache,
	jwtSecret []byte,
	shutdownCtx context.Context,
) (*TeamboardAPI, error) {
	wsHub := ws.NewHub(teamboardCache)
	go wsHub.Run()

	counterBatcher := worker.NewCounterBatcher(teamboardStore, 60000)
	go counterBatcher.Run(shutdownCtx)

	stickyBatcher := worker.NewStickyBatcher(teamboardStore, 2000, counterBatcher)
	go stickyBatcher.Run(shutdownCtx)

	mqConsumer := worker.NewMQConsumer(boardClearQueue, teamboardStore, teamboardCache, counterBatcher)
	go mqConsumer.Run(shutdownCtx)

	svc, err := service.NewService(
		teamboardStore,
		teamboardCache,
		boardClearQueue,
		stickyBatcher,
		counterBatcher,
		jwtSecret,
	)
	if err != nil {
		log.Printf("Failed to create service: %v", err)
		return &TeamboardAPI{}, err
	}

	restHandler := rest.NewHandler(svc)
	wsHandler := ws.NewHandler(svc, wsHub)

	return &TeamboardAPI{
		restHandler: restHandler,
		wsHandler:   wsHandler,
		shutdownCtx: shutdownCtx,
	}, nil
}

func (teamboardAPI *TeamboardAPI) RegisterRoutes(mux *http.ServeMux, requiredOrigin string) {
	// Health check endpoint (no auth required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/me", teamboardAPI.restHandler.HandleMe)
	mux.HandleFunc("/teams/{teamId}", teamboardAPI.restHandler.HandleTeam)
	mux.HandleFunc("/teams/{teamId}/ideas", teamboardAPI.restHandler.HandleTeamIdeas)
	mux.HandleFunc("/teams/{teamId}/sticky-notes", teamboardAPI.restHandler.HandleTeamStickyNotes)
	mux.HandleFunc("/teams/{teamId}/board-clear", teamboardAPI.restHandler.HandleBoardClear)

	wsUpgrader := teamboardAPI.wsHandler.NewWsUpgrader(requiredOrigin)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		teamboardAPI.wsHandler.ServeWS(wsUpgrader, w, r, teamboardAPI.shutdownCtx)
	})
}
