package rest

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/teamboard/teamboard/models"
	"github.com/teamboard/teamboard/service"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{Service: svc}
}

type getUserResponse struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	TeamId   string `json:"teamId"`
	TeamRole string `json:"teamRole"`
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	resp := getUserResponse{
		Id:       user.Id,
		Name:     user.Name,
		Email:    user.Email,
		TeamId:   user.TeamId,
		TeamRole: user.TeamRole,
	}
	h.sendResponse(w, resp)
}

type getTeamResponse struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	StickyCount int    `json:"stickyCount"`
}

func (h *Handler) HandleTeam(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, ok := h.authorizeTeam(w, r)
	if !ok {
		return
	}

	team, err := h.Service.GetTeam(r.Context(), user.TeamId)
	if err != nil {
		log.Printf("Failed to load team %s: %v", user.TeamId, err)
		http.Error(w, "failed to load team", http.StatusInternalServerError)
		return
	}

	h.sendResponse(w, getTeamResponse{
		Id:          team.Id,
		Name:        team.Name,
		StickyCount: team.StickyCount,
	})
}

type stickyNotesResponse struct {
	StickyNotes []models.StickyNote `json:"stickyNotes"`
}

// HandleTeamStickyNotes serves the whiteboard snapshot the frontend loads
// when the board view mounts.
func (h *Handler) HandleTeamStickyNotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, ok := h.authorizeTeam(w, r)
	if !ok {
		return
	}

	notes, err := h.Service.ListTeamStickyNotes(r.Context(), user.TeamId)
	if err != nil {
		log.Printf("Failed to load sticky notes for team %s: %v", user.TeamId, err)
		http.Error(w, "failed to load sticky notes", http.StatusInternalServerError)
		return
	}
	if notes == nil {
		notes = []models.StickyNote{}
	}

	h.sendResponse(w, stickyNotesResponse{StickyNotes: notes})
}

type ideasResponse struct {
	Ideas []models.Idea `json:"ideas"`
}

func (h *Handler) HandleTeamIdeas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, ok := h.authorizeTeam(w, r)
	if !ok {
		return
	}

	ideas, err := h.Service.ListTeamIdeas(r.Context(), user.TeamId)
	if err != nil {
		log.Printf("Failed to load ideas for team %s: %v", user.TeamId, err)
		http.Error(w, "failed to load ideas", http.StatusInternalServerError)
		return
	}
	if ideas == nil {
		ideas = []models.Idea{}
	}

	h.sendResponse(w, ideasResponse{Ideas: ideas})
}

type boardClearResponse struct {
	Success bool `json:"success"`
}

// HandleBoardClear accepts a clear request and enqueues the bulk delete.
// The caller hears "whiteboard:cleared" over the websocket when it is done.
func (h *Handler) HandleBoardClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, ok := h.authorizeTeam(w, r)
	if !ok {
		return
	}

	actor := service.Actor{UserId: user.Id, UserName: user.Name}
	if err := h.Service.ClearBoard(r.Context(), actor, user.TeamId); err != nil {
		log.Printf("Failed to enqueue board clear for team %s: %v", user.TeamId, err)
		http.Error(w, "failed to clear board", http.StatusInternalServerError)
		return
	}

	h.sendResponse(w, boardClearResponse{Success: true})
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	token := h.getTokenFromAuthHeader(r)
	user, err := h.Service.AuthenticateToken(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return models.User{}, false
	}
	return user, true
}

// authorizeTeam authenticates the caller and checks that the teamId in the
// path is their own team. Cross-team reads get the same treatment as
// cross-team mutations on the socket.
func (h *Handler) authorizeTeam(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return models.User{}, false
	}
	if user.TeamId == "" {
		http.Error(w, "you must be part of a team", http.StatusForbidden)
		return models.User{}, false
	}
	if teamId := r.PathValue("teamId"); teamId != user.TeamId {
		http.Error(w, "forbidden", http.StatusForbidden)
		return models.User{}, false
	}
	return user, true
}

func (h *Handler) sendResponse(w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (h *Handler) getTokenFromAuthHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimPrefix(authHeader, prefix)
}
