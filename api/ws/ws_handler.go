package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teamboard/teamboard/models"
	"github.com/teamboard/teamboard/service"
)

type Handler struct {
	Service *service.Service
	Hub     *Hub
}

func NewHandler(svc *service.Service, hub *Hub) *Handler {
	return &Handler{
		Service: svc,
		Hub:     hub,
	}
}

func (h *Handler) NewWsUpgrader(requiredOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		// A stalled handshake must not hold the accept loop's resources
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == requiredOrigin
		},
		Subprotocols: []string{"teamboard-v1"},
	}
}

// ServeWS handles websocket requests from the peer. The bearer token rides
// in the second subprotocol slot because browsers cannot set headers on
// websocket requests.
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, shutdownCtx context.Context) {
	protocols := r.Header.Get("Sec-WebSocket-Protocol")
	protocolsSplit := strings.Split(protocols, ",")

	if len(protocolsSplit) != 2 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token := strings.TrimSpace(protocolsSplit[1])

	user, authErr := h.Service.AuthenticateToken(r.Context(), token)

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade ws connection: %v", err)
		return
	}

	// Must upgrade the connection in order to be able to send custom close message
	if authErr != nil {
		reason := "Unauthenticated"
		switch {
		case errors.Is(authErr, service.ErrInvalidCredential):
			reason = "Invalid token"
		case errors.Is(authErr, service.ErrIdentityNotFound):
			reason = "User not found"
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		)
		conn.Close()
		return
	}

	client := NewClient(h.Hub, conn, user, h.HandleWsMessage)

	h.Hub.JoinCh <- client

	// Start pumps
	go client.ReadPump()
	go client.WritePump(shutdownCtx)

	// Late joiners get the current idea board immediately; the whiteboard
	// snapshot is fetched over REST by the frontend
	if user.TeamId != "" {
		h.sendIdeas(client, "ideas:initial-load")
	}
}

// Websocket message structs
type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type ideaUpdateMessage struct {
	IdeaId  string             `json:"ideaId"`
	Updates models.IdeaUpdates `json:"updates"`
}

type ideaReactMessage struct {
	IdeaId       string `json:"ideaId"`
	ReactionType string `json:"reactionType"`
}

type ideaDeleteMessage struct {
	IdeaId string `json:"ideaId"`
}

type stickyDeleteMessage struct {
	StickyId string `json:"stickyId"`
}

type typingIndicatorData struct {
	UserId   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

type responseMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func (h *Handler) HandleWsMessage(client *Client, messageType int, messageBytes []byte) {
	var msg message
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		log.Printf("Invalid JSON: %v", err)
		h.sendError(client, "invalid message")
		return
	}

	// Every operation below mutates or reads team-scoped state
	teamId := client.user.TeamId
	if teamId == "" {
		h.sendError(client, service.ErrNoTeam.Error())
		return
	}

	actor := service.Actor{UserId: client.user.Id, UserName: client.user.Name}
	ctx := context.Background()

	switch msg.Type {
	case "idea:create":
		var params service.CreateIdeaParams
		if err := json.Unmarshal(msg.Data, &params); err != nil {
			log.Printf("Invalid idea:create data: %v", err)
			h.sendError(client, "invalid idea:create payload")
			return
		}
		if _, err := h.Service.CreateIdea(ctx, actor, teamId, params); err != nil {
			h.sendError(client, err.Error())
		}

	case "idea:update":
		var updateMsg ideaUpdateMessage
		if err := json.Unmarshal(msg.Data, &updateMsg); err != nil {
			log.Printf("Invalid idea:update data: %v", err)
			h.sendError(client, "invalid idea:update payload")
			return
		}
		if _, err := h.Service.UpdateIdea(ctx, actor, teamId, updateMsg.IdeaId, updateMsg.Updates); err != nil {
			h.sendError(client, err.Error())
		}

	case "idea:react":
		var reactMsg ideaReactMessage
		if err := json.Unmarshal(msg.Data, &reactMsg); err != nil {
			log.Printf("Invalid idea:react data: %v", err)
			h.sendError(client, "invalid idea:react payload")
			return
		}
		if _, err := h.Service.ReactToIdea(ctx, actor, teamId, reactMsg.IdeaId, reactMsg.ReactionType); err != nil {
			h.sendError(client, err.Error())
		}

	case "idea:delete":
		var deleteMsg ideaDeleteMessage
		if err := json.Unmarshal(msg.Data, &deleteMsg); err != nil {
			log.Printf("Invalid idea:delete data: %v", err)
			h.sendError(client, "invalid idea:delete payload")
			return
		}
		if err := h.Service.DeleteIdea(ctx, actor, teamId, deleteMsg.IdeaId); err != nil {
			h.sendError(client, err.Error())
		}

	case "ideas:refresh":
		h.sendIdeas(client, "ideas:refreshed")

	case "whiteboard:sticky-create":
		h.handleStickyUpsert(client, actor, teamId, msg.Data, true)

	case "whiteboard:sticky-update":
		h.handleStickyUpsert(client, actor, teamId, msg.Data, false)

	case "whiteboard:sticky-delete":
		var deleteMsg stickyDeleteMessage
		if err := json.Unmarshal(msg.Data, &deleteMsg); err != nil {
			log.Printf("Invalid whiteboard:sticky-delete data: %v", err)
			h.sendError(client, "invalid whiteboard:sticky-delete payload")
			return
		}
		if err := h.Service.DeleteStickyNote(ctx, actor, teamId, deleteMsg.StickyId); err != nil {
			h.sendError(client, err.Error())
		}

	case "whiteboard:clear":
		// Relay the clear immediately so boards blank out at once; the
		// durable delete runs async and confirms with whiteboard:cleared
		h.Service.BroadcastEphemeral(ctx, teamId, "whiteboard:clear", msg.Data)
		if err := h.Service.ClearBoard(ctx, actor, teamId); err != nil {
			h.sendError(client, err.Error())
		}

	case "whiteboard:text-create":
		// Text elements are never persisted; the server only relays them
		h.Service.BroadcastEphemeral(ctx, teamId, "whiteboard:text-created", msg.Data)

	case "whiteboard:text-update":
		h.Service.BroadcastEphemeral(ctx, teamId, "whiteboard:text-updated", msg.Data)

	case "whiteboard:text-delete":
		h.Service.BroadcastEphemeral(ctx, teamId, "whiteboard:text-deleted", msg.Data)

	case "whiteboard:drawing":
		// Live pen strokes go straight to the other room members without
		// touching redis or the store
		h.relayToOthers(client, teamId, msg.Type, msg.Data)

	case "typing:start":
		h.relayToOthers(client, teamId, "typing:indicator", typingIndicatorData{UserId: actor.UserId, UserName: actor.UserName, IsTyping: true})

	case "typing:stop":
		h.relayToOthers(client, teamId, "typing:indicator", typingIndicatorData{UserId: actor.UserId, UserName: actor.UserName, IsTyping: false})

	default:
		log.Printf("Unknown message type: %v", msg.Type)
	}
}

func (h *Handler) handleStickyUpsert(client *Client, actor service.Actor, teamId string, data json.RawMessage, isCreate bool) {
	var update models.StickyNoteUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		log.Printf("Invalid sticky upsert data: %v", err)
		h.sendError(client, "invalid sticky note payload")
		return
	}
	if _, err := h.Service.UpsertStickyNote(context.Background(), actor, teamId, update, isCreate); err != nil {
		h.sendError(client, err.Error())
	}
}

func (h *Handler) sendIdeas(client *Client, msgType string) {
	ideas, err := h.Service.ListTeamIdeas(context.Background(), client.user.TeamId)
	if err != nil {
		log.Printf("Failed to load ideas for team %s: %v", client.user.TeamId, err)
		h.sendError(client, "failed to load ideas")
		return
	}
	if ideas == nil {
		ideas = []models.Idea{}
	}
	h.sendMessage(client, msgType, map[string]any{
		"ideas":     ideas,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) relayToOthers(client *Client, teamId string, msgType string, data any) {
	msgBytes, err := json.Marshal(responseMessage{Type: msgType, Data: data})
	if err != nil {
		log.Printf("Error marshaling %s relay: %v", msgType, err)
		return
	}
	h.Hub.BroadcastCh <- teamBroadcast{TeamId: teamId, Exclude: client, Message: msgBytes}
}

func (h *Handler) sendMessage(client *Client, msgType string, data any) {
	msgBytes, err := json.Marshal(responseMessage{Type: msgType, Data: data})
	if err != nil {
		log.Printf("Error marshaling %s message: %v", msgType, err)
		return
	}
	client.Send <- msgBytes
}

func (h *Handler) sendError(client *Client, errorMessage string) {
	h.sendMessage(client, "error", map[string]any{"message": errorMessage})
}
