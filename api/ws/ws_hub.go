package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/teamboard/teamboard/cache"
)

type memberInfo struct {
	UserId   string `json:"userId"`
	UserName string `json:"userName"`
}

type presenceData struct {
	UserId    string `json:"userId"`
	UserName  string `json:"userName"`
	Timestamp string `json:"timestamp"`
}

type hubMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// teamBroadcast carries an already-marshaled message to every member of a
// team room, except the excluded client. Used for the ephemeral traffic
// (presence, typing, live drawing) that never goes through redis.
type teamBroadcast struct {
	TeamId  string
	Exclude *Client
	Message []byte
}

// Hub owns the room membership maps. Exactly one goroutine runs the hub
// loop, so the maps need no locks; everything reaches them through
// channels. Joining a team's first client lazily opens the redis
// subscription for that team's channel; the last leave cancels it.
type Hub struct {
	teamboardCache       cache.TeamboardCache
	JoinCh               chan *Client
	LeaveCh              chan *Client
	BroadcastCh          chan teamBroadcast
	teamToClients        map[string]map[*Client]struct{}
	teamSubscriberCancel map[string]context.CancelFunc
}

func NewHub(teamboardCache cache.TeamboardCache) *Hub {
	return &Hub{
		teamboardCache:       teamboardCache,
		JoinCh:               make(chan *Client, 256),
		LeaveCh:              make(chan *Client, 256),
		BroadcastCh:          make(chan teamBroadcast, 1024),
		teamToClients:        make(map[string]map[*Client]struct{}),
		teamSubscriberCancel: make(map[string]context.CancelFunc),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.JoinCh:
			h.handleJoin(client)

		case client := <-h.LeaveCh:
			h.handleLeave(client)

		case broadcast := <-h.BroadcastCh:
			for client := range h.teamToClients[broadcast.TeamId] {
				if client != broadcast.Exclude {
					client.Send <- broadcast.Message
				}
			}
		}
	}
}

func (h *Hub) handleJoin(client *Client) {
	teamId := client.user.TeamId
	if teamId == "" {
		// No team affiliation: connection stays open but unscoped
		return
	}

	if h.teamToClients[teamId] == nil {
		log.Printf("First member of team %s connected, subscribing to room channel", teamId)

		ctx, cancel := context.WithCancel(context.Background())
		channel := "team:" + teamId

		// The drain goroutine must not touch the membership maps; it only
		// forwards, and fan-out happens on the hub goroutine
		err := h.teamboardCache.Subscribe(ctx, channel, func(messageBytes []byte) {
			h.BroadcastCh <- teamBroadcast{TeamId: teamId, Message: messageBytes}
		})
		if err != nil {
			log.Printf("Failed to create redis sub for channel %s: %v", channel, err)
			cancel()
			return
		}

		h.teamToClients[teamId] = make(map[*Client]struct{})
		h.teamSubscriberCancel[teamId] = cancel
	}

	alreadyPresent := h.userConnectionCount(teamId, client.user.Id) > 0
	h.teamToClients[teamId][client] = struct{}{}

	// Snapshot of the room including the joiner, deduplicated across
	// multiple connections by the same user
	h.sendTo(client, "team:active-members", h.roomMembers(teamId))

	// A second tab by the same user is not a new member
	if !alreadyPresent {
		h.broadcastPresence(teamId, client, "team:member-joined")
	}
}

func (h *Hub) handleLeave(client *Client) {
	teamId := client.user.TeamId
	if teamId == "" {
		return
	}

	// Leave must be idempotent: the read pump fires it on every exit path
	if _, ok := h.teamToClients[teamId][client]; !ok {
		return
	}
	delete(h.teamToClients[teamId], client)

	if h.userConnectionCount(teamId, client.user.Id) == 0 {
		h.broadcastPresence(teamId, client, "team:member-left")
	}

	if len(h.teamToClients[teamId]) == 0 {
		if cancel, ok := h.teamSubscriberCancel[teamId]; ok {
			cancel()
			delete(h.teamSubscriberCancel, teamId)
		}
		delete(h.teamToClients, teamId)
	}
}

func (h *Hub) roomMembers(teamId string) []memberInfo {
	seen := make(map[string]struct{})
	members := make([]memberInfo, 0, len(h.teamToClients[teamId]))
	for client := range h.teamToClients[teamId] {
		if _, ok := seen[client.user.Id]; ok {
			continue
		}
		seen[client.user.Id] = struct{}{}
		members = append(members, memberInfo{UserId: client.user.Id, UserName: client.user.Name})
	}
	return members
}

func (h *Hub) userConnectionCount(teamId string, userId string) int {
	count := 0
	for client := range h.teamToClients[teamId] {
		if client.user.Id == userId {
			count++
		}
	}
	return count
}

// broadcastPresence tells everyone else in the room that a member arrived
// or left. The subject never receives their own presence delta.
func (h *Hub) broadcastPresence(teamId string, subject *Client, msgType string) {
	data := presenceData{
		UserId:    subject.user.Id,
		UserName:  subject.user.Name,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	msgBytes, err := json.Marshal(hubMessage{Type: msgType, Data: data})
	if err != nil {
		log.Printf("Failed to marshal %s message: %v", msgType, err)
		return
	}

	for client := range h.teamToClients[teamId] {
		if client != subject {
			client.Send <- msgBytes
		}
	}
}

func (h *Hub) sendTo(client *Client, msgType string, data any) {
	msgBytes, err := json.Marshal(hubMessage{Type: msgType, Data: data})
	if err != nil {
		log.Printf("Failed to marshal %s message: %v", msgType, err)
		return
	}
	client.Send <- msgBytes
}
