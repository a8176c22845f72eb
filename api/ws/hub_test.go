package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	cachemocks "github.com/teamboard/teamboard/cache/mocks"
	"github.com/teamboard/teamboard/models"
)

func setupHub(t *testing.T) (*Hub, *cachemocks.MockCache) {
	mockCache := new(cachemocks.MockCache)
	hub := NewHub(mockCache)
	go hub.Run()
	return hub, mockCache
}

func newTestClient(userId string, userName string, teamId string) *Client {
	return &Client{
		user: models.User{Id: userId, Name: userName, TeamId: teamId},
		Send: make(chan []byte, 16),
	}
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func recvEnvelope(t *testing.T, client *Client) envelope {
	select {
	case msgBytes := <-client.Send:
		var env envelope
		assert.NoError(t, json.Unmarshal(msgBytes, &env))
		return env
	case <-time.After(time.Second):
		assert.FailNow(t, "timed out waiting for message")
		return envelope{}
	}
}

func assertNoMessage(t *testing.T, client *Client) {
	select {
	case msgBytes := <-client.Send:
		assert.Failf(t, "unexpected message", "got: %s", msgBytes)
	case <-time.After(100 * time.Millisecond):
	}
}

func memberIds(members []memberInfo) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserId)
	}
	return ids
}

func TestHubJoin_SendsActiveMembersSnapshot(t *testing.T) {
	hub, mockCache := setupHub(t)
	mockCache.On("Subscribe", mock.Anything, "team:team1", mock.Anything).Return(nil)

	c1 := newTestClient("user1", "Ada", "team1")
	hub.JoinCh <- c1

	// The snapshot includes the joiner, so the first joiner sees themselves
	env := recvEnvelope(t, c1)
	assert.Equal(t, "team:active-members", env.Type)
	var snapshot []memberInfo
	assert.NoError(t, json.Unmarshal(env.Data, &snapshot))
	assert.Len(t, snapshot, 1)
	assert.Equal(t, "user1", snapshot[0].UserId)

	c2 := newTestClient("user2", "Grace", "team1")
	hub.JoinCh <- c2

	// Second joiner sees both members; the first hears about the second
	env = recvEnvelope(t, c2)
	assert.Equal(t, "team:active-members", env.Type)
	assert.NoError(t, json.Unmarshal(env.Data, &snapshot))
	assert.ElementsMatch(t, []string{"user1", "user2"}, memberIds(snapshot))

	env = recvEnvelope(t, c1)
	assert.Equal(t, "team:member-joined", env.Type)
	var joined presenceData
	assert.NoError(t, json.Unmarshal(env.Data, &joined))
	assert.Equal(t, "user2", joined.UserId)
	assert.Equal(t, "Grace", joined.UserName)
}

func TestHubJoin_SecondConnectionSameUserIsSilent(t *testing.T) {
	hub, mockCache := setupHub(t)
	mockCache.On("Subscribe", mock.Anything, "team:team1", mock.Anything).Return(nil)

	c1 := newTestClient("user1", "Ada", "team1")
	hub.JoinCh <- c1
	recvEnvelope(t, c1)

	// Same user opens a second tab
	c2 := newTestClient("user1", "Ada", "team1")
	hub.JoinCh <- c2
	env := recvEnvelope(t, c2)
	assert.Equal(t, "team:active-members", env.Type)

	assertNoMessage(t, c1)
}

func TestHubLeave_LastConnectionBroadcastsAndUnsubscribes(t *testing.T) {
	hub, mockCache := setupHub(t)

	var subCtx context.Context
	mockCache.On("Subscribe", mock.Anything, "team:team1", mock.Anything).Run(func(args mock.Arguments) {
		subCtx = args.Get(0).(context.Context)
	}).Return(nil)

	c1 := newTestClient("user1", "Ada", "team1")
	c2 := newTestClient("user2", "Grace", "team1")
	hub.JoinCh <- c1
	hub.JoinCh <- c2
	recvEnvelope(t, c1) // active-members
	recvEnvelope(t, c1) // member-joined user2
	recvEnvelope(t, c2) // active-members

	hub.LeaveCh <- c2
	env := recvEnvelope(t, c1)
	assert.Equal(t, "team:member-left", env.Type)
	var left presenceData
	assert.NoError(t, json.Unmarshal(env.Data, &left))
	assert.Equal(t, "user2", left.UserId)

	// Emptying the room cancels the redis subscription
	hub.LeaveCh <- c1
	assert.Eventually(t, func() bool {
		select {
		case <-subCtx.Done():
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestHubLeave_Idempotent(t *testing.T) {
	hub, mockCache := setupHub(t)
	mockCache.On("Subscribe", mock.Anything, "team:team1", mock.Anything).Return(nil)

	c1 := newTestClient("user1", "Ada", "team1")
	c2 := newTestClient("user2", "Grace", "team1")
	hub.JoinCh <- c1
	hub.JoinCh <- c2
	recvEnvelope(t, c1)
	recvEnvelope(t, c1)
	recvEnvelope(t, c2)

	// The read pump can report the same close twice
	hub.LeaveCh <- c2
	hub.LeaveCh <- c2

	env := recvEnvelope(t, c1)
	assert.Equal(t, "team:member-left", env.Type)
	assertNoMessage(t, c1)
}

func TestHubBroadcast_ExcludesSender(t *testing.T) {
	hub, mockCache := setupHub(t)
	mockCache.On("Subscribe", mock.Anything, "team:team1", mock.Anything).Return(nil)

	c1 := newTestClient("user1", "Ada", "team1")
	c2 := newTestClient("user2", "Grace", "team1")
	hub.JoinCh <- c1
	hub.JoinCh <- c2
	recvEnvelope(t, c1)
	recvEnvelope(t, c1)
	recvEnvelope(t, c2)

	hub.BroadcastCh <- teamBroadcast{
		TeamId:  "team1",
		Exclude: c1,
		Message: []byte(`{"type":"typing:start","data":{}}`),
	}

	env := recvEnvelope(t, c2)
	assert.Equal(t, "typing:start", env.Type)
	assertNoMessage(t, c1)
}

func TestHubRedisMessage_DeliveredToWholeRoom(t *testing.T) {
	hub, mockCache := setupHub(t)

	var fanout func([]byte)
	mockCache.On("Subscribe", mock.Anything, "team:team1", mock.Anything).Run(func(args mock.Arguments) {
		fanout = args.Get(2).(func([]byte))
	}).Return(nil)

	c1 := newTestClient("user1", "Ada", "team1")
	c2 := newTestClient("user2", "Grace", "team1")
	hub.JoinCh <- c1
	hub.JoinCh <- c2
	recvEnvelope(t, c1) // active-members
	recvEnvelope(t, c1) // member-joined user2
	recvEnvelope(t, c2) // active-members

	// Canonical mutations arrive via redis and reach everyone, the
	// originator included
	fanout([]byte(`{"type":"idea:created","data":{}}`))

	env := recvEnvelope(t, c1)
	assert.Equal(t, "idea:created", env.Type)
	env = recvEnvelope(t, c2)
	assert.Equal(t, "idea:created", env.Type)
}

func TestHubRedisMessage_ConcurrentWithMembershipChanges(t *testing.T) {
	hub, mockCache := setupHub(t)

	var fanout func([]byte)
	mockCache.On("Subscribe", mock.Anything, "team:team1", mock.Anything).Run(func(args mock.Arguments) {
		fanout = args.Get(2).(func([]byte))
	}).Return(nil)

	c1 := newTestClient("user1", "Ada", "team1")
	hub.JoinCh <- c1
	recvEnvelope(t, c1) // active-members; the subscribe handler is captured now

	// Keep c1's buffer drained so the hub loop never blocks
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-c1.Send:
			case <-done:
				return
			}
		}
	}()

	// Redis messages arrive from the pubsub drain goroutine while the hub
	// churns through joins and leaves of the same room
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			fanout([]byte(`{"type":"idea:created","data":{}}`))
		}
	}()

	for i := 0; i < 50; i++ {
		c := &Client{
			user: models.User{Id: "user2", Name: "Grace", TeamId: "team1"},
			Send: make(chan []byte, 256),
		}
		hub.JoinCh <- c
		hub.LeaveCh <- c
	}
	wg.Wait()
	close(done)

	// The hub loop is still serving the room
	c3 := newTestClient("user3", "Lin", "team1")
	hub.JoinCh <- c3
	env := recvEnvelope(t, c3)
	assert.Equal(t, "team:active-members", env.Type)
}

func TestHubBroadcast_UnscopedUserJoinsNoRoom(t *testing.T) {
	hub, mockCache := setupHub(t)

	// Judges and organizers have no team; they get no room and no snapshot
	judge := newTestClient("judge1", "Val", "")
	hub.JoinCh <- judge

	assertNoMessage(t, judge)
	mockCache.AssertNotCalled(t, "Subscribe", mock.Anything, mock.Anything, mock.Anything)
}
