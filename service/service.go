package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/teamboard/teamboard/cache"
	"github.com/teamboard/teamboard/models"
	"github.com/teamboard/teamboard/mq"
	"github.com/teamboard/teamboard/store"
	"github.com/teamboard/teamboard/worker"
)

// Failure taxonomy for the collaboration layer. Handshake errors close the
// connection; everything else becomes a sender-scoped error event.
var (
	ErrUnauthenticated   = errors.New("authentication token not provided")
	ErrInvalidCredential = errors.New("invalid or expired token")
	ErrIdentityNotFound  = errors.New("user not found")
	ErrCrossTeamAccess   = errors.New("entity belongs to another team")
	ErrEntityNotFound    = errors.New("entity not found")
	ErrNoTeam            = errors.New("you must be part of a team")
)

// Actor identifies who performed a mutation; it is attached to every
// broadcast so clients can attribute changes.
type Actor struct {
	UserId   string `json:"userId"`
	UserName string `json:"userName"`
}

type Service struct {
	Store          store.TeamboardStore
	Cache          cache.TeamboardCache
	MQ             mq.MessageQueue
	StickyBatcher  *worker.StickyBatcher
	CounterBatcher *worker.CounterBatcher
	JWTSecret      []byte
}

func NewService(
	store store.TeamboardStore,
	cache cache.TeamboardCache,
	mq mq.MessageQueue,
	stickyBatcher *worker.StickyBatcher,
	counterBatcher *worker.CounterBatcher,
	jwtSecret []byte,
) (*Service, error) {
	if len(jwtSecret) == 0 {
		return nil, errors.New("jwt secret must not be empty")
	}

	return &Service{
		Store:          store,
		Cache:          cache,
		MQ:             mq,
		StickyBatcher:  stickyBatcher,
		CounterBatcher: counterBatcher,
		JWTSecret:      jwtSecret,
	}, nil
}

func (s *Service) GetTeam(ctx context.Context, teamId string) (models.Team, error) {
	team, err := s.Store.GetTeam(ctx, teamId)
	if err != nil {
		return models.Team{}, mapStoreErr(err)
	}
	return team, nil
}

// teamChannel is the pub/sub channel carrying every broadcast scoped to one
// team room.
func teamChannel(teamId string) string {
	return "team:" + teamId
}

// broadcastMessage is the envelope every room broadcast travels in.
type broadcastMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// publish fans a message out to every connected member of the team,
// including the originator. Publish failures are logged, not returned: the
// mutation already succeeded and the caller gets the canonical state either
// way.
func (s *Service) publish(ctx context.Context, teamId string, msgType string, data any) {
	msgBytes, err := json.Marshal(broadcastMessage{Type: msgType, Data: data})
	if err != nil {
		log.Printf("Failed to marshal %s broadcast: %v", msgType, err)
		return
	}

	if err := s.Cache.Publish(ctx, teamChannel(teamId), msgBytes); err != nil {
		log.Printf("Failed to publish %s broadcast for team %s: %v", msgType, teamId, err)
	}
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// mapStoreErr translates storage sentinels into the collaboration error
// taxonomy. A conditional-write failure means the row exists but belongs to
// a different team.
func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrItemNotFound):
		return ErrEntityNotFound
	case errors.Is(err, store.ErrConditionFailed):
		return ErrCrossTeamAccess
	}
	return err
}
