package dynamo

import (
	"fmt"

	"github.com/teamboard/teamboard/models"
)

type dynamoUser struct {
	PK       string `dynamodbav:"PK"`
	SK       string `dynamodbav:"SK"`
	Id       string `dynamodbav:"Id"`
	Name     string `dynamodbav:"Name"`
	Email    string `dynamodbav:"Email"`
	TeamId   string `dynamodbav:"UserTeamId"`
	TeamRole string `dynamodbav:"TeamRole"`
	Created  int64  `dynamodbav:"Created"`
}

func userFromDynamo(du dynamoUser) models.User {
	return models.User{
		Id:       du.Id,
		Name:     du.Name,
		Email:    du.Email,
		TeamId:   du.TeamId,
		TeamRole: du.TeamRole,
		Created:  du.Created,
	}
}

type dynamoTeam struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	Id          string `dynamodbav:"Id"`
	Name        string `dynamodbav:"Name"`
	StickyCount int    `dynamodbav:"StickyCount"`
	Created     int64  `dynamodbav:"Created"`
}

func teamFromDynamo(dt dynamoTeam) models.Team {
	return models.Team{
		Id:          dt.Id,
		Name:        dt.Name,
		StickyCount: dt.StickyCount,
		Created:     dt.Created,
	}
}

// Ideas and sticky notes share GSI_Team (hash TeamId, range GSISort). The
// sort key embeds a zero-padded millisecond timestamp so per-team listings
// come back time-ordered, and an entity prefix so begins_with separates the
// two item kinds.
func ideaGSISort(createdAt int64, ideaId string) string {
	return fmt.Sprintf("IDEA#%013d#%s", createdAt, ideaId)
}

func stickyGSISort(createdAt int64, noteId string) string {
	return fmt.Sprintf("STICKY#%013d#%s", createdAt, noteId)
}

type dynamoIdea struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	Id          string `dynamodbav:"Id"`
	TeamId      string `dynamodbav:"TeamId"`
	GSISort     string `dynamodbav:"GSISort"`
	Title       string `dynamodbav:"Title"`
	Description string `dynamodbav:"Description"`
	Category    string `dynamodbav:"Category"`
	Hearts      int    `dynamodbav:"Hearts"`
	Fires       int    `dynamodbav:"Fires"`
	Stars       int    `dynamodbav:"Stars"`
	Votes       int    `dynamodbav:"Votes"`
	CreatedAt   int64  `dynamodbav:"CreatedAt"`
	UpdatedAt   int64  `dynamodbav:"UpdatedAt"`
}

func ideaToDynamo(i models.Idea) dynamoIdea {
	return dynamoIdea{
		PK:          "IDEA#" + i.Id,
		SK:          "META",
		Id:          i.Id,
		TeamId:      i.TeamId,
		GSISort:     ideaGSISort(i.CreatedAt, i.Id),
		Title:       i.Title,
		Description: i.Description,
		Category:    i.Category,
		Hearts:      i.Hearts,
		Fires:       i.Fires,
		Stars:       i.Stars,
		Votes:       i.Votes,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

func ideaFromDynamo(di dynamoIdea) models.Idea {
	return models.Idea{
		Id:          di.Id,
		TeamId:      di.TeamId,
		Title:       di.Title,
		Description: di.Description,
		Category:    di.Category,
		Hearts:      di.Hearts,
		Fires:       di.Fires,
		Stars:       di.Stars,
		Votes:       di.Votes,
		CreatedAt:   di.CreatedAt,
		UpdatedAt:   di.UpdatedAt,
	}
}

type dynamoSticky struct {
	PK        string  `dynamodbav:"PK"`
	SK        string  `dynamodbav:"SK"`
	NoteId    string  `dynamodbav:"NoteId"`
	TeamId    string  `dynamodbav:"TeamId"`
	GSISort   string  `dynamodbav:"GSISort"`
	Text      string  `dynamodbav:"NoteText"`
	X         float64 `dynamodbav:"X"`
	Y         float64 `dynamodbav:"Y"`
	Color     string  `dynamodbav:"Color"`
	Width     float64 `dynamodbav:"Width"`
	Height    float64 `dynamodbav:"Height"`
	CreatedAt int64   `dynamodbav:"CreatedAt"`
	UpdatedAt int64   `dynamodbav:"UpdatedAt"`
}

func stickyToDynamo(n models.StickyNote) dynamoSticky {
	return dynamoSticky{
		PK:        "STICKY#" + n.NoteId,
		SK:        "NOTE",
		NoteId:    n.NoteId,
		TeamId:    n.TeamId,
		GSISort:   stickyGSISort(n.CreatedAt, n.NoteId),
		Text:      n.Text,
		X:         n.X,
		Y:         n.Y,
		Color:     n.Color,
		Width:     n.Width,
		Height:    n.Height,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func stickyFromDynamo(ds dynamoSticky) models.StickyNote {
	return models.StickyNote{
		NoteId:    ds.NoteId,
		TeamId:    ds.TeamId,
		Text:      ds.Text,
		X:         ds.X,
		Y:         ds.Y,
		Color:     ds.Color,
		Width:     ds.Width,
		Height:    ds.Height,
		CreatedAt: ds.CreatedAt,
		UpdatedAt: ds.UpdatedAt,
	}
}
