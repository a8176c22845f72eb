package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/teamboard/teamboard/models"
	"github.com/teamboard/teamboard/service"
)

func TestValidateStickyUpdate(t *testing.T) {
	tests := []struct {
		name    string
		update  models.StickyNoteUpdate
		wantErr string
	}{
		{
			"Valid",
			models.StickyNoteUpdate{Id: "note1", Text: strPtr("hi"), Color: strPtr("#FFE66D"), X: floatPtr(10), Width: floatPtr(200)},
			"",
		},
		{
			"Missing Id",
			models.StickyNoteUpdate{Text: strPtr("hi")},
			"id is required",
		},
		{
			"Invalid Color Format",
			models.StickyNoteUpdate{Id: "note1", Color: strPtr("yellow")},
			"hex color",
		},
		{
			"Color Too Short",
			models.StickyNoteUpdate{Id: "note1", Color: strPtr("#FFF")},
			"hex color",
		},
		{
			"Width Too Small",
			models.StickyNoteUpdate{Id: "note1", Width: floatPtr(10)},
			"width out of range",
		},
		{
			"Height Too Large",
			models.StickyNoteUpdate{Id: "note1", Height: floatPtr(5000)},
			"height out of range",
		},
		{
			"Position Out Of Range",
			models.StickyNoteUpdate{Id: "note1", X: floatPtr(1e7)},
			"x position out of range",
		},
		{
			"Text Too Long",
			models.StickyNoteUpdate{Id: "note1", Text: strPtr(strings.Repeat("a", 2001))},
			"text exceeds",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := service.ValidateStickyUpdate(tc.update)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestCreateIdea_TitleTooLong(t *testing.T) {
	svc, _, _, _, _, _ := setupService(t)

	_, err := svc.CreateIdea(context.Background(), testActor(), "team1", service.CreateIdeaParams{
		Title: strings.Repeat("a", 201),
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "title exceeds")
}

func TestUpdateIdea_NoFields(t *testing.T) {
	svc, _, _, _, _, _ := setupService(t)

	_, err := svc.UpdateIdea(context.Background(), testActor(), "team1", "idea1", models.IdeaUpdates{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no idea fields to update")
}
