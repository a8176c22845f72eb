package service

import (
	"fmt"
	"regexp"

	"github.com/teamboard/teamboard/models"
)

const (
	maxIdeaTitleLen       = 200
	maxIdeaDescriptionLen = 5000
	maxIdeaCategoryLen    = 100

	maxStickyTextLen = 2000
	minStickySize    = 50
	maxStickySize    = 1200
	maxStickyCoord   = 100000

	// Hard ceiling on sticky notes per board, enforced at create time via
	// the cached counter.
	MaxTeamStickyNotes = 500
)

var hexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func validateIdeaTitle(title string) error {
	if title == "" {
		return fmt.Errorf("idea title is required")
	}
	if len(title) > maxIdeaTitleLen {
		return fmt.Errorf("idea title exceeds %d characters", maxIdeaTitleLen)
	}
	return nil
}

func validateIdeaUpdates(updates models.IdeaUpdates) error {
	if updates.Title == nil && updates.Description == nil && updates.Category == nil {
		return fmt.Errorf("no idea fields to update")
	}
	if updates.Title != nil {
		if err := validateIdeaTitle(*updates.Title); err != nil {
			return err
		}
	}
	if updates.Description != nil && len(*updates.Description) > maxIdeaDescriptionLen {
		return fmt.Errorf("idea description exceeds %d characters", maxIdeaDescriptionLen)
	}
	if updates.Category != nil && len(*updates.Category) > maxIdeaCategoryLen {
		return fmt.Errorf("idea category exceeds %d characters", maxIdeaCategoryLen)
	}
	return nil
}

func validateReaction(reaction string) error {
	switch models.ReactionType(reaction) {
	case models.ReactionFire, models.ReactionHeart, models.ReactionStar, models.ReactionVote:
		return nil
	}
	return fmt.Errorf("unknown reaction type %q", reaction)
}

func ValidateStickyUpdate(update models.StickyNoteUpdate) error {
	if update.Id == "" {
		return fmt.Errorf("sticky note id is required")
	}
	if update.Text != nil && len(*update.Text) > maxStickyTextLen {
		return fmt.Errorf("sticky note text exceeds %d characters", maxStickyTextLen)
	}
	if update.Color != nil && !hexColorRegex.MatchString(*update.Color) {
		return fmt.Errorf("sticky note color must be a hex color like #FFE66D")
	}
	if update.X != nil && (*update.X < -maxStickyCoord || *update.X > maxStickyCoord) {
		return fmt.Errorf("sticky note x position out of range")
	}
	if update.Y != nil && (*update.Y < -maxStickyCoord || *update.Y > maxStickyCoord) {
		return fmt.Errorf("sticky note y position out of range")
	}
	if update.Width != nil && (*update.Width < minStickySize || *update.Width > maxStickySize) {
		return fmt.Errorf("sticky note width out of range")
	}
	if update.Height != nil && (*update.Height < minStickySize || *update.Height > maxStickySize) {
		return fmt.Errorf("sticky note height out of range")
	}
	return nil
}
