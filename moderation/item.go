package moderation

import (
	"fmt"

	"github.com/vigia-social/vigia/models"
)

// Item is the moderation pipeline's view of a content item: just enough to
// classify it, resolve notification recipients, and write the outcome back.
type Item struct {
	Kind     models.ContentKind
	ID       uint
	Author   models.Uid
	Text     string
	MediaURL string

	// comment-only fields
	PostID   uint
	ParentID *uint
}

func (it Item) key() string {
	return fmt.Sprintf("%s/%d", it.Kind, it.ID)
}

func ItemFromPost(p *models.Post) Item {
	it := Item{
		Kind:   models.KindPost,
		ID:     p.ID,
		Author: p.Author,
	}
	if p.Body != nil {
		it.Text = *p.Body
	}
	if p.MediaURL != nil {
		it.MediaURL = *p.MediaURL
	}
	return it
}

func ItemFromComment(c *models.Comment) Item {
	return Item{
		Kind:     models.KindComment,
		ID:       c.ID,
		Author:   c.Author,
		Text:     c.Body,
		PostID:   c.Post,
		ParentID: c.Parent,
	}
}
