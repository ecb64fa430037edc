package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/manuphatak/talks/internal/markdown"
)

// Comment is a single discussion entry on a talk. Registered users comment via
// AuthorID; anonymous visitors leave a name and email instead.
type Comment struct {
	BaseModel

	Body     string `gorm:"type:text;not null" json:"body"`
	BodyHTML string `gorm:"type:text" json:"body_html"`

	Timestamp time.Time `gorm:"index" json:"timestamp"`

	AuthorID *string `gorm:"type:uuid;index" json:"author_id,omitempty"`
	Author   *User   `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	AuthorName  string `gorm:"size:64" json:"author_name,omitempty"`
	AuthorEmail string `gorm:"size:64;index" json:"author_email,omitempty"`

	// Notify carries no column default: writers always set it explicitly,
	// so a false value is never swallowed by a default on insert.
	Notify   bool `json:"notify"`
	Approved bool `gorm:"default:false;index" json:"approved"`

	TalkID string `gorm:"type:uuid;index;not null" json:"talk_id"`
	Talk   *Talk  `gorm:"foreignKey:TalkID" json:"-"`
}

// BeforeCreate assigns the identifier and submission timestamp.
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if err := c.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	return nil
}

// BeforeSave derives the sanitized HTML rendering from the markdown body.
// BodyHTML is never accepted from callers; it is recomputed on every write.
func (c *Comment) BeforeSave(tx *gorm.DB) error {
	c.BodyHTML = markdown.Render(c.Body)
	return nil
}
