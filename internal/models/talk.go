package models

import "time"

// Talk is a presented or upcoming talk with its attached discussion.
type Talk struct {
	BaseModel

	Title       string `gorm:"size:128;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Slides      string `gorm:"type:text" json:"slides"`
	Video       string `gorm:"type:text" json:"video"`
	Venue       string `gorm:"size:128" json:"venue"`
	VenueURL    string `gorm:"size:128" json:"venue_url"`
	Date        *time.Time `json:"date"`

	AuthorID string `gorm:"type:uuid;index;not null" json:"author_id"`
	Author   *User  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	Comments      []Comment      `gorm:"foreignKey:TalkID" json:"-"`
	PendingEmails []PendingEmail `gorm:"foreignKey:TalkID" json:"-"`
}
