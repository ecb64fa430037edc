package models

import (
	"time"

	"gorm.io/gorm"
)

// PendingEmail is a queued comment notification awaiting dispatch. Rows are
// unique per (email, talk); the queue service enforces the dedup on enqueue.
type PendingEmail struct {
	BaseModel

	Name     string `gorm:"size:64" json:"name"`
	Email    string `gorm:"size:64;index;not null" json:"email"`
	Subject  string `gorm:"size:128" json:"subject"`
	BodyText string `gorm:"type:text" json:"body_text"`
	BodyHTML string `gorm:"type:text" json:"body_html"`

	TalkID string `gorm:"type:uuid;index;not null" json:"talk_id"`
	Talk   *Talk  `gorm:"foreignKey:TalkID" json:"-"`

	Timestamp time.Time `gorm:"index" json:"timestamp"`
}

// BeforeCreate assigns the identifier and enqueue timestamp.
func (p *PendingEmail) BeforeCreate(tx *gorm.DB) error {
	if err := p.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}
	return nil
}
