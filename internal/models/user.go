package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/manuphatak/talks/pkg/crypto"
)

// User describes a registered presenter with relationships to talks and comments.
type User struct {
	BaseModel

	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	Name     string `json:"name"`
	Location string `json:"location"`
	Bio      string `gorm:"type:text" json:"bio"`

	IsAdmin bool `gorm:"default:false" json:"is_admin"`

	// AvatarHash is the MD5 digest of the email, kept in sync on every write.
	AvatarHash  string    `gorm:"size:32" json:"avatar_hash"`
	MemberSince time.Time `json:"member_since"`

	Talks    []Talk    `gorm:"foreignKey:AuthorID" json:"talks,omitempty"`
	Comments []Comment `gorm:"foreignKey:AuthorID" json:"-"`
}

// BeforeCreate ensures the identifier and membership timestamp are present
// before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if err := u.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if u.MemberSince.IsZero() {
		u.MemberSince = time.Now().UTC()
	}
	return nil
}

// BeforeSave keeps the avatar hash derived from the email address.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.Email != "" {
		u.AvatarHash = crypto.EmailHash(u.Email)
	}
	return nil
}

// DisplayName prefers the profile name over the account username.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// Gravatar builds the avatar URL for the user's email hash.
func (u *User) Gravatar(size int, fallback, rating string) string {
	hash := u.AvatarHash
	if hash == "" {
		hash = crypto.EmailHash(u.Email)
	}
	if size <= 0 {
		size = 100
	}
	if fallback == "" {
		fallback = "identicon"
	}
	if rating == "" {
		rating = "g"
	}
	return fmt.Sprintf("https://secure.gravatar.com/avatar/%s?s=%d&d=%s&r=%s", hash, size, fallback, rating)
}
