package users

import (
	"strings"
	"time"
)

// User is a locally persisted account keyed by an external provider identity.
// Rows are written once, on first sign-in, and never updated afterwards.
type User struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	UID       string    `gorm:"column:uid;size:190;not null;uniqueIndex:idx_users_provider_uid,priority:2"`
	Provider  string    `gorm:"column:provider;size:32;not null;uniqueIndex:idx_users_provider_uid,priority:1"`
	Username  *string   `gorm:"column:username;size:190"`
	Name      *string   `gorm:"column:name;size:320"`
	Email     *string   `gorm:"column:email;size:320"`
	AvatarURL *string   `gorm:"column:avatar_url;size:512"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing users.
func (User) TableName() string {
	return "users"
}

// DisplayName prefers the full name, then the username, then the provider uid.
func (u User) DisplayName() string {
	if u.Name != nil && strings.TrimSpace(*u.Name) != "" {
		return *u.Name
	}
	if u.Username != nil && strings.TrimSpace(*u.Username) != "" {
		return *u.Username
	}
	return u.UID
}

// Attributes is the provider-supplied attribute set used to create a User.
type Attributes struct {
	UID       string
	Provider  string
	Username  *string
	Name      *string
	Email     *string
	AvatarURL *string
}

// normalize value helper used across the package.
func normalize(value string) string {
	return strings.TrimSpace(value)
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := normalize(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
