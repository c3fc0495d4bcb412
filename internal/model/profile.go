package model

import "time"

// Profile is the public identity of an authenticated user; ID is the auth uid.
type Profile struct {
	ID          string    `gorm:"column:id;primaryKey;size:128" json:"id"`
	Username    string    `gorm:"column:username;size:64;not null;uniqueIndex:uk_profiles_username" json:"username"`
	DisplayName string    `gorm:"column:display_name;size:120" json:"displayName"`
	AvatarURL   string    `gorm:"column:avatar_url;size:512" json:"avatarUrl,omitempty"`
	AvatarPath  string    `gorm:"column:avatar_path;size:512" json:"-"`
	Verified    bool      `gorm:"column:verified;not null;default:false" json:"verified"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Profile) TableName() string {
	return "profiles"
}
