package model

import (
	"strings"
	"time"
)

type UserProfile struct {
	ID                int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            int64      `gorm:"not null;uniqueIndex" json:"user_id"`
	FirstName         string     `gorm:"type:varchar(50)" json:"first_name"`
	LastName          string     `gorm:"type:varchar(50)" json:"last_name"`
	Street            string     `gorm:"type:varchar(100)" json:"street"`
	City              string     `gorm:"type:varchar(50)" json:"city"`
	PostalCode        string     `gorm:"type:varchar(20)" json:"postal_code"`
	Country           string     `gorm:"type:varchar(50)" json:"country"`
	BirthDate         *time.Time `gorm:"type:date" json:"birth_date,omitempty"`
	Bio               string     `gorm:"type:varchar(500)" json:"bio"`
	PhoneNumber       string     `gorm:"type:varchar(17)" json:"phone_number"`
	ProfilePictureURL string     `gorm:"type:varchar(512)" json:"profile_picture_url,omitempty"`
	IsActive          bool       `gorm:"not null" json:"is_active"`
	FavoriteBooks     []Book     `gorm:"many2many:profile_favorite_books" json:"favorite_books"`
	CreatedAt         time.Time  `gorm:"not null;autoCreateTime" json:"date_joined"`
	UpdatedAt         time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (p UserProfile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
