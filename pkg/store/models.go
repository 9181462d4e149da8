package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           uint   `gorm:"primaryKey"`
	PhoneNumber  string `gorm:"uniqueIndex;not null"`
	Username     string
	AuthCode     string
	CodeIssuedAt time.Time
	SessionToken string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type CourseModel struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"not null"`
	Lessons    datatypes.JSON
	VideoLinks datatypes.JSON
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time
}

type EnrollmentModel struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;index"`
	CourseID  uint      `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}
