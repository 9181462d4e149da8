package domain

import "time"

// User is an account identified by phone number. AuthCode holds the most
// recently issued one-time SMS code and SessionToken the most recently issued
// session credential; neither is ever serialized to clients.
type User struct {
	ID           uint      `json:"id"`
	PhoneNumber  string    `json:"phoneNumber"`
	Username     string    `json:"username"`
	AuthCode     string    `json:"-"`
	CodeIssuedAt time.Time `json:"-"`
	SessionToken string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Course is a catalog entry. Lessons and VideoLinks are index-aligned ordered
// sequences: VideoLinks[i] is the recording for Lessons[i].
type Course struct {
	ID         uint      `json:"id"`
	Name       string    `json:"name"`
	Lessons    []string  `json:"lessons"`
	VideoLinks []string  `json:"videoLinks"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Enrollment records a user's registration in a course.
type Enrollment struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"userId"`
	CourseID  uint      `json:"courseId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile is the client-facing view of a user.
type Profile struct {
	Username    string `json:"username"`
	PhoneNumber string `json:"phoneNumber"`
}

// CourseSummary is the list-view projection of a course.
type CourseSummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}
