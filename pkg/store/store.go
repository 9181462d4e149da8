package store

import (
	"dynastyschool/pkg/domain"
)

// Store defines persistence operations for users, courses, and enrollments.
type Store interface {
	// users
	SaveUser(domain.User) (domain.User, error)
	GetUserByPhone(phone string) (domain.User, bool, error)
	GetUserByID(id uint) (domain.User, bool, error)

	// courses
	SaveCourse(domain.Course) (domain.Course, error)
	GetCourse(id uint) (domain.Course, bool, error)
	ListCourses() ([]domain.Course, error)

	// enrollments
	CreateEnrollment(userID, courseID uint) (domain.Enrollment, error)
	HasEnrollment(userID, courseID uint) (bool, error)
	ListCoursesByUser(userID uint) ([]domain.Course, error)
}
