package store

import (
	"sync"
	"time"

	"dynastyschool/pkg/domain"
)

// MemoryStore keeps all rows in-process. It backs tests and local development
// without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[uint]domain.User
	phones      map[string]uint // phone number -> user ID
	courses     map[uint]domain.Course
	courseOrder []uint
	enrollments []domain.Enrollment

	nextUserID       uint
	nextCourseID     uint
	nextEnrollmentID uint
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[uint]domain.User),
		phones:  make(map[string]uint),
		courses: make(map[uint]domain.Course),
	}
}

// SaveUser inserts or replaces a user, assigning an ID on insert.
func (m *MemoryStore) SaveUser(u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if u.ID == 0 {
		m.nextUserID++
		u.ID = m.nextUserID
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	m.users[u.ID] = u
	m.phones[u.PhoneNumber] = u.ID
	return u, nil
}

// GetUserByPhone looks up a user by phone number.
func (m *MemoryStore) GetUserByPhone(phone string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.phones[phone]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id uint) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// UserCount returns the number of stored users.
func (m *MemoryStore) UserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// SaveCourse inserts or replaces a course, assigning an ID on insert.
func (m *MemoryStore) SaveCourse(c domain.Course) (domain.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if c.ID == 0 {
		m.nextCourseID++
		c.ID = m.nextCourseID
		c.CreatedAt = now
		m.courseOrder = append(m.courseOrder, c.ID)
	}
	c.UpdatedAt = now
	m.courses[c.ID] = c
	return c, nil
}

// GetCourse retrieves a course by ID.
func (m *MemoryStore) GetCourse(id uint) (domain.Course, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[id]
	return c, ok, nil
}

// ListCourses returns courses in insertion order.
func (m *MemoryStore) ListCourses() ([]domain.Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Course, 0, len(m.courseOrder))
	for _, id := range m.courseOrder {
		if c, ok := m.courses[id]; ok {
			res = append(res, c)
		}
	}
	return res, nil
}

// CreateEnrollment appends an enrollment row for the pair.
func (m *MemoryStore) CreateEnrollment(userID, courseID uint) (domain.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEnrollmentID++
	e := domain.Enrollment{
		ID:        m.nextEnrollmentID,
		UserID:    userID,
		CourseID:  courseID,
		CreatedAt: time.Now().UTC(),
	}
	m.enrollments = append(m.enrollments, e)
	return e, nil
}

// HasEnrollment reports whether the (user, course) pair exists.
func (m *MemoryStore) HasEnrollment(userID, courseID uint) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

// EnrollmentCount returns the number of enrollment rows for the pair.
func (m *MemoryStore) EnrollmentCount(userID, courseID uint) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, e := range m.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			count++
		}
	}
	return count
}

// ListCoursesByUser returns the user's enrolled courses in enrollment order.
func (m *MemoryStore) ListCoursesByUser(userID uint) ([]domain.Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Course
	for _, e := range m.enrollments {
		if e.UserID != userID {
			continue
		}
		if c, ok := m.courses[e.CourseID]; ok {
			res = append(res, c)
		}
	}
	return res, nil
}
