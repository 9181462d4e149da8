package store

import (
	"testing"

	"dynastyschool/pkg/domain"
)

func TestMemoryStoreUserRoundTrip(t *testing.T) {
	m := NewMemoryStore()

	created, err := m.SaveUser(domain.User{PhoneNumber: "+15550001", Username: "Student 1"})
	if err != nil {
		t.Fatalf("save user: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	byPhone, found, err := m.GetUserByPhone("+15550001")
	if err != nil || !found {
		t.Fatalf("get by phone: found=%v err=%v", found, err)
	}
	if byPhone.ID != created.ID {
		t.Fatalf("id mismatch: %d vs %d", byPhone.ID, created.ID)
	}

	byPhone.Username = "Renamed"
	if _, err := m.SaveUser(byPhone); err != nil {
		t.Fatalf("update user: %v", err)
	}
	if m.UserCount() != 1 {
		t.Fatalf("user count = %d, want 1", m.UserCount())
	}
	updated, _, _ := m.GetUserByID(created.ID)
	if updated.Username != "Renamed" {
		t.Fatalf("username = %q, want Renamed", updated.Username)
	}
}

func TestMemoryStoreListCoursesKeepsInsertionOrder(t *testing.T) {
	m := NewMemoryStore()

	for _, name := range []string{"C1", "C2", "C3"} {
		if _, err := m.SaveCourse(domain.Course{Name: name}); err != nil {
			t.Fatalf("save course %s: %v", name, err)
		}
	}
	courses, err := m.ListCourses()
	if err != nil {
		t.Fatalf("list courses: %v", err)
	}
	if len(courses) != 3 {
		t.Fatalf("len = %d, want 3", len(courses))
	}
	for i, name := range []string{"C1", "C2", "C3"} {
		if courses[i].Name != name {
			t.Fatalf("courses[%d] = %q, want %q", i, courses[i].Name, name)
		}
	}
}

func TestMemoryStoreEnrollments(t *testing.T) {
	m := NewMemoryStore()

	user, _ := m.SaveUser(domain.User{PhoneNumber: "+15550002"})
	first, _ := m.SaveCourse(domain.Course{Name: "First"})
	second, _ := m.SaveCourse(domain.Course{Name: "Second"})

	if _, err := m.CreateEnrollment(user.ID, second.ID); err != nil {
		t.Fatalf("enroll second: %v", err)
	}
	if _, err := m.CreateEnrollment(user.ID, first.ID); err != nil {
		t.Fatalf("enroll first: %v", err)
	}

	has, err := m.HasEnrollment(user.ID, second.ID)
	if err != nil || !has {
		t.Fatalf("has enrollment: has=%v err=%v", has, err)
	}
	if got := m.EnrollmentCount(user.ID, first.ID); got != 1 {
		t.Fatalf("enrollment count = %d, want 1", got)
	}

	// Enrollment order, not catalog order.
	courses, err := m.ListCoursesByUser(user.ID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(courses) != 2 || courses[0].Name != "Second" || courses[1].Name != "First" {
		t.Fatalf("unexpected order: %+v", courses)
	}
}
