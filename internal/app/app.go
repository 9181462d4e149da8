// Package app implements the authentication flow and the profile/catalog
// operations on top of the store, the token service, and the SMS sender.
package app

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"dynastyschool/internal/sms"
	"dynastyschool/internal/token"
	"dynastyschool/pkg/domain"
	"dynastyschool/pkg/store"
)

const codeLength = 5

// Config holds runtime configuration for the core application.
type Config struct {
	Store  store.Store
	Tokens *token.Service
	Sender sms.Sender

	// SingleUseCodes clears a code after its first successful verification.
	// Off by default: a code stays valid until the next issuance overwrites it.
	SingleUseCodes bool

	// CodeTTL rejects codes older than the given duration. Zero disables
	// expiry.
	CodeTTL time.Duration
}

// App is the core application service wiring together storage, tokens, and
// code delivery.
type App struct {
	store          store.Store
	tokens         *token.Service
	sender         sms.Sender
	singleUseCodes bool
	codeTTL        time.Duration
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	sender := cfg.Sender
	if sender == nil {
		sender = sms.LogSender{}
	}
	return &App{
		store:          cfg.Store,
		tokens:         cfg.Tokens,
		sender:         sender,
		singleUseCodes: cfg.SingleUseCodes,
		codeTTL:        cfg.CodeTTL,
	}, nil
}

// RequestCode issues a one-time code for the phone number and dispatches it
// over SMS. An unseen phone number gets a new account with a placeholder
// username. The code never travels back to the caller.
func (a *App) RequestCode(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ErrPhoneRequired
	}
	code, err := generateNumericCode(codeLength)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	user, found, err := a.store.GetUserByPhone(phone)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	now := time.Now().UTC()
	if !found {
		user = domain.User{
			PhoneNumber: phone,
			Username:    "Student " + code,
		}
	}
	user.AuthCode = code
	user.CodeIssuedAt = now
	if _, err := a.store.SaveUser(user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if err := a.sender.Send(phone, code); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// VerifyCode exchanges a previously issued code for a session token. The
// token is persisted as the user's current session credential.
func (a *App) VerifyCode(phone, code string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", ErrPhoneRequired
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrCodeRequired
	}
	user, found, err := a.store.GetUserByPhone(phone)
	if err != nil {
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if !found {
		return "", ErrUserNotFound
	}
	if user.AuthCode == "" || user.AuthCode != code {
		return "", ErrInvalidCode
	}
	if a.codeTTL > 0 && time.Since(user.CodeIssuedAt) > a.codeTTL {
		return "", ErrInvalidCode
	}
	sessionToken, err := a.tokens.Issue(phone)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	user.SessionToken = sessionToken
	if a.singleUseCodes {
		user.AuthCode = ""
	}
	if _, err := a.store.SaveUser(user); err != nil {
		return "", fmt.Errorf("save user: %w", err)
	}
	return sessionToken, nil
}

// UserFromToken resolves the user bound to a session token. The token only
// carries the phone number; profile fields are always read fresh from the
// store.
func (a *App) UserFromToken(sessionToken string) (domain.User, error) {
	phone, err := a.tokens.Verify(sessionToken)
	if err != nil {
		return domain.User{}, ErrUnauthorized
	}
	user, found, err := a.store.GetUserByPhone(phone)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !found {
		return domain.User{}, ErrUnauthorized
	}
	return user, nil
}

// SetUsername overwrites the user's display name.
func (a *App) SetUsername(user domain.User, name string) (domain.User, error) {
	if strings.TrimSpace(name) == "" {
		return domain.User{}, ErrUsernameRequired
	}
	user.Username = name
	updated, err := a.store.SaveUser(user)
	if err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return updated, nil
}

// ListCourses returns the id/name projection of every course.
func (a *App) ListCourses() ([]domain.CourseSummary, error) {
	courses, err := a.store.ListCourses()
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return summarize(courses), nil
}

// CourseDetail returns the full course record.
func (a *App) CourseDetail(id uint) (domain.Course, error) {
	course, found, err := a.store.GetCourse(id)
	if err != nil {
		return domain.Course{}, fmt.Errorf("fetch course: %w", err)
	}
	if !found {
		return domain.Course{}, ErrCourseNotFound
	}
	return course, nil
}

// ListEnrollments returns the courses the user is enrolled in.
func (a *App) ListEnrollments(user domain.User) ([]domain.CourseSummary, error) {
	courses, err := a.store.ListCoursesByUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return summarize(courses), nil
}

// Enroll registers the user in a course. At most one enrollment may exist per
// (user, course) pair; the check happens here, before the insert.
func (a *App) Enroll(user domain.User, courseID uint) error {
	_, found, err := a.store.GetCourse(courseID)
	if err != nil {
		return fmt.Errorf("fetch course: %w", err)
	}
	if !found {
		return ErrCourseNotFound
	}
	enrolled, err := a.store.HasEnrollment(user.ID, courseID)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if enrolled {
		return ErrAlreadyEnrolled
	}
	if _, err := a.store.CreateEnrollment(user.ID, courseID); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// CreateCourse adds a course to the catalog.
func (a *App) CreateCourse(name string, lessons, videoLinks []string) (domain.Course, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Course{}, ErrCourseNameRequired
	}
	course, err := a.store.SaveCourse(domain.Course{
		Name:       name,
		Lessons:    lessons,
		VideoLinks: videoLinks,
	})
	if err != nil {
		return domain.Course{}, fmt.Errorf("save course: %w", err)
	}
	return course, nil
}

// UpdateCourse applies the supplied fields to an existing course. Nil fields
// keep their current value.
func (a *App) UpdateCourse(id uint, name *string, lessons, videoLinks *[]string) (domain.Course, error) {
	course, found, err := a.store.GetCourse(id)
	if err != nil {
		return domain.Course{}, fmt.Errorf("fetch course: %w", err)
	}
	if !found {
		return domain.Course{}, ErrCourseNotFound
	}
	if name != nil {
		if strings.TrimSpace(*name) == "" {
			return domain.Course{}, ErrCourseNameRequired
		}
		course.Name = *name
	}
	if lessons != nil {
		course.Lessons = *lessons
	}
	if videoLinks != nil {
		course.VideoLinks = *videoLinks
	}
	updated, err := a.store.SaveCourse(course)
	if err != nil {
		return domain.Course{}, fmt.Errorf("save course: %w", err)
	}
	return updated, nil
}

func summarize(courses []domain.Course) []domain.CourseSummary {
	res := make([]domain.CourseSummary, 0, len(courses))
	for _, c := range courses {
		res = append(res, domain.CourseSummary{ID: c.ID, Name: c.Name})
	}
	return res
}

// generateNumericCode draws each digit independently from a uniform
// distribution. Codes are not required to be unique across users.
func generateNumericCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
