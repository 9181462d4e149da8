package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"dynastyschool/pkg/domain"
)

const migrateLockID int64 = 82198219

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &CourseModel{}, &EnrollmentModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				DELETE FROM enrollment_models e
				WHERE NOT EXISTS (SELECT 1 FROM user_models u WHERE u.id = e.user_id)
				   OR NOT EXISTS (SELECT 1 FROM course_models c WHERE c.id = e.course_id);
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'enrollment_models'
					AND constraint_name = 'enrollment_models_user_id_fkey'
				) THEN
					ALTER TABLE enrollment_models
					ADD CONSTRAINT enrollment_models_user_id_fkey
					FOREIGN KEY (user_id) REFERENCES user_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'enrollment_models'
					AND constraint_name = 'enrollment_models_course_id_fkey'
				) THEN
					ALTER TABLE enrollment_models
					ADD CONSTRAINT enrollment_models_course_id_fkey
					FOREIGN KEY (course_id) REFERENCES course_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure enrollment foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser inserts a new user or updates an existing one and returns the
// persisted row with its store-assigned ID.
func (s *GormStore) SaveUser(u domain.User) (domain.User, error) {
	model := userToModel(u)
	if model.ID == 0 {
		if err := s.db.Create(&model).Error; err != nil {
			return domain.User{}, err
		}
		return userFromModel(model), nil
	}
	if err := s.db.Model(&UserModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"phone_number":   model.PhoneNumber,
			"username":       model.Username,
			"auth_code":      model.AuthCode,
			"code_issued_at": model.CodeIssuedAt,
			"session_token":  model.SessionToken,
			"updated_at":     time.Now().UTC(),
		}).Error; err != nil {
		return domain.User{}, err
	}
	return s.mustGetUser(model.ID)
}

func (s *GormStore) mustGetUser(id uint) (domain.User, error) {
	user, found, err := s.GetUserByID(id)
	if err != nil {
		return domain.User{}, err
	}
	if !found {
		return domain.User{}, fmt.Errorf("user %d vanished after update", id)
	}
	return user, nil
}

// GetUserByPhone looks up a user by phone number.
func (s *GormStore) GetUserByPhone(phone string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("phone_number = ?", phone).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id uint) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SaveCourse inserts or updates a course and returns the persisted row.
func (s *GormStore) SaveCourse(c domain.Course) (domain.Course, error) {
	model, err := courseToModel(c)
	if err != nil {
		return domain.Course{}, err
	}
	if model.ID == 0 {
		if err := s.db.Create(&model).Error; err != nil {
			return domain.Course{}, err
		}
	} else {
		if err := s.db.Model(&CourseModel{}).
			Where("id = ?", model.ID).
			Updates(map[string]any{
				"name":        model.Name,
				"lessons":     model.Lessons,
				"video_links": model.VideoLinks,
				"updated_at":  time.Now().UTC(),
			}).Error; err != nil {
			return domain.Course{}, err
		}
	}
	course, found, err := s.GetCourse(model.ID)
	if err != nil {
		return domain.Course{}, err
	}
	if !found {
		return domain.Course{}, fmt.Errorf("course %d vanished after save", model.ID)
	}
	return course, nil
}

// GetCourse retrieves a course.
func (s *GormStore) GetCourse(id uint) (domain.Course, bool, error) {
	var model CourseModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Course{}, false, nil
		}
		return domain.Course{}, false, err
	}
	course, err := courseFromModel(model)
	if err != nil {
		return domain.Course{}, false, err
	}
	return course, true, nil
}

// ListCourses returns all courses ordered by created_at.
func (s *GormStore) ListCourses() ([]domain.Course, error) {
	var models []CourseModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Course, 0, len(models))
	for _, m := range models {
		course, err := courseFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, course)
	}
	return res, nil
}

// CreateEnrollment inserts an enrollment row for the (user, course) pair.
// Pair uniqueness is the caller's responsibility, matching the application
// layer contract.
func (s *GormStore) CreateEnrollment(userID, courseID uint) (domain.Enrollment, error) {
	model := EnrollmentModel{
		UserID:    userID,
		CourseID:  courseID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Enrollment{}, err
	}
	return enrollmentFromModel(model), nil
}

// HasEnrollment checks whether the (user, course) pair already exists.
func (s *GormStore) HasEnrollment(userID, courseID uint) (bool, error) {
	var count int64
	if err := s.db.Model(&EnrollmentModel{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListCoursesByUser returns the courses reachable through a user's
// enrollments, in enrollment order.
func (s *GormStore) ListCoursesByUser(userID uint) ([]domain.Course, error) {
	var models []CourseModel
	if err := s.db.Model(&CourseModel{}).
		Joins("JOIN enrollment_models ON enrollment_models.course_id = course_models.id").
		Where("enrollment_models.user_id = ?", userID).
		Order("enrollment_models.created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Course, 0, len(models))
	for _, m := range models {
		course, err := courseFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, course)
	}
	return res, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		PhoneNumber:  u.PhoneNumber,
		Username:     u.Username,
		AuthCode:     u.AuthCode,
		CodeIssuedAt: u.CodeIssuedAt,
		SessionToken: u.SessionToken,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		PhoneNumber:  m.PhoneNumber,
		Username:     m.Username,
		AuthCode:     m.AuthCode,
		CodeIssuedAt: m.CodeIssuedAt,
		SessionToken: m.SessionToken,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func courseToModel(c domain.Course) (CourseModel, error) {
	lessons, err := json.Marshal(emptyIfNil(c.Lessons))
	if err != nil {
		return CourseModel{}, fmt.Errorf("marshal lessons: %w", err)
	}
	videoLinks, err := json.Marshal(emptyIfNil(c.VideoLinks))
	if err != nil {
		return CourseModel{}, fmt.Errorf("marshal video links: %w", err)
	}
	return CourseModel{
		ID:         c.ID,
		Name:       c.Name,
		Lessons:    lessons,
		VideoLinks: videoLinks,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}, nil
}

func courseFromModel(m CourseModel) (domain.Course, error) {
	var lessons, videoLinks []string
	if len(m.Lessons) > 0 {
		if err := json.Unmarshal(m.Lessons, &lessons); err != nil {
			return domain.Course{}, fmt.Errorf("unmarshal lessons: %w", err)
		}
	}
	if len(m.VideoLinks) > 0 {
		if err := json.Unmarshal(m.VideoLinks, &videoLinks); err != nil {
			return domain.Course{}, fmt.Errorf("unmarshal video links: %w", err)
		}
	}
	return domain.Course{
		ID:         m.ID,
		Name:       m.Name,
		Lessons:    lessons,
		VideoLinks: videoLinks,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}, nil
}

func enrollmentFromModel(m EnrollmentModel) domain.Enrollment {
	return domain.Enrollment{
		ID:        m.ID,
		UserID:    m.UserID,
		CourseID:  m.CourseID,
		CreatedAt: m.CreatedAt,
	}
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
