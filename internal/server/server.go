package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"dynastyschool/internal/app"
	"dynastyschool/internal/util"
	"dynastyschool/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// ProtectCourseWrites requires a valid session on course create/update.
	ProtectCourseWrites bool
}

// Server exposes the HTTP API.
type Server struct {
	app           *app.App
	mux           *http.ServeMux
	protectWrites bool
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	s := &Server{
		app:           cfg.App,
		mux:           http.NewServeMux(),
		protectWrites: cfg.ProtectCourseWrites,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("school", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/auth/send-code", s.handleSendCode)
	s.mux.HandleFunc("/auth/verify-code", s.handleVerifyCode)

	// profile
	s.mux.Handle("/profile", s.withUser(s.handleProfile))
	s.mux.Handle("/profile/name", s.withUser(s.handleProfileName))

	// catalog
	s.mux.HandleFunc("/courses", s.handleCourses)
	s.mux.HandleFunc("/courses/", s.handleCourseByID)

	// enrollment
	s.mux.Handle("/enrollments", s.withUser(s.handleEnrollments))
	s.mux.Handle("/enroll", s.withUser(s.handleEnroll))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authenticate(w, r)
		if !ok {
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return domain.User{}, false
	}
	user, err := s.app.UserFromToken(token)
	if err != nil {
		s.writeAppError(w, err)
		return domain.User{}, false
	}
	return user, true
}

type sendCodeRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

func (s *Server) handleSendCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req sendCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.RequestCode(req.PhoneNumber); err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "code sent"})
}

type verifyCodeRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Code        string `json:"code"`
}

type sessionResponse struct {
	SessionToken string `json:"sessionToken"`
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req verifyCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, err := s.app.VerifyCode(req.PhoneNumber, req.Code)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionToken: token})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, domain.Profile{
		Username:    user.Username,
		PhoneNumber: user.PhoneNumber,
	})
}

type setNameRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleProfileName(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req setNameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	updated, err := s.app.SetUsername(user, req.Username)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.Profile{
		Username:    updated.Username,
		PhoneNumber: updated.PhoneNumber,
	})
}

type courseRequest struct {
	Name       string    `json:"name"`
	Lessons    *[]string `json:"lessons"`
	VideoLinks *[]string `json:"videoLinks"`
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListCourses(w)
	case http.MethodPost:
		s.handleCreateCourse(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListCourses(w http.ResponseWriter) {
	courses, err := s.app.ListCourses()
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": courses,
		"count": len(courses),
	})
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	if s.protectWrites {
		if _, ok := s.authenticate(w, r); !ok {
			return
		}
	}
	var req courseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var lessons, links []string
	if req.Lessons != nil {
		lessons = *req.Lessons
	}
	if req.VideoLinks != nil {
		links = *req.VideoLinks
	}
	course, err := s.app.CreateCourse(req.Name, lessons, links)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

// /courses/{id}
func (s *Server) handleCourseByID(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/courses/")
	if raw == "" || strings.Contains(raw, "/") {
		notFound(w, "not found")
		return
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		notFound(w, "course not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		// Course detail requires a session even though the catalog list
		// does not.
		if _, ok := s.authenticate(w, r); !ok {
			return
		}
		course, err := s.app.CourseDetail(uint(id))
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, course)
	case http.MethodPut:
		s.handleUpdateCourse(w, r, uint(id))
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request, id uint) {
	if s.protectWrites {
		if _, ok := s.authenticate(w, r); !ok {
			return
		}
	}
	var req courseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var name *string
	if strings.TrimSpace(req.Name) != "" {
		name = &req.Name
	}
	course, err := s.app.UpdateCourse(id, name, req.Lessons, req.VideoLinks)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (s *Server) handleEnrollments(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	courses, err := s.app.ListEnrollments(user)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": courses,
		"count": len(courses),
	})
}

type enrollRequest struct {
	CourseID uint `json:"courseId"`
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req enrollRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.Enroll(user, req.CourseID); err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "enrolled"})
}

// writeAppError maps application errors onto HTTP statuses. Unknown errors
// are reported as unavailable so callers retry instead of surfacing details.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrPhoneRequired),
		errors.Is(err, app.ErrCodeRequired),
		errors.Is(err, app.ErrUsernameRequired),
		errors.Is(err, app.ErrCourseNameRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, "invalid verification code")
	case errors.Is(err, app.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, app.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, app.ErrCourseNotFound):
		writeError(w, http.StatusNotFound, "course not found")
	case errors.Is(err, app.ErrAlreadyEnrolled):
		writeError(w, http.StatusConflict, "already enrolled")
	case errors.Is(err, app.ErrDeliveryFailed):
		writeError(w, http.StatusBadGateway, "code delivery failed")
	default:
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCode(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCode(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "unauthorized":
		return "AUTH_INVALID_TOKEN"
	case message == "invalid verification code":
		return "AUTH_INVALID_CODE"
	case message == "code delivery failed":
		return "AUTH_CODE_DELIVERY_FAILED"
	case message == "user not found":
		return "USER_NOT_FOUND"
	case message == "course not found":
		return "COURSE_NOT_FOUND"
	case message == "already enrolled":
		return "ENROLLMENT_CONFLICT"
	case message == "invalid json body":
		return "SYSTEM_INVALID_REQUEST"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "SYSTEM_INVALID_REQUEST"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusConflict:
		return "ENROLLMENT_CONFLICT"
	case http.StatusBadGateway:
		return "AUTH_CODE_DELIVERY_FAILED"
	case http.StatusServiceUnavailable:
		return "SYSTEM_UNAVAILABLE"
	default:
		return "SYSTEM_INTERNAL_ERROR"
	}
}
