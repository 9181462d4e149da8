package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dynastyschool/internal/app"
	"dynastyschool/internal/token"
	"dynastyschool/pkg/domain"
	"dynastyschool/pkg/store"
)

type captureSender struct {
	lastPhone string
	lastCode  string
	fail      bool
}

func (s *captureSender) Send(phone, code string) error {
	if s.fail {
		return fmt.Errorf("gateway timeout")
	}
	s.lastPhone = phone
	s.lastCode = code
	return nil
}

func newTestServer(t *testing.T, protectWrites bool) (*httptest.Server, *captureSender) {
	t.Helper()
	tokens, err := token.NewService("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	sender := &captureSender{}
	application, err := app.New(app.Config{
		Store:  store.NewMemoryStore(),
		Tokens: tokens,
		Sender: sender,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv, err := New(Config{App: application, ProtectCourseWrites: protectWrites})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, sender
}

func newSession(t *testing.T, ts *httptest.Server, sender *captureSender, phone string) string {
	t.Helper()
	resp := postJSON(t, ts.URL+"/auth/send-code", "", map[string]string{"phoneNumber": phone})
	resp.Body.Close()
	resp = postJSON(t, ts.URL+"/auth/verify-code", "", map[string]string{
		"phoneNumber": phone,
		"code":        sender.lastCode,
	})
	var session struct {
		SessionToken string `json:"sessionToken"`
	}
	decodeBody(t, resp, &session)
	if session.SessionToken == "" {
		t.Fatal("expected session token")
	}
	return session.SessionToken
}

func postJSON(t *testing.T, url, bearer string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func getJSON(t *testing.T, url, bearer string, dst any) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	resp.Body.Close()
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestSignupProfileAndEnrollFlow(t *testing.T) {
	ts, sender := newTestServer(t, false)

	// 1) Request a verification code.
	resp := postJSON(t, ts.URL+"/auth/send-code", "", map[string]string{"phoneNumber": "+15551234"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("send-code expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	if sender.lastPhone != "+15551234" || len(sender.lastCode) != 5 {
		t.Fatalf("unexpected dispatch: phone=%q code=%q", sender.lastPhone, sender.lastCode)
	}

	// 2) Exchange the code for a session token.
	resp = postJSON(t, ts.URL+"/auth/verify-code", "", map[string]string{
		"phoneNumber": "+15551234",
		"code":        sender.lastCode,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify-code expected 200, got %d", resp.StatusCode)
	}
	var session struct {
		SessionToken string `json:"sessionToken"`
	}
	decodeBody(t, resp, &session)
	if session.SessionToken == "" {
		t.Fatal("expected session token")
	}

	// 3) Profile shows the generated username.
	var profile domain.Profile
	resp = getJSON(t, ts.URL+"/profile", session.SessionToken, &profile)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile expected 200, got %d", resp.StatusCode)
	}
	if profile.PhoneNumber != "+15551234" || profile.Username == "" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	// 4) Rename.
	resp = postJSON(t, ts.URL+"/profile/name", session.SessionToken, map[string]string{"username": "Dana"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set name expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &profile)
	if profile.Username != "Dana" {
		t.Fatalf("username = %q, want Dana", profile.Username)
	}

	// 5) Create a course and check detail order is preserved.
	resp = postJSON(t, ts.URL+"/courses", "", map[string]any{
		"name":       "Algebra",
		"lessons":    []string{"Sets", "Groups"},
		"videoLinks": []string{"https://v/sets", "https://v/groups"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create course expected 201, got %d", resp.StatusCode)
	}
	var course domain.Course
	decodeBody(t, resp, &course)

	var detail domain.Course
	resp = getJSON(t, fmt.Sprintf("%s/courses/%d", ts.URL, course.ID), session.SessionToken, &detail)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("course detail expected 200, got %d", resp.StatusCode)
	}
	if len(detail.Lessons) != 2 || detail.Lessons[0] != "Sets" || detail.VideoLinks[1] != "https://v/groups" {
		t.Fatalf("unexpected detail: %+v", detail)
	}

	// 6) Enroll, then enroll again for a conflict.
	resp = postJSON(t, ts.URL+"/enroll", session.SessionToken, map[string]uint{"courseId": course.ID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("enroll expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = postJSON(t, ts.URL+"/enroll", session.SessionToken, map[string]uint{"courseId": course.ID})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate enroll expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// 7) Enrollments list the course once.
	var enrollments struct {
		Items []domain.CourseSummary `json:"items"`
		Count int                    `json:"count"`
	}
	resp = getJSON(t, ts.URL+"/enrollments", session.SessionToken, &enrollments)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enrollments expected 200, got %d", resp.StatusCode)
	}
	if enrollments.Count != 1 || enrollments.Items[0].Name != "Algebra" {
		t.Fatalf("unexpected enrollments: %+v", enrollments)
	}
}

func TestAuthRequiredOnProfileAndEnrollment(t *testing.T) {
	ts, _ := newTestServer(t, false)

	for _, url := range []string{ts.URL + "/profile", ts.URL + "/enrollments"} {
		resp := getJSON(t, url, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("GET %s without token expected 401, got %d", url, resp.StatusCode)
		}
	}

	resp := getJSON(t, ts.URL+"/profile", "not-a-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token expected 401, got %d", resp.StatusCode)
	}
}

func TestVerifyCodeRejections(t *testing.T) {
	ts, sender := newTestServer(t, false)

	resp := postJSON(t, ts.URL+"/auth/verify-code", "", map[string]string{
		"phoneNumber": "+15550000",
		"code":        "12345",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown phone expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/auth/send-code", "", map[string]string{"phoneNumber": "+15550000"})
	resp.Body.Close()
	wrong := "00000"
	if sender.lastCode == wrong {
		wrong = "99999"
	}
	resp = postJSON(t, ts.URL+"/auth/verify-code", "", map[string]string{
		"phoneNumber": "+15550000",
		"code":        wrong,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("wrong code expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSendCodeDeliveryFailure(t *testing.T) {
	ts, sender := newTestServer(t, false)
	sender.fail = true

	resp := postJSON(t, ts.URL+"/auth/send-code", "", map[string]string{"phoneNumber": "+15559999"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("delivery failure expected 502, got %d", resp.StatusCode)
	}
	var body struct {
		Code string `json:"code"`
	}
	decodeBody(t, resp, &body)
	if body.Code != "AUTH_CODE_DELIVERY_FAILED" {
		t.Fatalf("error code = %q", body.Code)
	}
}

func TestCourseDetailRequiresToken(t *testing.T) {
	ts, _ := newTestServer(t, false)

	resp := postJSON(t, ts.URL+"/courses", "", map[string]any{"name": "Gated"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create course expected 201, got %d", resp.StatusCode)
	}
	var course domain.Course
	decodeBody(t, resp, &course)

	resp = getJSON(t, fmt.Sprintf("%s/courses/%d", ts.URL, course.ID), "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("detail without token expected 401, got %d", resp.StatusCode)
	}
	resp = getJSON(t, fmt.Sprintf("%s/courses/%d", ts.URL, course.ID), "not-a-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("detail with garbage token expected 401, got %d", resp.StatusCode)
	}
}

func TestCourseNotFound(t *testing.T) {
	ts, sender := newTestServer(t, false)
	session := newSession(t, ts, sender, "+15553333")

	resp := getJSON(t, ts.URL+"/courses/9999", session, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing course expected 404, got %d", resp.StatusCode)
	}
	resp = getJSON(t, ts.URL+"/courses/abc", session, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("non-numeric id expected 404, got %d", resp.StatusCode)
	}
}

func TestUpdateCourseAppliesSuppliedFieldsOnly(t *testing.T) {
	ts, _ := newTestServer(t, false)

	resp := postJSON(t, ts.URL+"/courses", "", map[string]any{
		"name":    "History",
		"lessons": []string{"Antiquity"},
	})
	var course domain.Course
	decodeBody(t, resp, &course)

	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/courses/%d", ts.URL, course.ID),
		bytes.NewReader([]byte(`{"videoLinks":["https://v/antiquity"]}`)))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("update expected 200, got %d", resp2.StatusCode)
	}
	var updated domain.Course
	decodeBody(t, resp2, &updated)
	if updated.Name != "History" || len(updated.Lessons) != 1 {
		t.Fatalf("fields clobbered: %+v", updated)
	}
	if len(updated.VideoLinks) != 1 || updated.VideoLinks[0] != "https://v/antiquity" {
		t.Fatalf("videoLinks not applied: %+v", updated)
	}
}

func TestProtectedCourseWrites(t *testing.T) {
	ts, sender := newTestServer(t, true)

	// Unauthenticated create is rejected when protection is on.
	resp := postJSON(t, ts.URL+"/courses", "", map[string]any{"name": "Locked"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Reads stay open.
	resp = getJSON(t, ts.URL+"/courses", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list expected 200, got %d", resp.StatusCode)
	}

	// An authenticated caller can create.
	resp = postJSON(t, ts.URL+"/auth/send-code", "", map[string]string{"phoneNumber": "+15551111"})
	resp.Body.Close()
	resp = postJSON(t, ts.URL+"/auth/verify-code", "", map[string]string{
		"phoneNumber": "+15551111",
		"code":        sender.lastCode,
	})
	var session struct {
		SessionToken string `json:"sessionToken"`
	}
	decodeBody(t, resp, &session)

	resp = postJSON(t, ts.URL+"/courses", session.SessionToken, map[string]any{"name": "Unlocked"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("authenticated create expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, false)

	var body map[string]string
	resp := getJSON(t, ts.URL+"/healthz", "", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz expected 200, got %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Fatalf("healthz body = %v", body)
	}
}
