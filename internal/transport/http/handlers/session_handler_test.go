package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/vedran77/dermacheck/internal/domain"
	"github.com/vedran77/dermacheck/internal/notify"
	"github.com/vedran77/dermacheck/internal/session"
)

// --- mock ---

type mockSession struct {
	state     domain.SessionState
	slot      *notify.Slot
	signupFn  func(username, email, password string) <-chan session.Result
	loginFn   func(email, password string) <-chan session.Result
	updateFn  func(u domain.ProfileUpdate) <-chan session.Result
	uploadFn  func(image io.Reader) <-chan session.Result
	loggedOut bool
}

func newMockSession() *mockSession {
	return &mockSession{slot: notify.NewSlot()}
}

func done(r session.Result) <-chan session.Result {
	ch := make(chan session.Result, 1)
	ch <- r
	return ch
}

func (m *mockSession) State() domain.SessionState   { return m.state }
func (m *mockSession) Notifications() *notify.Slot { return m.slot }
func (m *mockSession) Logout()                     { m.loggedOut = true; m.state.SignedIn = false }

func (m *mockSession) Signup(username, email, password string) <-chan session.Result {
	if m.signupFn != nil {
		return m.signupFn(username, email, password)
	}
	return done(session.Result{})
}
func (m *mockSession) Login(email, password string) <-chan session.Result {
	if m.loginFn != nil {
		return m.loginFn(email, password)
	}
	return done(session.Result{})
}
func (m *mockSession) ApplyProfileUpdate(u domain.ProfileUpdate) <-chan session.Result {
	if m.updateFn != nil {
		return m.updateFn(u)
	}
	return done(session.Result{})
}
func (m *mockSession) UploadAvatar(image io.Reader) <-chan session.Result {
	if m.uploadFn != nil {
		return m.uploadFn(image)
	}
	return done(session.Result{})
}

func newHandler(m *mockSession) *SessionHandler {
	return NewSessionHandler(m, zap.NewNop(), 1<<20)
}

func decodeError(t *testing.T, body io.Reader) (code, message string) {
	t.Helper()
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return resp.Error.Code, resp.Error.Message
}

// --- tests ---

func TestSignup_AcceptedWithoutWait(t *testing.T) {
	m := newMockSession()
	var got SignupInput
	m.signupFn = func(username, email, password string) <-chan session.Result {
		got = SignupInput{username, email, password}
		m.state.Loading = true
		return make(chan session.Result)
	}
	h := newHandler(m)

	body := `{"username":"alice","email":"a@x.com","password":"pw1"}`
	rec := httptest.NewRecorder()
	h.Signup(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session/signup", strings.NewReader(body)))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("code = %d, want 202", rec.Code)
	}
	if got.Username != "alice" || got.Email != "a@x.com" || got.Password != "pw1" {
		t.Errorf("input = %+v", got)
	}
	var resp IntentResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.State.Loading {
		t.Error("expected loading snapshot")
	}
}

func TestSignup_InvalidJSON(t *testing.T) {
	h := newHandler(newMockSession())
	rec := httptest.NewRecorder()
	h.Signup(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
	if code, _ := decodeError(t, rec.Body); code != "INVALID_JSON" {
		t.Errorf("code = %q", code)
	}
}

func TestLogin_WaitMapsErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", domain.NewValidationError(domain.MsgFillAllFields), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad credentials", &domain.StoreError{Op: "sign in", Err: domain.ErrInvalidCredentials}, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"store", &domain.StoreError{Op: "fetch profile", Err: io.ErrUnexpectedEOF}, http.StatusBadGateway, "STORE_ERROR"},
		{"superseded", session.ErrSuperseded, http.StatusConflict, "SUPERSEDED"},
		{"closed", domain.ErrClosed, http.StatusServiceUnavailable, "CLOSED"},
		{"unknown", domain.ErrUnknown, http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockSession()
			m.loginFn = func(string, string) <-chan session.Result { return done(session.Result{Err: tt.err}) }
			h := newHandler(m)

			rec := httptest.NewRecorder()
			h.Login(rec, httptest.NewRequest(http.MethodPost, "/?wait=true", strings.NewReader(`{"email":"a@b.com","password":""}`)))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			code, msg := decodeError(t, rec.Body)
			if code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if msg != tt.err.Error() {
				t.Errorf("message = %q, want %q", msg, tt.err.Error())
			}
		})
	}
}

func TestLogin_WaitSuccess(t *testing.T) {
	m := newMockSession()
	m.loginFn = func(string, string) <-chan session.Result {
		m.state = domain.SessionState{SignedIn: true}
		return done(session.Result{Profile: &domain.Profile{UserID: "u1", Username: domain.StringPtr("alice")}})
	}
	h := newHandler(m)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/?wait=true", strings.NewReader(`{"email":"a@b.com","password":"pw"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var resp IntentResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.State.SignedIn || resp.Profile == nil || *resp.Profile.Username != "alice" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestLogout(t *testing.T) {
	m := newMockSession()
	m.state.SignedIn = true
	h := newHandler(m)

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	if rec.Code != http.StatusOK || !m.loggedOut {
		t.Fatalf("code = %d, loggedOut = %v", rec.Code, m.loggedOut)
	}
	var s domain.SessionState
	json.NewDecoder(rec.Body).Decode(&s)
	if s.SignedIn {
		t.Error("snapshot still signed in")
	}
}

func TestUpdateProfile_PartialFields(t *testing.T) {
	m := newMockSession()
	var got domain.ProfileUpdate
	m.updateFn = func(u domain.ProfileUpdate) <-chan session.Result {
		got = u
		return done(session.Result{})
	}
	h := newHandler(m)

	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, httptest.NewRequest(http.MethodPatch, "/?wait=true", strings.NewReader(`{"bio":"hello"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if got.Bio == nil || *got.Bio != "hello" || got.Name != nil || got.Username != nil {
		t.Errorf("update = %+v", got)
	}
}

func TestUpdateProfile_TooLong(t *testing.T) {
	m := newMockSession()
	m.updateFn = func(domain.ProfileUpdate) <-chan session.Result {
		t.Error("update must not be queued")
		return done(session.Result{})
	}
	h := newHandler(m)

	body := `{"bio":"` + strings.Repeat("x", 1000) + `"}`
	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
}

func multipartImage(t *testing.T, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "avatar.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadAvatar(t *testing.T) {
	var img bytes.Buffer
	png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 4)))

	m := newMockSession()
	var received []byte
	m.uploadFn = func(r io.Reader) <-chan session.Result {
		received, _ = io.ReadAll(r)
		return done(session.Result{URL: "http://localhost:8080/blobs/images/x"})
	}
	h := newHandler(m)

	body, ct := multipartImage(t, img.Bytes())
	req := httptest.NewRequest(http.MethodPost, "/?wait=true", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.UploadAvatar(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(received, img.Bytes()) {
		t.Error("uploaded bytes differ")
	}
	var resp IntentResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.URL == "" {
		t.Error("missing url")
	}
}

func TestUploadAvatar_RejectsNonImage(t *testing.T) {
	m := newMockSession()
	m.uploadFn = func(io.Reader) <-chan session.Result {
		t.Error("upload must not be queued")
		return done(session.Result{})
	}
	h := newHandler(m)

	body, ct := multipartImage(t, []byte("%PDF-1.4 not an image"))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.UploadAvatar(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestUploadAvatar_MissingFile(t *testing.T) {
	h := newHandler(newMockSession())
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.UploadAvatar(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestConsumeNotification(t *testing.T) {
	m := newMockSession()
	h := newHandler(m)

	rec := httptest.NewRecorder()
	h.ConsumeNotification(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("empty slot: code = %d, want 204", rec.Code)
	}

	m.slot.Publish(domain.NotificationInfo, "Logged out")

	rec = httptest.NewRecorder()
	h.ConsumeNotification(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	var n domain.Notification
	json.NewDecoder(rec.Body).Decode(&n)
	if n.Message != "Logged out" || n.Kind != domain.NotificationInfo {
		t.Errorf("notification = %+v", n)
	}

	rec = httptest.NewRecorder()
	h.ConsumeNotification(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("second consume: code = %d, want 204", rec.Code)
	}
}

func TestGet(t *testing.T) {
	m := newMockSession()
	m.state = domain.SessionState{Version: 3, SignedIn: true}
	h := newHandler(m)

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var s domain.SessionState
	json.NewDecoder(rec.Body).Decode(&s)
	if s.Version != 3 || !s.SignedIn {
		t.Errorf("state = %+v", s)
	}
}
