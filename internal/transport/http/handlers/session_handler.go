package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/vedran77/dermacheck/internal/domain"
	"github.com/vedran77/dermacheck/internal/notify"
	"github.com/vedran77/dermacheck/internal/session"
	"github.com/vedran77/dermacheck/pkg/validator"
)

// Session is the controller surface the HTTP layer drives.
type Session interface {
	State() domain.SessionState
	Notifications() *notify.Slot
	Signup(username, email, password string) <-chan session.Result
	Login(email, password string) <-chan session.Result
	Logout()
	ApplyProfileUpdate(u domain.ProfileUpdate) <-chan session.Result
	UploadAvatar(image io.Reader) <-chan session.Result
}

type SessionHandler struct {
	session        Session
	logger         *zap.Logger
	maxAvatarBytes int64
}

func NewSessionHandler(s Session, logger *zap.Logger, maxAvatarBytes int64) *SessionHandler {
	return &SessionHandler{session: s, logger: logger, maxAvatarBytes: maxAvatarBytes}
}

type SignupInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProfileInput struct {
	Name     *string `json:"name"`
	Username *string `json:"username"`
	Bio      *string `json:"bio"`
}

type IntentResponse struct {
	State   domain.SessionState `json:"state"`
	Profile *domain.Profile     `json:"profile,omitempty"`
	URL     string              `json:"url,omitempty"`
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.State())
}

func (h *SessionHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var input SignupInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	h.respond(w, r, h.session.Signup(input.Username, input.Email, input.Password))
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input LoginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	h.respond(w, r, h.session.Login(input.Email, input.Password))
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout()
	writeJSON(w, http.StatusOK, h.session.State())
}

func (h *SessionHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var input ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateProfile(input.Name, input.Username, input.Bio); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	h.respond(w, r, h.session.ApplyProfileUpdate(domain.ProfileUpdate{
		Name:     input.Name,
		Username: input.Username,
		Bio:      input.Bio,
	}))
}

// UploadAvatar reads the multipart "file" field fully before queueing, since
// the request body is gone once the handler returns.
func (h *SessionHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxAvatarBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxAvatarBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "File is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_FORM", "Expected a multipart form with a file field")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", "Expected a multipart form with a file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxAvatarBytes+1))
	if err != nil {
		h.logger.Warn("reading avatar upload failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, "INVALID_FORM", "Could not read file")
		return
	}

	contentType := http.DetectContentType(data)
	if errs := validator.ValidateAvatar(contentType, int64(len(data)), h.maxAvatarBytes); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	h.respond(w, r, h.session.UploadAvatar(bytes.NewReader(data)))
}

// ConsumeNotification hands out the pending notification once.
func (h *SessionHandler) ConsumeNotification(w http.ResponseWriter, r *http.Request) {
	n, ok := h.session.Notifications().Consume()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// respond answers 202 with the current snapshot, or with ?wait=true blocks
// until the intent completes.
func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request, ch <-chan session.Result) {
	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, IntentResponse{State: h.session.State()})
		return
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			writeIntentError(w, res.Err)
			return
		}
		writeJSON(w, http.StatusOK, IntentResponse{
			State:   h.session.State(),
			Profile: res.Profile,
			URL:     res.URL,
		})
	case <-r.Context().Done():
		// the intent keeps running; its outcome shows up in the state
	}
}
