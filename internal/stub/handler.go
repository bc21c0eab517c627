package stub

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/havenchat/companion/internal/model/auth"
	"github.com/havenchat/companion/internal/model/chat"
	"github.com/havenchat/companion/pkg/utils"
)

// SessionCookie carries the stub's session id.
const SessionCookie = "sessionid"

// Handler serves the remote chat service contract over HTTP.
type Handler struct {
	store     *Store
	responder Responder
}

// New creates the stand-in remote service.
func New(store *Store, responder Responder) *Handler {
	if responder == nil {
		responder = ReflectiveResponder{}
	}
	return &Handler{store: store, responder: responder}
}

// Router returns a standalone router for the stub service.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the remote service routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/register/", h.handleRegister)
	r.Post("/login/", h.handleLogin)
	r.Post("/logout/", h.handleLogout)
	r.Get("/chat/", h.handleHistory)
	r.Post("/chat/", h.handleSend)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	sessionID, err := h.store.Register(r.Context(), creds.Username, creds.Password)
	if errors.Is(err, ErrUserExists) {
		utils.RespondJSON(w, http.StatusBadRequest, auth.ErrorPayload{Username: auth.FieldErrors{"A user with that username already exists."}})
		return
	}
	if err != nil {
		utils.RespondJSON(w, http.StatusInternalServerError, auth.ErrorPayload{Detail: err.Error()})
		return
	}

	h.setSession(w, sessionID)
	utils.RespondJSON(w, http.StatusCreated, map[string]string{"message": "registered", "username": creds.Username})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	sessionID, err := h.store.Login(r.Context(), creds.Username, creds.Password)
	if err != nil {
		utils.RespondJSON(w, http.StatusBadRequest, auth.ErrorPayload{NonFieldErrors: auth.FieldErrors{"Invalid username or password."}})
		return
	}

	h.setSession(w, sessionID)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "logged in", "username": creds.Username})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		h.store.Logout(r.Context(), cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	username, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	history := h.store.History(r.Context(), username)
	if len(history) == 0 {
		utils.RespondJSON(w, http.StatusNotFound, auth.ErrorPayload{Detail: "No chat history found."})
		return
	}
	utils.RespondJSON(w, http.StatusOK, chat.HistoryResponse{ChatHistory: history})
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	username, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var payload chat.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondJSON(w, http.StatusBadRequest, auth.ErrorPayload{Detail: "invalid request body"})
		return
	}
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		utils.RespondJSON(w, http.StatusBadRequest, auth.ErrorPayload{Detail: "text is required"})
		return
	}

	reply := h.responder.Reply(text)
	h.store.AppendExchange(r.Context(), username, chat.Exchange{User: text, Bot: reply})
	utils.RespondJSON(w, http.StatusOK, chat.SendResponse{Response: reply})
}

func (h *Handler) decodeCredentials(w http.ResponseWriter, r *http.Request) (auth.Credentials, bool) {
	var creds auth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		utils.RespondJSON(w, http.StatusBadRequest, auth.ErrorPayload{Detail: "invalid request body"})
		return auth.Credentials{}, false
	}
	creds = creds.Normalize()

	var payload auth.ErrorPayload
	if creds.Username == "" {
		payload.Username = auth.FieldErrors{"This field may not be blank."}
	}
	if creds.Password == "" {
		payload.Password = auth.FieldErrors{"This field may not be blank."}
	}
	if _, invalid := payload.Message(); invalid {
		utils.RespondJSON(w, http.StatusBadRequest, payload)
		return auth.Credentials{}, false
	}
	return creds, true
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err == nil {
		if username, err := h.store.User(r.Context(), cookie.Value); err == nil {
			return username, true
		}
	}
	utils.RespondJSON(w, http.StatusUnauthorized, auth.ErrorPayload{Detail: "Authentication credentials were not provided."})
	return "", false
}

func (h *Handler) setSession(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
