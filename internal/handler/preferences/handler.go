package preferences

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	prefservice "github.com/havenchat/companion/internal/service/preferences"
	"github.com/havenchat/companion/pkg/utils"
)

// Store 主题偏好的读取与持久化
type Store interface {
	Theme() prefservice.Theme
	SetTheme(theme prefservice.Theme) error
	Toggle() (prefservice.Theme, error)
}

// Handler 偏好设置HTTP处理器
type Handler struct {
	store Store
}

// New 创建偏好设置处理器
func New(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册偏好设置路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/preferences/theme", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Put("/", h.handleSet)
		r.Post("/toggle", h.handleToggle)
	})
}

type themePayload struct {
	Theme prefservice.Theme `json:"theme"`
}

func (h *Handler) handleGet(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, themePayload{Theme: h.store.Theme()})
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	var req themePayload
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.SetTheme(req.Theme); err != nil {
		h.respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, themePayload{Theme: h.store.Theme()})
}

func (h *Handler) handleToggle(w http.ResponseWriter, _ *http.Request) {
	theme, err := h.store.Toggle()
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, themePayload{Theme: theme})
}

func (h *Handler) respondFailure(w http.ResponseWriter, err error) {
	if errors.Is(err, prefservice.ErrInvalidTheme) {
		utils.RespondError(w, http.StatusBadRequest, prefservice.ErrInvalidTheme.Error())
		return
	}
	log.Printf("[preferences] save failed: %v", err)
	utils.RespondError(w, http.StatusInternalServerError, "failed to save preferences")
}
