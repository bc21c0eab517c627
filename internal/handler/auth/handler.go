package auth

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/havenchat/companion/internal/model/auth"
	"github.com/havenchat/companion/internal/remote"
	authservice "github.com/havenchat/companion/internal/service/auth"
	"github.com/havenchat/companion/pkg/utils"
)

// Service 登录、注册与登出
type Service interface {
	Login(ctx context.Context, creds auth.Credentials) (authservice.Result, error)
	Register(ctx context.Context, creds auth.Credentials) (authservice.Result, error)
	Logout(ctx context.Context) (authservice.Result, error)
}

// Handler 认证HTTP处理器
type Handler struct {
	svc Service
}

// New 创建认证处理器
func New(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册认证路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Post("/register", h.handleRegister)
		r.Post("/logout", h.handleLogout)
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, h.svc.Login)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, h.svc.Register)
}

func (h *Handler) authenticate(
	w http.ResponseWriter,
	r *http.Request,
	call func(context.Context, auth.Credentials) (authservice.Result, error),
) {
	var creds auth.Credentials
	if err := utils.DecodeJSON(r, &creds); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := call(r.Context(), creds)
	if err != nil {
		utils.RespondJSON(w, failureStatus(err), result)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

// handleLogout 远端登出失败时本地会话依然被清理，因此总是返回 200
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Logout(r.Context())
	if err != nil {
		log.Printf("[auth] logout completed locally: %v", err)
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

func failureStatus(err error) int {
	if errors.Is(err, authservice.ErrInvalidInput) {
		return http.StatusBadRequest
	}
	if status := remote.StatusCode(err); status >= 400 && status < 500 {
		return status
	}
	return http.StatusBadGateway
}
