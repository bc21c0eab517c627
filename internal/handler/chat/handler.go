package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatservice "github.com/havenchat/companion/internal/service/chat"
	"github.com/havenchat/companion/pkg/utils"
)

// Session 是处理器依赖的会话能力
type Session interface {
	State() chatservice.State
	Load(ctx context.Context) (chatservice.LoadResult, error)
	Send(ctx context.Context, text string) error
	SendInput(ctx context.Context) error
	SetInput(text string)
	ClearError()
}

// Handler 聊天相关的HTTP处理器
type Handler struct {
	session Session
}

// New 创建聊天处理器
func New(session Session) *Handler {
	return &Handler{session: session}
}

// RegisterRoutes 注册聊天路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Get("/state", h.handleState)
		r.Post("/reload", h.handleReload)
		r.Post("/messages", h.handleSend)
		r.Put("/input", h.handleInput)
		r.Delete("/error", h.handleClearError)
	})
}

type sendRequest struct {
	Text *string `json:"text"`
}

type inputRequest struct {
	Text string `json:"text"`
}

type reloadResponse struct {
	Redirect string            `json:"redirect,omitempty"`
	Count    int               `json:"count"`
	State    chatservice.State `json:"state"`
}

func (h *Handler) handleState(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.session.State())
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	result, err := h.session.Load(r.Context())
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, reloadResponse{
		Redirect: result.Redirect,
		Count:    result.Count,
		State:    h.session.State(),
	})
}

// handleSend 发送消息；未提供 text 时发送输入框中的内容
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	if req.Text != nil {
		err = h.session.Send(r.Context(), *req.Text)
	} else {
		err = h.session.SendInput(r.Context())
	}
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.session.State())
}

func (h *Handler) handleInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.session.SetInput(req.Text)
	utils.RespondJSON(w, http.StatusOK, h.session.State())
}

func (h *Handler) handleClearError(w http.ResponseWriter, _ *http.Request) {
	h.session.ClearError()
	w.WriteHeader(http.StatusNoContent)
}

// respondFailure 把会话错误映射为状态码，错误文案优先使用视图状态中的提示
func (h *Handler) respondFailure(w http.ResponseWriter, err error) {
	status, message := StatusFor(err)
	if status == http.StatusBadGateway {
		if viewErr := h.session.State().Error; viewErr != "" {
			message = viewErr
		}
	}
	utils.RespondError(w, status, message)
}

// StatusFor 把会话错误映射为展示层 HTTP 状态码
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, chatservice.ErrEmptyMessage), errors.Is(err, chatservice.ErrEmptyClip):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, chatservice.ErrSendInFlight), errors.Is(err, chatservice.ErrBusy), errors.Is(err, chatservice.ErrReset):
		return http.StatusConflict, err.Error()
	case errors.Is(err, chatservice.ErrClosed):
		return http.StatusGone, err.Error()
	case errors.Is(err, chatservice.ErrNoRecorder), errors.Is(err, chatservice.ErrNoTranscriber):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusBadGateway, "request failed"
	}
}
