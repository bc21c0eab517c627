package voice

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	chathandler "github.com/havenchat/companion/internal/handler/chat"
	chatservice "github.com/havenchat/companion/internal/service/chat"
	voiceservice "github.com/havenchat/companion/internal/service/voice"
	"github.com/havenchat/companion/pkg/utils"
)

// Session 录音开始/结束由会话编排，结束后自动转写并发送
type Session interface {
	State() chatservice.State
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
}

// Recorder 提供取消与状态查询
type Recorder interface {
	Cancel()
	State() voiceservice.State
}

// Handler 语音输入HTTP处理器
type Handler struct {
	session  Session
	recorder Recorder
}

// New 创建语音输入处理器
func New(session Session, recorder Recorder) *Handler {
	return &Handler{session: session, recorder: recorder}
}

// RegisterRoutes 注册语音输入路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/voice", func(r chi.Router) {
		r.Get("/state", h.handleState)
		r.Post("/start", h.handleStart)
		r.Post("/stop", h.handleStop)
		r.Post("/cancel", h.handleCancel)
	})
}

type stateResponse struct {
	State voiceservice.State `json:"state"`
}

func (h *Handler) handleState(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, stateResponse{State: h.currentState()})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	err := h.session.StartRecording(r.Context())
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, stateResponse{State: h.currentState()})
	case errors.Is(err, voiceservice.ErrAlreadyRecording):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, voiceservice.ErrMicrophoneUnavailable):
		utils.RespondError(w, http.StatusServiceUnavailable, chatservice.MsgMicrophone)
	default:
		status, message := chathandler.StatusFor(err)
		utils.RespondError(w, status, message)
	}
}

// handleStop 结束录音并把转写结果作为消息发送
func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	err := h.session.StopRecording(r.Context())
	switch {
	case err == nil, errors.Is(err, chatservice.ErrEmptyClip):
		utils.RespondJSON(w, http.StatusOK, h.session.State())
	case errors.Is(err, voiceservice.ErrNotRecording):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("[voice] stop failed: %v", err)
		status, message := chathandler.StatusFor(err)
		if viewErr := h.session.State().Error; viewErr != "" && status == http.StatusBadGateway {
			message = viewErr
		}
		utils.RespondError(w, status, message)
	}
}

func (h *Handler) handleCancel(w http.ResponseWriter, _ *http.Request) {
	if h.recorder != nil {
		h.recorder.Cancel()
	}
	utils.RespondJSON(w, http.StatusOK, stateResponse{State: h.currentState()})
}

func (h *Handler) currentState() voiceservice.State {
	if h.recorder == nil {
		return voiceservice.StateIdle
	}
	return h.recorder.State()
}
