package speech

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/havenchat/companion/internal/model/speech"
	speechsvc "github.com/havenchat/companion/internal/service/speech"
	"github.com/havenchat/companion/pkg/utils"
)

// Speaker 抽象回复朗读控制，便于测试与替换实现
type Speaker interface {
	Speak(ctx context.Context, u speech.Utterance) error
	Stop()
	Speaking() bool
}

// Handler 语音播放的HTTP处理器
type Handler struct {
	speaker Speaker
	synth   speechsvc.Synthesizer
	voice   string
}

// New 创建语音处理器。synth 为空时不提供 /synthesize。
func New(speaker Speaker, synth speechsvc.Synthesizer, voice string) *Handler {
	return &Handler{
		speaker: speaker,
		synth:   synth,
		voice:   voice,
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Get("/state", h.handleState)
		speechRouter.Post("/speak", h.handleSpeak)
		speechRouter.Post("/stop", h.handleStop)
		speechRouter.Post("/synthesize", h.handleSynthesize)
	})
}

type stateResponse struct {
	Speaking bool `json:"speaking"`
}

type synthesizeRequest struct {
	Text   string  `json:"text"`
	Voice  string  `json:"voice"`
	Speed  float32 `json:"speed"`
	Format string  `json:"format"`
}

func (h *Handler) handleState(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, stateResponse{Speaking: h.speaker.Speaking()})
}

// handleSpeak 朗读一段文本，替换正在播放的内容
func (h *Handler) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req speech.Utterance
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.speaker.Speak(r.Context(), req); err != nil {
		if errors.Is(err, speechsvc.ErrEmptyText) {
			utils.RespondError(w, http.StatusBadRequest, "text is required")
			return
		}
		log.Printf("[speech] speak error: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "speech playback failed")
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, stateResponse{Speaking: h.speaker.Speaking()})
}

func (h *Handler) handleStop(w http.ResponseWriter, _ *http.Request) {
	h.speaker.Stop()
	utils.RespondJSON(w, http.StatusOK, stateResponse{Speaking: h.speaker.Speaking()})
}

// handleSynthesize 直接返回合成音频，不经过本地播放器
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if h.synth == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "speech synthesis unavailable")
		return
	}

	var req synthesizeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	ttsReq := &speech.TTSRequest{
		Text:   strings.TrimSpace(req.Text),
		Voice:  speechsvc.NormalizeVoiceAlias(req.Voice),
		Speed:  req.Speed,
		Format: req.Format,
	}
	if ttsReq.Voice == "" {
		ttsReq.Voice = h.voice
	}
	if ttsReq.Format == "" {
		ttsReq.Format = "mp3"
	}

	resp, err := h.synth.Synthesize(r.Context(), ttsReq)
	if err != nil {
		log.Printf("[speech] TTS error: %v", err)
		utils.RespondError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	format := resp.Format
	if format == "" {
		format = ttsReq.Format
	}
	w.Header().Set("Content-Type", "audio/"+format)
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.AudioData)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.AudioData); err != nil {
		log.Printf("[speech] write audio response: %v", err)
	}
}
