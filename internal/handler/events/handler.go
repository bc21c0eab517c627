package events

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/havenchat/companion/internal/service/events"
)

// Source 提供事件订阅
type Source interface {
	Subscribe() (<-chan events.Event, func())
}

// Commands 是视图可以通过 websocket 直接下发的会话操作
type Commands interface {
	SetInput(text string)
	Send(ctx context.Context, text string) error
}

// Handler 把会话状态推送给展示层，支持 websocket 与 SSE 两种通道
type Handler struct {
	source   Source
	commands Commands
	upgrader websocket.Upgrader

	heartbeat    time.Duration
	pingInterval time.Duration
	readTimeout  time.Duration
}

// New 创建事件处理器。commands 为空时 websocket 只推送不接收指令。
func New(source Source, commands Commands) *Handler {
	return &Handler{
		source:   source,
		commands: commands,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		heartbeat:    8 * time.Second,
		pingInterval: 54 * time.Second,
		readTimeout:  60 * time.Second,
	}
}

// RegisterRoutes 注册事件路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Get("/ws", h.handleWebSocket)
		r.Get("/stream", h.handleStream)
	})
}
