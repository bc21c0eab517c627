package events

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/havenchat/companion/internal/service/events"
)

const writeTimeout = 10 * time.Second

// Inbound command types.
const (
	CommandInput = "input"
	CommandSend  = "send"
	CommandPing  = "ping"
)

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// conn 串行化对同一连接的写操作
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket 推送事件并接收视图指令
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	c := &conn{ws: ws}
	defer ws.Close()

	stream, unsubscribe := h.source.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	log.Printf("[websocket] view connected from %s", r.RemoteAddr)

	ws.SetReadDeadline(time.Now().Add(h.readTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(h.readTimeout))
		return nil
	})

	go h.pushLoop(ctx, cancel, c, stream)

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(h.readTimeout))
		h.handleMessage(ctx, c, msg)
	}
}

// pushLoop 转发订阅到的事件，并定期发送 ping
func (h *Handler) pushLoop(ctx context.Context, cancel context.CancelFunc, c *conn, stream <-chan events.Event) {
	defer cancel()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-stream:
			if !ok {
				return
			}
			msg := outgoingMessage{Type: ev.Type, Data: ev.Data, Timestamp: ev.Timestamp.Unix()}
			if err := c.writeJSON(msg); err != nil {
				log.Printf("[websocket] write %s failed: %v", ev.Type, err)
				_ = c.ws.Close()
				return
			}
		case <-ticker.C:
			if err := c.ping(); err != nil {
				_ = c.ws.Close()
				return
			}
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *conn, msg inboundMessage) {
	switch msg.Type {
	case CommandPing:
		h.reply(c, "pong", nil)
	case CommandInput:
		if h.commands == nil {
			h.sendError(c, "commands unavailable")
			return
		}
		h.commands.SetInput(msg.Text)
	case CommandSend:
		if h.commands == nil {
			h.sendError(c, "commands unavailable")
			return
		}
		// 结果通过状态事件回推，这里不阻塞读循环
		go func(text string) {
			if err := h.commands.Send(ctx, text); err != nil {
				log.Printf("[websocket] send command failed: %v", err)
				h.sendError(c, err.Error())
			}
		}(msg.Text)
	default:
		h.sendError(c, "unknown message type")
	}
}

func (h *Handler) reply(c *conn, typ string, data any) {
	if err := c.writeJSON(outgoingMessage{Type: typ, Data: data, Timestamp: time.Now().Unix()}); err != nil {
		log.Printf("[websocket] write %s failed: %v", typ, err)
	}
}

func (h *Handler) sendError(c *conn, message string) {
	h.reply(c, "error", map[string]string{"message": message})
}
