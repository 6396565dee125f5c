// internal/api/handler/api/commands.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/newthinker/buddy/internal/api/response"
	"github.com/newthinker/buddy/internal/command"
	"github.com/newthinker/buddy/internal/core"
	"go.uber.org/zap"
)

const (
	wsReadLimit  = 4096
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsWriteWait  = 10 * time.Second
	wsQueueSize  = 8
)

// Dispatcher runs chat commands.
type Dispatcher interface {
	Handle(ctx context.Context, msg command.Message) command.Reply
}

// CommandsHandler exposes the command surface over HTTP and websocket.
type CommandsHandler struct {
	dispatcher Dispatcher
	upgrader   websocket.Upgrader
	pongWait   time.Duration
	pingPeriod time.Duration
	logger     *zap.Logger
}

// NewCommandsHandler creates a new commands handler. allowOrigin decides
// which browser origins may open a websocket; nil allows all.
func NewCommandsHandler(d Dispatcher, allowOrigin func(origin string) bool, logger *zap.Logger) *CommandsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandsHandler{
		dispatcher: d,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowOrigin == nil || allowOrigin(origin)
			},
		},
		pongWait:   wsPongWait,
		pingPeriod: wsPingPeriod,
		logger:     logger,
	}
}

// Handle runs one command from a JSON body.
func (h *CommandsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var msg command.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidParameters, err))
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		response.Error(w, http.StatusBadRequest,
			core.Errorf(core.ErrInvalidParameters, "text is required"))
		return
	}

	response.JSON(w, http.StatusOK, h.dispatcher.Handle(r.Context(), msg))
}

// Stream upgrades to a websocket. Each text frame is a command, either a JSON
// message or plain text; each reply is written back as JSON. Duplicate
// messages get no reply. Commands run one at a time off the read loop, so
// pongs keep the connection alive during long runs.
func (h *CommandsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	replies := make(chan command.Reply)
	commands := make(chan command.Message, wsQueueSize)
	go h.writeLoop(ctx, cancel, conn, replies)
	go h.dispatchLoop(ctx, commands, replies)

	h.logger.Info("websocket client connected", zap.String("remote", r.RemoteAddr))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		msg := parseFrame(data)
		if strings.TrimSpace(msg.Text) == "" {
			continue
		}
		select {
		case commands <- msg:
			continue
		case <-ctx.Done():
			return
		default:
		}

		name, _ := command.Parse(msg.Text)
		busy := command.Reply{Command: name, Messages: []string{"Too many commands in progress, try again shortly."}}
		select {
		case replies <- busy:
		case <-ctx.Done():
			return
		}
	}
}

func (h *CommandsHandler) dispatchLoop(ctx context.Context, commands <-chan command.Message, replies chan<- command.Reply) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-commands:
			reply := h.dispatcher.Handle(ctx, msg)
			if reply.Duplicate {
				continue
			}
			select {
			case replies <- reply:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *CommandsHandler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, replies <-chan command.Reply) {
	defer cancel()
	ping := time.NewTicker(h.pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case reply := <-replies:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(reply); err != nil {
				h.logger.Warn("websocket write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// parseFrame accepts a JSON command.Message or a bare command line.
func parseFrame(data []byte) command.Message {
	var msg command.Message
	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &msg); err == nil {
			return msg
		}
	}
	return command.Message{Text: string(data)}
}
