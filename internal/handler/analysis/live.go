package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	emotion "github.com/zhouzirui/mindful/backend/internal/model/emotion"
	"github.com/zhouzirui/mindful/backend/internal/service/aggregator"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Inbound message types.
const (
	MessageObservation = "observation"
	MessageText        = "text"
	MessageSummary     = "summary"
)

// Outbound message types.
const (
	MessageResult = "result"
	MessageError  = "error"
)

// LiveHandler 通过 WebSocket 接收实时观测，并在每次写入后推送最新摘要。
type LiveHandler struct {
	parent   *Handler
	upgrader websocket.Upgrader
}

func newLiveHandler(parent *Handler) *LiveHandler {
	return &LiveHandler{
		parent: parent,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// InboundMessage 客户端发送的消息。timestamp 为毫秒时间戳，0 表示使用服务端时间。
type InboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// OutboundMessage 服务端推送的消息。
type OutboundMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// TextData 是 text 类型消息的数据。
type TextData struct {
	Text string `json:"text"`
}

type liveConn struct {
	conn      *websocket.Conn
	sessionID string
	writeMu   sync.Mutex
}

func (h *LiveHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	if err := h.parent.aggregator.Open(sessionID); err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[live] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[live] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	lc := &liveConn{conn: conn, sessionID: sessionID}

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, lc)

	h.sendSummary(lc)

	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[live] read error session=%s: %v", sessionID, err)
			}
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		h.parent.recorder.ObserveWSMessage("in", msg.Type)

		h.handleMessage(ctx, lc, &msg)
	}
}

func (h *LiveHandler) handleMessage(ctx context.Context, lc *liveConn, msg *InboundMessage) {
	switch strings.ToLower(strings.TrimSpace(msg.Type)) {
	case MessageObservation:
		var payload ObservationRequest
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			h.sendError(lc, "invalid observation payload")
			return
		}
		h.recordAndReply(ctx, lc, payload, msg.Timestamp)
	case MessageText:
		var payload TextData
		if err := json.Unmarshal(msg.Data, &payload); err != nil || strings.TrimSpace(payload.Text) == "" {
			h.sendError(lc, "text is required")
			return
		}
		h.recordAndReply(ctx, lc, ObservationRequest{Source: string(emotion.SourceText), Text: payload.Text}, msg.Timestamp)
	case MessageSummary:
		h.sendSummary(lc)
	default:
		h.sendError(lc, "unknown message type: "+msg.Type)
	}
}

func (h *LiveHandler) recordAndReply(ctx context.Context, lc *liveConn, payload ObservationRequest, timestampMillis int64) {
	var at time.Time
	if timestampMillis > 0 {
		at = time.UnixMilli(timestampMillis)
	}

	resp, err := h.parent.record(ctx, lc.sessionID, payload, at)
	if err != nil {
		if !errors.Is(err, aggregator.ErrInvalidArgument) {
			log.Printf("[live] record failed session=%s: %v", lc.sessionID, err)
		}
		h.sendError(lc, err.Error())
		return
	}

	h.send(lc, OutboundMessage{
		Type:      MessageResult,
		SessionID: lc.sessionID,
		Data:      resp,
	})
}

func (h *LiveHandler) sendSummary(lc *liveConn) {
	summary, err := h.parent.aggregator.Summarize(lc.sessionID)
	if err != nil && !errors.Is(err, aggregator.ErrNotFound) {
		h.sendError(lc, err.Error())
		return
	}
	h.send(lc, OutboundMessage{
		Type:      MessageResult,
		SessionID: lc.sessionID,
		Data:      map[string]any{"summary": summary},
	})
}

func (h *LiveHandler) sendError(lc *liveConn, message string) {
	h.send(lc, OutboundMessage{
		Type:      MessageError,
		SessionID: lc.sessionID,
		Data:      map[string]string{"message": message},
	})
}

func (h *LiveHandler) send(lc *liveConn, msg OutboundMessage) {
	msg.Timestamp = time.Now().UnixMilli()

	lc.writeMu.Lock()
	defer lc.writeMu.Unlock()

	_ = lc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := lc.conn.WriteJSON(msg); err != nil {
		log.Printf("[live] write %s failed session=%s: %v", msg.Type, lc.sessionID, err)
		return
	}
	h.parent.recorder.ObserveWSMessage("out", msg.Type)
}

// pingLoop 定期发送ping消息
func (h *LiveHandler) pingLoop(ctx context.Context, lc *liveConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
