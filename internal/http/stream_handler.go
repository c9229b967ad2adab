package httpapi

import (
	"net/http"
	"strings"

	"wisefido-hub/internal/bus"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// StreamHandler 事件流 websocket 网关
// 先升级再鉴权（升级前写响应体会破坏握手），鉴权失败通过帧告知后关闭
type StreamHandler struct {
	fanout *bus.Fanout
	secret string
	logger *zap.Logger

	upgrader websocket.Upgrader
	// 单客户端发送缓冲；写满即断开（慢消费者不拖垮 fanout）
	sendBuffer int
}

func NewStreamHandler(fanout *bus.Fanout, secret string, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		fanout: fanout,
		secret: secret,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sendBuffer: 64,
	}
}

// streamClient 单连接订阅端
type streamClient struct {
	send chan bus.StreamMessage
}

var _ bus.Subscriber = (*streamClient)(nil)

// Send 投递事件帧；缓冲满则丢弃，绝不阻塞 fanout
func (c *streamClient) Send(msg bus.StreamMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

// GET /hub/api/v1/stream?token=...&device=...&capability=...&zone=...&all=1
func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade to websocket",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	defer conn.Close()

	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r.Header.Get("Authorization"))
	}
	if _, err := VerifyToken(token, h.secret); err != nil {
		_ = conn.WriteJSON(map[string]string{"type": "error", "error": "authentication required"})
		return
	}

	groups := groupsFromQuery(r)
	if len(groups) == 0 {
		groups = []string{bus.GroupAll}
	}

	client := &streamClient{
		send: make(chan bus.StreamMessage, h.sendBuffer),
	}
	h.fanout.Join(client, groups...)
	defer h.fanout.Leave(client)

	h.logger.Info("Stream client joined",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Strings("groups", groups),
	)

	// 读循环用于感知断开（客户端不需要发业务帧）
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg := <-client.send:
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-readerDone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// groupsFromQuery 从查询参数收集兴趣组（可重复传参）
func groupsFromQuery(r *http.Request) []string {
	var groups []string
	q := r.URL.Query()
	for _, d := range q["device"] {
		if d = strings.TrimSpace(d); d != "" {
			groups = append(groups, bus.DeviceGroup(d))
		}
	}
	for _, c := range q["capability"] {
		if c = strings.TrimSpace(c); c != "" {
			groups = append(groups, bus.CapabilityGroup(c))
		}
	}
	for _, z := range q["zone"] {
		if z = strings.TrimSpace(z); z != "" {
			groups = append(groups, bus.ZoneGroup(z))
		}
	}
	if q.Get("all") != "" {
		groups = append(groups, bus.GroupAll)
	}
	return groups
}
