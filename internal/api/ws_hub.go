package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/taoyao-code/rfid-gateway/internal/inventory"
	"github.com/taoyao-code/rfid-gateway/internal/metrics"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
	wsSendBuffer = 256

	defaultMaxClients = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsClient struct {
	conn *websocket.Conn
	send chan []inventory.Observation
}

// Hub 向 WebSocket 客户端广播标签事件，同时作为盘点服务的下游。
// 发送缓冲满的慢客户端会被断开，不阻塞盘点。
type Hub struct {
	mu         sync.Mutex
	clients    map[*wsClient]struct{}
	maxClients int
	reserved   int // 已占名额、尚未完成升级的连接
	rejected   int64
	log        *zap.Logger
	metrics    *metrics.AppMetrics
}

// NewHub 创建广播中心；maxClients<=0 取 64，m 可为空
func NewHub(logger *zap.Logger, m *metrics.AppMetrics, maxClients int) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxClients <= 0 {
		maxClients = defaultMaxClients
	}
	return &Hub{clients: make(map[*wsClient]struct{}), maxClients: maxClients, log: logger.Named("ws"), metrics: m}
}

var _ inventory.Sink = (*Hub)(nil)

func (h *Hub) Name() string { return "websocket" }

// Write 广播一批事件
func (h *Hub) Write(_ context.Context, obs []inventory.Observation) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- obs:
		default:
			h.log.Warn("slow websocket client dropped", zap.String("remote", c.conn.RemoteAddr().String()))
			h.removeLocked(c)
		}
	}
	return nil
}

// Clients 当前连接数
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close 断开全部客户端
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// reserve 占用一个连接名额，满员时返回 false；成功后须以 add 或 release 归还
func (h *Hub) reserve() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients)+h.reserved >= h.maxClients {
		h.rejected++
		return false
	}
	h.reserved++
	return true
}

// release 升级失败时归还名额
func (h *Hub) release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reserved--
}

// Rejected 因满员被拒绝的连接数（累计）
func (h *Hub) Rejected() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rejected
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reserved--
	h.clients[c] = struct{}{}
	h.gauge()
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.gauge()
}

func (h *Hub) gauge() {
	if h.metrics != nil {
		h.metrics.WSClientsGauge.Set(float64(len(h.clients)))
	}
}

// ServeWS 升级连接并推送标签事件
// @Summary 标签实时推送
// @Description WebSocket，每条消息为一批标签读取事件（JSON 数组）
// @Tags 读写器
// @Security ApiKeyAuth
// @Failure 503 {object} map[string]interface{} "连接数已满"
// @Router /ws/tags [get]
func (h *Hub) ServeWS(c *gin.Context) {
	if !h.reserve() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "too_many_clients", "message": "live feed client limit reached"})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.release()
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &wsClient{conn: conn, send: make(chan []inventory.Observation, wsSendBuffer)}
	h.add(client)
	h.log.Info("websocket client connected", zap.String("remote", conn.RemoteAddr().String()))

	go h.writePump(client)
	h.readPump(client)
}

// readPump 只处理控制帧，客户端断开时退出
func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case obs, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(obs); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
