package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"minilobby/config"
	"minilobby/protocol"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var (
	errSendQueueFull = errors.New("send queue full")
	errConnClosed    = errors.New("connection closed")
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws           *websocket.Conn
	send         chan []byte
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func NewClientConn(ws *websocket.Conn, bufferSize int, writeTimeout time.Duration) *ClientConn {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &ClientConn{
		ws:           ws,
		send:         make(chan []byte, bufferSize),
		writeTimeout: writeTimeout,
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞）。
// 队列满时返回错误而不是丢弃：丢帧会破坏单连接内的事件顺序，慢连接由上层断开。
func (c *ClientConn) Enqueue(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	select {
	case c.send <- b:
		return nil
	default:
		return errSendQueueFull
	}
}

// Close 关闭发送队列；写协程发完已入队的帧后发送 close 帧并关闭底层连接
func (c *ClientConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期发送 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端帧并交给会话；退出时（断线、违规、读超时）终止会话。
// 底层连接由 writePump 在发完剩余帧（例如 Error）后关闭。
func (c *ClientConn) readPump(sess *Session, readLimit int64) {
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, payload, err := c.ws.ReadMessage()
		if err != nil {
			sess.Terminate(fmt.Errorf("%w: %v", ErrConnectionClosed, err))
			return
		}
		if mt != websocket.TextMessage {
			sess.Abort(&protocol.ProtocolError{Err: fmt.Errorf("%w: binary frames are not supported", protocol.ErrMalformedFrame)})
			return
		}
		if err := sess.HandleFrame(payload); err != nil {
			sess.Abort(err)
			return
		}
	}
}

// WSHandler WebSocket 接入：升级连接、创建会话、启动读写协程
type WSHandler struct {
	mgr      *Manager
	cfg      config.ServerConfig
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(mgr *Manager, cfg config.ServerConfig, log *zap.Logger) *WSHandler {
	return &WSHandler{
		mgr: mgr,
		cfg: cfg,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 同源部署之外的来源限制由前置代理负责
				return true
			},
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade error", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	client := NewClientConn(ws, h.cfg.SendBuffer, h.cfg.WriteTimeout)
	sess, err := h.mgr.Open(client)
	if err != nil {
		h.log.Error("opening session", zap.Error(err))
		_ = ws.Close()
		return
	}
	h.log.Debug("websocket connected",
		zap.String("conn", sess.ID()),
		zap.String("remote", r.RemoteAddr),
	)

	go client.writePump()
	go client.readPump(sess, h.cfg.ReadLimit)
}
