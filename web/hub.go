package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// writeLoop 将send中的消息依次写入连接，写失败时关闭连接
func (c *client) writeLoop() {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Debugf("websocket write: %v", err)
			c.conn.Close()
			return
		}
	}
}

// Hub websocket广播
// 功能：维护已连接的客户端，把每步的状态快照推送给全部客户端
// 说明：每个客户端一个带缓冲的发送队列，队列满时丢弃该客户端的本条消息，广播不会阻塞模拟循环
type Hub struct {
	mtx     sync.Mutex
	clients map[*client]struct{}
}

// NewHub 创建广播中心
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Serve 升级HTTP连接并阻塞读取直到连接断开
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket upgrade: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mtx.Lock()
	h.clients[c] = struct{}{}
	h.mtx.Unlock()
	go c.writeLoop()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.mtx.Lock()
	delete(h.clients, c)
	close(c.send)
	h.mtx.Unlock()
	conn.Close()
}

// Broadcast 将v编码为JSON后发送给全部客户端
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Errorf("broadcast marshal: %v", err)
		return
	}
	h.mtx.Lock()
	defer h.mtx.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Debugf("websocket client %v is slow, drop message", c.conn.RemoteAddr())
		}
	}
}

// Len 当前客户端数量
func (h *Hub) Len() int {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return len(h.clients)
}
