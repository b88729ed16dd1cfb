package hub

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"book-chat/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// 每个连接入站帧的速率限制 (令牌桶)
	inboundRate  = rate.Limit(5) // 每秒 5 帧
	inboundBurst = 10
)

// Client 代表一个连接到 Hub 的连接会话。
// 一个会话同一时刻至多属于一个房间；roomID 只由 Hub 的
// join/leave/unregister 转换处理，消息处理逻辑不得直接改写。
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	sessionID   string // 会话唯一标识符
	userID      uint   // 绑定的用户身份 (升级连接时由服务端验证)
	displayName string

	mu     sync.Mutex
	roomID uint // 当前加入的房间，0 表示未加入
	closed bool // send 通道是否已被 Hub 关闭

	send chan []byte // 用于向此客户端发送消息的缓冲通道

	limiter    *rate.Limiter // 入站帧限速
	lastActive int64         // 最近一次收到入站帧的时间 (unix nano)，供空闲清理读取
}

// NewClient 创建一个新的 Client 实例。
func NewClient(hub *Hub, conn *websocket.Conn, userID uint, displayName string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		sessionID:   uuid.NewString(),
		userID:      userID,
		displayName: displayName,
		send:        make(chan []byte, 256),
		limiter:     rate.NewLimiter(inboundRate, inboundBurst),
		lastActive:  time.Now().UnixNano(),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) SessionID() string   { return c.sessionID }
func (c *Client) UserID() uint        { return c.userID }
func (c *Client) DisplayName() string { return c.displayName }
func (c *Client) CloseConn()          { _ = c.conn.Close() }

// CurrentRoom 返回会话当前加入的房间 (0 表示未加入)。
func (c *Client) CurrentRoom() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// setRoom 只能由 Hub 的转换处理调用。
func (c *Client) setRoom(roomID uint) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
}

// Participant 返回该会话对应的参与者视图。
func (c *Client) Participant() domain.Participant {
	return domain.Participant{
		SessionID:   c.sessionID,
		UserID:      c.userID,
		DisplayName: c.displayName,
	}
}

// IdleFor 返回自最后一次入站帧以来经过的时间，供空闲清理使用。
func (c *Client) IdleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, atomic.LoadInt64(&c.lastActive)))
}

func (c *Client) touchActivity() {
	atomic.StoreInt64(&c.lastActive, time.Now().UnixNano())
}

// sendEvent 把事件序列化后以非阻塞方式放入 send 通道。
func (c *Client) sendEvent(event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).WithField("session_id", c.sessionID).Error("Failed to marshal event for client")
		return
	}
	c.enqueue(payload)
}

// enqueue 非阻塞地把已序列化的载荷放入 send 通道。
// 通道已满说明客户端消费过慢，载荷被丢弃 (广播是尽力而为)；
// 会话注销后的投递同样被静默丢弃。
func (c *Client) enqueue(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		logrus.WithFields(logrus.Fields{
			"session_id": c.sessionID,
			"user_id":    c.userID,
		}).Warn("Client send channel full, dropping event")
	}
}

// closeSend 关闭 send 通道，使 WritePump 退出。只能由 Hub 在
// 注销时调用；closed 标记防止关闭后的投递 panic。
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump 逐帧读取 WebSocket 连接并分发处理：join 经 Hub 的
// 事件循环 (等待其完成)，send 在本 goroutine 上同步执行。
// 它在自己的 goroutine 中运行；退出时触发会话注销。
func (c *Client) ReadPump() {
	defer func() {
		// 清理操作：请求 Hub 注销此会话 (尽力而为，Hub 可能已停止)
		c.hub.queueUnregister(c)
		_ = c.conn.Close()
		logrus.WithFields(logrus.Fields{"session_id": c.sessionID, "user_id": c.userID}).Info("readPump exited, session unregistering")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait)) // 收到 Pong 后重置读取超时
		return nil
	})

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithFields(logrus.Fields{"session_id": c.sessionID, "user_id": c.userID})
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			break // 退出循环，触发 defer 中的注销
		}

		if messageType != websocket.TextMessage {
			continue
		}
		c.touchActivity()

		// 入站限速：超限的帧直接丢弃并告知发送者
		if !c.limiter.Allow() {
			c.sendEvent(ErrorEvent{Type: EventError, Code: codeRateLimited, Message: "too many messages, slow down"})
			continue
		}

		var frame ClientFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			logrus.WithError(err).WithField("session_id", c.sessionID).Warn("Failed to unmarshal client frame")
			c.sendEvent(ErrorEvent{Type: EventError, Code: codeBadRequest, Message: "malformed frame"})
			continue
		}

		// 帧级校验在分发之前完成，不合法的帧不碰注册表和存储。
		// 两种帧都处理到完成才读下一帧，同一会话的事件因此
		// 严格按到达顺序生效。
		switch frame.Type {
		case FrameJoinRoom:
			if frame.RoomID == 0 {
				c.sendEvent(ErrorEvent{Type: EventError, Code: codeValidation, Message: "room_id is required"})
				continue
			}
			c.hub.dispatchJoin(c, frame)
		case FrameSendMessage:
			if frame.Body == "" {
				c.sendEvent(ErrorEvent{Type: EventError, Code: codeValidation, Message: "body is required"})
				continue
			}
			c.hub.handleSend(c, frame)
		default:
			c.sendEvent(ErrorEvent{Type: EventError, Code: codeBadRequest, Message: "unknown frame type"})
		}
	}
}

// WritePump 将消息从 send 通道泵送到 WebSocket 连接。
// 它在自己的 goroutine 中运行。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		logrus.WithFields(logrus.Fields{"session_id": c.sessionID, "user_id": c.userID}).Info("writePump exited")
		// 不需要在这里注销，readPump 退出会处理
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道被 Hub 关闭了 (注销时)
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logrus.WithFields(logrus.Fields{"session_id": c.sessionID, "user_id": c.userID}).WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			// 定时发送 Ping 以保持连接活跃并检测断开
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithFields(logrus.Fields{"session_id": c.sessionID, "user_id": c.userID}).WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}
