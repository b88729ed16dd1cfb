package websocket

import (
	"net/http"

	"book-chat/internal/hub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和会话注册。
// 房间不在 URL 里：连接建立后处于 Connected 状态，
// 客户端通过协议帧 join_room 进入房间。
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
}

// NewWebSocketHandler 创建 WebSocketHandler 实例
func NewWebSocketHandler(h *hub.Hub) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// 允许所有来源连接 (生产环境应配置具体的允许来源)
		CheckOrigin: func(r *http.Request) bool {
			// TODO: read allowed origins from config before production rollout
			return true
		},
	}

	return &WebSocketHandler{
		upgrader: upgrader,
		hub:      h,
	}
}

// HandleConnection 处理 GET /ws 的升级请求。
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	// 1. 获取认证身份 (由 Auth 中间件设置)。聊天要求登录，
	//    未认证的请求在升级前就被拒绝。
	userIDAny, exists := c.Get("user_id")
	if !exists {
		logrus.Warn("WS Handler: User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return // 返回 HTTP 错误，此时还未升级到 WebSocket
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		logrus.Error("WS Handler: User ID in context is not uint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	displayName, _ := c.Get("display_name")
	name, _ := displayName.(string)
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID})

	// 2. 升级 HTTP 连接到 WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时已自动发送 HTTP 错误响应，这里只记录日志
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	// 3. 创建会话并注册到 Hub
	client := hub.NewClient(h.hub, conn, userID, name)
	logCtx = logCtx.WithField("session_id", client.SessionID())
	if !h.hub.Register(client) {
		// Hub 的通道满了，注册失败
		logCtx.Error("WS Handler: Hub message channel full, failed to register session")
		client.CloseConn()
		return
	}
	logCtx.Info("WS Handler: Connection upgraded, session registered")

	// 4. 启动会话的读写 goroutine。
	//    之后的通信全部由 ReadPump/WritePump 处理。
	client.Run()
}
