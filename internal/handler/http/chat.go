package http

import (
	"net/http"
	"strconv"

	"book-chat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ChatHandler 实现聊天的 HTTP 回退路径：没有持久连接的客户端
// 也能读历史和发消息。POST 与 WebSocket 的 send 共用
// ChatService.Publish，所以经由这里发出的消息同样会广播给
// 房间内的在线持久连接参与者。
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler 创建 ChatHandler 实例
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	if chatService == nil {
		panic("ChatService cannot be nil for ChatHandler")
	}
	return &ChatHandler{chatService: chatService}
}

// ListMessages 处理 GET /rooms/:roomId/messages。
// 返回按创建时间升序 (最旧的在前) 的最近消息。
func (h *ChatHandler) ListMessages(c *gin.Context) {
	roomID, ok := parseIDParam(c, "roomId")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(service.DefaultHistoryLimit)))

	messages, err := h.chatService.Recent(c.Request.Context(), roomID, limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, gin.H{"messages": messages})
}

// PostMessageRequest 定义回退路径发消息请求的结构体。
// 作者身份取自服务端验证过的 token，请求体里不接受自报身份。
type PostMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// PostMessage 处理 POST /rooms/:roomId/messages。
func (h *ChatHandler) PostMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := parseIDParam(c, "roomId")
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.PostMessage: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: body is required")
		return
	}

	msg, err := h.chatService.Publish(c.Request.Context(), roomID, userID, currentDisplayName(c), req.Body)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, gin.H{"message": msg})
}

// ReportMessageRequest 定义举报请求的结构体
type ReportMessageRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

// ReportMessage 处理 POST /messages/:messageId/report。
// 举报只记录信号，不改变消息可见性。
func (h *ChatHandler) ReportMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := parseIDParam(c, "messageId")
	if !ok {
		return
	}

	var req ReportMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.ReportMessage: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input")
		return
	}

	if err := h.chatService.Report(c.Request.Context(), messageID, userID, req.Reason); err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, gin.H{"message": "Report recorded"})
}
