package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"book-chat/internal/domain"
	"book-chat/internal/repository"
	"book-chat/internal/repository/mocks"
	"book-chat/internal/service"
)

type noopEnqueuer struct{}

func (noopEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{}, nil
}

// setupChatRouter 组装带 mock 存储的路由。identity 非 0 时模拟
// 认证中间件向上下文注入的身份。
func setupChatRouter(t *testing.T, identity uint, displayName string) (*gin.Engine, *mocks.MockBookRepository, *mocks.MockMessageRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bookRepo := new(mocks.MockBookRepository)
	messageRepo := new(mocks.MockMessageRepository)
	chatService := service.NewChatService(bookRepo, messageRepo, noopEnqueuer{})
	handler := NewChatHandler(chatService)

	router := gin.New()
	injectIdentity := func(c *gin.Context) {
		if identity != 0 {
			c.Set("user_id", identity)
			c.Set("display_name", displayName)
		}
		c.Next()
	}
	router.GET("/api/rooms/:roomId/messages", handler.ListMessages)
	router.POST("/api/rooms/:roomId/messages", injectIdentity, handler.PostMessage)
	router.POST("/api/messages/:messageId/report", injectIdentity, handler.ReportMessage)
	return router, bookRepo, messageRepo
}

func TestChatHandler_ListMessages_ReturnsAscendingHistory(t *testing.T) {
	// Arrange
	router, bookRepo, messageRepo := setupChatRouter(t, 0, "")
	history := []domain.ChatMessage{
		{ID: 1, BookID: 7, Body: "first"},
		{ID: 2, BookID: 7, Body: "second"},
	}
	bookRepo.On("Exists", mock.Anything, uint(7)).Return(true, nil).Once()
	messageRepo.On("Recent", mock.Anything, uint(7), 10).Return(history, nil).Once()

	// Act
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/rooms/7/messages?limit=10", nil)
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Messages []domain.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "first", resp.Messages[0].Body)
	assert.Equal(t, "second", resp.Messages[1].Body)
	messageRepo.AssertExpectations(t)
}

func TestChatHandler_ListMessages_RoomNotFound(t *testing.T) {
	// Arrange
	router, bookRepo, _ := setupChatRouter(t, 0, "")
	bookRepo.On("Exists", mock.Anything, uint(999)).Return(false, nil).Once()

	// Act
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/rooms/999/messages", nil)
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatHandler_ListMessages_InvalidRoomID(t *testing.T) {
	// Arrange
	router, _, _ := setupChatRouter(t, 0, "")

	// Act
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/rooms/abc/messages", nil)
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_PostMessage_Success(t *testing.T) {
	// Arrange
	router, bookRepo, messageRepo := setupChatRouter(t, 42, "alice")
	bookRepo.On("Exists", mock.Anything, uint(7)).Return(true, nil).Once()
	messageRepo.On("Append", mock.Anything, mock.MatchedBy(func(m *domain.ChatMessage) bool {
		// 身份来自上下文 (token)，不是请求体
		return m.AuthorID == 42 && m.AuthorName == "alice" && m.Body == "hello"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.ChatMessage).ID = 101
	}).Return(nil).Once()

	// Act
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/rooms/7/messages", strings.NewReader(`{"body":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	// Assert: 返回带服务端分配 ID 的消息
	assert.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Message domain.ChatMessage `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint(101), resp.Message.ID)
	messageRepo.AssertExpectations(t)
}

func TestChatHandler_PostMessage_IgnoresClientClaimedIdentity(t *testing.T) {
	// Arrange: 请求体里自报的 author_id 字段被忽略
	router, bookRepo, messageRepo := setupChatRouter(t, 42, "alice")
	bookRepo.On("Exists", mock.Anything, uint(7)).Return(true, nil).Once()
	messageRepo.On("Append", mock.Anything, mock.MatchedBy(func(m *domain.ChatMessage) bool {
		return m.AuthorID == 42 && m.AuthorName == "alice"
	})).Return(nil).Once()

	// Act
	w := httptest.NewRecorder()
	body := `{"body":"hello","author_id":1,"author_name":"mallory"}`
	req, _ := http.NewRequest(http.MethodPost, "/api/rooms/7/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusCreated, w.Code)
	messageRepo.AssertExpectations(t)
}

func TestChatHandler_PostMessage_MissingBody(t *testing.T) {
	// Arrange
	router, _, messageRepo := setupChatRouter(t, 42, "alice")

	// Act
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/rooms/7/messages", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusBadRequest, w.Code)
	messageRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestChatHandler_PostMessage_Unauthenticated(t *testing.T) {
	// Arrange: 上下文中没有身份 (中间件未放行)
	router, _, messageRepo := setupChatRouter(t, 0, "")

	// Act
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/rooms/7/messages", strings.NewReader(`{"body":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	messageRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestChatHandler_PostMessage_RoomNotFound(t *testing.T) {
	// Arrange
	router, bookRepo, messageRepo := setupChatRouter(t, 42, "alice")
	bookRepo.On("Exists", mock.Anything, uint(999)).Return(false, nil).Once()

	// Act
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/rooms/999/messages", strings.NewReader(`{"body":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusNotFound, w.Code)
	messageRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestChatHandler_ReportMessage_Success(t *testing.T) {
	// Arrange
	router, _, messageRepo := setupChatRouter(t, 42, "alice")
	messageRepo.On("FindByID", mock.Anything, uint(101)).Return(&domain.ChatMessage{ID: 101}, nil).Once()
	messageRepo.On("SaveReport", mock.Anything, mock.MatchedBy(func(r *domain.MessageReport) bool {
		return r.MessageID == 101 && r.ReporterID == 42 && r.Reason == "spam"
	})).Return(nil).Once()

	// Act
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/messages/101/report", strings.NewReader(`{"reason":"spam"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	messageRepo.AssertExpectations(t)
}

func TestChatHandler_ReportMessage_NotFound(t *testing.T) {
	// Arrange
	router, _, messageRepo := setupChatRouter(t, 42, "alice")
	messageRepo.On("FindByID", mock.Anything, uint(999)).Return(nil, repository.ErrMessageNotFound).Once()

	// Act
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/messages/999/report", strings.NewReader(`{"reason":"spam"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusNotFound, w.Code)
	messageRepo.AssertNotCalled(t, "SaveReport", mock.Anything, mock.Anything)
}
