package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"book-chat/internal/hub"
	"book-chat/internal/repository"
	"book-chat/internal/tasks"
)

// BookTouchActivityHandler 处理书籍活跃时间更新任务。
// 消息发布的热路径只入队，落库在这里完成。
type BookTouchActivityHandler struct {
	bookRepo repository.BookRepository
}

// NewBookTouchActivityHandler 创建 Handler 实例
func NewBookTouchActivityHandler(bookRepo repository.BookRepository) *BookTouchActivityHandler {
	if bookRepo == nil {
		panic("BookRepository cannot be nil for BookTouchActivityHandler")
	}
	return &BookTouchActivityHandler{bookRepo: bookRepo}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *BookTouchActivityHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.BookTouchActivityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// 载荷坏了重试也没用，直接丢弃
		return fmt.Errorf("unmarshal touch activity payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.bookRepo.TouchActivity(ctx, payload.BookID, payload.At); err != nil {
		logrus.WithError(err).WithField("book_id", payload.BookID).Warn("Failed to touch book activity")
		return err // 交给 asynq 重试
	}

	logrus.WithField("book_id", payload.BookID).Debug("Book activity touched")
	return nil
}

// PresenceSweepHandler 处理周期性的空闲会话清理任务。
type PresenceSweepHandler struct {
	hub     *hub.Hub
	maxIdle time.Duration
}

// NewPresenceSweepHandler 创建 Handler 实例
func NewPresenceSweepHandler(h *hub.Hub, maxIdle time.Duration) *PresenceSweepHandler {
	if h == nil {
		panic("Hub cannot be nil for PresenceSweepHandler")
	}
	if maxIdle <= 0 {
		maxIdle = 30 * time.Minute
	}
	return &PresenceSweepHandler{hub: h, maxIdle: maxIdle}
}

// ProcessTask 实现 asynq.Handler 接口。
// 被清理的会话走正常断开路径，房间内其余参与者照常收到
// participant_left 通知。
func (h *PresenceSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	closed := h.hub.SweepIdle(h.maxIdle)
	if closed > 0 {
		logrus.WithField("closed", closed).Info("Presence sweep closed idle sessions")
	}
	return nil
}
