package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"book-chat/internal/domain"
	"book-chat/internal/repository"
	"book-chat/internal/tasks"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// DefaultHistoryLimit 是加入房间时回放的历史消息条数上限。
const DefaultHistoryLimit = 50

// MaxBodyLength 是单条消息正文的最大长度 (按 rune 计)。
const MaxBodyLength = 2000

// Broadcaster 把一条已持久化的消息推送给房间内的所有在线会话。
// 由 hub 实现；投递是尽力而为的，慢客户端可能被跳过。
type Broadcaster interface {
	BroadcastMessage(msg domain.ChatMessage)
}

// TaskEnqueuer 抽象 asynq.Client，便于在测试中替换。
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ChatService 负责聊天消息的发布、查询和举报。
// Publish 是唯一的发布路径：WebSocket 的 send_message 和
// HTTP 回退路径的 POST 都经过这里，先持久化、再统一广播，
// 避免两条入口写同一个存储却只有一条会广播的不一致。
type ChatService struct {
	bookRepo    repository.BookRepository
	messageRepo repository.MessageRepository
	enqueuer    TaskEnqueuer
	broadcaster Broadcaster // 由 bootstrap 在 Hub 创建后注入
}

// NewChatService 创建 ChatService 实例。
func NewChatService(bookRepo repository.BookRepository, messageRepo repository.MessageRepository, enqueuer TaskEnqueuer) *ChatService {
	if bookRepo == nil || messageRepo == nil {
		panic("All repositories must be non-nil for ChatService")
	}
	if enqueuer == nil {
		panic("TaskEnqueuer cannot be nil for ChatService")
	}
	return &ChatService{
		bookRepo:    bookRepo,
		messageRepo: messageRepo,
		enqueuer:    enqueuer,
	}
}

// SetBroadcaster 注入广播实现。Hub 依赖 ChatService，
// 所以广播方向的依赖只能在两者都构造完成后接上。
func (s *ChatService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Publish 校验、持久化并广播一条消息。
// 返回带服务端分配 ID/时间戳的消息；任何错误只影响发送者，
// 失败时不广播、注册表状态也不变。
func (s *ChatService) Publish(ctx context.Context, bookID, authorID uint, authorName, body string) (*domain.ChatMessage, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": bookID, "author_id": authorID})

	// 1. 身份必须已绑定 (聊天不同于浏览，要求登录)
	if authorID == 0 || authorName == "" {
		logCtx.Warn("Publish rejected: no bound identity")
		return nil, ErrUnauthorized
	}

	// 2. 校验正文
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}
	if len([]rune(body)) > MaxBodyLength {
		return nil, ErrInvalidInput
	}

	// 3. 校验房间实体存在
	exists, err := s.bookRepo.Exists(ctx, bookID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check book existence")
		return nil, ErrInternalServer
	}
	if !exists {
		return nil, ErrBookNotFound
	}

	// 4. 持久化 (ID/CreatedAt 由存储分配；房间内顺序即存储到达顺序)
	msg := &domain.ChatMessage{
		BookID:     bookID,
		AuthorID:   authorID,
		AuthorName: authorName,
		Body:       body,
	}
	if err := s.messageRepo.Append(ctx, msg); err != nil {
		logCtx.WithError(err).Error("Failed to append message to store")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("message_id", msg.ID)

	// 5. 房间活跃时间的更新走后台任务，不占用发送热路径
	if payload, perr := tasks.NewBookTouchActivityTask(bookID, msg.CreatedAt); perr == nil {
		if _, qerr := s.enqueuer.Enqueue(asynq.NewTask(tasks.TypeBookTouchActivity, payload), asynq.Queue("low")); qerr != nil {
			// 活跃时间只是展示用途，入队失败不影响消息本身
			logCtx.WithError(qerr).Warn("Failed to enqueue touch activity task")
		}
	}

	// 6. 统一广播 (包含发送者，发送者以服务端权威字段确认自己的消息)
	if s.broadcaster != nil {
		s.broadcaster.BroadcastMessage(*msg)
	}

	logCtx.Debug("Message published")
	return msg, nil
}

// Recent 返回指定房间最近的至多 limit 条消息，升序。
func (s *ChatService) Recent(ctx context.Context, bookID uint, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}

	exists, err := s.bookRepo.Exists(ctx, bookID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", bookID).Error("Failed to check book existence")
		return nil, ErrInternalServer
	}
	if !exists {
		return nil, ErrBookNotFound
	}

	messages, err := s.messageRepo.Recent(ctx, bookID, limit)
	if err != nil {
		logrus.WithError(err).WithField("room_id", bookID).Error("Failed to load recent messages")
		return nil, ErrInternalServer
	}
	return messages, nil
}

// Report 记录一条针对消息的举报。
// 只是给人工审核留信号，不改变消息的可见性。
func (s *ChatService) Report(ctx context.Context, messageID, reporterID uint, reason string) error {
	logCtx := logrus.WithFields(logrus.Fields{"message_id": messageID, "reporter_id": reporterID})

	// 1. 被举报的消息必须存在
	if _, err := s.messageRepo.FindByID(ctx, messageID); err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return ErrMessageNotFound
		}
		logCtx.WithError(err).Error("Failed to look up reported message")
		return ErrInternalServer
	}

	// 2. 记录举报
	report := &domain.MessageReport{
		MessageID:  messageID,
		ReporterID: reporterID,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.messageRepo.SaveReport(ctx, report); err != nil {
		logCtx.WithError(err).Error("Failed to save message report")
		return ErrInternalServer
	}

	logCtx.Info("Message report recorded")
	return nil
}
