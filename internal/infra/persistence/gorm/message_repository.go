package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"book-chat/internal/domain"
	"book-chat/internal/repository"
)

// GormMessageRepository 是 MessageRepository 接口的 GORM 实现
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建 GormMessageRepository 实例
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMessageRepository")
	}
	return &GormMessageRepository{db: db}
}

// Append 实现持久化一条新消息。
// 自增主键和 autoCreateTime 保证了房间内消息按 (created_at, id) 的
// 到达顺序排列；写入后 msg 中携带服务端分配的 ID 和时间戳。
func (r *GormMessageRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("gorm: append message (book: %d, author: %d): %w", msg.BookID, msg.AuthorID, err)
	}
	return nil
}

// Recent 实现返回最近 limit 条消息，升序 (最旧的在前)。
// 先按 (created_at, id) 降序取 limit 条，再在内存中反转，
// 避免对整张表做升序 OFFSET 扫描。
func (r *GormMessageRepository) Recent(ctx context.Context, bookID uint, limit int) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	err := r.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: recent messages for book %d: %w", bookID, err)
	}
	// 反转为升序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// FindByID 实现根据消息 ID 查找消息
func (r *GormMessageRepository) FindByID(ctx context.Context, id uint) (*domain.ChatMessage, error) {
	var msg domain.ChatMessage
	err := r.db.WithContext(ctx).First(&msg, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrMessageNotFound
		}
		return nil, fmt.Errorf("gorm: find message by id %d: %w", id, err)
	}
	return &msg, nil
}

// SaveReport 实现记录一条举报
func (r *GormMessageRepository) SaveReport(ctx context.Context, report *domain.MessageReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("gorm: save report (message: %d, reporter: %d): %w", report.MessageID, report.ReporterID, err)
	}
	return nil
}
