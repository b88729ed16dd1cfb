package repository

import (
	"context"

	"book-chat/internal/domain"
)

// MessageRepository 定义了聊天消息及举报记录的存储和查询。
type MessageRepository interface {
	// Append 持久化一条新消息。ID 和 CreatedAt 由存储分配，
	// 调用方在 Append 返回后从 msg 中读取服务端权威字段。
	Append(ctx context.Context, msg *domain.ChatMessage) error

	// Recent 返回指定房间最近的至多 limit 条消息，按创建时间升序
	// (最旧的在前)。该顺序是渲染回看记录所要求的契约。
	Recent(ctx context.Context, bookID uint, limit int) ([]domain.ChatMessage, error)

	// FindByID 根据消息 ID 查找消息。
	// 如果消息不存在，返回 ErrMessageNotFound。
	FindByID(ctx context.Context, id uint) (*domain.ChatMessage, error)

	// SaveReport 记录一条举报。不校验 MessageID 的存在性，
	// 由上层在调用前通过 FindByID 校验。
	SaveReport(ctx context.Context, report *domain.MessageReport) error
}
