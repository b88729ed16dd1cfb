package repository

import (
	"context"
	"time"

	"book-chat/internal/domain"
)

// BookRepository 定义了书籍 (即房间实体) 数据的存储和检索操作。
type BookRepository interface {
	// FindByID 根据书籍 ID 查找书籍。
	// 如果书籍不存在，返回 ErrBookNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Book, error)

	// Exists 检查书籍 ID 是否存在。
	// 聊天路径上只需要确认房间实体存在，不需要完整的书籍信息。
	Exists(ctx context.Context, id uint) (bool, error)

	// FindAll 返回已登记的书籍列表，按最后活跃时间降序。
	FindAll(ctx context.Context, limit int) ([]domain.Book, error)

	// Save 保存书籍信息。
	// 如果违反唯一约束 (catalog_id 已登记)，返回 ErrDuplicateEntry。
	Save(ctx context.Context, book *domain.Book) error

	// TouchActivity 更新书籍的最后活跃时间。
	// 由后台任务调用，不在消息发送的热路径上。
	TouchActivity(ctx context.Context, id uint, at time.Time) error
}
