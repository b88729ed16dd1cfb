package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"book-chat/internal/domain"
	"book-chat/internal/repository"
)

// GormBookRepository 是 BookRepository 接口的 GORM 实现
type GormBookRepository struct {
	db *gorm.DB
}

// NewGormBookRepository 创建 GormBookRepository 实例
func NewGormBookRepository(db *gorm.DB) *GormBookRepository {
	if db == nil {
		panic("database connection cannot be nil for GormBookRepository")
	}
	return &GormBookRepository{db: db}
}

// FindByID 实现根据书籍 ID 查找书籍
func (r *GormBookRepository) FindByID(ctx context.Context, id uint) (*domain.Book, error) {
	var book domain.Book
	err := r.db.WithContext(ctx).First(&book, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrBookNotFound
		}
		return nil, fmt.Errorf("gorm: find book by id %d: %w", id, err)
	}
	return &book, nil
}

// Exists 实现检查书籍 ID 是否存在
func (r *GormBookRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	// 使用 Count() 优化查询，只查询数量
	err := r.db.WithContext(ctx).Model(&domain.Book{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count books by id %d: %w", id, err)
	}
	return count > 0, nil
}

// FindAll 实现按最后活跃时间降序返回书籍列表
func (r *GormBookRepository) FindAll(ctx context.Context, limit int) ([]domain.Book, error) {
	var books []domain.Book
	q := r.db.WithContext(ctx).Order("last_active DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&books).Error; err != nil {
		return nil, fmt.Errorf("gorm: find all books: %w", err)
	}
	return books, nil
}

// Save 实现保存书籍信息（创建或更新）
func (r *GormBookRepository) Save(ctx context.Context, book *domain.Book) error {
	err := r.db.WithContext(ctx).Save(book).Error
	if err != nil {
		// 唯一约束检查 (catalog_id 已登记)
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save book (id: %d, catalog_id: %s): %w", book.ID, book.CatalogID, err)
	}
	return nil
}

// TouchActivity 实现更新书籍的最后活跃时间
func (r *GormBookRepository) TouchActivity(ctx context.Context, id uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.Book{}).Where("id = ?", id).
		Update("last_active", at)
	if result.Error != nil {
		return fmt.Errorf("gorm: touch activity for book %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrBookNotFound
	}
	return nil
}
