package service

import (
	"context"
	"errors"
	"strings"

	"book-chat/internal/domain"
	"book-chat/internal/infra/catalog"
	"book-chat/internal/repository"

	"github.com/sirupsen/logrus"
)

// BookService 负责书籍 (房间实体) 的登记、查询和外部目录搜索代理。
type BookService struct {
	bookRepo      repository.BookRepository
	catalogClient *catalog.Client // 外部目录搜索协作方，可为 nil (禁用搜索)
}

// NewBookService 创建 BookService 实例。
func NewBookService(bookRepo repository.BookRepository, catalogClient *catalog.Client) *BookService {
	if bookRepo == nil {
		panic("BookRepository cannot be nil for BookService")
	}
	return &BookService{
		bookRepo:      bookRepo,
		catalogClient: catalogClient,
	}
}

// RegisterBook 登记一本书，使其拥有聊天房间。
func (s *BookService) RegisterBook(ctx context.Context, creatorID uint, title, author, catalogID string) (*domain.Book, error) {
	logCtx := logrus.WithFields(logrus.Fields{"creator_id": creatorID, "title": title})

	if strings.TrimSpace(title) == "" {
		return nil, ErrInvalidInput
	}

	book := &domain.Book{
		Title:     title,
		Author:    author,
		CatalogID: catalogID,
		CreatorID: creatorID,
	}
	if err := s.bookRepo.Save(ctx, book); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Warn("Book already registered for this catalog id")
			return nil, ErrInvalidInput
		}
		logCtx.WithError(err).Error("Failed to save new book to database")
		return nil, ErrInternalServer
	}

	logCtx.WithField("book_id", book.ID).Info("Book registered successfully")
	return book, nil
}

// FindBookByID 查找一本书，供 HTTP Handler 使用。
func (s *BookService) FindBookByID(ctx context.Context, bookID uint) (*domain.Book, error) {
	logCtx := logrus.WithField("book_id", bookID)
	book, err := s.bookRepo.FindByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrBookNotFound) {
			logCtx.Warn("FindBookByID: Book not found")
			return nil, ErrBookNotFound
		}
		logCtx.WithError(err).Error("FindBookByID: Repository error")
		return nil, ErrInternalServer
	}
	if book == nil { // 防御
		logCtx.Warn("FindBookByID: Repository returned nil book without error")
		return nil, ErrBookNotFound
	}
	return book, nil
}

// ListBooks 返回已登记的书籍列表，按最后活跃时间降序。
func (s *BookService) ListBooks(ctx context.Context, limit int) ([]domain.Book, error) {
	books, err := s.bookRepo.FindAll(ctx, limit)
	if err != nil {
		logrus.WithError(err).Error("Failed to list books")
		return nil, ErrInternalServer
	}
	return books, nil
}

// SearchCatalog 代理外部目录的搜索请求。
// 外部目录的数据不落库，只有被用户登记的书才会拥有房间。
func (s *BookService) SearchCatalog(ctx context.Context, query string) ([]catalog.Result, error) {
	if s.catalogClient == nil {
		logrus.Warn("SearchCatalog called but catalog client is not configured")
		return nil, ErrInternalServer
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidInput
	}

	results, err := s.catalogClient.Search(ctx, query)
	if err != nil {
		logrus.WithError(err).WithField("query", query).Error("Catalog search failed")
		return nil, ErrInternalServer
	}
	return results, nil
}
