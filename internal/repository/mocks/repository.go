// Package mocks 提供 repository 各接口的 testify mock 实现，供单元测试使用。
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"book-chat/internal/domain"
)

// MockUserRepository 是 UserRepository 的 mock 实现。
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) Save(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockBookRepository 是 BookRepository 的 mock 实现。
type MockBookRepository struct {
	mock.Mock
}

func (m *MockBookRepository) FindByID(ctx context.Context, id uint) (*domain.Book, error) {
	args := m.Called(ctx, id)
	book, _ := args.Get(0).(*domain.Book)
	return book, args.Error(1)
}

func (m *MockBookRepository) Exists(ctx context.Context, id uint) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookRepository) FindAll(ctx context.Context, limit int) ([]domain.Book, error) {
	args := m.Called(ctx, limit)
	books, _ := args.Get(0).([]domain.Book)
	return books, args.Error(1)
}

func (m *MockBookRepository) Save(ctx context.Context, book *domain.Book) error {
	args := m.Called(ctx, book)
	return args.Error(0)
}

func (m *MockBookRepository) TouchActivity(ctx context.Context, id uint, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// MockMessageRepository 是 MessageRepository 的 mock 实现。
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) Recent(ctx context.Context, bookID uint, limit int) ([]domain.ChatMessage, error) {
	args := m.Called(ctx, bookID, limit)
	msgs, _ := args.Get(0).([]domain.ChatMessage)
	return msgs, args.Error(1)
}

func (m *MockMessageRepository) FindByID(ctx context.Context, id uint) (*domain.ChatMessage, error) {
	args := m.Called(ctx, id)
	msg, _ := args.Get(0).(*domain.ChatMessage)
	return msg, args.Error(1)
}

func (m *MockMessageRepository) SaveReport(ctx context.Context, report *domain.MessageReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}
