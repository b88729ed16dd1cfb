package mocks

import (
	"context"
	"sync"
	"time"

	"book-chat/internal/domain"
	"book-chat/internal/repository"
)

// FakeMessageRepository 是 MessageRepository 的内存实现，
// 供需要真实存储语义 (到达顺序、并发写入) 的测试使用。
// ID 按 Append 的到达顺序自增分配，与 MySQL 自增主键一致。
type FakeMessageRepository struct {
	// BeforeAppend 非 nil 时在每次 Append 进入临界区前调用，
	// 测试可借此注入人为延迟制造交错
	BeforeAppend func(msg *domain.ChatMessage)

	mu       sync.Mutex
	nextID   uint
	messages []domain.ChatMessage
	reports  []domain.MessageReport
}

// NewFakeMessageRepository 创建空的内存消息存储。
func NewFakeMessageRepository() *FakeMessageRepository {
	return &FakeMessageRepository{}
}

func (f *FakeMessageRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	if f.BeforeAppend != nil {
		f.BeforeAppend(msg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg.ID = f.nextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *FakeMessageRepository) Recent(ctx context.Context, bookID uint, limit int) ([]domain.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []domain.ChatMessage
	for _, m := range f.messages {
		if m.BookID == bookID {
			matched = append(matched, m)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	out := make([]domain.ChatMessage, len(matched))
	copy(out, matched)
	return out, nil
}

func (f *FakeMessageRepository) FindByID(ctx context.Context, id uint) (*domain.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages {
		if f.messages[i].ID == id {
			m := f.messages[i]
			return &m, nil
		}
	}
	return nil, repository.ErrMessageNotFound
}

func (f *FakeMessageRepository) SaveReport(ctx context.Context, report *domain.MessageReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, *report)
	return nil
}

// Messages 返回按存储到达顺序的全部消息快照。
func (f *FakeMessageRepository) Messages() []domain.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ChatMessage, len(f.messages))
	copy(out, f.messages)
	return out
}
