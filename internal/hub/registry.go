package hub

import (
	"sync"

	"book-chat/internal/domain"

	"github.com/samber/lo"
)

// Registry 是显式的房间注册表：从房间 ID (书籍 ID) 到当前在线
// 会话集合的内存映射。房间条目在第一次加入时惰性创建，
// 最后一个参与者离开时删除。不做任何持久化，完全可以由
// 连接状态重建。
//
// 同一房间的 Join/Leave 互斥串行，避免参与者集合丢失更新；
// 读取 (Snapshot/Participants) 是快照一致的。
type Registry struct {
	mu    sync.RWMutex
	rooms map[uint]map[string]*Client // map[roomID]map[sessionID]*Client
}

// NewRegistry 创建空的 Registry。
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[uint]map[string]*Client),
	}
}

// Join 把会话注册到指定房间，房间不存在则创建。
// 同一会话重复加入会覆盖旧条目，参与者集合里不会出现重复会话。
// 返回插入之后的在线参与者名单。
func (r *Registry) Join(roomID uint, client *Client) []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[string]*Client)
		r.rooms[roomID] = room
	}
	room[client.SessionID()] = client

	return lo.MapToSlice(room, func(_ string, c *Client) domain.Participant {
		return c.Participant()
	})
}

// Leave 把指定会话从房间移除；房间因此变空时删除房间条目。
// 返回是否真的发生了移除 (未找到返回 false，幂等而非错误)。
func (r *Registry) Leave(roomID uint, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := room[sessionID]; !ok {
		return false
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(r.rooms, roomID)
	}
	return true
}

// Snapshot 返回房间当前在线会话的只读快照，用于广播扇出。
func (r *Registry) Snapshot(roomID uint) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return lo.Values(room)
}

// Participants 返回房间当前参与者名单的快照。
func (r *Registry) Participants(roomID uint) []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return lo.MapToSlice(room, func(_ string, c *Client) domain.Participant {
		return c.Participant()
	})
}

// Count 返回房间当前的参与者数量 (房间不存在返回 0)。
func (r *Registry) Count(roomID uint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// RoomCount 返回当前存在的房间数量。
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
