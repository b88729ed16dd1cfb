package tasks

import (
	"encoding/json"
	"time"
)

// 定义任务类型常量
const (
	TypeBookTouchActivity = "book:touch_activity" // 更新书籍最后活跃时间
	TypePresenceSweep     = "presence:sweep"      // 周期性清理空闲会话
)

// BookTouchActivityPayload 定义了活跃时间更新任务的数据结构
type BookTouchActivityPayload struct {
	BookID uint      `json:"book_id"`
	At     time.Time `json:"at"`
}

// NewBookTouchActivityTask 创建活跃时间更新任务的 payload
func NewBookTouchActivityTask(bookID uint, at time.Time) ([]byte, error) {
	payload := BookTouchActivityPayload{
		BookID: bookID,
		At:     at,
	}
	return json.Marshal(payload)
}

// NewPresenceSweepTask 创建空闲会话清理任务的 payload。
// 该任务本身不携带数据，空闲阈值由 Worker 侧配置决定。
func NewPresenceSweepTask() ([]byte, error) {
	return json.Marshal(struct{}{})
}
