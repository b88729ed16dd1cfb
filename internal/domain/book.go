package domain

import "time"

// Book 表示一本已登记到本地的书。每本书对应一个聊天房间，
// 房间 ID 就是 Book.ID。
type Book struct {
	ID         uint      `gorm:"primaryKey" json:"id"` // 书籍唯一标识符 (主键)，同时作为房间 ID
	Title      string    `gorm:"type:varchar(191);not null;index" json:"title"`
	Author     string    `gorm:"type:varchar(191)" json:"author"`
	CatalogID  string    `gorm:"type:varchar(191);uniqueIndex:idx_catalog_id" json:"catalog_id,omitempty"` // 外部目录中的标识符 (例如 Open Library key)
	CreatorID  uint      `gorm:"index;not null" json:"creator_id"` // 登记该书的用户 ID
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"` // 记录创建时间 (GORM 自动填充)
	LastActive time.Time `gorm:"index" json:"last_active"`         // 房间最后活跃时间，由后台任务更新
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"-"`
}
