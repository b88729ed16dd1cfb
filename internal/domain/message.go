package domain

import "time"

// ChatMessage 表示房间内一条不可变的聊天消息。
// 同一房间内的消息按 (CreatedAt, ID) 升序全序排列；
// ID 和 CreatedAt 均由服务端在持久化时分配，客户端提供的字段不被信任。
type ChatMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`                           // 消息唯一标识符 (主键, 自增)
	BookID     uint      `gorm:"index:idx_book_created;not null" json:"room_id"` // 消息所属的房间/书籍 ID (外键关联 Book.ID)
	AuthorID   uint      `gorm:"index;not null" json:"author_id"`                // 发送消息的用户 ID
	AuthorName string    `gorm:"type:varchar(191);not null" json:"author_name"`  // 发送时的昵称快照，消息不随昵称变更而改动
	Body       string    `gorm:"type:text;not null" json:"body"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index:idx_book_created" json:"created_at"` // 服务端分配的创建时间
}

// MessageReport 表示针对某条消息的举报记录。
// 举报只是给人工审核留下的信号，不会改变消息本身的可见性。
type MessageReport struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MessageID  uint      `gorm:"index;not null" json:"message_id"` // 被举报的消息 ID (外键关联 ChatMessage.ID)
	ReporterID uint      `gorm:"index;not null" json:"reporter_id"`
	Reason     string    `gorm:"type:text" json:"reason"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
