// Package domain 定义了应用程序中使用的数据结构 (数据库模型和内存模型)。
package domain

import "time"

// User 表示应用程序中的用户。
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"` // 用户唯一标识符 (主键)
	Username    string    `gorm:"type:varchar(191);uniqueIndex:idx_username;not null" json:"username"`
	Password    string    `gorm:"type:text;not null" json:"-"` // 存储的是哈希后的密码，不能为空
	DisplayName string    `gorm:"type:varchar(191);not null" json:"display_name"` // 聊天中展示的昵称
	Email       string    `gorm:"type:varchar(191);uniqueIndex:idx_email" json:"email,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"` // 用户记录创建时间 (GORM 自动填充)
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"-"`          // 用户记录最后更新时间 (GORM 自动填充)
}
