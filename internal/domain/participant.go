package domain

// Participant 表示当前加入某个房间的一个 (用户身份, 连接会话) 对。
// 纯内存结构，不做持久化；随会话离开房间而消失。
type Participant struct {
	SessionID   string `json:"session_id"` // 连接会话的唯一标识符
	UserID      uint   `json:"user_id"`
	DisplayName string `json:"display_name"`
}
