package hub

import (
	"errors"

	"book-chat/internal/domain"
	"book-chat/internal/service"
)

// 客户端 → 服务端的帧类型
const (
	FrameJoinRoom    = "join_room"
	FrameSendMessage = "send_message"
)

// 服务端 → 客户端的事件类型
const (
	EventRoomJoined        = "room_joined"
	EventParticipantJoined = "participant_joined"
	EventMessage           = "message"
	EventParticipantLeft   = "participant_left"
	EventError             = "error"
)

// ClientFrame 是客户端通过 WebSocket 发送的统一帧结构。
type ClientFrame struct {
	Type   string `json:"type"`
	RoomID uint   `json:"room_id,omitempty"`
	Body   string `json:"body,omitempty"`
}

// RoomJoinedEvent 只发给加入者本人：历史消息 + 加入后的在线名单。
type RoomJoinedEvent struct {
	Type         string               `json:"type"`
	RoomID       uint                 `json:"room_id"`
	History      []domain.ChatMessage `json:"history"`
	Participants []domain.Participant `json:"participants"`
}

// ParticipantEvent 广播给房间内其他人：有人加入或离开。
type ParticipantEvent struct {
	Type        string             `json:"type"`
	RoomID      uint               `json:"room_id"`
	Participant domain.Participant `json:"participant"`
}

// MessageEvent 广播给房间内所有人 (含发送者)，
// 消息携带服务端分配的 ID 和时间戳。
type MessageEvent struct {
	Type    string             `json:"type"`
	Message domain.ChatMessage `json:"message"`
}

// ErrorEvent 只发给出错操作的发起者，绝不广播。
type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// 错误码，与 service 层的错误分类一一对应
const (
	codeValidation   = "validation_error"
	codeNotFound     = "not_found"
	codeUnauthorized = "unauthorized"
	codeStorage      = "storage_error"
	codeBadRequest   = "bad_request"
	codeRateLimited  = "rate_limited"
)

// newErrorEvent 把 service 层错误映射为发给客户端的 error 事件。
func newErrorEvent(err error) ErrorEvent {
	code := codeStorage
	switch {
	case errors.Is(err, service.ErrEmptyBody), errors.Is(err, service.ErrInvalidInput):
		code = codeValidation
	case errors.Is(err, service.ErrBookNotFound), errors.Is(err, service.ErrMessageNotFound):
		code = codeNotFound
	case errors.Is(err, service.ErrUnauthorized):
		code = codeUnauthorized
	}
	return ErrorEvent{Type: EventError, Code: code, Message: err.Error()}
}
