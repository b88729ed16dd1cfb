package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"book-chat/internal/domain"
	"book-chat/internal/service"

	"github.com/sirupsen/logrus"
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type    string // "register", "unregister", "frame", "broadcast"
	Client  *Client
	Frame   ClientFrame        // 仅用于 frame
	Message domain.ChatMessage // 仅用于 broadcast
	Ack     chan struct{}      // 非 nil 时在处理完成后关闭，供调用方等待
}

// Hub 是聊天网关的控制组件：持有房间注册表和全部在线会话，
// 实现 join/send/leave/disconnect 的协议状态机，并做广播扇出。
//
// 调度模型：Run 是单线程事件循环。join/leave/disconnect 这些
// 会改动注册表的转换在循环内同步处理 (包括 join 时等待的
// 存储调用)。send 在会话自己的读 goroutine 上同步执行：
// 同一会话的帧严格按到达顺序逐个处理完，不同会话的存储调用
// 可以交错 —— 房间内消息的顺序保证是存储到达顺序。
// 消息广播同样经过事件循环，与 join 串行：加入过程中发布的
// 消息要么已在加入者拿到的历史里，要么在加入完成后照常投递。
type Hub struct {
	messageChan chan HubMessage
	done        chan struct{} // 关闭即通知循环退出，入队随之变成空操作

	registry *Registry

	// 全部在线会话 (含未加入任何房间的)，供空闲清理遍历
	sessionsMu sync.Mutex
	sessions   map[string]*Client

	chatService *service.ChatService

	stopOnce sync.Once
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(chatService *service.ChatService) *Hub {
	if chatService == nil {
		panic("ChatService cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		done:        make(chan struct{}),
		registry:    NewRegistry(),
		sessions:    make(map[string]*Client),
		chatService: chatService,
	}
}

// Registry 暴露房间注册表 (只读用途，例如测试和指标)。
func (h *Hub) Registry() *Registry { return h.registry }

// Run 启动 Hub 的主事件处理循环。
// 它应该在一个单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for {
		select {
		case <-h.done:
			log.Info("Hub is shutting down...")
			return
		case msg := <-h.messageChan:
			switch msg.Type {
			case "register":
				h.registerSession(msg.Client)
			case "unregister":
				h.unregisterSession(msg.Client)
			case "frame":
				// 只有 join 经过循环；send 由会话的读 goroutine 直接处理
				if msg.Frame.Type == FrameJoinRoom {
					h.handleJoin(msg.Client, msg.Frame.RoomID)
				} else {
					log.Warnf("Hub: received unexpected frame type: %s", msg.Frame.Type)
				}
			case "broadcast":
				h.broadcastEvent(msg.Message.BookID, "", MessageEvent{Type: EventMessage, Message: msg.Message})
			default:
				log.Warnf("Hub: received unknown message type: %s", msg.Type)
			}
			if msg.Ack != nil {
				close(msg.Ack)
			}
		}
	}
}

// Stop 通知事件循环退出。消息通道不关闭，仍在运行的 ReadPump
// 之后的入队安全地变成空操作，不会 panic。
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register 把刚升级完成的会话排队注册到 Hub。
func (h *Hub) Register(client *Client) bool {
	return h.queue(HubMessage{Type: "register", Client: client})
}

// dispatchJoin 把 join 帧送入事件循环并等待其处理完成。
// 返回时该会话的房间转换已经生效；调用方 (ReadPump) 因此在
// 上一帧处理完之前不会读下一帧。Hub 已停止时直接返回。
func (h *Hub) dispatchJoin(client *Client, frame ClientFrame) {
	ack := make(chan struct{})
	select {
	case h.messageChan <- HubMessage{Type: "frame", Client: client, Frame: frame, Ack: ack}:
	case <-h.done:
		return
	}
	select {
	case <-ack:
	case <-h.done:
	}
}

// queueUnregister 阻塞式入队注销请求；Hub 已停止或超时则放弃。
func (h *Hub) queueUnregister(client *Client) {
	select {
	case h.messageChan <- HubMessage{Type: "unregister", Client: client}:
	case <-h.done:
	case <-time.After(1 * time.Second):
		logrus.WithField("session_id", client.SessionID()).Warn("Timeout sending unregister message to Hub channel")
	}
}

// queue 非阻塞入队。Hub 已停止或队列已满时返回 false，消息被丢弃。
func (h *Hub) queue(msg HubMessage) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.messageChan <- msg:
		return true
	case <-h.done:
		return false
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

// --- 事件循环内部处理 ---

// registerSession 处理会话注册：连接建立即进入 Connected 状态，
// 此时尚未加入任何房间。
func (h *Hub) registerSession(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to register a nil session")
		return
	}
	h.sessionsMu.Lock()
	h.sessions[client.SessionID()] = client
	h.sessionsMu.Unlock()

	logrus.WithFields(logrus.Fields{
		"session_id": client.SessionID(),
		"user_id":    client.UserID(),
	}).Info("Session registered to Hub")
}

// unregisterSession 处理断开：尽力把会话从房间移除并通知余下
// 的参与者，然后丢弃会话对象。重复注销是无害的。
func (h *Hub) unregisterSession(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to unregister a nil session")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"session_id": client.SessionID(),
		"user_id":    client.UserID(),
	})

	h.sessionsMu.Lock()
	_, known := h.sessions[client.SessionID()]
	delete(h.sessions, client.SessionID())
	h.sessionsMu.Unlock()
	if !known {
		logCtx.Debug("Session already unregistered")
		return
	}

	if roomID := client.CurrentRoom(); roomID != 0 {
		h.leaveRoom(client, roomID)
		client.setRoom(0)
	}

	client.closeSend()
	logCtx.Info("Session unregistered from Hub")
}

// handleJoin 实现 Connected→JoinedRoom 以及 JoinedRoom→JoinedRoom
// (换房，隐式离开旧房间) 的转换。
func (h *Hub) handleJoin(client *Client, roomID uint) {
	logCtx := logrus.WithFields(logrus.Fields{
		"session_id": client.SessionID(),
		"user_id":    client.UserID(),
		"room_id":    roomID,
	})

	// 1. 身份必须已绑定 (升级时就要求认证，这里是防御性检查)
	if client.UserID() == 0 {
		client.sendEvent(newErrorEvent(service.ErrUnauthorized))
		return
	}

	// 2. 先校验房间并加载历史。失败时注册表不做任何改动 ——
	//    不存在部分加入的状态。
	history, err := h.chatService.Recent(context.Background(), roomID, service.DefaultHistoryLimit)
	if err != nil {
		logCtx.WithError(err).Warn("Join rejected")
		client.sendEvent(newErrorEvent(err))
		return
	}

	// 3. 换房时隐式离开旧房间并通知其余参与者
	previous := client.CurrentRoom()
	sameRoom := previous == roomID
	if previous != 0 && !sameRoom {
		h.leaveRoom(client, previous)
	}

	// 4. 注册到新房间，拿到插入之后的参与者名单
	participants := h.registry.Join(roomID, client)
	client.setRoom(roomID)

	// 5. 历史 + 名单只回给加入者本人。消息广播与本转换在同一
	//    循环里串行，加入期间发布的消息不会两头落空；贴着
	//    加入瞬间的消息可能同时出现在历史和随后的 message
	//    事件里，客户端按消息 ID 去重。
	client.sendEvent(RoomJoinedEvent{
		Type:         EventRoomJoined,
		RoomID:       roomID,
		History:      history,
		Participants: participants,
	})

	// 6. participant_joined 只广播给其他人，避免加入者收到自我回声
	if !sameRoom {
		h.broadcastEvent(roomID, client.SessionID(), ParticipantEvent{
			Type:        EventParticipantJoined,
			RoomID:      roomID,
			Participant: client.Participant(),
		})
	}

	logCtx.WithField("participants", len(participants)).Info("Session joined room")
}

// leaveRoom 把会话从房间移除，并向余下的参与者广播 participant_left。
// 投递失败 (对端已断开) 被吞掉，不重试。
func (h *Hub) leaveRoom(client *Client, roomID uint) {
	removed := h.registry.Leave(roomID, client.SessionID())
	if !removed {
		return
	}
	h.broadcastEvent(roomID, client.SessionID(), ParticipantEvent{
		Type:        EventParticipantLeft,
		RoomID:      roomID,
		Participant: client.Participant(),
	})
}

// handleSend 实现 JoinedRoom --send--> JoinedRoom。
// 校验 → ChatService.Publish (持久化 + 统一广播)。在会话的读
// goroutine 上同步执行：Publish 的存储调用完成前不会处理该
// 会话的下一帧。错误只回给发送者，其余参与者不会感知失败的发送。
func (h *Hub) handleSend(client *Client, frame ClientFrame) {
	roomID := client.CurrentRoom()
	if roomID == 0 {
		client.sendEvent(ErrorEvent{Type: EventError, Code: codeValidation, Message: "join a room before sending"})
		return
	}
	// 帧里带了房间号时必须与当前房间一致
	if frame.RoomID != 0 && frame.RoomID != roomID {
		client.sendEvent(ErrorEvent{Type: EventError, Code: codeValidation, Message: "not joined to that room"})
		return
	}

	// 广播在 Publish 内部通过 BroadcastMessage 发生，
	// WebSocket 与 HTTP 回退路径共用同一条发布路径。
	_, err := h.chatService.Publish(context.Background(), roomID, client.UserID(), client.DisplayName(), frame.Body)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": client.SessionID(),
			"room_id":    roomID,
		}).Warn("Send rejected")
		client.sendEvent(newErrorEvent(err))
	}
}

// --- 广播 ---

// BroadcastMessage 实现 service.Broadcaster：把已持久化的消息
// 交给事件循环做扇出。经过循环意味着广播与 join 转换串行，
// 正在加入的会话不会漏掉这条消息。Hub 已停止或过载时丢弃
// (投递是尽力而为的，消息本身已持久化)。
func (h *Hub) BroadcastMessage(msg domain.ChatMessage) {
	if !h.queue(HubMessage{Type: "broadcast", Message: msg}) {
		logrus.WithFields(logrus.Fields{
			"room_id":    msg.BookID,
			"message_id": msg.ID,
		}).Warn("Hub stopped or overloaded, broadcast dropped")
	}
}

// broadcastEvent 把事件发给房间内的会话；excludeSession 非空时
// 跳过该会话。使用非阻塞发送，单个慢客户端不会阻塞整次广播。
func (h *Hub) broadcastEvent(roomID uint, excludeSession string, event interface{}) {
	clients := h.registry.Snapshot(roomID)
	if len(clients) == 0 {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to marshal broadcast event")
		return
	}
	for _, c := range clients {
		if excludeSession != "" && c.SessionID() == excludeSession {
			continue
		}
		c.enqueue(payload)
	}
}

// --- 空闲清理 ---

// SweepIdle 关闭空闲超过 maxIdle 的会话连接并返回数量。
// 关闭连接会让 readPump 退出，走正常的注销路径，
// 所以余下的参与者照常收到 participant_left。
func (h *Hub) SweepIdle(maxIdle time.Duration) int {
	now := time.Now()

	h.sessionsMu.Lock()
	var idle []*Client
	for _, c := range h.sessions {
		if c.IdleFor(now) > maxIdle {
			idle = append(idle, c)
		}
	}
	h.sessionsMu.Unlock()

	for _, c := range idle {
		logrus.WithFields(logrus.Fields{
			"session_id": c.SessionID(),
			"user_id":    c.UserID(),
		}).Info("Closing idle session")
		c.CloseConn()
	}
	return len(idle)
}

// SessionCount 返回当前在线会话数。
func (h *Hub) SessionCount() int {
	h.sessionsMu.Lock()
	defer h.sessionsMu.Unlock()
	return len(h.sessions)
}
