package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"book-chat/internal/domain"
	"book-chat/internal/repository"
	"book-chat/internal/repository/mocks"
	"book-chat/internal/service"
)

// noopEnqueuer 满足 service.TaskEnqueuer，丢弃所有任务。
type noopEnqueuer struct{}

func (noopEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{}, nil
}

// newTestHub 组装一个带 mock 存储的 Hub 并启动事件循环。
// 转换处理函数既直接调用 (断言状态机行为)，也经循环分发
// (消息广播走循环投递)。
func newTestHub(t *testing.T) (*Hub, *mocks.MockBookRepository, *mocks.MockMessageRepository) {
	t.Helper()
	bookRepo := new(mocks.MockBookRepository)
	messageRepo := new(mocks.MockMessageRepository)
	chatService := service.NewChatService(bookRepo, messageRepo, noopEnqueuer{})
	h := NewHub(chatService)
	chatService.SetBroadcaster(h)
	go h.Run()
	t.Cleanup(h.Stop)
	return h, bookRepo, messageRepo
}

// recvEvent 从客户端的 send 通道取出一条已序列化的事件并解码。
func recvEvent(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case payload := <-c.send:
		var event map[string]interface{}
		require.NoError(t, json.Unmarshal(payload, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// assertNoEvent 断言客户端没有待投递的事件。
func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.send:
		t.Fatalf("unexpected event delivered: %s", payload)
	default:
	}
}

func TestHub_Join_DeliversHistoryAndParticipants(t *testing.T) {
	// Arrange
	h, bookRepo, messageRepo := newTestHub(t)
	history := []domain.ChatMessage{
		{ID: 1, BookID: 7, Body: "first"},
		{ID: 2, BookID: 7, Body: "second"},
	}
	bookRepo.On("Exists", mock.Anything, uint(7)).Return(true, nil)
	messageRepo.On("Recent", mock.Anything, uint(7), service.DefaultHistoryLimit).Return(history, nil)

	alice := newTestClient(1, "alice")
	h.registerSession(alice)

	// Act
	h.handleJoin(alice, 7)

	// Assert: 加入者本人收到 room_joined，历史按升序、名单含自己
	event := recvEvent(t, alice)
	assert.Equal(t, EventRoomJoined, event["type"])
	assert.Equal(t, float64(7), event["room_id"])
	hist := event["history"].([]interface{})
	assert.Len(t, hist, 2)
	assert.Equal(t, "first", hist[0].(map[string]interface{})["body"])
	assert.Len(t, event["participants"].([]interface{}), 1)
	assert.Equal(t, uint(7), alice.CurrentRoom())
}

func TestHub_Join_NotifiesExistingParticipantsOnly(t *testing.T) {
	// Arrange
	h, bookRepo, messageRepo := newTestHub(t)
	bookRepo.On("Exists", mock.Anything, uint(7)).Return(true, nil)
	messageRepo.On("Recent", mock.Anything, uint(7), service.DefaultHistoryLimit).Return(nil, nil)

	alice := newTestClient(1, "alice")
	bob := newTestClient(2, "bob")
	h.registerSession(alice)
	h.registerSession(bob)
	h.handleJoin(alice, 7)
	recvEvent(t, alice) // 丢弃 alice 自己的 room_joined

	// Act
	h.handleJoin(bob, 7)

	// Assert: alice 收到 participant_joined，bob 收到 room_joined (无自我回声)
	aliceEvent := recvEvent(t, alice)
	assert.Equal(t, EventParticipantJoined, aliceEvent["type"])
	assert.Equal(t, "bob", aliceEvent["participant"].(map[string]interface{})["display_name"])

	bobEvent := recvEvent(t, bob)
	assert.Equal(t, EventRoomJoined, bobEvent["type"])
	assert.Len(t, bobEvent["participants"].([]interface{}), 2)
	assertNoEvent(t, bob)
}

func TestHub_Join_RoomNotFoundLeavesStateUntouched(t *testing.T) {
	// Arrange
	h, bookRepo, _ := newTestHub(t)
	bookRepo.On("Exists", mock.Anything, uint(999)).Return(false, nil)

	alice := newTestClient(1, "alice")
	h.registerSession(alice)

	// Act
	h.handleJoin(alice, 999)

	// Assert: 错误只回给发起者，注册表没有部分加入的状态
	event := recvEvent(t, alice)
	assert.Equal(t, EventError, event["type"])
	assert.Equal(t, codeNotFound, event["code"])
	assert.Equal(t, uint(0), alice.CurrentRoom())
	assert.Equal(t, 0, h.registry.RoomCount())
}

func TestHub_Join_SwitchingRoomsLeavesPrevious(t *testing.T) {
	// Arrange: alice 和 bob 在 7 号房，alice 换到 8 号房
	h, bookRepo, messageRepo := newTestHub(t)
	bookRepo.On("Exists", mock.Anything, mock.Anything).Return(true, nil)
	messageRepo.On("Recent", mock.Anything, mock.Anything, service.DefaultHistoryLimit).Return(nil, nil)

	alice := newTestClient(1, "alice")
	bob := newTestClient(2, "bob")
	h.registerSession(alice)
	h.registerSession(bob)
	h.handleJoin(alice, 7)
	h.handleJoin(bob, 7)
	recvEvent(t, alice) // room_joined
	recvEvent(t, alice) // bob 的 participant_joined
	recvEvent(t, bob)   // room_joined

	// Act
	h.handleJoin(alice, 8)

	// Assert: bob 收到 participant_left，alice 收到新房间的 room_joined
	bobEvent := recvEvent(t, bob)
	assert.Equal(t, EventParticipantLeft, bobEvent["type"])
	assert.Equal(t, float64(7), bobEvent["room_id"])

	aliceEvent := recvEvent(t, alice)
	assert.Equal(t, EventRoomJoined, aliceEvent["type"])
	assert.Equal(t, float64(8), aliceEvent["room_id"])

	assert.Equal(t, uint(8), alice.CurrentRoom())
	assert.Equal(t, 1, h.registry.Count(7))
	assert.Equal(t, 1, h.registry.Count(8))
}

func TestHub_Send_FansOutToAllParticipantsIncludingSender(t *testing.T) {
	// Arrange
	h, bookRepo, messageRepo := newTestHub(t)
	bookRepo.On("Exists", mock.Anything, uint(7)).Return(true, nil)
	messageRepo.On("Recent", mock.Anything, uint(7), service.DefaultHistoryLimit).Return(nil, nil)
	messageRepo.On("Append", mock.Anything, mock.AnythingOfType("*domain.ChatMessage")).
		Run(func(args mock.Arguments) {
			msg := args.Get(1).(*domain.ChatMessage)
			msg.ID = 101
			msg.CreatedAt = time.Now().UTC()
		}).Return(nil).Once()

	alice := newTestClient(1, "alice")
	bob := newTestClient(2, "bob")
	h.registerSession(alice)
	h.registerSession(bob)
	h.handleJoin(alice, 7)
	h.handleJoin(bob, 7)
	recvEvent(t, alice)
	recvEvent(t, alice)
	recvEvent(t, bob)

	// Act
	h.handleSend(alice, ClientFrame{Type: FrameSendMessage, Body: "hello"})

	// Assert: 双方收到同一条 message 事件，发送者也在内
	for _, c := range []*Client{alice, bob} {
		event := recvEvent(t, c)
		assert.Equal(t, EventMessage, event["type"])
		msg := event["message"].(map[string]interface{})
		assert.Equal(t, float64(101), msg["id"])
		assert.Equal(t, "hello", msg["body"])
		assert.Equal(t, "alice", msg["author_name"])
	}
	messageRepo.AssertExpectations(t)
}

func TestHub_Send_WithoutJoinedRoomIsRejected(t *testing.T) {
	// Arrange
	h, _, messageRepo := newTestHub(t)
	alice := newTestClient(1, "alice")
	h.registerSession(alice)

	// Act
	h.handleSend(alice, ClientFrame{Type: FrameSendMessage, Body: "hello"})

	// Assert
	event := recvEvent(t, alice)
	assert.Equal(t, EventError, event["type"])
	assert.Equal(t, codeValidation, event["code"])
	messageRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestHub_Send_RoomMismatchIsRejected(t *testing.T) {
	// Arrange
	h, bookRepo, messageRepo := newTestHub(t)
	bookRepo.On("Exists", mock.Anything, uint(7)).Return(true, nil)
	messageRepo.On("Recent", mock.Anything, uint(7), service.DefaultHistoryLimit).Return(nil, nil)

	alice := newTestClient(1, "alice")
	h.registerSession(alice)
	h.handleJoin(alice, 7)
	recvEvent(t, alice)

	// Act: 帧里声称的房间与当前房间不符
	h.handleSend(alice, ClientFrame{Type: FrameSendMessage, RoomID: 8, Body: "hello"})

	// Assert
	event := recvEvent(t, alice)
	assert.Equal(t, EventError, event["type"])
	assert.Equal(t, codeValidation, event["code"])
	messageRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestHub_Send_FailureOnlyVisibleToSender(t *testing.T) {
	// Arrange
	h, bookRepo, messageRepo := newTestHub(t)
	bookRepo.On("Exists", mock.Anything, uint(7)).Return(true, nil)
	messageRepo.On("Recent", mock.Anything, uint(7), service.DefaultHistoryLimit).Return(nil, nil)

	alice := newTestClient(1, "alice")
	bob := newTestClient(2, "bob")
	h.registerSession(alice)
	h.registerSession(bob)
	h.handleJoin(alice, 7)
	h.handleJoin(bob, 7)
	recvEvent(t, alice)
	recvEvent(t, alice)
	recvEvent(t, bob)

	// Act: 空正文在 service 层被拒绝
	h.handleSend(alice, ClientFrame{Type: FrameSendMessage, Body: "   "})

	// Assert: 错误只回给 alice，bob 毫无感知
	event := recvEvent(t, alice)
	assert.Equal(t, EventError, event["type"])
	assert.Equal(t, codeValidation, event["code"])
	assertNoEvent(t, bob)
}

func TestHub_Unregister_LeavesRoomAndNotifiesRest(t *testing.T) {
	// Arrange
	h, bookRepo, messageRepo := newTestHub(t)
	bookRepo.On("Exists", mock.Anything, uint(7)).Return(true, nil)
	messageRepo.On("Recent", mock.Anything, uint(7), service.DefaultHistoryLimit).Return(nil, nil)

	alice := newTestClient(1, "alice")
	bob := newTestClient(2, "bob")
	h.registerSession(alice)
	h.registerSession(bob)
	h.handleJoin(alice, 7)
	h.handleJoin(bob, 7)
	recvEvent(t, alice)
	recvEvent(t, alice)
	recvEvent(t, bob)

	// Act
	h.unregisterSession(alice)

	// Assert: bob 收到 participant_left，房间里只剩 bob
	event := recvEvent(t, bob)
	assert.Equal(t, EventParticipantLeft, event["type"])
	assert.Equal(t, "alice", event["participant"].(map[string]interface{})["display_name"])
	assert.Equal(t, 1, h.registry.Count(7))
	assert.Equal(t, 1, h.SessionCount())

	// 注销后的投递被静默丢弃，不会 panic
	assert.NotPanics(t, func() { alice.enqueue([]byte(`{}`)) })

	// 重复注销无害
	h.unregisterSession(alice)
	assert.Equal(t, 1, h.SessionCount())
}

func TestHub_LastLeaveRemovesRoom(t *testing.T) {
	// Arrange
	h, bookRepo, messageRepo := newTestHub(t)
	bookRepo.On("Exists", mock.Anything, uint(7)).Return(true, nil)
	messageRepo.On("Recent", mock.Anything, uint(7), service.DefaultHistoryLimit).Return(nil, nil)

	alice := newTestClient(1, "alice")
	h.registerSession(alice)
	h.handleJoin(alice, 7)
	assert.Equal(t, 1, h.registry.RoomCount())

	// Act
	h.unregisterSession(alice)

	// Assert: 最后一个参与者离开后房间被回收
	assert.Equal(t, 0, h.registry.RoomCount())
}

func TestHub_ErrorEventMapping(t *testing.T) {
	// 服务层错误分类与客户端错误码的映射
	cases := []struct {
		err  error
		code string
	}{
		{service.ErrEmptyBody, codeValidation},
		{service.ErrInvalidInput, codeValidation},
		{service.ErrBookNotFound, codeNotFound},
		{service.ErrMessageNotFound, codeNotFound},
		{service.ErrUnauthorized, codeUnauthorized},
		{service.ErrInternalServer, codeStorage},
		{repository.ErrNotFound, codeStorage}, // 未翻译的底层错误按存储错误处理
	}
	for _, tc := range cases {
		event := newErrorEvent(tc.err)
		assert.Equal(t, EventError, event.Type)
		assert.Equal(t, tc.code, event.Code, "error %v", tc.err)
	}
}

func TestHub_StopMakesQueueingSafe(t *testing.T) {
	// Arrange
	h, _, _ := newTestHub(t)
	alice := newTestClient(1, "alice")
	h.registerSession(alice)

	// Act
	h.Stop()

	// Assert: 停止后仍在运行的 ReadPump 触发的入队全部是
	// 安全的空操作，不会 panic
	assert.NotPanics(t, func() { h.queueUnregister(alice) })
	assert.NotPanics(t, func() { h.dispatchJoin(alice, ClientFrame{Type: FrameJoinRoom, RoomID: 7}) })
	assert.NotPanics(t, func() { h.BroadcastMessage(domain.ChatMessage{ID: 1, BookID: 7}) })
	assert.NotPanics(t, func() { h.Register(alice) })
	// 重复 Stop 同样无害
	assert.NotPanics(t, h.Stop)
}

func TestHub_SameSessionSendsKeepSubmissionOrder(t *testing.T) {
	// Arrange: 第一条消息的存储调用被人为拖慢
	bookRepo := new(mocks.MockBookRepository)
	store := mocks.NewFakeMessageRepository()
	store.BeforeAppend = func(msg *domain.ChatMessage) {
		if msg.Body == "first" {
			time.Sleep(100 * time.Millisecond)
		}
	}
	bookRepo.On("Exists", mock.Anything, uint(7)).Return(true, nil)
	chatService := service.NewChatService(bookRepo, store, noopEnqueuer{})
	h := NewHub(chatService)
	chatService.SetBroadcaster(h)
	go h.Run()
	t.Cleanup(h.Stop)

	alice := newTestClient(1, "alice")
	bob := newTestClient(2, "bob")
	h.registerSession(alice)
	h.registerSession(bob)
	h.handleJoin(alice, 7)
	h.handleJoin(bob, 7)

	// Act: alice 的读 goroutine 依次处理两帧，bob 并发发送
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.handleSend(alice, ClientFrame{Type: FrameSendMessage, Body: "first"})
		h.handleSend(alice, ClientFrame{Type: FrameSendMessage, Body: "second"})
	}()
	h.handleSend(bob, ClientFrame{Type: FrameSendMessage, Body: "from bob"})
	<-done

	// Assert: 同一会话的消息保持提交顺序；不同会话可以交错，
	// 但三条消息都在存储里
	stored := store.Messages()
	require.Len(t, stored, 3)
	var aliceBodies []string
	for _, m := range stored {
		if m.AuthorID == 1 {
			aliceBodies = append(aliceBodies, m.Body)
		}
	}
	assert.Equal(t, []string{"first", "second"}, aliceBodies)
}

func TestHub_JoinConcurrentWithPublishDoesNotLoseMessage(t *testing.T) {
	// Arrange: 一条消息已持久化、其广播还排在事件循环里，
	// 此时才有人加入房间
	bookRepo := new(mocks.MockBookRepository)
	store := mocks.NewFakeMessageRepository()
	bookRepo.On("Exists", mock.Anything, uint(7)).Return(true, nil)
	chatService := service.NewChatService(bookRepo, store, noopEnqueuer{})
	h := NewHub(chatService)
	chatService.SetBroadcaster(h)
	go h.Run()
	t.Cleanup(h.Stop)

	msg := &domain.ChatMessage{BookID: 7, AuthorID: 2, AuthorName: "bob", Body: "in flight"}
	require.NoError(t, store.Append(context.Background(), msg))
	h.BroadcastMessage(*msg)

	alice := newTestClient(1, "alice")
	h.registerSession(alice)

	// Act: join 经事件循环处理，排在已入队的广播之后
	h.dispatchJoin(alice, ClientFrame{Type: FrameJoinRoom, RoomID: 7})

	// Assert: 广播时 alice 还不在房间里，但消息出现在
	// room_joined 的历史中，没有丢失
	event := recvEvent(t, alice)
	assert.Equal(t, EventRoomJoined, event["type"])
	hist := event["history"].([]interface{})
	require.Len(t, hist, 1)
	assert.Equal(t, "in flight", hist[0].(map[string]interface{})["body"])
}

func TestClient_IdleFor(t *testing.T) {
	// Arrange
	c := newTestClient(1, "alice")
	c.lastActive = time.Now().Add(-45 * time.Minute).UnixNano()

	// Act & Assert
	assert.Greater(t, c.IdleFor(time.Now()), 30*time.Minute)
	c.touchActivity()
	assert.Less(t, c.IdleFor(time.Now()), time.Minute)
}
