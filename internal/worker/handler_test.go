package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"book-chat/internal/repository/mocks"
	"book-chat/internal/tasks"
)

func TestBookTouchActivityHandler_Success(t *testing.T) {
	// Arrange
	bookRepo := new(mocks.MockBookRepository)
	handler := NewBookTouchActivityHandler(bookRepo)
	at := time.Now().UTC().Truncate(time.Second)
	payload, err := tasks.NewBookTouchActivityTask(7, at)
	assert.NoError(t, err)
	bookRepo.On("TouchActivity", mock.Anything, uint(7), at).Return(nil).Once()

	// Act
	err = handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeBookTouchActivity, payload))

	// Assert
	assert.NoError(t, err)
	bookRepo.AssertExpectations(t)
}

func TestBookTouchActivityHandler_BadPayloadSkipsRetry(t *testing.T) {
	// Arrange
	bookRepo := new(mocks.MockBookRepository)
	handler := NewBookTouchActivityHandler(bookRepo)

	// Act: 损坏的载荷重试无意义
	err := handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeBookTouchActivity, []byte("not json")))

	// Assert
	assert.ErrorIs(t, err, asynq.SkipRetry)
	bookRepo.AssertNotCalled(t, "TouchActivity", mock.Anything, mock.Anything, mock.Anything)
}

func TestBookTouchActivityHandler_RepositoryErrorIsRetryable(t *testing.T) {
	// Arrange
	bookRepo := new(mocks.MockBookRepository)
	handler := NewBookTouchActivityHandler(bookRepo)
	payload, _ := tasks.NewBookTouchActivityTask(7, time.Now().UTC())
	repoErr := errors.New("db gone")
	bookRepo.On("TouchActivity", mock.Anything, uint(7), mock.Anything).Return(repoErr).Once()

	// Act
	err := handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeBookTouchActivity, payload))

	// Assert: 错误原样返回，交给 asynq 重试
	assert.ErrorIs(t, err, repoErr)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}
