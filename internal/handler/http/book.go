package http

import (
	"net/http"
	"strconv"

	"book-chat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// BookHandler 封装了书籍登记、查询和目录搜索的 HTTP 处理逻辑
type BookHandler struct {
	bookService *service.BookService
}

// NewBookHandler 创建 BookHandler 实例
func NewBookHandler(bookService *service.BookService) *BookHandler {
	if bookService == nil {
		panic("BookService cannot be nil for BookHandler")
	}
	return &BookHandler{bookService: bookService}
}

// RegisterBookRequest 定义登记书籍请求的结构体
type RegisterBookRequest struct {
	Title     string `json:"title" binding:"required,max=191"`
	Author    string `json:"author" binding:"max=191"`
	CatalogID string `json:"catalog_id" binding:"max=191"`
}

// RegisterBook 处理登记书籍的请求。登记后这本书就拥有聊天房间。
func (h *BookHandler) RegisterBook(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req RegisterBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.RegisterBook: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: title is required")
		return
	}

	book, err := h.bookService.RegisterBook(c.Request.Context(), userID, req.Title, req.Author, req.CatalogID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "book_id": book.ID}).Info("Handler.RegisterBook: Book registered")
	SuccessResponse(c, http.StatusCreated, gin.H{"book": book})
}

// GetBook 返回一本书的信息
func (h *BookHandler) GetBook(c *gin.Context) {
	bookID, ok := parseIDParam(c, "bookId")
	if !ok {
		return
	}

	book, err := h.bookService.FindBookByID(c.Request.Context(), bookID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, gin.H{"book": book})
}

// ListBooks 返回已登记的书籍列表
func (h *BookHandler) ListBooks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	books, err := h.bookService.ListBooks(c.Request.Context(), limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, gin.H{"books": books})
}

// SearchCatalog 代理外部目录的搜索请求
func (h *BookHandler) SearchCatalog(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		ErrorResponse(c, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	results, err := h.bookService.SearchCatalog(c.Request.Context(), query)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, gin.H{"results": results})
}
