package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// currentUserID 从 Gin 上下文中取出认证中间件设置的用户 ID。
// 返回 false 时已经写好了错误响应。
func currentUserID(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get("user_id")
	if !exists {
		logrus.Warn("Handler: User ID not found in context, middleware missing or failed?")
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		logrus.Error("Handler: User ID in context is not uint")
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error processing user ID")
		return 0, false
	}
	return userID, true
}

// currentDisplayName 从 Gin 上下文中取出认证中间件设置的昵称。
func currentDisplayName(c *gin.Context) string {
	name, _ := c.Get("display_name")
	if s, ok := name.(string); ok {
		return s
	}
	return ""
}

// parseIDParam 解析 URL 中的数字 ID 参数。
// 返回 false 时已经写好了错误响应。
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		logrus.WithField(name, raw).Warn("Handler: Invalid ID parameter format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid "+name+" format")
		return 0, false
	}
	return uint(id), true
}
