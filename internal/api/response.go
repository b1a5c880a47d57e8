package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/game"
	"github.com/wfunc/obscura/internal/middleware"
)

// Response 成功响应
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Success:   true,
		Data:      data,
		RequestID: c.GetString(middleware.HeaderRequestID),
		Timestamp: time.Now().Unix(),
	})
}

func ok(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, data)
}

func fail(c *gin.Context, err error) {
	middleware.AbortWithError(c, err)
}

// bindJSON 解析请求体，失败时已写入错误响应
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		fail(c, errors.Wrap(err, errors.ErrInvalidParam, "请求参数错误"))
		return false
	}
	return true
}

func sessionID(c *gin.Context) string {
	return game.NormalizeSessionID(c.Param("id"))
}
