package middleware

import (
	stderrors "errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/logger"
)

// HeaderRequestID 请求ID
const HeaderRequestID = "X-Request-ID"

// RequestID 为每个请求分配ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(HeaderRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger 用 zap 记录请求
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.LogRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}

// Recovery 捕获 panic 并返回统一错误
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.LogPanic(r, debug.Stack())
				AbortWithError(c, errors.New(errors.ErrUnknown))
			}
		}()
		c.Next()
	}
}

// AbortWithError 以统一错误格式结束请求
func AbortWithError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Wrap(err, errors.ErrUnknown)
	}
	status := appErr.HTTPStatus()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	// 调用栈只写日志，不返回给客户端
	public := *appErr
	public.Stack = nil
	c.AbortWithStatusJSON(status, errors.NewErrorResponse(&public, c.GetString(HeaderRequestID)))
}
