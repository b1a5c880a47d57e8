package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown          ErrorCode = 1000
	ErrInvalidParam     ErrorCode = 1001
	ErrNotFound         ErrorCode = 1002
	ErrAlreadyExists    ErrorCode = 1003
	ErrPermissionDenied ErrorCode = 1004
	ErrTimeout          ErrorCode = 1005
	ErrCanceled         ErrorCode = 1006
	ErrNotImplemented   ErrorCode = 1007

	// 跑团规则与桌面错误 (2000-2999)
	ErrInvalidDice         ErrorCode = 2000
	ErrInvalidStat         ErrorCode = 2001
	ErrInvalidSkill        ErrorCode = 2002
	ErrReadOnlyField       ErrorCode = 2003
	ErrInvalidChatMessage  ErrorCode = 2004
	ErrInvalidScene        ErrorCode = 2005
	ErrSessionNotFound     ErrorCode = 2100
	ErrCharacterNotFound   ErrorCode = 2101
	ErrNotOwner            ErrorCode = 2200
	ErrNotKeeper           ErrorCode = 2201
	ErrAnonymousForbidden  ErrorCode = 2202

	// 同步与通信错误 (4000-4999)
	ErrSyncWrite          ErrorCode = 4000
	ErrSyncTimeout        ErrorCode = 4001
	ErrSubscriptionClosed ErrorCode = 4002
	ErrAbsentValue        ErrorCode = 4003
	ErrDocumentNotFound   ErrorCode = 4004
	ErrWebSocketSend      ErrorCode = 4100
	ErrWebSocketClosed    ErrorCode = 4101
	ErrMessageFormat      ErrorCode = 4102

	// 数据库错误 (5000-5999)
	ErrDatabaseConnect ErrorCode = 5000
	ErrDatabaseQuery   ErrorCode = 5001
	ErrDatabaseInsert  ErrorCode = 5002
	ErrDatabaseUpdate  ErrorCode = 5003
	ErrTransaction     ErrorCode = 5005
	ErrDataIntegrity   ErrorCode = 5006

	// 配置错误 (6000-6999)
	ErrConfigLoad     ErrorCode = 6000
	ErrConfigParse    ErrorCode = 6001
	ErrConfigValidate ErrorCode = 6002
	ErrConfigMissing  ErrorCode = 6003

	// 身份错误 (7000-7999)
	ErrAuthentication ErrorCode = 7000
	ErrTokenExpired   ErrorCode = 7002
	ErrTokenInvalid   ErrorCode = 7003
)

// 错误码消息映射
var errorMessages = map[ErrorCode]string{
	// 通用错误
	ErrUnknown:          "未知错误",
	ErrInvalidParam:     "无效的参数",
	ErrNotFound:         "资源未找到",
	ErrAlreadyExists:    "资源已存在",
	ErrPermissionDenied: "权限不足",
	ErrTimeout:          "操作超时",
	ErrCanceled:         "操作已取消",
	ErrNotImplemented:   "功能未实现",

	// 跑团规则与桌面错误
	ErrInvalidDice:        "无效的骰子表达式",
	ErrInvalidStat:        "无效的属性值",
	ErrInvalidSkill:       "无效的技能",
	ErrReadOnlyField:      "派生字段不可直接修改",
	ErrInvalidChatMessage: "无效的聊天消息",
	ErrInvalidScene:       "无效的场景数据",
	ErrSessionNotFound:    "会话不存在",
	ErrCharacterNotFound:  "角色不存在",
	ErrNotOwner:           "只有角色所有者可以修改",
	ErrNotKeeper:          "只有KP可以修改场景",
	ErrAnonymousForbidden: "匿名身份无法执行此操作",

	// 同步与通信错误
	ErrSyncWrite:          "同步写入失败",
	ErrSyncTimeout:        "同步写入超时",
	ErrSubscriptionClosed: "订阅已关闭",
	ErrAbsentValue:        "补丁中包含未定义的值",
	ErrDocumentNotFound:   "文档不存在",
	ErrWebSocketSend:      "WebSocket发送失败",
	ErrWebSocketClosed:    "WebSocket连接已关闭",
	ErrMessageFormat:      "消息格式错误",

	// 数据库错误
	ErrDatabaseConnect: "数据库连接失败",
	ErrDatabaseQuery:   "数据库查询失败",
	ErrDatabaseInsert:  "数据库插入失败",
	ErrDatabaseUpdate:  "数据库更新失败",
	ErrTransaction:     "事务处理失败",
	ErrDataIntegrity:   "数据完整性错误",

	// 配置错误
	ErrConfigLoad:     "配置加载失败",
	ErrConfigParse:    "配置解析失败",
	ErrConfigValidate: "配置验证失败",
	ErrConfigMissing:  "配置项缺失",

	// 身份错误
	ErrAuthentication: "认证失败",
	ErrTokenExpired:   "令牌已过期",
	ErrTokenInvalid:   "无效的令牌",
}

// AppError 应用错误结构
type AppError struct {
	Code      ErrorCode   `json:"code"`      // 错误码
	Message   string      `json:"message"`   // 错误消息
	Details   string      `json:"details"`   // 详细信息
	Cause     error       `json:"-"`         // 原始错误
	Stack     []StackFrame `json:"stack,omitempty"` // 调用栈
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}
	
	err := &AppError{
		Code:    code,
		Message: message,
	}
	
	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}
	
	// 捕获调用栈
	err.captureStack(2)
	
	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return New(code, details)
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}
	
	// 如果已经是AppError，保留原始错误码
	if appErr, ok := err.(*AppError); ok {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}
	
	appErr := New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}
	
	return appErr
}

// Wrapf 包装格式化错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return Wrap(err, code, details)
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}
	
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}

	return ErrUnknown
}

// captureStack 捕获调用栈
func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	
	if n > 0 {
		frames := runtime.CallersFrames(pcs[:n])
		for {
			frame, more := frames.Next()
			
			// 跳过runtime和本包的调用
			if strings.Contains(frame.Function, "runtime.") ||
				strings.Contains(frame.Function, "github.com/wfunc/obscura/internal/errors") {
				if !more {
					break
				}
				continue
			}
			
			e.Stack = append(e.Stack, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})
			
			if !more {
				break
			}
			
			// 只保留前10个栈帧
			if len(e.Stack) >= 10 {
				break
			}
		}
	}
}

// GetStack 获取格式化的调用栈
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}
	
	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}
	
	return builder.String()
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch {
	case e.Code == ErrNotFound, e.Code == ErrDocumentNotFound,
		e.Code == ErrSessionNotFound, e.Code == ErrCharacterNotFound:
		return 404 // Not Found
	case e.Code == ErrPermissionDenied, e.Code == ErrNotOwner,
		e.Code == ErrNotKeeper, e.Code == ErrAnonymousForbidden:
		return 403 // Forbidden
	case e.Code == ErrAlreadyExists:
		return 409 // Conflict
	case e.Code >= 1001 && e.Code <= 1003,
		e.Code >= 2000 && e.Code <= 2099,
		e.Code == ErrAbsentValue, e.Code == ErrMessageFormat:
		return 400 // Bad Request
	case e.Code == ErrTimeout:
		return 408 // Request Timeout
	case e.Code >= 7000 && e.Code <= 7999:
		return 401 // Unauthorized
	case e.Code == ErrSyncWrite, e.Code == ErrSyncTimeout,
		e.Code >= 5000 && e.Code <= 5999:
		return 503 // Service Unavailable
	default:
		return 500 // Internal Server Error
	}
}

// IsRetryable 判断错误是否可由用户手动重试（同步层的瞬时失败）
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch GetCode(err) {
	case ErrTimeout,
		ErrSyncWrite,
		ErrSyncTimeout,
		ErrDatabaseConnect,
		ErrWebSocketSend:
		return true
	default:
		return false
	}
}

// IsInvalidInput 判断是否为本地校验失败的输入错误
func IsInvalidInput(err error) bool {
	code := GetCode(err)
	return code == ErrInvalidParam || code == ErrAbsentValue || (code >= 2000 && code <= 2099)
}

// IsAuthorization 判断是否为所有者/KP校验拒绝
func IsAuthorization(err error) bool {
	switch GetCode(err) {
	case ErrPermissionDenied, ErrNotOwner, ErrNotKeeper, ErrAnonymousForbidden:
		return true
	default:
		return false
	}
}

// IsCritical 判断是否为严重错误
func IsCritical(err error) bool {
	if err == nil {
		return false
	}

	switch GetCode(err) {
	case ErrDatabaseConnect,
		ErrConfigLoad,
		ErrConfigMissing,
		ErrDataIntegrity:
		return true
	default:
		return false
	}
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     *AppError   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}