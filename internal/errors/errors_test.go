package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite 错误包测试套件
type ErrorsTestSuite struct {
	suite.Suite
}

// 测试创建新错误
func (suite *ErrorsTestSuite) TestNew() {
	// 测试基本错误创建
	err := New(ErrInvalidParam)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("无效的参数", err.Message)
	suite.Empty(err.Details)
	
	// 测试带详情的错误
	err = New(ErrNotFound, "用户不存在")
	suite.NotNil(err)
	suite.Equal(ErrNotFound, err.Code)
	suite.Equal("资源未找到", err.Message)
	suite.Equal("用户不存在", err.Details)
	
	// 测试多个详情
	err = New(ErrDatabaseConnect, "连接失败", "主机: localhost", "端口: 3306")
	suite.Equal("连接失败; 主机: localhost; 端口: 3306", err.Details)
}

// 测试格式化错误创建
func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrInvalidParam, "参数 %s 的值 %d 无效", "age", -1)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("参数 age 的值 -1 无效", err.Details)
}

// 测试错误包装
func (suite *ErrorsTestSuite) TestWrap() {
	// 包装标准错误
	originalErr := errors.New("原始错误")
	wrappedErr := Wrap(originalErr, ErrDatabaseQuery)
	suite.NotNil(wrappedErr)
	suite.Equal(ErrDatabaseQuery, wrappedErr.Code)
	suite.Equal("原始错误", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)
	
	// 包装nil错误
	nilErr := Wrap(nil, ErrUnknown)
	suite.Nil(nilErr)
	
	// 包装已有的AppError
	appErr := New(ErrNotFound, "资源不存在")
	wrappedAppErr := Wrap(appErr, ErrInvalidParam, "额外信息")
	suite.Equal(ErrNotFound, wrappedAppErr.Code) // 保留原始错误码
	suite.Contains(wrappedAppErr.Details, "额外信息")
}

// 测试格式化错误包装
func (suite *ErrorsTestSuite) TestWrapf() {
	originalErr := errors.New("连接超时")
	wrappedErr := Wrapf(originalErr, ErrDatabaseConnect, "数据库 %s 连接失败", "MySQL")
	suite.NotNil(wrappedErr)
	suite.Equal(ErrDatabaseConnect, wrappedErr.Code)
	suite.Equal("数据库 MySQL 连接失败", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)
}

// 测试错误码判断
func (suite *ErrorsTestSuite) TestIs() {
	err := New(ErrPermissionDenied)
	suite.True(Is(err, ErrPermissionDenied))
	suite.False(Is(err, ErrNotFound))
	suite.False(Is(nil, ErrPermissionDenied))
	
	// 测试标准错误
	standardErr := errors.New("标准错误")
	suite.False(Is(standardErr, ErrUnknown))
}

// 测试获取错误码
func (suite *ErrorsTestSuite) TestGetCode() {
	// AppError
	appErr := New(ErrTokenExpired)
	suite.Equal(ErrTokenExpired, GetCode(appErr))
	
	// 标准错误
	standardErr := errors.New("标准错误")
	suite.Equal(ErrUnknown, GetCode(standardErr))
	
	// nil错误
	suite.Equal(ErrorCode(0), GetCode(nil))
}

// 测试错误消息
func (suite *ErrorsTestSuite) TestError() {
	// 只有消息
	err := &AppError{
		Code:    ErrNotFound,
		Message: "资源未找到",
	}
	suite.Equal("[1002] 资源未找到", err.Error())
	
	// 有详情
	err.Details = "用户ID: 123"
	suite.Equal("[1002] 资源未找到: 用户ID: 123", err.Error())
}

// 测试Unwrap
func (suite *ErrorsTestSuite) TestUnwrap() {
	originalErr := errors.New("原始错误")
	wrappedErr := Wrap(originalErr, ErrUnknown)
	suite.Equal(originalErr, wrappedErr.Unwrap())
	
	// 没有原因的错误
	err := New(ErrUnknown)
	suite.Nil(err.Unwrap())
}

// 测试WithDetails
func (suite *ErrorsTestSuite) TestWithDetails() {
	err := New(ErrInvalidParam)
	err.WithDetails("参数不能为空")
	suite.Equal("参数不能为空", err.Details)
}

// 测试WithCause
func (suite *ErrorsTestSuite) TestWithCause() {
	err := New(ErrDatabaseQuery)
	cause := errors.New("SQL语法错误")
	err.WithCause(cause)
	suite.Equal(cause, err.Cause)
	suite.Equal("SQL语法错误", err.Details)
	
	// 已有Details的情况
	err2 := New(ErrDatabaseQuery, "查询失败")
	err2.WithCause(cause)
	suite.Equal(cause, err2.Cause)
	suite.Equal("查询失败", err2.Details) // 保留原有Details
}

// 测试HTTP状态码映射
func (suite *ErrorsTestSuite) TestHTTPStatus() {
	testCases := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrInvalidParam, 400},
		{ErrInvalidDice, 400},
		{ErrReadOnlyField, 400},
		{ErrAbsentValue, 400},
		{ErrNotFound, 404},
		{ErrSessionNotFound, 404},
		{ErrCharacterNotFound, 404},
		{ErrPermissionDenied, 403},
		{ErrNotOwner, 403},
		{ErrNotKeeper, 403},
		{ErrAlreadyExists, 409},
		{ErrTimeout, 408},
		{ErrAuthentication, 401},
		{ErrTokenExpired, 401},
		{ErrSyncWrite, 503},
		{ErrDatabaseConnect, 503},
		{ErrUnknown, 500},
	}

	for _, tc := range testCases {
		err := New(tc.code)
		suite.Equal(tc.expected, err.HTTPStatus(), "错误码 %d 应该返回HTTP状态码 %d", tc.code, tc.expected)
	}
}

// 测试可重试判断
func (suite *ErrorsTestSuite) TestIsRetryable() {
	for _, code := range []ErrorCode{ErrTimeout, ErrSyncWrite, ErrSyncTimeout, ErrDatabaseConnect} {
		suite.True(IsRetryable(New(code)), "错误码 %d 应该是可重试的", code)
	}

	for _, code := range []ErrorCode{ErrInvalidParam, ErrInvalidDice, ErrNotOwner, ErrSessionNotFound} {
		suite.False(IsRetryable(New(code)), "错误码 %d 不应该是可重试的", code)
	}

	suite.False(IsRetryable(nil))
}

// 测试输入错误与授权拒绝的分类
func (suite *ErrorsTestSuite) TestClassification() {
	suite.True(IsInvalidInput(New(ErrInvalidDice)))
	suite.True(IsInvalidInput(New(ErrInvalidStat)))
	suite.True(IsInvalidInput(New(ErrAbsentValue)))
	suite.False(IsInvalidInput(New(ErrSessionNotFound)))
	suite.False(IsInvalidInput(nil))

	suite.True(IsAuthorization(New(ErrNotOwner)))
	suite.True(IsAuthorization(New(ErrNotKeeper)))
	suite.True(IsAuthorization(New(ErrAnonymousForbidden)))
	suite.False(IsAuthorization(New(ErrSyncWrite)))
}

// 测试 errors.As 兼容包装链
func (suite *ErrorsTestSuite) TestIsThroughFmtWrap() {
	inner := New(ErrCharacterNotFound, "abc")
	outer := fmt.Errorf("load sheet: %w", inner)
	suite.True(Is(outer, ErrCharacterNotFound))
	suite.Equal(ErrCharacterNotFound, GetCode(outer))
}

// 测试严重错误判断
func (suite *ErrorsTestSuite) TestIsCritical() {
	for _, code := range []ErrorCode{ErrDatabaseConnect, ErrConfigLoad, ErrConfigMissing, ErrDataIntegrity} {
		suite.True(IsCritical(New(code)), "错误码 %d 应该是严重错误", code)
	}

	for _, code := range []ErrorCode{ErrInvalidParam, ErrNotFound, ErrTimeout, ErrSyncWrite} {
		suite.False(IsCritical(New(code)), "错误码 %d 不应该是严重错误", code)
	}

	suite.False(IsCritical(nil))
}

// 测试调用栈捕获
func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.NotNil(err.Stack)
	suite.Greater(len(err.Stack), 0)
	suite.NotEmpty(err.GetStack())
}

// 测试错误响应
func (suite *ErrorsTestSuite) TestErrorResponse() {
	err := New(ErrSessionNotFound, "ABC123")
	response := NewErrorResponse(err, "req-123")

	suite.False(response.Success)
	suite.Equal(err, response.Error)
	suite.Equal("req-123", response.RequestID)
	suite.Greater(response.Timestamp, int64(0))
}

// 测试未知错误码
func (suite *ErrorsTestSuite) TestUnknownErrorCode() {
	err := New(ErrorCode(99999))
	suite.Equal(ErrorCode(99999), err.Code)
	suite.Equal("未知错误", err.Message)
}

// 测试桌面相关错误消息
func (suite *ErrorsTestSuite) TestTableErrors() {
	tableErrors := map[ErrorCode]string{
		ErrInvalidDice:       "无效的骰子表达式",
		ErrInvalidStat:       "无效的属性值",
		ErrReadOnlyField:     "派生字段不可直接修改",
		ErrSessionNotFound:   "会话不存在",
		ErrCharacterNotFound: "角色不存在",
		ErrNotOwner:          "只有角色所有者可以修改",
		ErrNotKeeper:         "只有KP可以修改场景",
	}

	for code, expectedMsg := range tableErrors {
		suite.Equal(expectedMsg, New(code).Message)
	}
}

// 测试同步相关错误消息
func (suite *ErrorsTestSuite) TestSyncErrors() {
	syncErrors := map[ErrorCode]string{
		ErrSyncWrite:          "同步写入失败",
		ErrSyncTimeout:        "同步写入超时",
		ErrSubscriptionClosed: "订阅已关闭",
		ErrAbsentValue:        "补丁中包含未定义的值",
		ErrDocumentNotFound:   "文档不存在",
		ErrMessageFormat:      "消息格式错误",
	}

	for code, expectedMsg := range syncErrors {
		suite.Equal(expectedMsg, New(code).Message)
	}
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
