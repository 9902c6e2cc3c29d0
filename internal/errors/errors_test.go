package errors

import (
	"errors"
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
	err = New(ErrDialogBusy, "手动移动对话进行中")
	suite.NotNil(err)
	suite.Equal(ErrDialogBusy, err.Code)
	suite.Equal("参数对话尚未完成", err.Message)
	suite.Equal("手动移动对话进行中", err.Details)

	// 测试多个详情
	err = New(ErrSerialPortOpen, "打开失败", "端口: /dev/ttyUSB0", "波特率: 9600")
	suite.Equal("打开失败; 端口: /dev/ttyUSB0; 波特率: 9600", err.Details)
}

// 测试格式化错误创建
func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrInvalidIndex, "程序步 %d 超出范围 [1,%d]", 7, 5)
	suite.NotNil(err)
	suite.Equal(ErrInvalidIndex, err.Code)
	suite.Equal("程序步 7 超出范围 [1,5]", err.Details)
}

// 测试错误包装
func (suite *ErrorsTestSuite) TestWrap() {
	// 包装标准错误
	originalErr := errors.New("device reports readiness to read but returned no data")
	wrappedErr := Wrap(originalErr, ErrSerialPortRead)
	suite.NotNil(wrappedErr)
	suite.Equal(ErrSerialPortRead, wrappedErr.Code)
	suite.Equal(originalErr.Error(), wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)

	// 包装nil错误
	nilErr := Wrap(nil, ErrUnknown)
	suite.Nil(nilErr)

	// 包装已有的AppError
	appErr := New(ErrProgramFull, "已有5步")
	wrappedAppErr := Wrap(appErr, ErrInvalidParam, "额外信息")
	suite.Equal(ErrProgramFull, wrappedAppErr.Code) // 保留原始错误码
	suite.Contains(wrappedAppErr.Details, "额外信息")
}

// 测试错误码判断
func (suite *ErrorsTestSuite) TestIs() {
	err := New(ErrMotorBusy)
	suite.True(Is(err, ErrMotorBusy))
	suite.False(Is(err, ErrNotConnected))
	suite.False(Is(nil, ErrMotorBusy))

	// 标准错误不匹配任何错误码
	suite.False(Is(errors.New("plain"), ErrMotorBusy))
}

// 测试获取错误码
func (suite *ErrorsTestSuite) TestGetCode() {
	suite.Equal(ErrorCode(0), GetCode(nil))
	suite.Equal(ErrUnknown, GetCode(errors.New("plain")))
	suite.Equal(ErrSerialDisconnect, GetCode(New(ErrSerialDisconnect)))
}

// 测试HTTP状态码映射
func (suite *ErrorsTestSuite) TestHTTPStatus() {
	suite.Equal(400, New(ErrInvalidParam).HTTPStatus())
	suite.Equal(400, New(ErrAlreadyExists).HTTPStatus())
	suite.Equal(404, New(ErrNotFound).HTTPStatus())
	suite.Equal(409, New(ErrMotorBusy).HTTPStatus())
	suite.Equal(409, New(ErrDialogBusy).HTTPStatus())
	suite.Equal(409, New(ErrNotConnected).HTTPStatus())
	suite.Equal(401, New(ErrTokenExpired).HTTPStatus())
	suite.Equal(503, New(ErrDatabaseQuery).HTTPStatus())
	suite.Equal(500, New(ErrSerialPortWrite).HTTPStatus())
}

// 测试重试与严重性判断
func (suite *ErrorsTestSuite) TestRetryableAndCritical() {
	suite.True(IsRetryable(New(ErrSerialTimeout)))
	suite.True(IsRetryable(New(ErrMotorBusy)))
	suite.False(IsRetryable(New(ErrProgramFull)))
	suite.False(IsRetryable(nil))

	suite.True(IsCritical(New(ErrSerialPortOpen)))
	suite.True(IsCritical(New(ErrConfigLoad)))
	suite.False(IsCritical(New(ErrDialogBusy)))
}

// 测试错误链
func (suite *ErrorsTestSuite) TestUnwrap() {
	cause := errors.New("EOF")
	err := New(ErrSerialPortRead).WithCause(cause)
	suite.Equal(cause, errors.Unwrap(err))
	suite.True(errors.Is(err, cause))
}

func TestErrorsTestSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
