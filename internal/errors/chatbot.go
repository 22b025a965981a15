package errors

import "net/http"

// 聊天机器人相关的预定义错误，消息直接展示给终端用户
var (
	ErrChatbotNotConfigured = &AppError{
		Code:     ErrCodeChatbotNotConfigured,
		Message:  "แชทบอทนี้ยังไม่ได้ตั้งค่าข้อมูลความรู้ กรุณาติดต่อผู้ดูแลระบบ",
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusInternalServerError,
	}
	ErrChatbotMissingCredentials = &AppError{
		Code:     ErrCodeChatbotMissingCredentials,
		Message:  "แชทบอทนี้ยังไม่ได้ตั้งค่า API Key กรุณาติดต่อผู้ดูแลระบบ",
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusInternalServerError,
	}
	ErrInvalidCompletionResponse = &AppError{
		Code:     ErrCodeInvalidCompletionResponse,
		Message:  "completion response contained no choices",
		Type:     ErrorTypeExternal,
		HTTPCode: http.StatusBadGateway,
	}
	ErrOrderRangeExhausted = &AppError{
		Code:     ErrCodeOrderRangeExhausted,
		Message:  "no free chunk order below the CAG range",
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusConflict,
	}
)

// NewCompletionError 上游模型接口返回非2xx
func NewCompletionError(status int, message string) *AppError {
	return NewExternalError(ErrCodeCompletionFailed, message, status).
		WithDetails(map[string]int{"upstream_status": status})
}

// NewIngestionError 导入任务失败
func NewIngestionError(message string, cause error) *AppError {
	return NewSystemError(ErrCodeIngestionFailed, message).WithCause(cause)
}

// NewUnsupportedFileError 不支持的文件类型
func NewUnsupportedFileError(name string) *AppError {
	return NewBusinessError(ErrCodeUnsupportedFileType, "unsupported file type: "+name)
}
