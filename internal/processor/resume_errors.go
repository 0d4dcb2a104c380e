package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrUnsupportedFormat     = errors.New("不支持的简历格式")
	ErrParseFailure          = errors.New("简历文本提取失败")
	ErrRecognizerUnavailable = errors.New("实体识别器不可用")
	ErrNotFound              = errors.New("解析记录不存在")
)

// ResumeParseError 包含详细错误信息的自定义错误
type ResumeParseError struct {
	FileName string
	Op       string
	Ext      string
	BaseErr  error
	Cause    error
}

func (e *ResumeParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (操作:%s, 文件:%s, 扩展名:%q): %v", e.BaseErr, e.Op, e.FileName, e.Ext, e.Cause)
	}
	return fmt.Sprintf("%s (操作:%s, 文件:%s, 扩展名:%q)", e.BaseErr, e.Op, e.FileName, e.Ext)
}

// Unwrap 同时暴露基础错误和底层原因，errors.Is/As 都能穿透
func (e *ResumeParseError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.BaseErr}
	}
	return []error{e.BaseErr, e.Cause}
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ResumeParseError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// NewUnsupportedFormatError 扩展名不在支持列表中
func NewUnsupportedFormatError(fileName, ext string) error {
	return &ResumeParseError{
		FileName: fileName,
		Op:       "detect_format",
		Ext:      ext,
		BaseErr:  ErrUnsupportedFormat,
	}
}

// NewParseFailureError 文档库读取失败
func NewParseFailureError(fileName, ext string, cause error) error {
	return &ResumeParseError{
		FileName: fileName,
		Op:       "extract_text",
		Ext:      ext,
		BaseErr:  ErrParseFailure,
		Cause:    cause,
	}
}

// IsClientError 判断错误是否由上传内容本身导致（不应重试）
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrParseFailure)
}
