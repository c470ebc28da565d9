package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型，三种错误都不可重试：文档解码是确定性的，重试只会得到相同的结果
var (
	ErrUnsupportedFormat  = errors.New("不支持的文件格式")
	ErrUnreadableDocument = errors.New("无法从文档中读取到足够的文本")
	ErrDecodeFailure      = errors.New("文档解码失败")
)

// ResumeProcessError 包含详细错误信息的自定义错误
type ResumeProcessError struct {
	FileName string
	Op       string
	BaseErr  error
	Detail   string
}

func (e *ResumeProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 文件:%s): %s", e.BaseErr, e.Op, e.FileName, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 文件:%s)", e.BaseErr, e.Op, e.FileName)
}

func (e *ResumeProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ResumeProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewUnsupportedFormatError(fileName, mimeType string) error {
	return &ResumeProcessError{
		FileName: fileName,
		Op:       "detect",
		BaseErr:  ErrUnsupportedFormat,
		Detail:   fmt.Sprintf("MIME类型 %q", mimeType),
	}
}

func NewUnreadableError(fileName, detail string) error {
	return &ResumeProcessError{
		FileName: fileName,
		Op:       "decode",
		BaseErr:  ErrUnreadableDocument,
		Detail:   detail,
	}
}

func NewDecodeError(fileName, detail string) error {
	return &ResumeProcessError{
		FileName: fileName,
		Op:       "decode",
		BaseErr:  ErrDecodeFailure,
		Detail:   detail,
	}
}
