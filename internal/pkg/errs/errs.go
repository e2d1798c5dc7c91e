// Package errs 定义了订单与评价子系统共享的领域错误分类。
// 调用方统一用 errors.Is 判断错误种类，不关心具体的存储实现。
package errs

import (
	"errors"
	"fmt"
)

// 错误种类哨兵。它们本身也可以直接返回，但通常会被包装进 *Error 以携带业务信息。
var (
	ErrValidation   = errors.New("validation error")
	ErrInvalidCart  = errors.New("invalid cart")
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("duplicate")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("storage conflict")
)

// Error 是带有错误种类的领域错误
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// Is 让 InvalidCart 同时被识别为 Validation
func (e *Error) Is(target error) bool {
	if target == ErrValidation && e.Kind == ErrInvalidCart {
		return true
	}
	return false
}

func newf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error   { return newf(ErrValidation, format, args...) }
func InvalidCart(format string, args ...any) error  { return newf(ErrInvalidCart, format, args...) }
func NotFound(format string, args ...any) error     { return newf(ErrNotFound, format, args...) }
func Duplicate(format string, args ...any) error    { return newf(ErrDuplicate, format, args...) }
func Unauthorized(format string, args ...any) error { return newf(ErrUnauthorized, format, args...) }
func Conflict(format string, args ...any) error     { return newf(ErrConflict, format, args...) }

// IsDomain 判断错误是否属于上述任一业务种类。
// 业务错误是永久性的，重试没有意义；其余错误视为基础设施的瞬时故障。
func IsDomain(err error) bool {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrDuplicate, ErrUnauthorized, ErrConflict} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
