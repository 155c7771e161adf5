package storage

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("object not found")
)

// TransportError 包装存储层错误，并标记是否可重试
//
//	Transient: 网络抖动 / 限流 / 5xx，下次运行可以重试
//	Permanent: 对象不存在、权限错误等，不重试
type TransportError struct {
	Op        string
	Key       string
	Transient bool
	Err       error
}

func (e *TransportError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s %s %q: %v", kind, e.Op, e.Key, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transient 构造可重试错误
func Transient(op, key string, err error) error {
	return &TransportError{Op: op, Key: key, Transient: true, Err: err}
}

// Permanent 构造不可重试错误
func Permanent(op, key string, err error) error {
	return &TransportError{Op: op, Key: key, Transient: false, Err: err}
}

// IsTransient 判断错误链中是否有可重试的 TransportError
func IsTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Transient
}

// IsPermanent 未分类的错误一律按 Permanent 处理
func IsPermanent(err error) bool {
	return err != nil && !IsTransient(err)
}
