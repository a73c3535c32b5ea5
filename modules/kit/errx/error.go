// Package errx 为错误提供稳定的错误码。
//
// - Biz：预期内的拒绝，原样告知调用方
// - Sys：我方故障，在第一次包装处记录调用栈
package errx

import (
	"errors"
	"fmt"
	"runtime"
)

// Code 是错误对外的稳定标识，errors.Is 按它判断。
type Code string

type Kind uint8

const (
	Biz Kind = iota
	Sys
)

func (k Kind) String() string {
	if k == Biz {
		return "biz"
	}
	return "sys"
}

// attr 是不可变 key/value 链表的一个节点：同一 key 以最新节点为准，
// 派生出的错误共享链表尾部。
type attr struct {
	key   string
	value any
	next  *attr
}

// Error 是不可变值：
// - 每个 With* 都返回新对象，包级哨兵错误可以放心派生
// - data 只能通过 With* 追加，Data() 返回拷贝
// - stack 只对 Sys 错误捕获一次
type Error struct {
	code  Code
	msg   string
	kind  Kind
	attrs *attr
	cause error
	stack []uintptr
}

func NewBiz(code Code, msg string) *Error { return &Error{code: code, msg: msg, kind: Biz} }

func NewSys(code Code, msg string) *Error { return &Error{code: code, msg: msg, kind: Sys} }

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	s := string(e.code)
	if e.msg != "" {
		s += ": " + e.msg
	}
	if e.cause != nil {
		s = fmt.Sprintf("%s: %v", s, e.cause)
	}
	return s
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 只比较错误码，忽略 msg/data/cause。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

func (e *Error) Code() Code {
	if e == nil {
		return ""
	}
	return e.code
}

func (e *Error) CodeText() string { return string(e.Code()) }

func (e *Error) Msg() string {
	if e == nil {
		return ""
	}
	return e.msg
}

func (e *Error) Kind() Kind {
	if e == nil {
		return Sys
	}
	return e.kind
}

// IsBiz 判断是否为预期内的业务拒绝。
func (e *Error) IsBiz() bool { return e != nil && e.kind == Biz }

// Data 把附加的 key/value 展开成新的 map，调用方可随意修改。
func (e *Error) Data() map[string]any {
	if e == nil || e.attrs == nil {
		return nil
	}
	out := make(map[string]any)
	for a := e.attrs; a != nil; a = a.next {
		if _, shadowed := out[a.key]; !shadowed {
			out[a.key] = a.value
		}
	}
	return out
}

// Get 返回 key 下最新附加的值。
func (e *Error) Get(key string) (any, bool) {
	if e == nil {
		return nil, false
	}
	for a := e.attrs; a != nil; a = a.next {
		if a.key == key {
			return a.value, true
		}
	}
	return nil, false
}

// Reason 返回 data.reason 中的原因码（没有则为空串）。
func (e *Error) Reason() string {
	v, _ := e.Get("reason")
	s, _ := v.(string)
	return s
}

func (e *Error) Stack() []uintptr {
	if e == nil || len(e.stack) == 0 {
		return nil
	}
	return append([]uintptr(nil), e.stack...)
}

func (e *Error) clone() *Error {
	c := *e
	return &c
}

func (e *Error) WithData(key string, value any) *Error {
	next := e.clone()
	next.attrs = &attr{key: key, value: value, next: e.attrs}
	return next
}

// WithDataMap 逐项附加 data，不持有传入的 map。
func (e *Error) WithDataMap(data map[string]any) *Error {
	next := e.clone()
	for k, v := range data {
		next.attrs = &attr{key: k, value: v, next: next.attrs}
	}
	return next
}

// WithCause 设置下层错误。Sys 错误在此捕获调用栈；
// 如果下层链路已经有栈，则不重复捕获。
func (e *Error) WithCause(cause error) *Error {
	next := e.clone()
	next.cause = cause
	if next.kind == Sys && cause != nil && next.stack == nil && !stackInChain(cause) {
		next.stack = callers(3)
	}
	return next
}

// CodeOf 返回错误链上第一个 errx 错误码。
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ""
}

func callers(skip int) []uintptr {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return nil
	}
	return pcs[:n:n]
}

func stackInChain(err error) bool {
	for depth := 0; err != nil && depth < 32; depth++ {
		if s, ok := err.(interface{ Stack() []uintptr }); ok && len(s.Stack()) > 0 {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
