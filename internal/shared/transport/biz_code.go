package transport

import (
	"errors"

	"Chronicle/modules/kit/errx"
)

// BizCode is the numeric result recorded in access logs. 0 is success,
// 1..499 a rejected request, 500 and above a failure on our side.
type BizCode int

const (
	OK           BizCode = 0
	InvalidParam BizCode = 400
	Rejected     BizCode = 409
	SystemError  BizCode = 500
)

// CodeFor maps a handler error onto a BizCode.
func CodeFor(err error) BizCode {
	if err == nil {
		return OK
	}
	if errx.CodeOf(err) == errx.CodeBadRequest {
		return InvalidParam
	}
	var e *errx.Error
	if errors.As(err, &e) && e.IsBiz() {
		return Rejected
	}
	return SystemError
}
