package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Outcome 是远程调用失败的类别。
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeAuthFailure: token 无效或响应中缺少用户身份，跳过该账号。
	OutcomeAuthFailure
	// OutcomeInsufficientFunds: 购买接口余额不足，停止当前购买循环。
	OutcomeInsufficientFunds
	// OutcomeTransient: 网络错误、超时、429、5xx，可有限次重试。
	OutcomeTransient
	// OutcomeNoOp: 没有可做的事（已领取、已不存在等），记录后继续。
	OutcomeNoOp
	// OutcomeRejected: 其他非预期的状态码。
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeAuthFailure:
		return "auth_failure"
	case OutcomeInsufficientFunds:
		return "insufficient_funds"
	case OutcomeTransient:
		return "transient"
	case OutcomeNoOp:
		return "noop"
	case OutcomeRejected:
		return "rejected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

var (
	ErrAuthFailure       = errors.New("authentication failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTransient         = errors.New("transient failure")
	ErrNoOp              = errors.New("nothing to do")
	ErrRejected          = errors.New("request rejected")
)

func (o Outcome) sentinel() error {
	switch o {
	case OutcomeAuthFailure:
		return ErrAuthFailure
	case OutcomeInsufficientFunds:
		return ErrInsufficientFunds
	case OutcomeTransient:
		return ErrTransient
	case OutcomeNoOp:
		return ErrNoOp
	case OutcomeRejected:
		return ErrRejected
	default:
		return nil
	}
}

// Error 是网关层统一的失败结果。
type Error struct {
	Op      string
	Outcome Outcome
	Status  int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Outcome.String()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	s := e.Outcome.sentinel()
	return s != nil && s == target
}

func NewError(op string, outcome Outcome, status int, err error) *Error {
	return &Error{Op: op, Outcome: outcome, Status: status, Err: err}
}

// OutcomeOf 把任意错误映射为结果类别；nil 为 OutcomeOK，非 *Error 视为 Transient。
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Outcome
	}
	return OutcomeTransient
}

// ClassifyStatus 把非成功的 HTTP 状态码映射为结果类别。
func ClassifyStatus(status int) Outcome {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return OutcomeAuthFailure
	case status == http.StatusPaymentRequired:
		return OutcomeInsufficientFunds
	case status == http.StatusNotFound, status == http.StatusConflict:
		return OutcomeNoOp
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return OutcomeTransient
	default:
		return OutcomeRejected
	}
}
