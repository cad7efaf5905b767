package domain

import "fmt"

// Kind is the stable machine-readable error category surfaced to callers.
type Kind string

const (
	KindValidation            Kind = "validation"
	KindAuthentication        Kind = "authentication"
	KindConflict              Kind = "conflict"
	KindNotFound              Kind = "not_found"
	KindNoLiquidity           Kind = "no_liquidity"
	KindInsufficientLiquidity Kind = "insufficient_liquidity"
)

// Error carries a kind plus a human-readable message. Messages never include
// storage or stack detail.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return e.Msg
}

// Is matches any *Error of the same kind, so errors.Is(err, domain.ErrConflict)
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// Kind sentinels for errors.Is.
var (
	ErrValidation            = &Error{Kind: KindValidation}
	ErrAuthentication        = &Error{Kind: KindAuthentication}
	ErrConflict              = &Error{Kind: KindConflict}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrNoLiquidity           = &Error{Kind: KindNoLiquidity}
	ErrInsufficientLiquidity = &Error{Kind: KindInsufficientLiquidity}
)

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func Authenticationf(format string, args ...any) *Error {
	return &Error{Kind: KindAuthentication, Msg: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func NoLiquidityf(format string, args ...any) *Error {
	return &Error{Kind: KindNoLiquidity, Msg: fmt.Sprintf(format, args...)}
}

func InsufficientLiquidityf(format string, args ...any) *Error {
	return &Error{Kind: KindInsufficientLiquidity, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from any error produced by this module; unknown
// errors report an empty kind.
func KindOf(err error) Kind {
	var e *Error
	for err != nil {
		if de, ok := err.(*Error); ok {
			e = de
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return ""
	}
	return e.Kind
}
