package sign

import "fmt"

type ErrorCode string

const (
	SIGN_ERR_NO_CERTIFICATES_PRESENTED ErrorCode = "SIGN_ERR_NO_CERTIFICATES_PRESENTED"
	SIGN_ERR_SIGN_FAILED               ErrorCode = "SIGN_ERR_SIGN_FAILED"
	SIGN_ERR_KEY_UNAVAILABLE           ErrorCode = "SIGN_ERR_KEY_UNAVAILABLE"
	SIGN_ERR_UNSUPPORTED_KEY           ErrorCode = "SIGN_ERR_UNSUPPORTED_KEY"
	SIGN_ERR_KEY_PARSE                 ErrorCode = "SIGN_ERR_KEY_PARSE"
	SIGN_ERR_KEY_MISMATCH              ErrorCode = "SIGN_ERR_KEY_MISMATCH"
)

// Error is the error type returned by every operation in this package.
// errors.Is matches on Code alone.
type Error struct {
	Code ErrorCode
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	s := string(e.Code)
	if e.Msg != "" {
		s = fmt.Sprintf("%s: %s", s, e.Msg)
	}
	if e.Err != nil {
		s = fmt.Sprintf("%s: %v", s, e.Err)
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNoCertificatesPresented = &Error{Code: SIGN_ERR_NO_CERTIFICATES_PRESENTED}
	ErrSignFailed              = &Error{Code: SIGN_ERR_SIGN_FAILED}
	ErrKeyUnavailable          = &Error{Code: SIGN_ERR_KEY_UNAVAILABLE}
	ErrUnsupportedKey          = &Error{Code: SIGN_ERR_UNSUPPORTED_KEY}
	ErrKeyParse                = &Error{Code: SIGN_ERR_KEY_PARSE}
	ErrKeyMismatch             = &Error{Code: SIGN_ERR_KEY_MISMATCH}
)

func signerr(code ErrorCode, msg string, err error) error {
	return &Error{Code: code, Msg: msg, Err: err}
}
