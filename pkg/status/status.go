// Package status defines the flat integer status taxonomy reported by every
// headset operation.
package status

import (
	"errors"
	"fmt"
)

// Code is an integer status reported by headset operations.
type Code int

const (
	OK Code = iota
	NotFound
	NotOpen
	AlreadyPaired
	AlreadyOpen
	ServiceNotFound
	SendCharacteristicNotFound
	ReceiveCharacteristicNotFound
	DisconnectCharacteristicNotFound
	Timeout
	StopError
	FailedToSetCallback
	FailedToUnsubscribe
	NotPaired
	General
	NoData
)

var codeNames = map[Code]string{
	OK:                               "ok",
	NotFound:                         "not_found",
	NotOpen:                          "not_open",
	AlreadyPaired:                    "already_paired",
	AlreadyOpen:                      "already_open",
	ServiceNotFound:                  "service_not_found",
	SendCharacteristicNotFound:       "send_characteristic_not_found",
	ReceiveCharacteristicNotFound:    "receive_characteristic_not_found",
	DisconnectCharacteristicNotFound: "disconnect_characteristic_not_found",
	Timeout:                          "timeout",
	StopError:                        "stop_error",
	FailedToSetCallback:              "failed_to_set_callback",
	FailedToUnsubscribe:              "failed_to_unsubscribe",
	NotPaired:                        "not_paired",
	General:                          "general",
	NoData:                           "no_data",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Benign reports whether the code describes an outcome callers may ignore.
// AlreadyPaired leaves the session open; NoData only means the queue was empty.
func (c Code) Benign() bool {
	return c == OK || c == AlreadyPaired || c == NoData
}

// Error carries a status code together with the failed operation and the
// underlying cause.
type Error struct {
	Code Code
	Op   string
	Err  error
}

// New creates an Error for the given operation.
func New(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Code.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is allows errors.Is to compare Error values by Code
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Predefined sentinels for errors.Is checks
var (
	ErrNotFound                         = &Error{Code: NotFound}
	ErrNotOpen                          = &Error{Code: NotOpen}
	ErrAlreadyPaired                    = &Error{Code: AlreadyPaired}
	ErrAlreadyOpen                      = &Error{Code: AlreadyOpen}
	ErrServiceNotFound                  = &Error{Code: ServiceNotFound}
	ErrSendCharacteristicNotFound       = &Error{Code: SendCharacteristicNotFound}
	ErrReceiveCharacteristicNotFound    = &Error{Code: ReceiveCharacteristicNotFound}
	ErrDisconnectCharacteristicNotFound = &Error{Code: DisconnectCharacteristicNotFound}
	ErrTimeout                          = &Error{Code: Timeout}
	ErrStop                             = &Error{Code: StopError}
	ErrFailedToSetCallback              = &Error{Code: FailedToSetCallback}
	ErrFailedToUnsubscribe              = &Error{Code: FailedToUnsubscribe}
	ErrNotPaired                        = &Error{Code: NotPaired}
	ErrGeneral                          = &Error{Code: General}
	ErrNoData                           = &Error{Code: NoData}
)

// CodeOf extracts the status code from err. A nil error is OK and any error
// without a status is General.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Code
	}
	return General
}

// IsBenign reports whether err is nil or carries a benign status code.
func IsBenign(err error) bool {
	return CodeOf(err).Benign()
}
