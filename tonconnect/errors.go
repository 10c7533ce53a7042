package tonconnect

import (
	"errors"
	"fmt"
)

// Protocol error codes sent by wallets in connect and RPC error
// payloads.
const (
	CodeUnknown            = 0
	CodeBadRequest         = 1
	CodeManifestNotFound   = 2
	CodeManifestContent    = 3
	CodeUnknownApp         = 100
	CodeUserRejects        = 300
	CodeMethodNotSupported = 400
	CodeRequestTimeout     = 500
)

var (
	// ErrNotConnected is returned by operations that need an active
	// wallet connection.
	ErrNotConnected = errors.New("tonconnect: wallet not connected")
	// ErrAlreadyConnected is returned by ConnectWallet while a wallet
	// is still connected.
	ErrAlreadyConnected = errors.New("tonconnect: wallet already connected")
	// ErrNoConnection is returned when storage holds no connection to
	// restore.
	ErrNoConnection = errors.New("tonconnect: no stored connection")
	// ErrFeatureNotSupported is returned when the wallet cannot serve
	// the requested method or message count.
	ErrFeatureNotSupported = errors.New("tonconnect: wallet does not support the feature")
	// ErrFetchWallets is returned when the wallets catalogue cannot be
	// loaded.
	ErrFetchWallets = errors.New("tonconnect: wallets catalogue unavailable")
	// ErrBridgeClosed is returned by bridge operations after Close.
	ErrBridgeClosed = errors.New("tonconnect: bridge closed")
)

// Error is a wallet-reported protocol error.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("tonconnect: %s (code %d)", e.Message, e.Code)
}

// Is lets callers match wallet errors by code with errors.Is against
// another *Error.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

var errorMessages = map[int]string{
	CodeUnknown:            "unknown error",
	CodeBadRequest:         "bad request",
	CodeManifestNotFound:   "app manifest not found",
	CodeManifestContent:    "app manifest content error",
	CodeUnknownApp:         "unknown app",
	CodeUserRejects:        "user rejected the action",
	CodeMethodNotSupported: "method not supported",
	CodeRequestTimeout:     "request timed out",
}

// NewError builds an Error from a wallet error payload, falling back
// to the protocol message for the code when message is empty.
func NewError(code int, message string) *Error {
	if message == "" {
		if m, ok := errorMessages[code]; ok {
			message = m
		} else {
			message = errorMessages[CodeUnknown]
		}
	}
	return &Error{Code: code, Message: message}
}

// UserRejected reports whether err is the wallet user declining the
// action.
func UserRejected(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == CodeUserRejects
}
