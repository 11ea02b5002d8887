// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package tracebox

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrorCode classifies why a run could not start or complete.
type ErrorCode string

const (
	// ErrCodeDNS indicates the destination hostname could not be resolved.
	ErrCodeDNS ErrorCode = "DNS"
	// ErrCodeTimeout indicates the run was cancelled or timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeHostUnreach indicates the destination host is unreachable.
	ErrCodeHostUnreach ErrorCode = "HOSTUNREACH"
	// ErrCodeNetUnreach indicates the destination network is unreachable.
	ErrCodeNetUnreach ErrorCode = "NETUNREACH"
	// ErrCodeDenied indicates missing privileges for raw sockets.
	ErrCodeDenied ErrorCode = "DENIED"
	// ErrCodeInvalidRequest indicates bad parameters or an unusable probe.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	// ErrCodeNoInterface indicates no interface routes to the destination.
	ErrCodeNoInterface ErrorCode = "NO_INTERFACE"
	// ErrCodeNoSource indicates the interface has no usable source address.
	ErrCodeNoSource ErrorCode = "NO_SOURCE"
	// ErrCodeUnsupported indicates the platform cannot send raw probes.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"
	// ErrCodeUnknown is the catch-all for unclassified errors.
	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// ErrUnsupportedPlatform is returned by transports on platforms without raw
// socket support.
var ErrUnsupportedPlatform = errors.New("raw probing is not supported on this platform")

// SetupError is returned by Run when the probe could not be prepared. No
// probe was sent.
type SetupError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *SetupError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

func setupError(code ErrorCode, err error, format string, args ...any) *SetupError {
	return &SetupError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// DNSError wraps hostname resolution failures so they can be classified at
// the HTTP boundary.
type DNSError struct {
	Host string
	Err  error
}

func (e *DNSError) Error() string {
	return fmt.Sprintf("failed to resolve host %q: %s", e.Host, e.Err)
}

func (e *DNSError) Unwrap() error {
	return e.Err
}

// Error is a classified error from a run.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorResponse is the JSON body returned on error from the HTTP API.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ClassifyError inspects an error chain and returns an Error with the
// appropriate code.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}
	classified := func(code ErrorCode) *Error {
		return &Error{Code: code, Message: err.Error(), Err: err}
	}

	var setupErr *SetupError
	if errors.As(err, &setupErr) && setupErr.Code != ErrCodeUnknown {
		return classified(setupErr.Code)
	}

	var dnsErr *DNSError
	if errors.As(err, &dnsErr) {
		return classified(ErrCodeDNS)
	}
	if errors.Is(err, ErrUnsupportedPlatform) {
		return classified(ErrCodeUnsupported)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return classified(ErrCodeTimeout)
	}

	var netDNSErr *net.DNSError
	if errors.As(err, &netDNSErr) {
		if netDNSErr.IsTimeout {
			return classified(ErrCodeTimeout)
		}
		return classified(ErrCodeDNS)
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return classified(classifyErrno(errno))
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Timeout() {
		return classified(ErrCodeTimeout)
	}

	return classified(ErrCodeUnknown)
}

func classifyErrno(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.EHOSTUNREACH:
		return ErrCodeHostUnreach
	case syscall.ENETUNREACH:
		return ErrCodeNetUnreach
	case syscall.EACCES, syscall.EPERM:
		return ErrCodeDenied
	case syscall.ETIMEDOUT:
		return ErrCodeTimeout
	default:
		return ErrCodeUnknown
	}
}
