// Package errors provides unified error handling with structured error codes.
// Codes map onto gRPC status codes so the same taxonomy is used on the HTTP,
// WebSocket and vision sidecar boundaries.
package errors

import (
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// Domain is reported in ErrorInfo details.
const Domain = "blinkguard"

// Code identifies an error class.
type Code string

const (
	CodeUnknown         Code = "UNKNOWN"
	CodeInternal        Code = "INTERNAL"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeUnavailable     Code = "UNAVAILABLE"
	CodeTimeout         Code = "TIMEOUT"
	CodeCancelled       Code = "CANCELLED"

	// Blink monitoring
	CodeMissingSignal Code = "MISSING_SIGNAL"
	CodeInvalidConfig Code = "INVALID_CONFIGURATION"
	CodeTimerFailure  Code = "TIMER_FACILITY_FAILURE"

	// Vision sidecar
	CodeVisionStreamFailed Code = "VISION_STREAM_FAILED"
)

// grpcCodeMap maps Code to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	CodeUnknown:            codes.Unknown,
	CodeInternal:           codes.Internal,
	CodeInvalidArgument:    codes.InvalidArgument,
	CodeNotFound:           codes.NotFound,
	CodeUnavailable:        codes.Unavailable,
	CodeTimeout:            codes.DeadlineExceeded,
	CodeCancelled:          codes.Canceled,
	CodeMissingSignal:      codes.FailedPrecondition,
	CodeInvalidConfig:      codes.InvalidArgument,
	CodeTimerFailure:       codes.Internal,
	CodeVisionStreamFailed: codes.Unavailable,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// ToProto converts to a google.rpc.ErrorInfo detail.
func (e *AppError) ToProto() *errdetails.ErrorInfo {
	info := &errdetails.ErrorInfo{Reason: string(e.Code), Domain: Domain}
	if len(e.Metadata) > 0 {
		info.Metadata = make(map[string]string, len(e.Metadata)+1)
		for k, v := range e.Metadata {
			info.Metadata[k] = v
		}
	}
	if info.Metadata == nil {
		info.Metadata = map[string]string{}
	}
	info.Metadata["message"] = e.Message
	return info
}

// GRPCStatus returns a gRPC status with the ErrorInfo attached.
func (e *AppError) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.Error())
	if withDetail, err := st.WithDetails(e.ToProto()); err == nil {
		return withDetail
	}
	return st
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError extracts AppError from a gRPC error if present.
func FromGRPCError(err error) *AppError {
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: CodeUnknown, Message: err.Error(), Cause: err}
	}

	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != Domain {
			continue
		}
		md := make(map[string]string, len(info.GetMetadata()))
		msg := st.Message()
		for k, v := range info.GetMetadata() {
			if k == "message" {
				msg = v
				continue
			}
			md[k] = v
		}
		if len(md) == 0 {
			md = nil
		}
		return &AppError{Code: Code(info.GetReason()), Message: msg, Metadata: md}
	}

	return &AppError{Code: grpcToCode(st.Code()), Message: st.Message(), Cause: err}
}

// grpcToCode maps gRPC codes back to our codes (best effort).
func grpcToCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return CodeInvalidArgument
	case codes.NotFound:
		return CodeNotFound
	case codes.Unavailable:
		return CodeUnavailable
	case codes.DeadlineExceeded:
		return CodeTimeout
	case codes.Canceled:
		return CodeCancelled
	case codes.Internal:
		return CodeInternal
	default:
		return CodeUnknown
	}
}

// CodeOf returns the code of the first AppError in err's chain.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case CodeUnavailable, CodeTimeout, CodeVisionStreamFailed:
		return true
	default:
		return false
	}
}

var _ proto.Message = (*errdetails.ErrorInfo)(nil)
