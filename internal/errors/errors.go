package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error.
type ErrorType string

const (
	// Capture pipeline
	ErrorTypeCaptureStart     ErrorType = "CAPTURE_START_ERROR"
	ErrorTypeStreamDecode     ErrorType = "STREAM_DECODE_ERROR"
	ErrorTypeFrameUnavailable ErrorType = "FRAME_UNAVAILABLE"
	ErrorTypeNormalization    ErrorType = "NORMALIZATION_FAILURE"

	// Detector input contract
	ErrorTypeInvalidFrameSize ErrorType = "INVALID_FRAME_SIZE"
	ErrorTypeInvalidPixel     ErrorType = "INVALID_PIXEL"
	ErrorTypeInvalidState     ErrorType = "INVALID_STATE"

	// Status surface
	ErrorTypeValidation  ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound    ErrorType = "NOT_FOUND"
	ErrorTypeInternal    ErrorType = "INTERNAL_ERROR"
	ErrorTypeTimeout     ErrorType = "TIMEOUT"
	ErrorTypeServiceDown ErrorType = "SERVICE_DOWN"
)

// AppError represents an application error with additional context.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError of the same type, so that
// errors.Is(err, &AppError{Type: ErrorTypeInvalidPixel}) works.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCode adds an error code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// New creates a new AppError.
func New(errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error.
func Wrap(err error, errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// NewCaptureStartError reports that the collaborator could not produce a byte stream.
func NewCaptureStartError(err error) *AppError {
	return Wrap(err, ErrorTypeCaptureStart, "failed to start screen capture", http.StatusServiceUnavailable)
}

// NewStreamDecodeError wraps a per-chunk decode failure. These are logged and skipped.
func NewStreamDecodeError(err error) *AppError {
	return Wrap(err, ErrorTypeStreamDecode, "failed to decode stream chunk", http.StatusInternalServerError)
}

// NewFrameUnavailableError reports that no frame could be obtained.
func NewFrameUnavailableError(message string) *AppError {
	return New(ErrorTypeFrameUnavailable, message, http.StatusServiceUnavailable)
}

// NewNormalizationError reports a failed crop/resize. Never surfaced past normalization.
func NewNormalizationError(message string) *AppError {
	return New(ErrorTypeNormalization, message, http.StatusInternalServerError)
}

// NewInvalidFrameSizeError reports a frame whose dimensions match no known layout.
func NewInvalidFrameSizeError(width, height int) *AppError {
	return New(ErrorTypeInvalidFrameSize,
		fmt.Sprintf("invalid frame size %dx%d", width, height),
		http.StatusUnprocessableEntity).WithDetails(map[string]interface{}{
		"width":  width,
		"height": height,
	})
}

// NewInvalidPixelError reports a sample that is not a well-formed 3-channel pixel.
func NewInvalidPixelError(x, y, channels int) *AppError {
	return New(ErrorTypeInvalidPixel,
		fmt.Sprintf("pixel at (%d,%d) has %d channels, want 3", x, y, channels),
		http.StatusUnprocessableEntity).WithDetails(map[string]interface{}{
		"x":        x,
		"y":        y,
		"channels": channels,
	})
}

// NewInvalidStateError reports a state record that violates its invariants.
func NewInvalidStateError(message string) *AppError {
	return New(ErrorTypeInvalidState, message, http.StatusInternalServerError)
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message, http.StatusBadRequest)
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// NewInternalError creates an internal server error.
func NewInternalError(message string) *AppError {
	return New(ErrorTypeInternal, message, http.StatusInternalServerError)
}

// WrapInternalError wraps an error as internal server error.
func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message, http.StatusInternalServerError)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(message string) *AppError {
	return New(ErrorTypeTimeout, message, http.StatusRequestTimeout)
}

// NewServiceDownError creates a service down error.
func NewServiceDownError(service string) *AppError {
	return New(ErrorTypeServiceDown, fmt.Sprintf("%s service is currently unavailable", service), http.StatusServiceUnavailable)
}

// IsAppError checks if an error is, or wraps, an AppError.
func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}

// GetAppError extracts the first AppError in the chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Type == errType
}
