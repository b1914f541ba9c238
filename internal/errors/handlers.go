package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/blocksmith-dev/blocksmith/internal/logger"
)

// ErrorHandler provides interface-specific error handling
type ErrorHandler interface {
	HandleError(err error) error
	FormatError(err error) string
}

// CLIErrorHandler formats errors for terminal display.
type CLIErrorHandler struct {
	Verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler(verbose bool) *CLIErrorHandler {
	return &CLIErrorHandler{Verbose: verbose}
}

// HandleError logs the error when verbose and returns a display-ready error.
func (h *CLIErrorHandler) HandleError(err error) error {
	appErr := GetAppError(err)

	if h.Verbose {
		logger.Log.WithField("code", appErr.Code).Debug(appErr.Error())
		if appErr.Cause != nil {
			logger.Log.Debugf("caused by: %v", appErr.Cause)
		}
	}

	return fmt.Errorf("%s", h.FormatError(appErr))
}

// FormatError formats an error for CLI display
func (h *CLIErrorHandler) FormatError(err error) string {
	appErr := GetAppError(err)

	switch appErr.Severity {
	case SeverityCritical:
		return fmt.Sprintf("❌ CRITICAL: %s", appErr.Message)
	case SeverityError:
		return fmt.Sprintf("❌ ERROR: %s", appErr.Message)
	case SeverityWarning:
		return fmt.Sprintf("⚠️  WARNING: %s", appErr.Message)
	case SeverityInfo:
		return fmt.Sprintf("ℹ️  INFO: %s", appErr.Message)
	default:
		return fmt.Sprintf("❌ %s", appErr.Message)
	}
}

// HTTPErrorHandler converts errors into structured JSON responses. The dev
// server never lets an internal failure escape as anything but one of these.
type HTTPErrorHandler struct {
	IncludeDetails bool
}

// NewHTTPErrorHandler creates a new HTTP error handler
func NewHTTPErrorHandler(includeDetails bool) *HTTPErrorHandler {
	return &HTTPErrorHandler{IncludeDetails: includeDetails}
}

// HandleError logs the error and returns the normalized AppError.
func (h *HTTPErrorHandler) HandleError(err error) error {
	appErr := GetAppError(err)

	logger.Log.WithField("code", appErr.Code).Warn(appErr.Error())
	if appErr.Cause != nil {
		logger.Log.Debugf("caused by: %v", appErr.Cause)
	}

	return appErr
}

// FormatError formats an error for an HTTP response body.
func (h *HTTPErrorHandler) FormatError(err error) string {
	appErr := GetAppError(err)

	body := map[string]interface{}{
		"success": false,
		"error": map[string]interface{}{
			"code":      appErr.Code,
			"message":   appErr.Message,
			"timestamp": appErr.Timestamp,
		},
	}

	if h.IncludeDetails && appErr.Details != "" {
		body["error"].(map[string]interface{})["details"] = appErr.Details
	}
	if h.IncludeDetails && appErr.Context != nil {
		body["error"].(map[string]interface{})["context"] = appErr.Context
	}

	jsonBytes, _ := json.Marshal(body)
	return string(jsonBytes)
}

// WriteHTTPError writes an error response to HTTP
func (h *HTTPErrorHandler) WriteHTTPError(w http.ResponseWriter, err error) {
	appErr := GetAppError(err)
	h.HandleError(appErr)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(h.getHTTPStatusCode(appErr))
	w.Write([]byte(h.FormatError(appErr)))
}

// getHTTPStatusCode maps error codes to HTTP status codes
func (h *HTTPErrorHandler) getHTTPStatusCode(appErr *AppError) int {
	switch appErr.Code {
	case ErrCodeValidation, ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadyExists:
		return http.StatusConflict
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodePlanLimit:
		return http.StatusPaymentRequired
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
