package platformerrors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HTTPErrorResponse represents the standard error response format.
type HTTPErrorResponse struct {
	Error *HTTPErrorDetail `json:"error"`
}

// HTTPErrorDetail contains error details for HTTP responses.
type HTTPErrorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorTypeToHTTPStatus maps error types to HTTP status codes
func ErrorTypeToHTTPStatus(errorType ErrorType) int {
	switch errorType {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeExternal:
		return http.StatusServiceUnavailable
	case ErrorTypeDatabaseError, ErrorTypeInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes an error as an HTTP response.
// Non-platform errors are reported as internal errors.
func WriteError(c *gin.Context, err error, log zerolog.Logger) {
	platformErr := GetPlatformError(err)
	if platformErr == nil {
		message := "unknown error"
		if err != nil {
			message = err.Error()
		}
		platformErr = NewError(c.Request.Context(), LayerHandler, ErrorTypeInternal, message, err, "")
	}

	LogError(log, platformErr)

	c.AbortWithStatusJSON(ErrorTypeToHTTPStatus(platformErr.Type), HTTPErrorResponse{
		Error: &HTTPErrorDetail{
			Message:   platformErr.Message,
			Type:      string(platformErr.Type),
			Code:      platformErr.Code,
			RequestID: platformErr.RequestID,
		},
	})
}
