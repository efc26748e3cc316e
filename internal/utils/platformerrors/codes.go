package platformerrors

// Stable client-facing error codes carried by realtime error events.
const (
	CodeMissingToken       = "MISSING_TOKEN"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeAccountDeactivated = "ACCOUNT_DEACTIVATED"
	CodeNotAuthorized      = "NOT_AUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeUpstreamTimeout    = "UPSTREAM_TIMEOUT"
	CodePersistenceError   = "PERSISTENCE_ERROR"
	CodeValidation         = "VALIDATION"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL"
)

// CodeOf returns the client-facing code of err. An explicit Code wins;
// otherwise it is derived from the error type.
func CodeOf(err error) string {
	platformErr := GetPlatformError(err)
	if platformErr == nil {
		return CodeInternal
	}
	if platformErr.Code != "" {
		return platformErr.Code
	}
	switch platformErr.Type {
	case ErrorTypeNotFound:
		return CodeNotFound
	case ErrorTypeValidation:
		return CodeValidation
	case ErrorTypeUnauthorized:
		return CodeInvalidToken
	case ErrorTypeForbidden:
		return CodeNotAuthorized
	case ErrorTypeTimeout:
		return CodeUpstreamTimeout
	case ErrorTypeRateLimited:
		return CodeRateLimited
	case ErrorTypeDatabaseError:
		return CodePersistenceError
	default:
		return CodeInternal
	}
}

// ClientMessage returns the human message for err that is safe to show a client.
func ClientMessage(err error) string {
	platformErr := GetPlatformError(err)
	if platformErr == nil {
		return "internal error"
	}
	return platformErr.Message
}
