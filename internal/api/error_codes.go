// internal/api/error_codes.go
package api

// API error codes
const (
	// general
	ErrorBadRequest       = "BAD_REQUEST"
	ErrorNotFound         = "NOT_FOUND"
	ErrorInternalError    = "INTERNAL_ERROR"
	ErrorValidationFailed = "VALIDATION_FAILED"
	ErrorRateLimited      = "RATE_LIMIT_EXCEEDED"

	// session
	ErrorAuthRequired = "AUTH_REQUIRED"
	ErrorLoginFailed  = "LOGIN_FAILED"

	// projects and scripts
	ErrorProjectNotFound = "PROJECT_NOT_FOUND"
	ErrorScriptNotFound  = "SCRIPT_NOT_FOUND"
	ErrorUnknownCategory = "UNKNOWN_BUDGET_CATEGORY"

	// remote service
	ErrorRemoteFailed = "REMOTE_REQUEST_FAILED"
	ErrorFileInvalid  = "FILE_INVALID"
)

// LoginPath is where logged-out UI requests are redirected
const LoginPath = "/login"
