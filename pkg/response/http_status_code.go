package response

// Error codes shared by REST error bodies and realtime ERROR acks.
const (
	CodeInvalidMessage  = "INVALID_MESSAGE"
	CodeUnknownEvent    = "UNKNOWN_EVENT"
	CodeValidation      = "VALIDATION_ERROR"
	CodePersistFailed   = "PERSIST_FAILED"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternal        = "INTERNAL_ERROR"
)

// message
var msg = map[string]string{
	CodeInvalidMessage:  "invalid message format",
	CodeUnknownEvent:    "unknown event",
	CodeValidation:      "invalid input data",
	CodePersistFailed:   "message was delivered but could not be saved",
	CodeUnauthenticated: "please login to access this route",
	CodeForbidden:       "you are not allowed to access this resource",
	CodeNotFound:        "resource not found",
	CodeRateLimited:     "too many requests",
	CodeInternal:        "an unexpected error occurred",
}

// Msg returns the default human readable text for code.
func Msg(code string) string {
	if m, ok := msg[code]; ok {
		return m
	}
	return msg[CodeInternal]
}
