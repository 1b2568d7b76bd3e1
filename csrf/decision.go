package csrf

import "net/http"

// Decision is the outcome of checking one request against the guard.
// The zero value is never an acceptance.
type Decision int

const (
	DecisionUnknown Decision = iota
	DecisionValid
	DecisionBypassed
	DecisionMissingToken
	DecisionNotFound
	DecisionExpired
	DecisionMismatch
	// DecisionStoreUnavailable is only produced by shared backends; the guard fails closed on it.
	DecisionStoreUnavailable
)

var decisionNames = map[Decision]string{
	DecisionUnknown:          "unknown",
	DecisionValid:            "valid",
	DecisionBypassed:         "bypassed",
	DecisionMissingToken:     "missing_token",
	DecisionNotFound:         "not_found",
	DecisionExpired:          "expired",
	DecisionMismatch:         "mismatch",
	DecisionStoreUnavailable: "store_unavailable",
}

var decisionMessages = map[Decision]string{
	DecisionMissingToken:     "CSRF token required",
	DecisionNotFound:         "CSRF token not found or expired",
	DecisionExpired:          "CSRF token expired",
	DecisionMismatch:         "Invalid CSRF token",
	DecisionStoreUnavailable: "CSRF validation unavailable",
}

func (d Decision) String() string {
	if name, ok := decisionNames[d]; ok {
		return name
	}
	return decisionNames[DecisionUnknown]
}

// Allowed reports whether the request may proceed to the protected handler.
func (d Decision) Allowed() bool {
	return d == DecisionValid || d == DecisionBypassed
}

// Retryable reports whether the client should fetch a fresh token and retry.
// A mismatch is not retryable: it may indicate tampering.
func (d Decision) Retryable() bool {
	switch d {
	case DecisionMissingToken, DecisionNotFound, DecisionExpired, DecisionStoreUnavailable:
		return true
	}
	return false
}

// Message is the human readable rejection reason. The text is cosmetic; clients should
// branch on String().
func (d Decision) Message() string {
	if msg, ok := decisionMessages[d]; ok {
		return msg
	}
	return "CSRF validation failed"
}

// StatusCode maps a rejection onto an HTTP status. Client-caused rejections are 403;
// a backend outage is 503 so it is not mistaken for a forged request.
func (d Decision) StatusCode() int {
	switch {
	case d.Allowed():
		return http.StatusOK
	case d == DecisionStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusForbidden
	}
}
