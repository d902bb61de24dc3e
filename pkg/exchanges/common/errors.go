package common

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind is the closed classification every venue error maps into.
// Callers branch on the kind, never on message text.
type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication"
	KindPermission     ErrorKind = "permission"
	KindTimestampSkew  ErrorKind = "timestamp_skew"
	KindNetworkTimeout ErrorKind = "network_timeout"
	KindRateLimit      ErrorKind = "rate_limit"
	KindSymbolNotFound ErrorKind = "symbol_not_found"
	KindSimulatedMode  ErrorKind = "unsupported_in_simulated_mode"
	KindUnknown        ErrorKind = "unknown_provider"
)

// Permission sub-kinds. IP restriction gets its own remediation path.
const (
	SubkindScope        = "insufficient_scope"
	SubkindIPRestricted = "ip_restricted"
)

// APIError is the typed error carried across the connector boundary.
type APIError struct {
	Kind        ErrorKind
	Subkind     string        // optional refinement, e.g. ip_restricted
	Code        string        // raw provider code for diagnosis
	Message     string        // raw provider message
	Hint        string        // remediation hint shown to the user
	RetryAfter  time.Duration // suggested backoff for rate-limit errors
	Suggestions []string      // valid symbols for symbol_not_found
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (code %s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Transient reports whether the transport may retry the call.
func (e *APIError) Transient() bool {
	return e.Kind == KindTimestampSkew || e.Kind == KindNetworkTimeout
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// KindOf extracts the kind from err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// Known OKX v5 error codes.
const (
	CodeTimestampExpired = "50102"
	CodeInvalidKey       = "50111"
	CodeNoPermission     = "50113"
	CodeIPRestricted     = "50114"
	CodeRateLimited      = "50011"
)

// ClassifyProviderCode maps a provider error code to a typed APIError.
// httpStatus covers cases where the venue answers outside its JSON envelope
// (e.g. a bare 401 from an IP allowlist check).
func ClassifyProviderCode(httpStatus int, code, msg string) *APIError {
	switch code {
	case CodeTimestampExpired:
		return &APIError{
			Kind:    KindTimestampSkew,
			Code:    code,
			Message: msg,
			Hint:    "request timestamp fell outside the venue acceptance window; clock will be re-synced",
		}
	case CodeInvalidKey:
		return &APIError{
			Kind:    KindAuthentication,
			Code:    code,
			Message: msg,
			Hint:    "verify API key/secret/passphrase",
		}
	case CodeNoPermission:
		return &APIError{
			Kind:    KindPermission,
			Subkind: SubkindScope,
			Code:    code,
			Message: msg,
			Hint:    "check permissions/IP allowlist",
		}
	case CodeIPRestricted:
		return &APIError{
			Kind:    KindPermission,
			Subkind: SubkindIPRestricted,
			Code:    code,
			Message: msg,
			Hint:    "check permissions/IP allowlist",
		}
	case CodeRateLimited:
		return &APIError{
			Kind:       KindRateLimit,
			Code:       code,
			Message:    msg,
			Hint:       "reduce request rate",
			RetryAfter: 2 * time.Second,
		}
	}
	switch httpStatus {
	case 401:
		return &APIError{
			Kind:    KindPermission,
			Subkind: SubkindIPRestricted,
			Code:    code,
			Message: msg,
			Hint:    "check permissions/IP allowlist",
		}
	case 429:
		return &APIError{
			Kind:       KindRateLimit,
			Code:       code,
			Message:    msg,
			Hint:       "reduce request rate",
			RetryAfter: 2 * time.Second,
		}
	}
	return &APIError{Kind: KindUnknown, Code: code, Message: msg}
}

// NewTimeoutError wraps a network timeout or connection failure.
func NewTimeoutError(msg string) *APIError {
	return &APIError{
		Kind:    KindNetworkTimeout,
		Message: msg,
		Hint:    "upstream did not answer in time; the call was retried and still failed",
	}
}

// NewSymbolNotFoundError reports an unknown instrument with alternatives.
func NewSymbolNotFoundError(symbol string, suggestions []string) *APIError {
	return &APIError{
		Kind:        KindSymbolNotFound,
		Message:     fmt.Sprintf("symbol %q not listed by the venue", symbol),
		Hint:        "use a BASE/QUOTE pair the venue lists",
		Suggestions: suggestions,
	}
}

// NewSimulatedModeError reports an operation that live mode alone supports.
func NewSimulatedModeError(op string) *APIError {
	return &APIError{
		Kind:    KindSimulatedMode,
		Message: fmt.Sprintf("%s is not available while the connector runs in simulated mode", op),
		Hint:    "restore upstream connectivity and invalidate the connector",
	}
}
