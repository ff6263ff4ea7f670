package domain

import "errors"

// Common errors used throughout the application.
var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidAddress = errors.New("invalid IPv4 address")
	ErrInvalidMask    = errors.New("invalid subnet mask")
	ErrSyncFailed     = errors.New("sync failed")

	// ErrGatewayRuleNotFound means the rule set has no NAT gateway rule,
	// usually because the hub was never provisioned by this service.
	ErrGatewayRuleNotFound = errors.New("gateway rule not found")

	// ErrGatewayRuleAmbiguous means more than one rule claims to be the NAT
	// gateway rule. The rule set is corrupt and must not be edited.
	ErrGatewayRuleAmbiguous = errors.New("multiple gateway rules")

	ErrMalformedRuleSet = errors.New("malformed rule set")
)

// Error codes for standardized API error responses.
const (
	ErrCodeResourceNotFound      = "RESOURCE_NOT_FOUND"
	ErrCodeResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ErrCodeInvalidInput          = "INVALID_INPUT"
	ErrCodeValidationError       = "VALIDATION_ERROR"
	ErrCodeGatewayRuleNotFound   = "GATEWAY_RULE_NOT_FOUND"
	ErrCodeGatewayRuleAmbiguous  = "GATEWAY_RULE_AMBIGUOUS"
	ErrCodeMalformedRuleSet      = "MALFORMED_RULE_SET"
	ErrCodeSyncFailed            = "SYNC_FAILED"
	ErrCodePreconditionFailed    = "PRECONDITION_FAILED"
	ErrCodeInternalError         = "INTERNAL_ERROR"
)

// StandardError represents a standardized error response from the API.
type StandardError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// StandardErrorResponse wraps a StandardError for JSON responses.
type StandardErrorResponse struct {
	Error StandardError `json:"error"`
}
