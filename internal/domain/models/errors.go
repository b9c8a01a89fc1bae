package models

import "fmt"

// Error codes for failures that cross component boundaries.
const (
	CodeDataUnavailable     = "ERR_DATA_UNAVAILABLE"
	CodeQualityInsufficient = "ERR_DATA_QUALITY_INSUFFICIENT"
	CodeInvalidInput        = "ERR_INVALID_INPUT"
	CodePoolNotFound        = "ERR_POOL_NOT_FOUND"
	CodeRateLimited         = "ERR_RATE_LIMITED"
)

// Sentinels for errors.Is matching. Any DomainError with the same code
// matches its sentinel regardless of message or params.
var (
	ErrDataUnavailable     = &DomainError{Code: CodeDataUnavailable, Message: "market data unavailable"}
	ErrQualityInsufficient = &DomainError{Code: CodeQualityInsufficient, Message: "market data quality below threshold"}
	ErrInvalidInput        = &DomainError{Code: CodeInvalidInput, Message: "invalid input"}
	ErrPoolNotFound        = &DomainError{Code: CodePoolNotFound, Message: "pool not found"}
	ErrRateLimited         = &DomainError{Code: CodeRateLimited, Message: "upstream rate limited"}
)

// DomainError represents a typed pipeline failure.
type DomainError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Err     error                  `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns underlying error.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches by error code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// WithParam sets a single error param.
func (e *DomainError) WithParam(key string, value interface{}) *DomainError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *DomainError) WithError(err error) *DomainError {
	e.Err = err
	return e
}

func newDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Params:  make(map[string]interface{}),
	}
}

// DataUnavailableError is returned when every retrieval strategy failed or
// came back empty. The attempt log records what was tried and why it failed.
func DataUnavailableError(attempts []StrategyAttempt) *DomainError {
	return newDomainError(CodeDataUnavailable, "all retrieval strategies exhausted").
		WithParam("attempts", attempts)
}

// QualityInsufficientError is returned when a record set grades below the
// configured minimum for quote issuance.
func QualityInsufficientError(grade Grade, min Grade) *DomainError {
	return newDomainError(CodeQualityInsufficient,
		fmt.Sprintf("data quality grade %s below required %s", grade, min)).
		WithParam("grade", string(grade)).
		WithParam("required", string(min))
}

// InvalidInputError is returned for request parameters that fail validation.
func InvalidInputError(field, message string) *DomainError {
	return newDomainError(CodeInvalidInput, message).WithParam("field", field)
}

// PoolNotFoundError is returned when no upstream record matches the pool ID.
func PoolNotFoundError(poolID string) *DomainError {
	return newDomainError(CodePoolNotFound,
		fmt.Sprintf("pool %s not found", poolID)).
		WithParam("pool_id", poolID)
}

// RateLimitedError is returned when the upstream rejected the request with
// HTTP 429 after retries were exhausted.
func RateLimitedError(host string) *DomainError {
	return newDomainError(CodeRateLimited,
		fmt.Sprintf("rate limited by %s", host)).
		WithParam("host", host)
}
