// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Validation failed", Fields: fields}
}

// StockError reports the quantities behind an insufficient-stock conflict.
type StockError struct {
	Detail    string `json:"detail"`
	Available int    `json:"available"`
	Required  int    `json:"required"`
}

func NewStock(msg string, available, required int) *StockError {
	return &StockError{Detail: msg, Available: available, Required: required}
}

// CheckError lists every failed availability check.
type CheckError struct {
	Detail   string   `json:"detail"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

func NewCheck(errs, warnings []string) *CheckError {
	return &CheckError{Detail: "Stock validation failed", Errors: errs, Warnings: warnings}
}
