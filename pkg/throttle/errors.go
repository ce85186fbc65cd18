// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package throttle

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrRateLimited is returned when a request is denied by the throttle.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnknownCategory is returned when a category is not configured.
	ErrUnknownCategory = errors.New("unknown throttle category")
)

// LimitError carries the Decision of a denied request.
type LimitError struct {
	Decision Decision
}

// NewLimitError creates a LimitError from a denied Decision.
func NewLimitError(d Decision) *LimitError {
	return &LimitError{Decision: d}
}

// Error returns the user-facing retry message.
func (e *LimitError) Error() string {
	return fmt.Sprintf("too many requests, retry in %d seconds", e.Decision.RetryAfterSeconds())
}

// Unwrap returns ErrRateLimited.
func (e *LimitError) Unwrap() error {
	return ErrRateLimited
}

// IsLimitError checks if an error is a throttle denial.
func IsLimitError(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// DecisionFromError extracts the Decision from a LimitError.
// Returns false if err is not a LimitError.
func DecisionFromError(err error) (Decision, bool) {
	var le *LimitError
	if errors.As(err, &le) {
		return le.Decision, true
	}
	return Decision{}, false
}

// ConfigurationError reports a category missing from the rule table.
// Check and Status panic with it.
type ConfigurationError struct {
	Category Category
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownCategory, string(e.Category))
}

// Unwrap returns ErrUnknownCategory.
func (e *ConfigurationError) Unwrap() error {
	return ErrUnknownCategory
}

// ValidationError represents an invalid rule.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the validation error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
