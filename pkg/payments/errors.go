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

package payments

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrInvalidAmount is returned when an amount is outside its bounds.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrUnknownKind is returned for an unsupported payment kind.
	ErrUnknownKind = errors.New("unknown payment kind")

	// ErrNotFound is returned when a transaction does not exist.
	ErrNotFound = errors.New("transaction not found")

	// ErrSelfTip is returned when the tip recipient is the sender.
	ErrSelfTip = errors.New("cannot tip yourself")

	// ErrInvalidRequest is returned when a required field is missing.
	ErrInvalidRequest = errors.New("invalid payment request")
)

// AmountError describes an amount rejected by validation.
type AmountError struct {
	Kind   Kind
	Amount int64
	Reason string
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("%s for %s: %s", ErrInvalidAmount, e.Kind, e.Reason)
}

// Unwrap returns ErrInvalidAmount.
func (e *AmountError) Unwrap() error {
	return ErrInvalidAmount
}

func requestError(field string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidRequest, field)
}
