// Copyright 2026 the Trackeo Server authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingest

import (
	"errors"
)

// ErrValidation is matched by every error caused by a bad submission. Such
// errors are reported to the caller and nothing is persisted.
var ErrValidation = errors.New("validation failed")

// Messages returned to submitting federations.
const (
	msgPayloadScheme     = "Payload URL must be HTTPS or signed storage URL"
	msgPayloadHost       = "Payload URL must include a host"
	msgTokenRequired     = "Federation access token is required"
	msgFederationUnknown = "Federation not registered for secure uploads"
	msgTokenInvalid      = "Invalid federation access token"
)

// ValidationError wraps the caller-facing reason a submission was rejected.
type ValidationError struct {
	err error
}

func newValidationError(msg string) error {
	return &ValidationError{err: errors.New(msg)}
}

func (e *ValidationError) Error() string {
	return e.err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

// Is makes errors.Is(err, ErrValidation) true for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
