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

// Package model is a model abstraction of federations and their result
// submissions.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/trackeo/trackeo-server/internal/project"
)

const (
	// MaxStatusDetailsLength is the column width of status_details.
	MaxStatusDetailsLength = 500

	// ProcessedDetails is recorded on every successfully verified submission.
	ProcessedDetails = "Validated payload URL and queued ingestion."
)

// ErrInvalidTransition is returned when a status change would move a
// submission backwards or skip a state.
var ErrInvalidTransition = errors.New("invalid status transition")

// Status is the processing state of a submission.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusProcessed, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible from s.
func (s Status) IsTerminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// CanTransitionTo reports whether a submission in status s may move to next.
// Every submission passes through processing before reaching a terminal
// status.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusProcessed || next == StatusFailed
	}
	return false
}

// Federation is an organizing body that may submit results.
type Federation struct {
	ID      int64
	Name    string
	Country string
	Website string

	// IngestTokenHash is the hex SHA-256 of the federation's ingest token. An
	// empty hash means the federation is not provisioned for secure uploads.
	IngestTokenHash string
}

// AcceptsSecureUploads reports whether the federation has an ingest token.
func (f *Federation) AcceptsSecureUploads() bool {
	return f != nil && f.IngestTokenHash != ""
}

// HashIngestToken returns the lowercase hex SHA-256 of the trimmed token.
func HashIngestToken(token string) string {
	sum := sha256.Sum256([]byte(project.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

// Submission is one externally hosted results payload and its processing
// state.
type Submission struct {
	ID int64 `json:"id"`

	// FederationID is the federation resolved at submission time. It is nil for
	// rows created before the column existed.
	FederationID *int64 `json:"-"`

	FederationName string  `json:"federation_name"`
	ContactEmail   string  `json:"contact_email"`
	PayloadURL     string  `json:"payload_url"`
	Notes          *string `json:"notes"`

	Status        Status     `json:"status"`
	StatusDetails *string    `json:"status_details"`
	CreatedAt     time.Time  `json:"submitted_at"`
	ProcessedAt   *time.Time `json:"processed_at"`
	VerifiedAt    *time.Time `json:"verified_at"`
	Checksum      *string    `json:"checksum"`
}

// MarkProcessing moves the submission to StatusProcessing. ProcessedAt is only
// set the first time.
func (s *Submission) MarkProcessing(now time.Time) error {
	if err := s.transition(StatusProcessing); err != nil {
		return err
	}
	if s.ProcessedAt == nil {
		s.ProcessedAt = &now
	}
	return nil
}

// MarkProcessed moves the submission to StatusProcessed and records the
// checksum together with the verification time.
func (s *Submission) MarkProcessed(checksum string, now time.Time) error {
	if err := s.transition(StatusProcessed); err != nil {
		return err
	}
	details := ProcessedDetails
	s.Checksum = &checksum
	s.VerifiedAt = &now
	s.StatusDetails = &details
	return nil
}

// MarkFailed moves the submission to StatusFailed with the given reason.
func (s *Submission) MarkFailed(details string) error {
	if err := s.transition(StatusFailed); err != nil {
		return err
	}
	details = TruncateDetails(details)
	s.StatusDetails = &details
	return nil
}

func (s *Submission) transition(next Status) error {
	if !s.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, next)
	}
	s.Status = next
	return nil
}

// TruncateDetails shortens details to fit the status_details column without
// splitting a multi-byte rune.
func TruncateDetails(details string) string {
	if utf8.RuneCountInString(details) <= MaxStatusDetailsLength {
		return details
	}
	runes := []rune(details)
	return string(runes[:MaxStatusDetailsLength])
}

// Copy returns a deep copy of the submission.
func (s *Submission) Copy() *Submission {
	if s == nil {
		return nil
	}

	c := *s
	c.FederationID = copyPtr(s.FederationID)
	c.Notes = copyPtr(s.Notes)
	c.StatusDetails = copyPtr(s.StatusDetails)
	c.ProcessedAt = copyPtr(s.ProcessedAt)
	c.VerifiedAt = copyPtr(s.VerifiedAt)
	c.Checksum = copyPtr(s.Checksum)
	return &c
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
