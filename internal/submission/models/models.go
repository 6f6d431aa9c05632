// Package models defines the submission domain entities.
package models

import (
	"time"

	id "canvass/pkg/domain"
)

// Submission is one recorded voter comment and the response generated for
// it. VoterID is nil for unauthenticated submissions; those are the rows
// AnonymousSummary watches.
type Submission struct {
	ID                id.SubmissionID
	Name              string
	VoterID           *string
	Email             string
	Comment           string
	GeneratedResponse string
	CandidateKey      string
	CreatedAt         time.Time
}

// IsAnonymous reports whether the submission carries no voter id.
func (s Submission) IsAnonymous() bool {
	return s.VoterID == nil || *s.VoterID == ""
}

// SummaryRow aggregates anonymous submissions by submitter for volume
// monitoring.
type SummaryRow struct {
	Name            string    `json:"name"`
	Email           string    `json:"email,omitempty"`
	Count           int       `json:"count"`
	LastSubmittedAt time.Time `json:"lastSubmittedAt"`
}
