// Package probe drives a running predictor over HTTP and checks that its
// answers honour the service contract.
package probe

import (
	"errors"
	"time"
)

// ErrVerificationFailed is returned by Run when any check failed.
var ErrVerificationFailed = errors.New("probe verification failed")

// Config holds configuration for a probe run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Passengers   int           // Number of passengers to generate
	InvalidRatio float64       // Share of passengers with one field pushed out of domain
	Repeat       int           // Times each valid passenger is scored
	Workers      int           // Number of concurrent workers
	Timeout      time.Duration // HTTP request timeout
	Verbose      bool          // Log every failed check
}

// Case is one generated passenger and the answer expected for it.
type Case struct {
	ID        string         // Sent as X-Request-ID
	Passenger map[string]any // JSON body; a map so invalid cases can drop or mistype fields
	WantField string         // Field the service must reject; empty for valid cases
}

// Valid reports whether the service should score c.
func (c Case) Valid() bool { return c.WantField == "" }

// Prediction is the body of a successful /predict response.
type Prediction struct {
	Probability float64   `json:"probability"`
	Survived    bool      `json:"survived"`
	LinearScore float64   `json:"linear_score"`
	Features    []float64 `json:"features"`
}

// Violation names a rejected field.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ErrorResponse is the body of a failed /predict response.
type ErrorResponse struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Violations []Violation `json:"violations"`
}

// Stats holds probe statistics.
type Stats struct {
	Cases     int
	Valid     int
	Invalid   int
	Requests  int
	Passed    int
	Failed    int
	Survived  int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}
