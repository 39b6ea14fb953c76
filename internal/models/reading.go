package models

import (
	"errors"
	"time"

	"plantwatch/internal/risk"
)

// Reading is one assessed observation for a machine: the raw sensor values
// plus the evaluator's verdict. Rows of this shape are persisted and
// published downstream.
type Reading struct {
	// Database row ID, set on retrieval
	ID int64 `json:"id,omitempty"`

	// Machine type identifier (profile key)
	Machine string `json:"machine"`

	// Observation instant
	Timestamp time.Time `json:"timestamp"`

	// Raw sensor values
	Values map[string]float64 `json:"values"`

	// Worst per-sensor status for the observation
	Status risk.Status `json:"status"`

	// Aggregate failure likelihood in [0,100]
	Score float64 `json:"score"`

	// Failure classification when the reading is not normal
	FailureType string `json:"failure_type,omitempty"`

	// Flagged sensors, ordered by descending contribution
	Issues []risk.Issue `json:"issues,omitempty"`
}

// Validation errors
var (
	ErrEmptyMachine  = errors.New("reading machine cannot be empty")
	ErrZeroTimestamp = errors.New("reading timestamp cannot be zero")
	ErrNoValues      = errors.New("reading has no sensor values")
	ErrInvalidStatus = errors.New("invalid reading status")
)

// Failure classifications, mirroring the per-status verdicts written to the
// status column.
const (
	FailureCritical    = "Critical Threshold Exceeded"
	FailureApproaching = "Approaching Critical Threshold"
)

// NewReading builds a Reading from a parameter set and its evaluation.
func NewReading(machine string, params risk.ParameterSet, report risk.LikelihoodReport) *Reading {
	ts := params.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	status := report.OverallStatus()
	failureType := ""
	switch status {
	case risk.StatusCritical:
		failureType = FailureCritical
	case risk.StatusWarning:
		failureType = FailureApproaching
	}

	return &Reading{
		Machine:     machine,
		Timestamp:   ts,
		Values:      params.Values,
		Status:      status,
		Score:       report.Score,
		FailureType: failureType,
		Issues:      report.Issues,
	}
}

// Validate checks that the reading is storable.
func (r *Reading) Validate() error {
	if r.Machine == "" {
		return ErrEmptyMachine
	}
	if r.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	if len(r.Values) == 0 {
		return ErrNoValues
	}
	switch r.Status {
	case risk.StatusNormal, risk.StatusWarning, risk.StatusCritical:
	default:
		return ErrInvalidStatus
	}
	return nil
}
