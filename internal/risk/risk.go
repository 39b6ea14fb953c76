// Package risk implements the threshold-based failure-likelihood evaluator.
// It is a pure function of a sensor configuration and one set of readings:
// no I/O, no internal state, safe to call from any goroutine.
package risk

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Status classifies a single sensor reading.
type Status string

const (
	StatusNormal   Status = "NORMAL"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
)

// Risk factors per status.
const (
	riskNormal   = 0.0
	riskWarning  = 0.5
	riskCritical = 1.0
)

// Evaluation errors
var (
	ErrUnknownSensor = errors.New("unknown sensor")
	ErrInvalidSpec   = errors.New("invalid sensor spec")
)

// Interval is a closed numeric range [Lo, Hi].
type Interval struct {
	Lo float64
	Hi float64
}

// Contains reports whether v lies inside the closed interval.
func (iv Interval) Contains(v float64) bool { return v >= iv.Lo && v <= iv.Hi }

// Outside reports whether v lies strictly outside the closed interval.
func (iv Interval) Outside(v float64) bool { return v < iv.Lo || v > iv.Hi }

// Bound is a threshold that comes in two shapes: a scalar upper bound
// (exceeded when value > upper) or a band whose exterior is out of bounds
// (exceeded when value < lo or value > hi). The band form exists for
// quantities like pressure where both too-low and too-high are dangerous.
type Bound struct {
	upper float64
	band  *Interval
}

// UpperBound returns a scalar-form bound exceeded above c.
func UpperBound(c float64) Bound { return Bound{upper: c} }

// BandBound returns a band-form bound exceeded outside [lo, hi].
func BandBound(lo, hi float64) Bound { return Bound{band: &Interval{Lo: lo, Hi: hi}} }

// IsBand reports whether the bound is in band form.
func (b Bound) IsBand() bool { return b.band != nil }

// Exceeded reports whether v violates the bound.
func (b Bound) Exceeded(v float64) bool {
	if b.band != nil {
		return b.band.Outside(v)
	}
	return v > b.upper
}

func (b Bound) validate() error {
	if b.band != nil && b.band.Lo > b.band.Hi {
		return fmt.Errorf("%w: bound interval lo > hi (%v > %v)", ErrInvalidSpec, b.band.Lo, b.band.Hi)
	}
	return nil
}

// MarshalJSON encodes a scalar bound as a number and a band bound as [lo, hi],
// mirroring the profile file format.
func (b Bound) MarshalJSON() ([]byte, error) {
	if b.band != nil {
		return json.Marshal([2]float64{b.band.Lo, b.band.Hi})
	}
	return json.Marshal(b.upper)
}

// UnmarshalJSON accepts either a number or a two-element array.
func (b *Bound) UnmarshalJSON(data []byte) error {
	var scalar float64
	if err := json.Unmarshal(data, &scalar); err == nil {
		*b = UpperBound(scalar)
		return nil
	}
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("%w: bound must be a number or [lo, hi]", ErrInvalidSpec)
	}
	*b = BandBound(pair[0], pair[1])
	return nil
}

// SensorSpec is the immutable per-sensor configuration: the normal and
// warning bands, the critical bound, and the sensor's relative weight in
// the aggregate score.
type SensorSpec struct {
	Name     string
	Normal   Interval
	Warning  Bound
	Critical Bound
	Weight   float64
}

// Validate checks the spec at configuration-load time. A negative weight or
// an inverted interval makes the spec unusable.
func (s SensorSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: empty sensor name", ErrInvalidSpec)
	}
	if s.Weight < 0 {
		return fmt.Errorf("%w: sensor %q has negative weight %v", ErrInvalidSpec, s.Name, s.Weight)
	}
	if s.Normal.Lo > s.Normal.Hi {
		return fmt.Errorf("%w: sensor %q normal range lo > hi", ErrInvalidSpec, s.Name)
	}
	if err := s.Warning.validate(); err != nil {
		return fmt.Errorf("sensor %q warning: %w", s.Name, err)
	}
	if err := s.Critical.validate(); err != nil {
		return fmt.Errorf("sensor %q critical: %w", s.Name, err)
	}
	return nil
}

// SpecSet maps sensor name to its spec for one machine type.
type SpecSet map[string]SensorSpec

// Validate checks every spec in the set. A spec with an empty Name takes its
// map key as the name, and keeps it.
func (ss SpecSet) Validate() error {
	for name, spec := range ss {
		if spec.Name == "" {
			spec.Name = name
			ss[name] = spec
		}
		if err := spec.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ParameterSet is one observation: named numeric readings at an instant.
// The timestamp is carried through untouched; evaluation never reads it.
type ParameterSet struct {
	Values    map[string]float64
	Timestamp time.Time
}

// Assessment is the per-sensor evaluation result.
type Assessment struct {
	Status     Status
	RiskFactor float64
}

// Issue is one sensor flagged WARNING or CRITICAL, with its weighted
// contribution to the aggregate score.
type Issue struct {
	Parameter        string  `json:"parameter"`
	Value            float64 `json:"value"`
	Status           Status  `json:"status"`
	RiskContribution float64 `json:"risk_contribution"`
}

// LikelihoodReport is the aggregate evaluation of one parameter set.
type LikelihoodReport struct {
	Score  float64 `json:"score"`
	Issues []Issue `json:"issues"`
}

// AssessParameter classifies one reading against its spec.
//
// The rule order is deliberate and asymmetric: the critical test uses the
// full band-exterior check when the bound is a band, while a scalar-form
// warning tests only its upper member. Do not symmetrize.
func AssessParameter(spec SensorSpec, value float64) Assessment {
	if spec.Critical.Exceeded(value) {
		return Assessment{Status: StatusCritical, RiskFactor: riskCritical}
	}
	if spec.Warning.Exceeded(value) {
		return Assessment{Status: StatusWarning, RiskFactor: riskWarning}
	}
	return Assessment{Status: StatusNormal, RiskFactor: riskNormal}
}

// CalculateFailureLikelihood evaluates every reading in params against specs
// and aggregates weighted risk contributions into a score clamped to [0, 100].
// Sensors are evaluated in lexicographic name order so that equal-contribution
// issues keep a deterministic relative order after the stable sort.
//
// A reading whose name has no spec is an input error, not something to skip:
// silently dropping it would hide misconfigured inputs.
func CalculateFailureLikelihood(specs SpecSet, params ParameterSet) (LikelihoodReport, error) {
	names := make([]string, 0, len(params.Values))
	for name := range params.Values {
		names = append(names, name)
	}
	sort.Strings(names)

	var likelihood float64
	issues := make([]Issue, 0)

	for _, name := range names {
		spec, ok := specs[name]
		if !ok {
			return LikelihoodReport{}, fmt.Errorf("%w: %q", ErrUnknownSensor, name)
		}
		value := params.Values[name]
		a := AssessParameter(spec, value)
		likelihood += a.RiskFactor * spec.Weight

		if a.Status != StatusNormal {
			issues = append(issues, Issue{
				Parameter:        name,
				Value:            value,
				Status:           a.Status,
				RiskContribution: a.RiskFactor * spec.Weight,
			})
		}
	}

	if likelihood > 100 {
		likelihood = 100
	}

	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].RiskContribution > issues[j].RiskContribution
	})

	return LikelihoodReport{Score: likelihood, Issues: issues}, nil
}

// OverallStatus reduces a report to the worst status among its issues.
func (r LikelihoodReport) OverallStatus() Status {
	status := StatusNormal
	for _, issue := range r.Issues {
		if issue.Status == StatusCritical {
			return StatusCritical
		}
		status = StatusWarning
	}
	return status
}
