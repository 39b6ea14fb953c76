// Package efficiency implements the additive efficiency-scoring heuristic
// used to label a machine's operating efficiency as LOW, MEDIUM, or HIGH.
// Scoring starts from the middle of a 0-10 scale and each known parameter
// nudges it up or down; the per-parameter impacts are reported alongside the
// final level for transparency.
package efficiency

import "context"

// Level is the efficiency classification.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

const baseScore = 5.0

// Input is one manual observation of a machine's operating parameters.
// Pointer fields distinguish "not supplied" from zero: absent parameters
// contribute nothing.
type Input struct {
	MachineID        *int     `json:"machine_id,omitempty"`
	OperationMode    string   `json:"operation_mode,omitempty"` // Idle, Active, Maintenance
	TemperatureC     *float64 `json:"temperature_c,omitempty"`
	VibrationHz      *float64 `json:"vibration_hz,omitempty"`
	PowerKW          *float64 `json:"power_kw,omitempty"`
	LatencyMS        *float64 `json:"latency_ms,omitempty"`
	PacketLossPct    *float64 `json:"packet_loss_pct,omitempty"`
	DefectRatePct    *float64 `json:"defect_rate_pct,omitempty"`
	ProductionRate   *float64 `json:"production_rate,omitempty"` // units per hour
	MaintenanceScore *float64 `json:"maintenance_score,omitempty"`
	ErrorRatePct     *float64 `json:"error_rate_pct,omitempty"`
}

// Result carries the score, its classification, and each parameter's impact.
type Result struct {
	Score   float64            `json:"score"`
	Level   Level              `json:"level"`
	Impacts map[string]float64 `json:"impacts"`
}

// Score runs the additive heuristic over the supplied parameters.
func Score(in Input) Result {
	score := baseScore
	impacts := make(map[string]float64)

	apply := func(name string, impact float64) {
		impacts[name] = impact
		score += impact
	}

	if in.MachineID != nil {
		switch id := *in.MachineID; {
		case id <= 200:
			apply("machine_id", 1.0) // newer machines
		case id <= 500:
			apply("machine_id", 0.0)
		default:
			apply("machine_id", -1.0) // older machines
		}
	}

	if in.OperationMode != "" {
		switch in.OperationMode {
		case "Active":
			apply("operation_mode", 1.5)
		case "Idle":
			apply("operation_mode", 0.0)
		default: // Maintenance
			apply("operation_mode", -1.5)
		}
	}

	if in.TemperatureC != nil {
		switch t := *in.TemperatureC; {
		case t >= 40 && t <= 70:
			apply("temperature_c", 1.0) // optimal range
		case t < 40:
			apply("temperature_c", -0.5) // too cold
		default:
			apply("temperature_c", -1.0) // too hot
		}
	}

	if in.VibrationHz != nil {
		switch v := *in.VibrationHz; {
		case v < 2.0:
			apply("vibration_hz", 1.0)
		case v < 5.0:
			apply("vibration_hz", 0.0)
		default:
			apply("vibration_hz", -1.0)
		}
	}

	if in.PowerKW != nil {
		switch p := *in.PowerKW; {
		case p < 5.0:
			apply("power_kw", 1.0)
		case p < 10.0:
			apply("power_kw", 0.0)
		default:
			apply("power_kw", -1.0)
		}
	}

	if in.LatencyMS != nil {
		switch l := *in.LatencyMS; {
		case l < 20.0:
			apply("latency_ms", 1.0)
		case l < 50.0:
			apply("latency_ms", 0.0)
		default:
			apply("latency_ms", -1.0)
		}
	}

	if in.PacketLossPct != nil {
		switch l := *in.PacketLossPct; {
		case l < 1.0:
			apply("packet_loss_pct", 1.0)
		case l < 3.0:
			apply("packet_loss_pct", 0.0)
		default:
			apply("packet_loss_pct", -1.0)
		}
	}

	if in.DefectRatePct != nil {
		switch d := *in.DefectRatePct; {
		case d < 1.0:
			apply("defect_rate_pct", 1.5)
		case d < 2.0:
			apply("defect_rate_pct", 0.5)
		case d < 3.0:
			apply("defect_rate_pct", 0.0)
		default:
			apply("defect_rate_pct", -1.5)
		}
	}

	if in.ProductionRate != nil {
		switch r := *in.ProductionRate; {
		case r > 600:
			apply("production_rate", 1.0)
		case r > 300:
			apply("production_rate", 0.0)
		default:
			apply("production_rate", -1.0)
		}
	}

	if in.MaintenanceScore != nil {
		switch s := *in.MaintenanceScore; {
		case s > 70:
			apply("maintenance_score", 1.0)
		case s > 40:
			apply("maintenance_score", 0.0)
		default:
			apply("maintenance_score", -1.0)
		}
	}

	if in.ErrorRatePct != nil {
		switch e := *in.ErrorRatePct; {
		case e < 1.0:
			apply("error_rate_pct", 1.0)
		case e < 3.0:
			apply("error_rate_pct", 0.0)
		default:
			apply("error_rate_pct", -1.0)
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}

	return Result{Score: score, Level: levelFor(score), Impacts: impacts}
}

func levelFor(score float64) Level {
	switch {
	case score < 4:
		return LevelLow
	case score < 7:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Classifier is an optional external model. When present it is consulted
// instead of the heuristic; availability is the caller's concern, the
// heuristic path always works.
type Classifier interface {
	Predict(ctx context.Context, in Input) (Level, error)
}

// Predictor chooses between a configured classifier and the rule-based
// heuristic.
type Predictor struct {
	classifier Classifier
}

// NewPredictor returns a predictor; classifier may be nil.
func NewPredictor(classifier Classifier) *Predictor {
	return &Predictor{classifier: classifier}
}

// Predict returns the heuristic result, with the level overridden by the
// classifier when one is configured and succeeds.
func (p *Predictor) Predict(ctx context.Context, in Input) (Result, error) {
	result := Score(in)
	if p.classifier == nil {
		return result, nil
	}
	level, err := p.classifier.Predict(ctx, in)
	if err != nil {
		return result, err
	}
	result.Level = level
	return result, nil
}
