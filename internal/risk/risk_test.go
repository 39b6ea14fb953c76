package risk

import (
	"errors"
	"math/rand"
	"testing"
)

func tempSpec() SensorSpec {
	return SensorSpec{
		Name:     "temperature",
		Normal:   Interval{Lo: 20, Hi: 60},
		Warning:  BandBound(60, 80),
		Critical: UpperBound(80),
		Weight:   25,
	}
}

func pressureSpec() SensorSpec {
	return SensorSpec{
		Name:     "pressure",
		Normal:   Interval{Lo: 2.0, Hi: 8.0},
		Warning:  BandBound(1.5, 8.5),
		Critical: BandBound(1.0, 9.0),
		Weight:   15,
	}
}

// With a warning band that encloses the normal range (pressure-style),
// values strictly inside normal always come back NORMAL.
func TestAssessParameter_NormalInsideRange(t *testing.T) {
	spec := pressureSpec()
	for _, v := range []float64{2.1, 4, 6.5, 7.9} {
		a := AssessParameter(spec, v)
		if a.Status != StatusNormal || a.RiskFactor != 0.0 {
			t.Errorf("value %v: got %v/%v, want NORMAL/0.0", v, a.Status, a.RiskFactor)
		}
	}
}

func TestAssessParameter_ScalarCritical(t *testing.T) {
	spec := tempSpec()
	a := AssessParameter(spec, 85)
	if a.Status != StatusCritical {
		t.Fatalf("value above scalar critical bound: got %v, want CRITICAL", a.Status)
	}
	if a.RiskFactor != 1.0 {
		t.Fatalf("critical risk factor: got %v, want 1.0", a.RiskFactor)
	}
}

// A band-form warning bound is an exterior test: values outside the band are
// WARNING, values inside it are not. For a spec whose warning band sits above
// the normal range this means a mid-normal reading lands in WARNING while a
// reading inside the band does not.
func TestAssessParameter_Warning(t *testing.T) {
	spec := tempSpec()
	a := AssessParameter(spec, 15)
	if a.Status != StatusWarning || a.RiskFactor != 0.5 {
		t.Errorf("value below warning band: got %v/%v, want WARNING/0.5", a.Status, a.RiskFactor)
	}
	if a = AssessParameter(spec, 45); a.Status != StatusWarning {
		t.Errorf("value below warning band lo: got %v, want WARNING", a.Status)
	}
	if a = AssessParameter(spec, 70); a.Status != StatusNormal {
		t.Errorf("value inside warning band: got %v, want NORMAL", a.Status)
	}

	// Upper-side band exterior with headroom before the critical bound.
	wide := SensorSpec{
		Name:     "temperature",
		Normal:   Interval{Lo: 20, Hi: 60},
		Warning:  BandBound(15, 80),
		Critical: UpperBound(90),
		Weight:   25,
	}
	if a = AssessParameter(wide, 85); a.Status != StatusWarning {
		t.Errorf("value above warning band hi: got %v, want WARNING", a.Status)
	}
}

func TestAssessParameter_BandCriticalExterior(t *testing.T) {
	spec := pressureSpec()

	for _, v := range []float64{0.5, 9.5} {
		a := AssessParameter(spec, v)
		if a.Status != StatusCritical {
			t.Errorf("value %v outside critical band: got %v, want CRITICAL", v, a.Status)
		}
	}

	a := AssessParameter(spec, 5.0)
	if a.Status == StatusCritical {
		t.Errorf("value 5.0 inside critical band: got CRITICAL")
	}
}

// A scalar-form warning bound tests only its upper member; a low reading must
// not trip it. This mismatch with the band-form critical test is intentional.
func TestAssessParameter_ScalarWarningUpperOnly(t *testing.T) {
	spec := SensorSpec{
		Name:     "flow",
		Normal:   Interval{Lo: 10, Hi: 50},
		Warning:  UpperBound(50),
		Critical: UpperBound(80),
		Weight:   10,
	}

	if a := AssessParameter(spec, 5); a.Status != StatusNormal {
		t.Errorf("low value with scalar warning: got %v, want NORMAL", a.Status)
	}
	if a := AssessParameter(spec, 55); a.Status != StatusWarning {
		t.Errorf("value above scalar warning: got %v, want WARNING", a.Status)
	}
}

func TestCalculateFailureLikelihood_Example(t *testing.T) {
	specs := SpecSet{"temperature": tempSpec()}
	params := ParameterSet{Values: map[string]float64{"temperature": 85}}

	report, err := CalculateFailureLikelihood(specs, params)
	if err != nil {
		t.Fatal(err)
	}
	if report.Score != 25 {
		t.Errorf("score: got %v, want 25", report.Score)
	}
	if len(report.Issues) != 1 {
		t.Fatalf("issues: got %d, want 1", len(report.Issues))
	}
	issue := report.Issues[0]
	if issue.Status != StatusCritical || issue.RiskContribution != 25 {
		t.Errorf("issue: got %+v", issue)
	}
}

func TestCalculateFailureLikelihood_PressureExterior(t *testing.T) {
	specs := SpecSet{"pressure": pressureSpec()}
	params := ParameterSet{Values: map[string]float64{"pressure": 0.9}}

	report, err := CalculateFailureLikelihood(specs, params)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Issues) != 1 || report.Issues[0].Status != StatusCritical {
		t.Fatalf("want one CRITICAL issue, got %+v", report.Issues)
	}
	if report.Issues[0].RiskContribution != 15 {
		t.Errorf("contribution: got %v, want 15", report.Issues[0].RiskContribution)
	}
}

func TestCalculateFailureLikelihood_EmptyParams(t *testing.T) {
	report, err := CalculateFailureLikelihood(SpecSet{"temperature": tempSpec()}, ParameterSet{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Score != 0 || len(report.Issues) != 0 {
		t.Errorf("empty parameter set: got score %v, %d issues", report.Score, len(report.Issues))
	}
}

func TestCalculateFailureLikelihood_UnknownSensor(t *testing.T) {
	specs := SpecSet{"temperature": tempSpec()}
	params := ParameterSet{Values: map[string]float64{"voltage": 12}}

	_, err := CalculateFailureLikelihood(specs, params)
	if !errors.Is(err, ErrUnknownSensor) {
		t.Fatalf("got %v, want ErrUnknownSensor", err)
	}
}

func TestCalculateFailureLikelihood_ScoreClamped(t *testing.T) {
	// Weights sum well past 100; everything critical.
	specs := SpecSet{}
	params := ParameterSet{Values: map[string]float64{}}
	for _, name := range []string{"a", "b", "c", "d"} {
		specs[name] = SensorSpec{
			Name:     name,
			Normal:   Interval{Lo: 0, Hi: 10},
			Warning:  BandBound(0, 10),
			Critical: UpperBound(10),
			Weight:   40,
		}
		params.Values[name] = 50
	}

	report, err := CalculateFailureLikelihood(specs, params)
	if err != nil {
		t.Fatal(err)
	}
	if report.Score != 100 {
		t.Errorf("score: got %v, want clamp to 100", report.Score)
	}
}

func TestCalculateFailureLikelihood_ScoreInRange(t *testing.T) {
	specs := SpecSet{
		"temperature": tempSpec(),
		"pressure":    pressureSpec(),
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		params := ParameterSet{Values: map[string]float64{
			"temperature": rng.Float64()*200 - 50,
			"pressure":    rng.Float64() * 20,
		}}
		report, err := CalculateFailureLikelihood(specs, params)
		if err != nil {
			t.Fatal(err)
		}
		if report.Score < 0 || report.Score > 100 {
			t.Fatalf("score %v out of [0,100] for %v", report.Score, params.Values)
		}
	}
}

func TestCalculateFailureLikelihood_IssueOrdering(t *testing.T) {
	// beta and delta tie on contribution; lexicographic evaluation order
	// makes the stable sort keep beta before delta.
	specs := SpecSet{
		"beta":  {Name: "beta", Normal: Interval{0, 10}, Warning: BandBound(0, 10), Critical: UpperBound(100), Weight: 20},
		"delta": {Name: "delta", Normal: Interval{0, 10}, Warning: BandBound(0, 10), Critical: UpperBound(100), Weight: 20},
		"alpha": {Name: "alpha", Normal: Interval{0, 10}, Warning: BandBound(0, 10), Critical: UpperBound(20), Weight: 30},
	}
	params := ParameterSet{Values: map[string]float64{
		"alpha": 25, // critical, contribution 30
		"beta":  15, // warning, contribution 10
		"delta": 15, // warning, contribution 10
	}}

	for i := 0; i < 20; i++ {
		report, err := CalculateFailureLikelihood(specs, params)
		if err != nil {
			t.Fatal(err)
		}
		got := make([]string, len(report.Issues))
		for j, issue := range report.Issues {
			got[j] = issue.Parameter
		}
		want := []string{"alpha", "beta", "delta"}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("issue order: got %v, want %v", got, want)
			}
		}
	}
}

func TestSensorSpecValidate(t *testing.T) {
	cases := []struct {
		name    string
		spec    SensorSpec
		wantErr bool
	}{
		{"valid", tempSpec(), false},
		{"negative weight", SensorSpec{Name: "x", Normal: Interval{0, 1}, Warning: UpperBound(1), Critical: UpperBound(2), Weight: -1}, true},
		{"inverted normal", SensorSpec{Name: "x", Normal: Interval{5, 1}, Warning: UpperBound(1), Critical: UpperBound(2), Weight: 1}, true},
		{"inverted critical band", SensorSpec{Name: "x", Normal: Interval{0, 1}, Warning: UpperBound(1), Critical: BandBound(9, 1), Weight: 1}, true},
		{"empty name", SensorSpec{Normal: Interval{0, 1}, Warning: UpperBound(1), Critical: UpperBound(2), Weight: 1}, true},
	}

	for _, tc := range cases {
		err := tc.spec.Validate()
		if tc.wantErr && !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("%s: got %v, want ErrInvalidSpec", tc.name, err)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestSpecSetValidateFillsNameFromKey(t *testing.T) {
	ss := SpecSet{
		"temperature": {Normal: Interval{20, 60}, Warning: BandBound(60, 80), Critical: UpperBound(80), Weight: 25},
	}
	if err := ss.Validate(); err != nil {
		t.Fatal(err)
	}
	if got := ss["temperature"].Name; got != "temperature" {
		t.Errorf("name after validation: got %q, want %q", got, "temperature")
	}
}

func TestOverallStatus(t *testing.T) {
	if s := (LikelihoodReport{}).OverallStatus(); s != StatusNormal {
		t.Errorf("empty report: got %v", s)
	}
	r := LikelihoodReport{Issues: []Issue{{Status: StatusWarning}}}
	if s := r.OverallStatus(); s != StatusWarning {
		t.Errorf("warning-only report: got %v", s)
	}
	r.Issues = append(r.Issues, Issue{Status: StatusCritical})
	if s := r.OverallStatus(); s != StatusCritical {
		t.Errorf("mixed report: got %v", s)
	}
}
