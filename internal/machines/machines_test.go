package machines

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"plantwatch/internal/risk"
)

func TestBuiltinProfilesValid(t *testing.T) {
	profiles := Builtin()
	for _, want := range []string{"default", "cnc", "hydraulic_press", "conveyor_belt", "industrial_fan", "air_compressor"} {
		p, ok := profiles[want]
		if !ok {
			t.Errorf("missing builtin profile %q", want)
			continue
		}
		if err := p.Validate(); err != nil {
			t.Errorf("profile %q invalid: %v", want, err)
		}
		if len(p.Sim) != len(p.Specs) {
			t.Errorf("profile %q: %d sim bands for %d sensors", want, len(p.Sim), len(p.Specs))
		}
	}
}

func TestDefaultProfileThresholds(t *testing.T) {
	p := Builtin()["default"]

	temp, ok := p.Specs["temperature"]
	if !ok {
		t.Fatal("default profile missing temperature")
	}
	if a := risk.AssessParameter(temp, 85); a.Status != risk.StatusCritical {
		t.Errorf("temperature 85: got %v, want CRITICAL", a.Status)
	}
	// The warning band (60,80) is checked as an exterior test, so a value
	// inside it passes and a value below it does not.
	if a := risk.AssessParameter(temp, 70); a.Status != risk.StatusNormal {
		t.Errorf("temperature 70: got %v, want NORMAL", a.Status)
	}
	if a := risk.AssessParameter(temp, 45); a.Status != risk.StatusWarning {
		t.Errorf("temperature 45: got %v, want WARNING", a.Status)
	}

	pressure := p.Specs["pressure"]
	if !pressure.Critical.IsBand() {
		t.Fatal("pressure critical bound should be a band")
	}
	if a := risk.AssessParameter(pressure, 0.9); a.Status != risk.StatusCritical {
		t.Errorf("pressure 0.9: got %v, want CRITICAL", a.Status)
	}
}

func TestLimitsProfileShape(t *testing.T) {
	p := Builtin()["cnc"]
	temp := p.Specs["temp"]

	if a := risk.AssessParameter(temp, 90); a.Status != risk.StatusWarning {
		t.Errorf("cnc temp 90 (maintenance band): got %v, want WARNING", a.Status)
	}
	if a := risk.AssessParameter(temp, 115); a.Status != risk.StatusCritical {
		t.Errorf("cnc temp 115: got %v, want CRITICAL", a.Status)
	}

	band := p.Sim["temp"]
	if band.Lo != 80 || band.Hi != 109 {
		t.Errorf("cnc temp sim band: got [%v,%v], want [80,109]", band.Lo, band.Hi)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	content := `{
		"lathe": {
			"temp":     {"normal": [20, 60], "warning": [60, 80], "critical": 90, "weight": 50, "sim": [60, 89]},
			"coolant":  {"normal": [2, 8],   "warning": [1.5, 8.5], "critical": [1, 9], "weight": 50}
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	profiles, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := profiles["lathe"]
	if !ok {
		t.Fatal("lathe profile not loaded")
	}
	if !p.Specs["coolant"].Critical.IsBand() {
		t.Error("coolant critical should load as band")
	}
	if p.Specs["temp"].Critical.IsBand() {
		t.Error("temp critical should load as scalar")
	}
	if band, ok := p.Sim["temp"]; !ok || band.Hi != 89 {
		t.Errorf("temp sim band: %+v", p.Sim)
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	content := `{"lathe": {"temp": {"normal": [60, 20], "warning": 80, "critical": 90, "weight": 10}}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(path)
	if !errors.Is(err, risk.ErrInvalidSpec) {
		t.Fatalf("got %v, want ErrInvalidSpec", err)
	}
}
