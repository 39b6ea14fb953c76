// Package machines holds per-machine-type sensor configurations. A Profile
// binds a machine type to its SensorSpec table and to the value bands its
// simulator draws from, so one evaluator serves every machine type.
package machines

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"plantwatch/internal/risk"
)

// Profile is the full configuration for one machine type.
type Profile struct {
	Name  string
	Specs risk.SpecSet
	// Sim gives the per-sensor range the simulator samples from. Bands sit
	// just under the critical bound so simulated runs drift into warning
	// and eventually trip.
	Sim map[string]risk.Interval
}

// Validate checks every sensor spec and the simulation bands.
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: profile without name", risk.ErrInvalidSpec)
	}
	if err := p.Specs.Validate(); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}
	for name, band := range p.Sim {
		if _, ok := p.Specs[name]; !ok {
			return fmt.Errorf("%w: profile %q has simulation band for unknown sensor %q", risk.ErrInvalidSpec, p.Name, name)
		}
		if band.Lo > band.Hi {
			return fmt.Errorf("%w: profile %q sensor %q simulation band lo > hi", risk.ErrInvalidSpec, p.Name, name)
		}
	}
	return nil
}

// Sensors returns the profile's sensor names in sorted order.
func (p Profile) Sensors() []string {
	names := make([]string, 0, len(p.Specs))
	for name := range p.Specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin returns the shipped machine profiles, keyed by machine type.
func Builtin() map[string]Profile {
	profiles := map[string]Profile{
		"default": defaultProfile(),
		"cnc": limitsProfile("cnc", []limitSensor{
			{"temp", 40, 80, 100, 110, 40},
			{"vibration", 20, 50, 70, 85, 30},
			{"rpm", 500, 1500, 2000, 2200, 30},
		}),
		"hydraulic_press": limitsProfile("hydraulic_press", []limitSensor{
			{"pressure", 50, 120, 180, 200, 40},
			{"temp", 20, 60, 80, 100, 30},
			{"vibration", 5, 20, 40, 50, 30},
		}),
		"conveyor_belt": limitsProfile("conveyor_belt", []limitSensor{
			{"vibration", 5, 20, 40, 50, 30},
			{"rpm", 500, 1500, 2000, 2500, 35},
			{"temp", 20, 60, 80, 100, 35},
		}),
		"industrial_fan": limitsProfile("industrial_fan", []limitSensor{
			{"vibration", 5, 20, 40, 50, 35},
			{"rpm", 500, 1500, 2000, 2500, 30},
			{"temp", 20, 60, 80, 100, 35},
		}),
		"air_compressor": limitsProfile("air_compressor", []limitSensor{
			{"pressure", 50, 150, 200, 250, 30},
			{"rpm", 500, 1500, 2000, 2500, 25},
			{"temp", 20, 60, 80, 100, 25},
			{"humidity", 30, 60, 80, 90, 20},
		}),
	}
	return profiles
}

// defaultProfile is the seven-sensor predictive table. Pressure is the one
// band-form critical bound: both under- and over-pressure are dangerous.
func defaultProfile() Profile {
	specs := risk.SpecSet{
		"temperature": {Name: "temperature", Normal: risk.Interval{Lo: 20, Hi: 60}, Warning: risk.BandBound(60, 80), Critical: risk.UpperBound(80), Weight: 25},
		"vibration":   {Name: "vibration", Normal: risk.Interval{Lo: 0.1, Hi: 2.0}, Warning: risk.BandBound(2.0, 3.0), Critical: risk.UpperBound(3.0), Weight: 20},
		"pressure":    {Name: "pressure", Normal: risk.Interval{Lo: 2.0, Hi: 8.0}, Warning: risk.BandBound(1.5, 8.5), Critical: risk.BandBound(1.0, 9.0), Weight: 15},
		"humidity":    {Name: "humidity", Normal: risk.Interval{Lo: 30, Hi: 60}, Warning: risk.BandBound(60, 70), Critical: risk.UpperBound(70), Weight: 10},
		"runtime":     {Name: "runtime", Normal: risk.Interval{Lo: 0, Hi: 5000}, Warning: risk.BandBound(5000, 8000), Critical: risk.UpperBound(8000), Weight: 20},
		"load":        {Name: "load", Normal: risk.Interval{Lo: 0, Hi: 0.7}, Warning: risk.BandBound(0.7, 0.9), Critical: risk.UpperBound(0.9), Weight: 10},
		"speed":       {Name: "speed", Normal: risk.Interval{Lo: 500, Hi: 2000}, Warning: risk.BandBound(2000, 2500), Critical: risk.UpperBound(2500), Weight: 10},
	}
	sim := map[string]risk.Interval{
		"temperature": {Lo: 20, Hi: 100},
		"vibration":   {Lo: 0.1, Hi: 5.0},
		"pressure":    {Lo: 1.0, Hi: 10.0},
		"humidity":    {Lo: 30, Hi: 90},
		"runtime":     {Lo: 0, Hi: 10000},
		"load":        {Lo: 0, Hi: 1.0},
		"speed":       {Lo: 500, Hi: 3000},
	}
	return Profile{Name: "default", Specs: specs, Sim: sim}
}

// limitSensor describes one sensor in lower/maintenance/upper/critical form:
// normal runs from lower to maintenance, anything past maintenance needs
// attention, and anything past critical trips the machine. These profiles use
// scalar (upper-only) warning bounds, unlike the band-form default profile.
type limitSensor struct {
	name                                string
	lower, maintenance, upper, critical float64
	weight                              float64
}

func limitsProfile(name string, sensors []limitSensor) Profile {
	specs := make(risk.SpecSet, len(sensors))
	sim := make(map[string]risk.Interval, len(sensors))
	for _, s := range sensors {
		specs[s.name] = risk.SensorSpec{
			Name:     s.name,
			Normal:   risk.Interval{Lo: s.lower, Hi: s.maintenance},
			Warning:  risk.UpperBound(s.maintenance),
			Critical: risk.UpperBound(s.critical),
			Weight:   s.weight,
		}
		sim[s.name] = risk.Interval{Lo: s.upper - 20, Hi: s.critical - 1}
	}
	return Profile{Name: name, Specs: specs, Sim: sim}
}

// sensorFile is the on-disk form of one sensor spec. Warning and critical
// accept a bare number (scalar upper bound) or [lo, hi] (band).
type sensorFile struct {
	Normal   [2]float64  `json:"normal"`
	Warning  risk.Bound  `json:"warning"`
	Critical risk.Bound  `json:"critical"`
	Weight   float64     `json:"weight"`
	Sim      *[2]float64 `json:"sim,omitempty"`
}

// LoadFile reads machine profiles from a JSON file keyed by machine type and
// sensor name. Loaded profiles are validated; an invalid spec fails the whole
// load rather than producing a partially-usable configuration.
func LoadFile(path string) (map[string]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	var raw map[string]map[string]sensorFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	profiles := make(map[string]Profile, len(raw))
	for machine, sensors := range raw {
		p := Profile{
			Name:  machine,
			Specs: make(risk.SpecSet, len(sensors)),
			Sim:   make(map[string]risk.Interval),
		}
		for name, sf := range sensors {
			p.Specs[name] = risk.SensorSpec{
				Name:     name,
				Normal:   risk.Interval{Lo: sf.Normal[0], Hi: sf.Normal[1]},
				Warning:  sf.Warning,
				Critical: sf.Critical,
				Weight:   sf.Weight,
			}
			if sf.Sim != nil {
				p.Sim[name] = risk.Interval{Lo: sf.Sim[0], Hi: sf.Sim[1]}
			}
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		profiles[machine] = p
	}
	return profiles, nil
}
