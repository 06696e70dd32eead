// Package pressure translates operator-chosen PressureSpecs into the
// pressure_modifiers dictionary the rest of the turn pipeline consumes
// (§4.1.3a). The built-in templates are the Go table DefaultTable;
// LoadTable can merge a YAML document over it, mirroring the teacher's
// config-as-data style and the pack's gonum/yaml-driven sibling (pthm-soup).
package pressure

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ModifierKeys is the closed set of pressure_modifiers keys named in §4.1.3a.
var ModifierKeys = []string{
	"temperature", "drought", "flood", "disease", "wildfire", "uv_radiation",
	"sulfide", "mortality_spike", "salinity_change", "resource_boost",
	"productivity", "oxygen", "habitat_expansion",
}

// Template is one row of the kind -> modifier-curve table.
type Template struct {
	Kind       string             `yaml:"kind"`
	NoEnergy   bool               `yaml:"no_energy"`
	Modifiers  map[string]float64 `yaml:"modifiers"` // per-unit-intensity coefficient
	Narrative  string             `yaml:"narrative"`
}

// Table is the full set of templates, keyed by kind.
type Table map[string]Template

// DefaultTable is the built-in 14-kind template set (§3 PressureSpec).
// natural_evolution is the distinguished zero-energy-cost kind.
var DefaultTable = Table{
	"natural_evolution":  {Kind: "natural_evolution", NoEnergy: true, Narrative: "the world drifts without a directed shock"},
	"glacial_period":      {Kind: "glacial_period", Modifiers: map[string]float64{"temperature": -1.2}, Narrative: "the world grows colder"},
	"greenhouse_earth":    {Kind: "greenhouse_earth", Modifiers: map[string]float64{"temperature": 1.2}, Narrative: "heat blankets the world"},
	"drought_period":      {Kind: "drought_period", Modifiers: map[string]float64{"drought": 1.0}, Narrative: "rainfall fails"},
	"volcanic_eruption":   {Kind: "volcanic_eruption", Modifiers: map[string]float64{"sulfide": 1.0, "mortality_spike": 15, "uv_radiation": 0.3}, Narrative: "ash darkens the sky"},
	"orogeny":             {Kind: "orogeny", Modifiers: map[string]float64{"habitat_expansion": 0.4}, Narrative: "mountains rise"},
	"ocean_acidification": {Kind: "ocean_acidification", Modifiers: map[string]float64{"salinity_change": 0.6}, Narrative: "the seas sour"},
	"anoxic_event":        {Kind: "anoxic_event", Modifiers: map[string]float64{"oxygen": -1.0}, Narrative: "oxygen vanishes from the water"},
	"predator_rise":       {Kind: "predator_rise", Modifiers: map[string]float64{"mortality_spike": 4}, Narrative: "new hunters stalk the world"},
	"species_invasion":    {Kind: "species_invasion", Modifiers: map[string]float64{"mortality_spike": 3}, Narrative: "strangers arrive"},
	"productivity_decline": {Kind: "productivity_decline", Modifiers: map[string]float64{"productivity": -0.8}, Narrative: "the food web thins"},
	"monsoon_shift":       {Kind: "monsoon_shift", Modifiers: map[string]float64{"flood": 0.8, "drought": -0.3}, Narrative: "the rains move"},
	"fog_period":          {Kind: "fog_period", Modifiers: map[string]float64{"uv_radiation": -0.5}, Narrative: "fog settles over the land"},
	"resource_abundance":  {Kind: "resource_abundance", Modifiers: map[string]float64{"resource_boost": 1.0}, Narrative: "the world is briefly generous"},
}

// LoadTable parses a YAML document into a Table, falling back to
// DefaultTable entries for any kind the document omits.
func LoadTable(doc []byte) (Table, error) {
	var parsed Table
	if err := yaml.Unmarshal(doc, &parsed); err != nil {
		return nil, fmt.Errorf("pressure: parse table: %w", err)
	}
	merged := make(Table, len(DefaultTable))
	for k, v := range DefaultTable {
		merged[k] = v
	}
	for k, v := range parsed {
		merged[k] = v
	}
	return merged, nil
}

// Apply resolves a PressureSpec list into the pressure_modifiers dictionary.
// A template is a deterministic function of kind × intensity: each
// modifier's coefficient is scaled by the spec's intensity and summed
// across specs (§4.1.3a, "a pressure template is a deterministic function
// of kind × intensity").
func (t Table) Apply(specs []Spec) map[string]float64 {
	out := make(map[string]float64, len(ModifierKeys))
	for _, spec := range specs {
		tmpl, ok := t[spec.Kind]
		if !ok {
			continue
		}
		for k, coef := range tmpl.Modifiers {
			out[k] += coef * spec.Intensity
		}
	}
	return out
}

// Spec mirrors simtypes.PressureSpec's operator-facing shape (kind,
// intensity, optional region/narrative) without importing simtypes, to
// keep this package leaf-level.
type Spec struct {
	Kind      string
	Intensity float64
	Region    map[int64]struct{}
	Narrative string
}

// CostsEnergy reports whether running this spec should be charged against
// the metagame energy store (§4.1.3.1: natural_evolution is free).
func (t Table) CostsEnergy(kind string) bool {
	tmpl, ok := t[kind]
	return !ok || !tmpl.NoEnergy
}
