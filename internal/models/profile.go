package models

// ProcessingProfile tunes the marker pipeline. It is loaded from YAML; any
// zero field falls back to the built-in default.
type ProcessingProfile struct {
	Name             string            `json:"name" yaml:"name"`
	GroupingDistance float64           `json:"groupingDistance" yaml:"grouping_distance"`
	StripWidth       float64           `json:"stripWidth" yaml:"strip_width"`
	MinPatternArea   float64           `json:"minPatternArea" yaml:"min_pattern_area"`
	MaxPatternArea   float64           `json:"maxPatternArea" yaml:"max_pattern_area"`
	MaxLabelLength   map[Format]int    `json:"maxLabelLength" yaml:"max_label_length"`
	DefaultUnit      Unit              `json:"defaultUnit" yaml:"default_unit"`
	InputEncoding    string            `json:"inputEncoding" yaml:"input_encoding"` // "iso-8859-1", "windows-1252" or "utf-8"
	FormatOverrides  map[string]Format `json:"formatOverrides,omitempty" yaml:"format_overrides,omitempty"` // extension -> format
}

// Built-in profile values.
const (
	DefaultGroupingDistance = 20.0
	DefaultStripWidth       = 50.0
	DefaultMinPatternArea   = 850.0
	DefaultMaxPatternArea   = 1_500_000.0
	DefaultInputEncoding    = "iso-8859-1"
)

// DefaultMaxLabelLength is the single-line label length limit per format.
var DefaultMaxLabelLength = map[Format]int{
	FormatVectorPlotter: 150,
	FormatKnifePlotter:  150,
	FormatTaggedBlock:   100,
}

// DefaultProcessingProfile returns the profile used when none is configured.
func DefaultProcessingProfile() *ProcessingProfile {
	p := &ProcessingProfile{Name: "default"}
	p.ApplyDefaults()
	return p
}

// ApplyDefaults fills every zero field with its built-in value.
func (p *ProcessingProfile) ApplyDefaults() {
	if p.GroupingDistance <= 0 {
		p.GroupingDistance = DefaultGroupingDistance
	}
	if p.StripWidth <= 0 {
		p.StripWidth = DefaultStripWidth
	}
	if p.MinPatternArea <= 0 {
		p.MinPatternArea = DefaultMinPatternArea
	}
	if p.MaxPatternArea <= 0 {
		p.MaxPatternArea = DefaultMaxPatternArea
	}
	if p.MaxLabelLength == nil {
		p.MaxLabelLength = make(map[Format]int, len(DefaultMaxLabelLength))
	}
	for f, n := range DefaultMaxLabelLength {
		if p.MaxLabelLength[f] <= 0 {
			p.MaxLabelLength[f] = n
		}
	}
	if p.DefaultUnit == "" {
		p.DefaultUnit = UnitMM
	}
	if p.InputEncoding == "" {
		p.InputEncoding = DefaultInputEncoding
	}
}

// LabelLengthLimit returns the single-line label limit for f.
func (p *ProcessingProfile) LabelLengthLimit(f Format) int {
	if n, ok := p.MaxLabelLength[f]; ok && n > 0 {
		return n
	}
	return DefaultMaxLabelLength[f]
}
