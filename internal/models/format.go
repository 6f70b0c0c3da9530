// Package models contains the wire and session types shared by the
// marker visualizer packages.
package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies one of the supported plotter/cutter command languages.
type Format string

const (
	FormatVectorPlotter Format = "vector-plotter" // HPGL
	FormatKnifePlotter  Format = "knife-plotter"  // Gerber-style cutter files
	FormatTaggedBlock   Format = "tagged-block"   // GGT
)

// Formats lists every supported format in a stable order.
var Formats = []Format{FormatVectorPlotter, FormatKnifePlotter, FormatTaggedBlock}

// ParseFormat accepts a format tag or one of its legacy names.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(FormatVectorPlotter), "hpgl":
		return FormatVectorPlotter, nil
	case string(FormatKnifePlotter), "gerber", "cut":
		return FormatKnifePlotter, nil
	case string(FormatTaggedBlock), "ggt":
		return FormatTaggedBlock, nil
	}
	return "", fmt.Errorf("unsupported format: %q", s)
}

// FormatForFile derives the format from a file name's extension.
func FormatForFile(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".hpgl", ".plt", ".hpg":
		return FormatVectorPlotter, nil
	case ".cut", ".cam":
		return FormatKnifePlotter, nil
	case ".ggt":
		return FormatTaggedBlock, nil
	}
	return "", fmt.Errorf("unsupported file extension: %q", filepath.Ext(name))
}

// Unit is the display unit used when formatting label positions.
// Geometry is always held in millimetres.
type Unit string

const (
	UnitMM Unit = "MM"
	UnitIN Unit = "IN"
)

// MillimetresPerInch converts between the two display units.
const MillimetresPerInch = 25.4

// ParseUnit accepts "mm" or "in" in any case. Empty input means millimetres.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "MM":
		return UnitMM, nil
	case "IN", "INCH":
		return UnitIN, nil
	}
	return "", fmt.Errorf("unsupported unit: %q", s)
}

// FromMillimetres converts a millimetre value into this unit.
func (u Unit) FromMillimetres(v float64) float64 {
	if u == UnitIN {
		return v / MillimetresPerInch
	}
	return v
}
