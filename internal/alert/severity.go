package alert

import (
	"fmt"
	"strings"
)

// Severity is the ordered alert level. Normal only marks forecast days without alerts.
type Severity int

const (
	Normal Severity = iota
	Minor
	Moderate
	Severe
)

var severityNames = map[Severity]string{
	Normal:   "normal",
	Minor:    "minor",
	Moderate: "moderate",
	Severe:   "severe",
}

type glyph struct {
	icon  string
	color string
}

var severityGlyphs = map[Severity]glyph{
	Severe:   {"🔴", "#f44336"},
	Moderate: {"🟡", "#ff9800"},
	Minor:    {"🔵", "#2196f3"},
	Normal:   {"⚪", "#666666"},
}

// Rank is the numeric order used for comparisons: normal 0 through severe 3.
func (s Severity) Rank() int { return int(s) }

// Greater reports whether s outranks o.
func (s Severity) Greater(o Severity) bool { return s.Rank() > o.Rank() }

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Icon is the marker shown next to a forecast day at this level.
func (s Severity) Icon() string { return severityGlyphs[s].icon }

// Color is the hex color paired with Icon.
func (s Severity) Color() string { return severityGlyphs[s].color }

// MarshalText encodes the severity by name so it reads naturally in JSON and map keys.
func (s Severity) MarshalText() ([]byte, error) {
	if _, ok := severityNames[s]; !ok {
		return nil, fmt.Errorf("unknown severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name, case-insensitively.
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSeverity maps a name to a Severity.
func ParseSeverity(name string) (Severity, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for s, sn := range severityNames {
		if sn == n {
			return s, nil
		}
	}
	return Normal, fmt.Errorf("unknown severity %q", name)
}
