// Package severity holds the per-provider classifiers. Each provider's
// raw scale maps onto its own ordinal ladder; the resulting values are
// comparable across providers only approximately, and that is accepted.
package severity

import (
	"regexp"
	"strings"
)

// ladder returns how many steps the value has climbed, with a floor of 1.
func ladder(v float64, steps []float64) int {
	n := 0
	for _, s := range steps {
		if v >= s {
			n++
		}
	}
	if n == 0 {
		n = 1
	}
	return n
}

// FromMagnitude classifies Richter magnitude for global seismic feeds:
// 1 below M4, then 2/3/4 at M4/M5/M6.
func FromMagnitude(mag float64) int {
	return ladder(mag, []float64{3.0, 4.0, 5.0, 6.0})
}

// FromRegionalMagnitude classifies magnitude for regional seismic
// networks, which report lower-magnitude events that still matter
// locally, so the ladder starts lower.
func FromRegionalMagnitude(mag float64) int {
	return ladder(mag, []float64{2.5, 3.5, 5.0, 6.0})
}

// FromAlertColor classifies the four-color aviation/volcano alert code.
func FromAlertColor(color string) int {
	switch strings.ToLower(strings.TrimSpace(color)) {
	case "red":
		return 4
	case "orange":
		return 3
	case "yellow":
		return 2
	default:
		return 1
	}
}

// FromGDACSAlert classifies the three-level GDACS alert code.
func FromGDACSAlert(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "red":
		return 3
	case "orange":
		return 2
	default:
		return 1
	}
}

var categoryRe = regexp.MustCompile(`(?i)cat(?:egory)?\.?\s*([1-5])`)

// FromCycloneCategory classifies the free-text storm classification
// used by cyclone trackers. This provider's ladder tops out at 5, not
// 4; that range difference is preserved as-is.
func FromCycloneCategory(text string) int {
	s := strings.ToLower(text)
	if m := categoryRe.FindStringSubmatch(s); m != nil {
		switch m[1] {
		case "5":
			return 5
		case "4", "3":
			return 4
		default: // 1, 2
			return 3
		}
	}
	switch {
	case strings.Contains(s, "major hurricane") || strings.Contains(s, "super typhoon"):
		return 5
	case strings.Contains(s, "hurricane") || strings.Contains(s, "typhoon"):
		return 3
	case strings.Contains(s, "tropical storm"):
		return 2
	case strings.Contains(s, "depression"):
		return 1
	default:
		return 1
	}
}

// FromWarningLevel classifies national met-service warning text
// (aviso/alerta/alarma scale plus the common english equivalents).
func FromWarningLevel(text string) int {
	s := strings.ToLower(text)
	switch {
	case strings.Contains(s, "alarma") || strings.Contains(s, "extreme"):
		return 4
	case strings.Contains(s, "alerta") || strings.Contains(s, "severe"):
		return 3
	case strings.Contains(s, "aviso") || strings.Contains(s, "warning"):
		return 2
	default:
		return 1
	}
}
