package outwriter

import (
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/busfactor/schema"
)

// Color variables for console output.
var (
	HighRiskColor   = color.New(color.FgRed, color.Bold) // Sole owner of critical files
	MediumRiskColor = color.New(color.FgYellow)          // Majority owner with a backup
	LowRiskColor    = color.New(color.FgCyan)
	ExpertColor     = color.New(color.FgGreen, color.Bold)
)

// riskLabel returns the display label for a risk level, colored when enabled.
func riskLabel(level schema.RiskLevel, useColors bool) string {
	text := strings.ToUpper(string(level))
	if !useColors {
		return text
	}
	switch level {
	case schema.HighRisk:
		return HighRiskColor.Sprint(text)
	case schema.MediumRisk:
		return MediumRiskColor.Sprint(text)
	default:
		return LowRiskColor.Sprint(text)
	}
}

// expertiseLabel capitalizes the band and highlights experts.
func expertiseLabel(level schema.ExpertiseLevel, useColors bool) string {
	text := string(level)
	if text != "" {
		text = strings.ToUpper(text[:1]) + text[1:]
	}
	if useColors && level == schema.Expert {
		return ExpertColor.Sprint(text)
	}
	return text
}

// busFactorLabel flags a codebase bus factor of 1 and marks the empty-history sentinel.
func busFactorLabel(busFactor int, useColors bool) string {
	switch {
	case busFactor == 0:
		return "n/a (no history)"
	case busFactor == 1 && useColors:
		return HighRiskColor.Sprint("1")
	default:
		return strconv.Itoa(busFactor)
	}
}
