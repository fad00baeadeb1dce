package diagnostics

import (
	"errors"

	"go.uber.org/multierr"

	"github.com/coreman2200/arcaluminis-layout/internal/layout"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// FromFrameError turns a failed frame push into one diagnostic per cause.
func FromFrameError(err error) []Diagnostic {
	var out []Diagnostic
	for _, e := range multierr.Errors(err) {
		out = append(out, classify(e))
	}
	return out
}

func classify(err error) Diagnostic {
	switch {
	case errors.Is(err, layout.ErrValidation):
		return Diagnostic{
			Severity: Err,
			Code:     "FRAME.VALIDATION",
			Summary:  "Frame rejected",
			Detail:   err.Error(),
			LikelyCauses: []string{
				"global brightness outside 0..1",
				"device region does not fit on the canvas",
			},
			SuggestedFixes: []string{
				"set brightness between 0 and 1",
				"check device location/size against the canvas size",
			},
		}
	case errors.Is(err, layout.ErrLookup):
		return Diagnostic{Severity: Warn, Code: "LAYOUT.LOOKUP", Summary: "Unknown device", Detail: err.Error()}
	case errors.Is(err, layout.ErrConfigLoad):
		return Diagnostic{
			Severity:       Err,
			Code:           "CONFIG.LOAD",
			Summary:        "Settings could not be loaded",
			Detail:         err.Error(),
			SuggestedFixes: []string{"check the config path and YAML syntax"},
		}
	default:
		return Diagnostic{
			Severity:     Warn,
			Code:         "DEVICE.OUTPUT",
			Summary:      "Device output failed",
			Detail:       err.Error(),
			LikelyCauses: []string{"SPI port unplugged or busy"},
		}
	}
}
