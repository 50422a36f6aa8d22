package models

import "fmt"

// Output formats accepted in Options.OutputFormat.
const (
	OutputFormatJSON = "json"
	OutputFormatCSV  = "csv"
)

// Options are the processing options passed through to the Analyzer.
type Options struct {
	OutputFormat  string   `json:"output_format,omitempty"`
	MinConfidence *float64 `json:"min_confidence,omitempty"`
	Language      string   `json:"language,omitempty"`
}

// Normalize fills defaults and validates the options.
func (o Options) Normalize() (Options, error) {
	if o.OutputFormat == "" {
		o.OutputFormat = OutputFormatJSON
	}
	if o.OutputFormat != OutputFormatJSON && o.OutputFormat != OutputFormatCSV {
		return o, fmt.Errorf("output_format must be json or csv; got %q", o.OutputFormat)
	}
	if o.MinConfidence != nil && (*o.MinConfidence < 0 || *o.MinConfidence > 1) {
		return o, fmt.Errorf("min_confidence must be between 0 and 1; got %v", *o.MinConfidence)
	}
	return o, nil
}
