package formats

import (
	"fmt"
	"strings"
)

// AutoDetect asks Validate to detect the format itself.
const AutoDetect = "auto"

// ValidationReport explains whether a file matches a format.
type ValidationReport struct {
	Valid           bool     `json:"valid"`
	DetectedFormat  string   `json:"detected_format,omitempty"`
	RequiredColumns []string `json:"required_columns,omitempty"`
	FoundColumns    []string `json:"found_columns,omitempty"`
	MissingColumns  []string `json:"missing_columns,omitempty"`
	ExtraColumns    []string `json:"extra_columns,omitempty"`
	ErrorMessage    string   `json:"error_message,omitempty"`
}

// Validate checks text against the named format, or detects one when format
// is empty or AutoDetect. Header-less formats are validated by column count.
func Validate(text, format string) ValidationReport {
	if strings.TrimSpace(text) == "" {
		return ValidationReport{ErrorMessage: "file is empty"}
	}

	first, err := readFirstRecord(text)
	if err != nil {
		return ValidationReport{ErrorMessage: fmt.Sprintf("file is not valid CSV: %v", err)}
	}

	name := strings.TrimSpace(format)
	if name == "" || strings.EqualFold(name, AutoDetect) {
		detected, ok := Detect(text)
		if !ok {
			return notDetectedReport(first)
		}
		name = detected
	}

	spec, ok := Lookup(name)
	if !ok {
		return ValidationReport{
			FoundColumns: first,
			ErrorMessage: fmt.Sprintf("%v: %q (known: %s)", ErrUnknownFormat, name, strings.Join(Names(), ", ")),
		}
	}

	if spec.Headerless {
		return validateHeaderless(spec, first)
	}
	return compareColumns(spec, first)
}

func validateHeaderless(spec Spec, first []string) ValidationReport {
	report := ValidationReport{
		DetectedFormat: spec.Name,
		FoundColumns:   first,
	}
	if len(first) < spec.MinColumns {
		report.ErrorMessage = fmt.Sprintf("expected at least %d columns, found %d", spec.MinColumns, len(first))
		return report
	}
	report.Valid = true
	return report
}

func compareColumns(spec Spec, header []string) ValidationReport {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	required := make(map[string]bool, len(spec.RequiredColumns))
	for _, c := range spec.RequiredColumns {
		required[c] = true
	}

	report := ValidationReport{
		DetectedFormat:  spec.Name,
		RequiredColumns: spec.RequiredColumns,
		FoundColumns:    header,
	}
	for _, c := range spec.RequiredColumns {
		if !present[c] {
			report.MissingColumns = append(report.MissingColumns, c)
		}
	}
	for _, h := range header {
		if !required[h] {
			report.ExtraColumns = append(report.ExtraColumns, h)
		}
	}

	if len(report.MissingColumns) > 0 {
		report.ErrorMessage = fmt.Sprintf("missing required columns for %s: %s", spec.Name, strings.Join(report.MissingColumns, ", "))
		return report
	}
	report.Valid = true
	return report
}

// notDetectedReport compares the header with the closest header-based format
// so the caller can show what was expected.
func notDetectedReport(header []string) ValidationReport {
	var best ValidationReport
	closest := ""
	for _, s := range registry {
		if s.Headerless {
			continue
		}
		r := compareColumns(s, header)
		if closest == "" || len(r.MissingColumns) < len(best.MissingColumns) {
			best = r
			closest = s.Name
		}
	}

	best.Valid = false
	best.DetectedFormat = ""
	best.ErrorMessage = fmt.Sprintf("no known format matches columns [%s]; closest is %s, missing %s",
		strings.Join(header, ", "), closest, strings.Join(best.MissingColumns, ", "))
	return best
}
