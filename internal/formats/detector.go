package formats

import (
	"strconv"
	"strings"
)

// Detect returns the name of the first registered format whose required
// columns are all present in the header row. When no header-based format
// matches it falls back to header-less detection. Malformed input is reported
// as not detected.
func Detect(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	first, err := readFirstRecord(text)
	if err != nil {
		return "", false
	}

	if spec, ok := matchHeader(first); ok {
		return spec.Name, true
	}

	if looksHeaderless(first) {
		for _, s := range registry {
			if s.Headerless {
				return s.Name, true
			}
		}
	}

	return "", false
}

func matchHeader(header []string) (Spec, bool) {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}

	for _, s := range registry {
		if s.Headerless {
			continue
		}
		if containsAll(present, s.RequiredColumns) {
			return s, true
		}
	}
	return Spec{}, false
}

func containsAll(present map[string]bool, required []string) bool {
	for _, col := range required {
		if !present[col] {
			return false
		}
	}
	return true
}

// looksHeaderless accepts exactly three fields: a date-like value, a plain
// number and anything else.
func looksHeaderless(fields []string) bool {
	if len(fields) != HeaderlessMin {
		return false
	}
	if !isDateLike(fields[0]) {
		return false
	}
	_, err := strconv.ParseFloat(fields[1], 64)
	return err == nil
}

func isDateLike(s string) bool {
	for _, sep := range []string{"/", "-"} {
		if !strings.Contains(s, sep) {
			continue
		}
		parts := strings.Split(s, sep)
		if len(parts) != 3 {
			return false
		}
		for _, p := range parts {
			if p == "" {
				return false
			}
		}
		return true
	}
	return false
}
