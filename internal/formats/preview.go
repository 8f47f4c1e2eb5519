package formats

import (
	"fmt"
	"strings"
)

// DefaultPreviewRows is used when a preview is requested without a row limit.
const DefaultPreviewRows = 5

// Preview is the header and first raw rows of a file, for display.
type Preview struct {
	Format  string     `json:"format,omitempty"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
	Total   int        `json:"total_rows"`
}

// BuildPreview returns up to maxRows data rows. Header-less files get
// synthetic "Column N" headers and keep their first line as data.
func BuildPreview(text string, maxRows int) (Preview, error) {
	if maxRows <= 0 {
		maxRows = DefaultPreviewRows
	}
	if strings.TrimSpace(text) == "" {
		return Preview{Headers: []string{}, Rows: [][]string{}}, nil
	}

	records, err := ReadRecords(text)
	if err != nil {
		return Preview{}, fmt.Errorf("BuildPreview: %w", err)
	}
	if len(records) == 0 {
		return Preview{Headers: []string{}, Rows: [][]string{}}, nil
	}

	name, _ := Detect(text)
	p := Preview{Format: name}

	data := records[1:]
	if spec, ok := Lookup(name); ok && spec.Headerless {
		width := len(records[0])
		p.Headers = make([]string, width)
		for i := range p.Headers {
			p.Headers[i] = fmt.Sprintf("Column %d", i+1)
		}
		data = records
	} else {
		p.Headers = records[0]
	}

	p.Total = len(data)
	if len(data) > maxRows {
		data = data[:maxRows]
	}
	p.Rows = data
	if p.Rows == nil {
		p.Rows = [][]string{}
	}
	return p, nil
}
