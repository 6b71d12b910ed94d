package export

import (
	"fmt"
	"strings"
)

// Format identifies an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// Renderer renders a dataset with an optional title.
type Renderer interface {
	Render(data Dataset, title string) ([]byte, error)
}

// File is a rendered export ready to be served.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// Registry dispatches a format to its renderer.
type Registry struct {
	renderers map[Format]Renderer
}

// NewRegistry wires the CSV, PDF and XLSX exporters.
func NewRegistry() *Registry {
	return &Registry{renderers: map[Format]Renderer{
		FormatCSV:  NewCSVExporter(),
		FormatPDF:  NewPDFExporter(),
		FormatXLSX: NewXLSXExporter(),
	}}
}

// ParseFormat normalises a user supplied format, defaulting to CSV.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatPDF, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// Render produces a File named after baseName.
func (r *Registry) Render(format Format, data Dataset, baseName, title string) (*File, error) {
	renderer, ok := r.renderers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	body, err := renderer.Render(data, title)
	if err != nil {
		return nil, err
	}
	return &File{
		Name:        fmt.Sprintf("%s.%s", baseName, format),
		ContentType: contentType(format),
		Body:        body,
	}, nil
}

func contentType(format Format) string {
	switch format {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}
