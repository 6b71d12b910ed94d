package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Name", "Email"},
		Rows: []map[string]string{
			{"Name": "John Doe", "Email": "john@school.com"},
			{"Name": "Jane, Jr.", "Email": "jane@school.com"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, "Name,Email\nJohn Doe,john@school.com\n\"Jane, Jr.\",jane@school.com\n", string(out))
}

func TestExportersRequireHeaders(t *testing.T) {
	for _, r := range []Renderer{NewCSVExporter(), NewPDFExporter(), NewXLSXExporter()} {
		_, err := r.Render(Dataset{}, "")
		assert.Error(t, err)
	}
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Teachers")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset(), "Teachers")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Teachers")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Name", "Email"}, rows[0])
	assert.Equal(t, "Jane, Jr.", rows[2][0])
}

func TestRegistryRender(t *testing.T) {
	format, err := ParseFormat("XLSX")
	require.NoError(t, err)

	file, err := NewRegistry().Render(format, sampleDataset(), "teachers", "Teachers")
	require.NoError(t, err)
	assert.Equal(t, "teachers.xlsx", file.Name)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", file.ContentType)

	_, err = ParseFormat("docx")
	assert.Error(t, err)

	format, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, format)
}
