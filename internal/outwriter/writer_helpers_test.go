package outwriter

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFormatters(t *testing.T) {
	tests := []struct {
		name        string
		precision   int
		value       float64
		expected    string
		expectedPct string
	}{
		{name: "precision 2", precision: 2, value: 3.14159, expected: "3.14", expectedPct: "3.14%"},
		{name: "precision 1", precision: 1, value: 66.666, expected: "66.7", expectedPct: "66.7%"},
		{name: "negative value", precision: 2, value: -42.567, expected: "-42.57", expectedPct: "-42.57%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fmtFloat, fmtPct := createFormatters(tt.precision)
			assert.Equal(t, tt.expected, fmtFloat(tt.value))
			assert.Equal(t, tt.expectedPct, fmtPct(tt.value))
		})
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]any{"name": "test", "value": 42}))
	assert.Equal(t, "{\n  \"name\": \"test\",\n  \"value\": 42\n}\n", buf.String())

	err := writeJSON(&buf, make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode JSON")
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeYAML(&buf, map[string]any{"bus_factor": 2, "hot_spots": []string{"a.go"}}))
	assert.Equal(t, "bus_factor: 2\nhot_spots:\n  - a.go\n", buf.String())
}

func TestWriteCSVWithHeader(t *testing.T) {
	var buf bytes.Buffer
	err := writeCSVWithHeader(&buf, []string{"name", "description"}, func(w *csv.Writer) error {
		return w.Write([]string{"Test", "A value, with comma"})
	})
	require.NoError(t, err)
	assert.Equal(t, "name,description\nTest,\"A value, with comma\"\n", buf.String())

	err = writeCSVWithHeader(&buf, []string{"col"}, func(w *csv.Writer) error {
		return assert.AnError
	})
	assert.Equal(t, assert.AnError, err)
}

func TestWriteWithFile(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "test.txt")

	err := writeWithFile(tmpFile, func(w io.Writer) error {
		_, err := w.Write([]byte("test content"))
		return err
	}, "Test message")
	require.NoError(t, err)

	content, err := os.ReadFile(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, "test content", string(content))

	err = writeWithFile(tmpFile, func(w io.Writer) error { return assert.AnError }, "Test message")
	assert.Equal(t, assert.AnError, err)

	err = writeWithFile("/nonexistent/path/file.txt", func(w io.Writer) error { return nil }, "Test message")
	assert.Error(t, err)
}
