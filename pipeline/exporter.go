package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mferrazlima/go-scrape-reviews/models"
)

// Exporter persists the full accumulated record set. One export call
// writes one complete file; the orchestrator calls it on finalization
// and, with checkpoint naming, periodically during the run.
type Exporter struct {
	outputFile string
	format     string // csv, json, or dual
}

// NewExporter builds an exporter for the configured output target.
func NewExporter(outputFile, format string) *Exporter {
	return &Exporter{outputFile: outputFile, format: format}
}

// Export writes all records to the primary output and returns its
// absolute path. An empty record set still produces the header row.
func (e *Exporter) Export(records []*models.Review) (string, error) {
	writer, primary, err := e.newWriter(e.outputFile)
	if err != nil {
		return "", err
	}

	if err := writer.Write(records); err != nil {
		writer.Close()
		return "", err
	}
	// An empty JSONL file is legitimate output, so size validation
	// only applies when records were written.
	if len(records) > 0 {
		if err := writer.Validate(); err != nil {
			writer.Close()
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	return filepath.Abs(primary)
}

// WriteCheckpoint persists a point-in-time snapshot alongside the
// primary output. Checkpoints are always CSV regardless of the primary
// format.
func (e *Exporter) WriteCheckpoint(records []*models.Review, pages int) (string, error) {
	path := CheckpointPath(e.outputFile, pages)
	writer, err := NewCSVWriter(path)
	if err != nil {
		return "", err
	}
	if err := writer.Write(records); err != nil {
		writer.Close()
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	return filepath.Abs(path)
}

// CheckpointPath inserts the checkpoint marker before the output
// extension: output/reviews.csv -> output/reviews_checkpoint_page50.csv.
func CheckpointPath(outputFile string, pages int) string {
	ext := filepath.Ext(outputFile)
	base := strings.TrimSuffix(outputFile, ext)
	return fmt.Sprintf("%s_checkpoint_page%d.csv", base, pages)
}

func (e *Exporter) newWriter(filename string) (OutputWriter, string, error) {
	switch e.format {
	case "json":
		jsonName := strings.TrimSuffix(filename, filepath.Ext(filename)) + ".jsonl"
		writer, err := NewJSONWriter(jsonName)
		return writer, jsonName, err
	case "csv":
		writer, err := NewCSVWriter(filename)
		return writer, filename, err
	case "dual":
		jsonName := strings.TrimSuffix(filename, filepath.Ext(filename)) + ".jsonl"
		writer, err := NewDualWriter(filename, jsonName)
		return writer, filename, err
	default:
		return nil, "", fmt.Errorf("unsupported format: %s", e.format)
	}
}
