package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mferrazlima/go-scrape-reviews/models"
)

func TestCheckpointPath(t *testing.T) {
	tests := []struct {
		name       string
		outputFile string
		pages      int
		expected   string
	}{
		{
			name:       "simple csv path",
			outputFile: "output/reviews.csv",
			pages:      50,
			expected:   "output/reviews_checkpoint_page50.csv",
		},
		{
			name:       "no extension",
			outputFile: "reviews",
			pages:      100,
			expected:   "reviews_checkpoint_page100.csv",
		},
		{
			name:       "json primary still yields csv checkpoint",
			outputFile: "data/out.json",
			pages:      150,
			expected:   "data/out_checkpoint_page150.csv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckpointPath(tt.outputFile, tt.pages); got != tt.expected {
				t.Errorf("CheckpointPath(%q, %d) = %q, want %q", tt.outputFile, tt.pages, got, tt.expected)
			}
		})
	}
}

func TestExporterExportCSV(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "reviews.csv")

	exporter := NewExporter(out, "csv")
	path, err := exporter.Export([]*models.Review{sampleReview()})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Fatalf("export path should be absolute, got %q", path)
	}

	records := readCSV(t, out)
	if len(records) != 2 {
		t.Fatalf("records=%d, want header + 1 row", len(records))
	}
}

func TestExporterExportEmptyWritesHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "reviews.csv")

	exporter := NewExporter(out, "csv")
	if _, err := exporter.Export(nil); err != nil {
		t.Fatalf("empty export: %v", err)
	}

	records := readCSV(t, out)
	if len(records) != 1 {
		t.Fatalf("records=%d, want header only", len(records))
	}
}

func TestExporterExportJSONUsesJSONLPath(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "reviews.csv")

	exporter := NewExporter(out, "json")
	path, err := exporter.Export([]*models.Review{sampleReview()})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if filepath.Ext(path) != ".jsonl" {
		t.Fatalf("json export path=%q, want .jsonl", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat json output: %v", err)
	}
}

func TestExporterUnsupportedFormat(t *testing.T) {
	exporter := NewExporter("reviews.csv", "xml")
	if _, err := exporter.Export(nil); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestExporterWriteCheckpoint(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "reviews.csv")

	exporter := NewExporter(out, "json")
	path, err := exporter.WriteCheckpoint([]*models.Review{sampleReview()}, 50)
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}

	want := filepath.Join(dir, "reviews_checkpoint_page50.csv")
	abs, _ := filepath.Abs(want)
	if path != abs {
		t.Fatalf("checkpoint path=%q, want %q", path, abs)
	}

	records := readCSV(t, want)
	if len(records) != 2 {
		t.Fatalf("checkpoint records=%d, want 2", len(records))
	}
}
