package pipeline

import (
	"context"
	"strings"
	"testing"
)

func TestExtractMissingBinary(t *testing.T) {
	e := NewPDFTextExtractor("/nonexistent/pdftotext")
	_, err := e.Extract(context.Background(), "whatever.pdf")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !strings.Contains(err.Error(), "pdftotext failed") {
		t.Errorf("err = %v", err)
	}
}

func TestExtractorDefaultBinary(t *testing.T) {
	e := NewPDFTextExtractor("")
	if e.binaryPath != "pdftotext" {
		t.Errorf("binaryPath = %q, want pdftotext", e.binaryPath)
	}
}
