package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// PDFTextExtractor shells out to the local pdftotext binary (poppler-utils)
// to pull plain text out of an uploaded PDF.
type PDFTextExtractor struct {
	binaryPath string
	timeout    time.Duration
}

func NewPDFTextExtractor(binaryPath string) *PDFTextExtractor {
	if strings.TrimSpace(binaryPath) == "" {
		binaryPath = "pdftotext" // Assumes pdftotext is in PATH
	}
	return &PDFTextExtractor{
		binaryPath: binaryPath,
		timeout:    2 * time.Minute,
	}
}

// Extract runs pdftotext against path and returns the raw text on stdout.
func (e *PDFTextExtractor) Extract(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// -layout: preserve the physical layout, keeps lab result tables readable
	// -enc UTF-8: force output encoding
	// -: write to stdout
	cmd := exec.CommandContext(ctx, e.binaryPath, "-layout", "-enc", "UTF-8", path, "-")

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %w, stderr: %s", err, stderr.String())
	}

	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", fmt.Errorf("pdftotext produced no text for %s", path)
	}
	return text, nil
}
