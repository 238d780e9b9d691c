package controllers

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// validAnalysisID keeps path parameters from reaching the filesystem layer
// with anything but the characters our ids are built from.
func validAnalysisID(id string) bool {
	if len(id) < 10 || len(id) > 100 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

var pdfHeader = []byte("%PDF-")

// validatePDFUpload rejects non-PDF uploads before any disk write: extension,
// size bounds, and the magic header all have to check out.
func validatePDFUpload(fh *multipart.FileHeader, maxSizeMB int) error {
	if fh == nil || fh.Filename == "" {
		return fmt.Errorf("no file provided")
	}
	if ext := strings.ToLower(filepath.Ext(fh.Filename)); ext != ".pdf" {
		return fmt.Errorf("invalid file extension: %s, only PDF files are allowed", ext)
	}
	if fh.Size == 0 {
		return fmt.Errorf("file is empty")
	}
	maxBytes := int64(maxSizeMB) << 20
	if fh.Size > maxBytes {
		return fmt.Errorf("file too large: %d bytes, maximum allowed: %d bytes (%dMB)", fh.Size, maxBytes, maxSizeMB)
	}

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("cannot read upload: %w", err)
	}
	defer f.Close()

	head := make([]byte, len(pdfHeader))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, pdfHeader) {
		return fmt.Errorf("file does not appear to be a valid PDF (missing PDF header)")
	}
	return nil
}
