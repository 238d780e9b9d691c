package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/osvaldoandrade/aquaq/pkg/domain"
)

func TestRenderReport(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2024, 3, 12, 10, 30, 0, 0, time.UTC)
	r := NewHTMLReportRenderer(dir, func() time.Time { return fixed })

	analysisCtx := &domain.AnalysisContext{
		AnalysisID:       "analysis_abc123",
		OriginalFilename: "report.pdf",
		WaterData: &domain.WaterTestData{
			TestDate:   "12.03.2024",
			Laboratory: "AquaLab",
			Parameters: []domain.WaterParameter{
				{Name: "pH", Value: "7.2"},
				{Name: "iron", Value: "0.3", Unit: "mg/l"},
			},
		},
	}
	result := "# Summary\nWater quality is acceptable.\n## Risks\n- Iron slightly elevated ❌\n"

	path, err := r.Render("analysis_abc123", analysisCtx, result)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if path != filepath.Join(dir, "analysis_abc123.html") {
		t.Errorf("path = %q", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	html := string(raw)

	for _, want := range []string{
		"analysis_abc123",
		"report.pdf",
		"2024-03-12 10:30",
		"AquaLab",
		"<h2>Summary</h2>",
		"<h2>Risks</h2>",
		`class="warning"`,
		"<td>7.2</td>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestRenderEscapesModelOutput(t *testing.T) {
	r := NewHTMLReportRenderer(t.TempDir(), nil)
	path, err := r.Render("analysis_x", nil, "# Summary\n<script>alert(1)</script>\n")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if strings.Contains(string(raw), "<script>") {
		t.Error("model output was not escaped")
	}
}

func TestRenderWithoutHeadings(t *testing.T) {
	r := NewHTMLReportRenderer(t.TempDir(), nil)
	path, err := r.Render("analysis_y", nil, "plain analysis text")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), "plain analysis text") {
		t.Error("untitled content dropped")
	}
}
