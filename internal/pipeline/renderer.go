package pipeline

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/osvaldoandrade/aquaq/pkg/domain"
)

// HTMLReportRenderer writes the analysis result as a self-contained HTML
// report under the reports directory. The markdown result is split into
// sections on its headings; everything inside a section is escaped by the
// template, so model output cannot inject markup.
type HTMLReportRenderer struct {
	dir string
	now func() time.Time
}

func NewHTMLReportRenderer(dir string, now func() time.Time) *HTMLReportRenderer {
	if now == nil {
		now = time.Now
	}
	return &HTMLReportRenderer{dir: dir, now: now}
}

type reportSection struct {
	Title string
	Lines []reportLine
}

type reportLine struct {
	Text     string
	ListItem bool
	Warning  bool
}

type reportModel struct {
	AnalysisID  string
	Filename    string
	GeneratedAt string
	Data        *domain.WaterTestData
	Sections    []reportSection
}

func (r *HTMLReportRenderer) Render(id string, analysisCtx *domain.AnalysisContext, result string) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}

	model := reportModel{
		AnalysisID:  id,
		GeneratedAt: r.now().Format("2006-01-02 15:04"),
		Sections:    splitSections(result),
	}
	if analysisCtx != nil {
		model.Filename = analysisCtx.OriginalFilename
		model.Data = analysisCtx.WaterData
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, model); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}

	path := filepath.Join(r.dir, id+".html")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// splitSections breaks the markdown result on # and ## headings. Content
// before the first heading goes into an untitled section.
func splitSections(result string) []reportSection {
	var sections []reportSection
	current := reportSection{}

	flush := func() {
		if current.Title != "" || len(current.Lines) > 0 {
			sections = append(sections, current)
		}
	}

	for _, line := range strings.Split(result, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") || strings.HasPrefix(trimmed, "## ") {
			flush()
			current = reportSection{Title: strings.TrimLeft(trimmed, "# ")}
			continue
		}
		if trimmed == "" {
			continue
		}
		current.Lines = append(current.Lines, reportLine{
			Text:     strings.TrimPrefix(trimmed, "- "),
			ListItem: strings.HasPrefix(trimmed, "- "),
			Warning:  strings.Contains(trimmed, "❌") || strings.Contains(strings.ToUpper(trimmed), "DANGER"),
		})
	}
	flush()
	return sections
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Water Analysis Report {{.AnalysisID}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; max-width: 800px; margin: 40px auto; padding: 0 20px; color: #1f2937; }
h1 { color: #2563eb; text-align: center; }
h2 { color: #1d4ed8; border-bottom: 1px solid #dbeafe; padding-bottom: 4px; }
table { border-collapse: collapse; width: 100%; margin: 16px 0; }
th, td { border: 1px solid #d1d5db; padding: 6px 10px; text-align: left; font-size: 14px; }
th { background: #dbeafe; color: #1e40af; }
ul { padding-left: 24px; }
.warning { color: #dc2626; }
footer { margin-top: 40px; font-size: 12px; color: #666; text-align: center; }
</style>
</head>
<body>
<h1>Water Quality Analysis</h1>
<table>
<tr><th colspan="2">Report Details</th></tr>
<tr><td>Analysis ID</td><td>{{.AnalysisID}}</td></tr>
<tr><td>Source file</td><td>{{.Filename}}</td></tr>
<tr><td>Generated at</td><td>{{.GeneratedAt}}</td></tr>
{{- if .Data}}
{{- if .Data.TestDate}}<tr><td>Test date</td><td>{{.Data.TestDate}}</td></tr>{{end}}
{{- if .Data.Laboratory}}<tr><td>Laboratory</td><td>{{.Data.Laboratory}}</td></tr>{{end}}
{{- if .Data.SampleLocation}}<tr><td>Sample location</td><td>{{.Data.SampleLocation}}</td></tr>{{end}}
{{- end}}
</table>
{{- if and .Data .Data.Parameters}}
<h2>Measured Parameters</h2>
<table>
<tr><th>Parameter</th><th>Value</th><th>Unit</th></tr>
{{- range .Data.Parameters}}
<tr><td>{{.Name}}</td><td>{{.Value}}</td><td>{{.Unit}}</td></tr>
{{- end}}
</table>
{{- end}}
{{- range .Sections}}
{{- if .Title}}<h2>{{.Title}}</h2>{{end}}
{{- range .Lines}}
{{- if .ListItem}}
<ul><li{{if .Warning}} class="warning"{{end}}>{{.Text}}</li></ul>
{{- else}}
<p{{if .Warning}} class="warning"{{end}}>{{.Text}}</p>
{{- end}}
{{- end}}
{{- end}}
<footer>
Report generated automatically by the water analysis service.<br>
This report is for informational purposes only. Consult a water quality expert if problems are detected.
</footer>
</body>
</html>
`))
