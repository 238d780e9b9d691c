package pipeline

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/osvaldoandrade/aquaq/internal/reports"
	"github.com/osvaldoandrade/aquaq/internal/workflow"
	"github.com/osvaldoandrade/aquaq/pkg/domain"
)

// TextExtractor pulls plain text out of an uploaded document.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// DataParser turns extracted text into structured water test data. A parse
// miss is not fatal: the analyzer still sees the raw text.
type DataParser interface {
	Parse(text string) (*domain.WaterTestData, error)
}

// Analyzer produces the markdown analysis for a job's accumulated context.
type Analyzer interface {
	Analyze(ctx context.Context, analysisCtx *domain.AnalysisContext) (string, error)
}

// ReportRenderer writes the final report file and returns its path.
type ReportRenderer interface {
	Render(id string, analysisCtx *domain.AnalysisContext, result string) (string, error)
}

// Runner drives one analysis job through extraction, parsing, AI analysis and
// report generation, reporting progress through the workflow manager. It runs
// on a background goroutine per job; all session writes go through the
// manager so they stay serialized.
type Runner struct {
	mgr       workflow.Manager
	tracker   *reports.Tracker
	extractor TextExtractor
	parser    DataParser
	analyzer  Analyzer
	renderer  ReportRenderer
	logger    *slog.Logger
}

func NewRunner(mgr workflow.Manager, tracker *reports.Tracker, extractor TextExtractor, parser DataParser, analyzer Analyzer, renderer ReportRenderer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		mgr:       mgr,
		tracker:   tracker,
		extractor: extractor,
		parser:    parser,
		analyzer:  analyzer,
		renderer:  renderer,
		logger:    logger,
	}
}

// Run executes the pipeline for one job. The first failing stage fails the
// session; later stages are skipped. The uploaded file is removed on every
// outcome, and a half-written report is removed on failure.
func (r *Runner) Run(ctx context.Context, id, uploadPath string) {
	tracer := otel.Tracer("aquaq/pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.run")
	span.SetAttributes(attribute.String("analysis.id", id))
	defer span.End()

	defer r.cleanupUpload(id, uploadPath)

	r.mgr.UpdateStep(id, workflow.StepParsing, domain.StepProcessing, "Extracting text from the PDF...", nil)

	text, err := r.extractor.Extract(ctx, uploadPath)
	if err != nil {
		span.RecordError(err)
		r.fail(id, "Text extraction failed: "+err.Error())
		return
	}

	data, err := r.parser.Parse(text)
	if err != nil {
		// Structured parsing is best effort; the analyzer works from raw text.
		r.logger.Warn("water data parsing failed", "analysisId", id, "err", err)
		data = &domain.WaterTestData{Parameters: []domain.WaterParameter{}}
	}

	r.mgr.MutateContext(id, func(c *domain.AnalysisContext) {
		c.ExtractedText = text
		c.WaterData = data
	})
	r.mgr.UpdateStep(id, workflow.StepParsing, domain.StepCompleted, "Text extracted successfully", nil)

	r.mgr.UpdateStep(id, workflow.StepAnalysis, domain.StepProcessing, "Analyzing test results with AI...", nil)

	sess := r.mgr.Session(id)
	if sess == nil {
		// Reaped mid-flight; nothing left to report against.
		r.logger.Warn("session vanished during pipeline", "analysisId", id)
		return
	}

	result, err := r.analyzer.Analyze(ctx, sess.Context)
	if err != nil {
		span.RecordError(err)
		r.fail(id, "AI analysis failed: "+err.Error())
		return
	}
	r.mgr.UpdateStep(id, workflow.StepAnalysis, domain.StepCompleted, "AI analysis completed", nil)

	r.mgr.UpdateStep(id, workflow.StepGeneration, domain.StepProcessing, "Generating report...", nil)

	reportPath, err := r.renderer.Render(id, sess.Context, result)
	if err != nil {
		span.RecordError(err)
		r.fail(id, "Report generation failed: "+err.Error())
		return
	}
	r.tracker.Track(id, reportPath)
	r.mgr.UpdateStep(id, workflow.StepGeneration, domain.StepCompleted, "Report generated", nil)

	r.mgr.Complete(id, result)
}

func (r *Runner) fail(id, message string) {
	r.mgr.Fail(id, message)
	r.tracker.DeleteNow(id)
}

func (r *Runner) cleanupUpload(id, uploadPath string) {
	if uploadPath == "" {
		return
	}
	if err := os.Remove(uploadPath); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("upload cleanup failed", "analysisId", id, "path", uploadPath, "err", err)
	}
}
