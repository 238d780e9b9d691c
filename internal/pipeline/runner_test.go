package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/osvaldoandrade/aquaq/internal/reports"
	"github.com/osvaldoandrade/aquaq/internal/workflow"
	"github.com/osvaldoandrade/aquaq/pkg/domain"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(context.Context, string) (string, error) { return f.text, f.err }

type fakeParser struct {
	data *domain.WaterTestData
	err  error
}

func (f *fakeParser) Parse(string) (*domain.WaterTestData, error) { return f.data, f.err }

type fakeAnalyzer struct {
	result string
	err    error
	gotCtx *domain.AnalysisContext
}

func (f *fakeAnalyzer) Analyze(_ context.Context, c *domain.AnalysisContext) (string, error) {
	f.gotCtx = c
	return f.result, f.err
}

type fakeRenderer struct {
	dir string
	err error
}

func (f *fakeRenderer) Render(id string, _ *domain.AnalysisContext, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(f.dir, id+".html")
	if err := os.WriteFile(path, []byte("report"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type runnerFixture struct {
	mgr       workflow.Manager
	tracker   *reports.Tracker
	extractor *fakeExtractor
	parser    *fakeParser
	analyzer  *fakeAnalyzer
	renderer  *fakeRenderer
	runner    *Runner
	upload    string
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	logger := slog.Default()
	store := workflow.NewSessionStore()
	mgr := workflow.NewManager(store, workflow.NewBroadcaster(logger), logger, nil)
	reportsDir := t.TempDir()
	tracker := reports.NewTracker(reportsDir, 10*time.Minute, time.Minute, logger, nil)

	upload := filepath.Join(t.TempDir(), "upload.pdf")
	if err := os.WriteFile(upload, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := &runnerFixture{
		mgr:       mgr,
		tracker:   tracker,
		extractor: &fakeExtractor{text: "pH: 7.2"},
		parser:    &fakeParser{data: &domain.WaterTestData{Parameters: []domain.WaterParameter{{Name: "pH", Value: "7.2"}}}},
		analyzer:  &fakeAnalyzer{result: "# Summary\nok"},
		renderer:  &fakeRenderer{dir: reportsDir},
		upload:    upload,
	}
	f.runner = NewRunner(mgr, tracker, f.extractor, f.parser, f.analyzer, f.renderer, logger)
	return f
}

func (f *runnerFixture) start(t *testing.T, id string) {
	t.Helper()
	analysisCtx := &domain.AnalysisContext{AnalysisID: id, OriginalFilename: "upload.pdf", UploadPath: f.upload}
	if _, err := f.mgr.Start(id, analysisCtx); err != nil {
		t.Fatal(err)
	}
}

func TestRunnerHappyPath(t *testing.T) {
	f := newRunnerFixture(t)
	f.start(t, "analysis_ok")

	f.runner.Run(context.Background(), "analysis_ok", f.upload)

	sess := f.mgr.Session("analysis_ok")
	if sess == nil {
		t.Fatal("session gone")
	}
	if sess.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, err = %q", sess.Status, sess.Error)
	}
	if sess.Progress != 100 {
		t.Errorf("progress = %d, want 100", sess.Progress)
	}
	if sess.Result != "# Summary\nok" {
		t.Errorf("result = %q", sess.Result)
	}
	if sess.Context.ExtractedText != "pH: 7.2" {
		t.Errorf("extracted text = %q", sess.Context.ExtractedText)
	}
	if sess.Context.WaterData == nil || len(sess.Context.WaterData.Parameters) != 1 {
		t.Errorf("water data = %+v", sess.Context.WaterData)
	}
	if f.tracker.Count() != 1 {
		t.Errorf("tracked reports = %d, want 1", f.tracker.Count())
	}
	if _, err := os.Stat(f.upload); !os.IsNotExist(err) {
		t.Error("upload file not cleaned up")
	}
}

func TestRunnerExtractionFailure(t *testing.T) {
	f := newRunnerFixture(t)
	f.extractor.err = errors.New("corrupt file")
	f.start(t, "analysis_bad")

	f.runner.Run(context.Background(), "analysis_bad", f.upload)

	sess := f.mgr.Session("analysis_bad")
	if sess.Status != domain.StatusError {
		t.Fatalf("status = %s", sess.Status)
	}
	if !strings.Contains(sess.Error, "Text extraction failed") {
		t.Errorf("error = %q", sess.Error)
	}
	if f.tracker.Count() != 0 {
		t.Errorf("tracked reports = %d, want 0", f.tracker.Count())
	}
	if _, err := os.Stat(f.upload); !os.IsNotExist(err) {
		t.Error("upload file not cleaned up on failure")
	}
}

func TestRunnerParserFailureIsNotFatal(t *testing.T) {
	f := newRunnerFixture(t)
	f.parser.data = nil
	f.parser.err = errors.New("unreadable layout")
	f.start(t, "analysis_np")

	f.runner.Run(context.Background(), "analysis_np", f.upload)

	sess := f.mgr.Session("analysis_np")
	if sess.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, err = %q", sess.Status, sess.Error)
	}
	if sess.Context.WaterData == nil || len(sess.Context.WaterData.Parameters) != 0 {
		t.Errorf("water data = %+v, want empty structure", sess.Context.WaterData)
	}
	if f.analyzer.gotCtx == nil || f.analyzer.gotCtx.ExtractedText != "pH: 7.2" {
		t.Error("analyzer did not receive extracted text")
	}
}

func TestRunnerAnalyzerFailure(t *testing.T) {
	f := newRunnerFixture(t)
	f.analyzer.err = errors.New("model unavailable")
	f.start(t, "analysis_ai")

	f.runner.Run(context.Background(), "analysis_ai", f.upload)

	sess := f.mgr.Session("analysis_ai")
	if sess.Status != domain.StatusError {
		t.Fatalf("status = %s", sess.Status)
	}
	if !strings.Contains(sess.Error, "AI analysis failed") {
		t.Errorf("error = %q", sess.Error)
	}
}

func TestRunnerRendererFailureRemovesReport(t *testing.T) {
	f := newRunnerFixture(t)
	f.renderer.err = errors.New("disk full")
	f.start(t, "analysis_rp")

	f.runner.Run(context.Background(), "analysis_rp", f.upload)

	sess := f.mgr.Session("analysis_rp")
	if sess.Status != domain.StatusError {
		t.Fatalf("status = %s", sess.Status)
	}
	if !strings.Contains(sess.Error, "Report generation failed") {
		t.Errorf("error = %q", sess.Error)
	}
	if f.tracker.Count() != 0 {
		t.Errorf("tracked reports = %d, want 0", f.tracker.Count())
	}
}

func TestRunnerEventSequence(t *testing.T) {
	f := newRunnerFixture(t)
	f.start(t, "analysis_ev")

	var events []domain.ProgressEvent
	f.mgr.Subscribe("analysis_ev", func(e domain.ProgressEvent) error {
		events = append(events, e)
		return nil
	})

	f.runner.Run(context.Background(), "analysis_ev", f.upload)

	wantSteps := []string{
		workflow.StepParsing, workflow.StepParsing,
		workflow.StepAnalysis, workflow.StepAnalysis,
		workflow.StepGeneration, workflow.StepGeneration,
		workflow.StepComplete,
	}
	if len(events) != len(wantSteps) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(wantSteps), events)
	}
	for i, step := range wantSteps {
		if events[i].Step != step {
			t.Errorf("event %d step = %s, want %s", i, events[i].Step, step)
		}
	}
	for i := 1; i < len(events); i++ {
		if events[i].Progress < events[i-1].Progress {
			t.Errorf("progress regressed at event %d: %d -> %d", i, events[i-1].Progress, events[i].Progress)
		}
	}
	if last := events[len(events)-1]; last.Progress != 100 || last.Status != domain.StepCompleted {
		t.Errorf("final event = %+v", last)
	}
}

func TestRunnerUnknownSessionIsNoop(t *testing.T) {
	f := newRunnerFixture(t)

	// Never started; the runner must not create a session as a side effect.
	f.runner.Run(context.Background(), "analysis_ghost", f.upload)

	if f.mgr.Session("analysis_ghost") != nil {
		t.Error("run created a session for an unknown id")
	}
}
