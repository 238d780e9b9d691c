package workflow

import (
	"time"

	"github.com/osvaldoandrade/aquaq/pkg/domain"
)

// Step is a static catalog entry mapping a pipeline step to its slice of the
// overall progress bar. The ranges reflect the relative cost of each stage
// and must stay stable so clients render a consistent progress bar.
type Step struct {
	ID            string
	Name          string
	Description   string
	ProgressStart int
	ProgressEnd   int
	// EstimatedDuration is an advisory hint for clients, not enforced.
	EstimatedDuration time.Duration
}

const (
	StepUpload     = "upload"
	StepParsing    = "parsing"
	StepAnalysis   = "analysis"
	StepGeneration = "generation"
	StepComplete   = "complete"
)

// Steps is the fixed pipeline ordering: upload, parsing, analysis,
// generation, complete.
var Steps = []Step{
	{StepUpload, "Uploading file", "Receiving the file on the server", 0, 10, 2 * time.Second},
	{StepParsing, "Reading document", "Extracting data from the PDF", 10, 30, 8 * time.Second},
	{StepAnalysis, "AI analysis", "Analyzing the test results", 30, 80, 25 * time.Second},
	{StepGeneration, "Generating report", "Building the final report", 80, 95, 8 * time.Second},
	{StepComplete, "Finished", "Analysis ready for download", 95, 100, time.Second},
}

func StepByID(id string) (Step, bool) {
	for _, st := range Steps {
		if st.ID == id {
			return st, true
		}
	}
	return Step{}, false
}

// ProgressFor derives a numeric progress value from a coarse step/status
// pair: completed maps to the end of the step's range, processing to its
// midpoint, anything else to its start. Unknown steps report zero.
func ProgressFor(stepID string, status domain.StepStatus) int {
	st, ok := StepByID(stepID)
	if !ok {
		return 0
	}
	switch status {
	case domain.StepCompleted:
		return st.ProgressEnd
	case domain.StepProcessing:
		return st.ProgressStart + (st.ProgressEnd-st.ProgressStart)/2
	default:
		return st.ProgressStart
	}
}
