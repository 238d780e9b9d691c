package domain

import (
	"encoding"
	"time"
)

type SessionStatus string

const (
	StatusProcessing SessionStatus = "processing"
	StatusCompleted  SessionStatus = "completed"
	StatusError      SessionStatus = "error"
)

// StepStatus is the coarse state a pipeline stage reports for a single step.
type StepStatus string

const (
	StepProcessing StepStatus = "processing"
	StepCompleted  StepStatus = "completed"
	StepError      StepStatus = "error"
)

// AnalysisContext carries the per-job input data accumulated across pipeline
// stages. It is owned by the session for the job's lifetime; stages mutate it
// only through the store so writes are serialized.
type AnalysisContext struct {
	AnalysisID       string         `json:"analysisId"`
	OriginalFilename string         `json:"originalFilename"`
	UploadPath       string         `json:"uploadPath,omitempty"`
	ExtractedText    string         `json:"extractedText,omitempty"`
	WaterData        *WaterTestData `json:"waterData,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Session is one in-flight or recently-finished analysis job.
type Session struct {
	ID          string           `json:"id"`
	Status      SessionStatus    `json:"status"`
	StartTime   time.Time        `json:"startTime"`
	CurrentStep string           `json:"currentStep"`
	Progress    int              `json:"progress"`
	Context     *AnalysisContext `json:"context,omitempty"`
	Result      string           `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	CompletedAt time.Time        `json:"completedAt,omitempty"`
}

// Terminal reports whether the session left the processing state. Terminal
// sessions are frozen: no further mutation is valid.
func (s *Session) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusError
}

// ProgressEvent is an immutable point-in-time snapshot broadcast to
// subscribers. Consumers never mutate it.
type ProgressEvent struct {
	Step        string     `json:"step"`
	Status      StepStatus `json:"status"`
	Message     string     `json:"message"`
	Progress    int        `json:"progress"`
	ElapsedTime float64    `json:"elapsedTime"`
}

// AnalysisStatus is the caller-facing projection of a session.
type AnalysisStatus struct {
	ID            string        `json:"id"`
	Status        SessionStatus `json:"status"`
	Progress      int           `json:"progress"`
	Message       string        `json:"message"`
	StartTime     time.Time     `json:"startTime"`
	CompletedTime *time.Time    `json:"completedTime,omitempty"`
	Error         string        `json:"error,omitempty"`
}

var (
	_ encoding.BinaryMarshaler = SessionStatus("")
	_ encoding.TextMarshaler   = SessionStatus("")
	_ encoding.BinaryMarshaler = StepStatus("")
	_ encoding.TextMarshaler   = StepStatus("")
)

func (s SessionStatus) MarshalBinary() ([]byte, error) { return []byte(string(s)), nil }
func (s SessionStatus) MarshalText() ([]byte, error)   { return []byte(string(s)), nil }

func (s StepStatus) MarshalBinary() ([]byte, error) { return []byte(string(s)), nil }
func (s StepStatus) MarshalText() ([]byte, error)   { return []byte(string(s)), nil }
