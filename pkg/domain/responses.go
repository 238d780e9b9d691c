package domain

import "time"

type UploadResponse struct {
	Success    bool   `json:"success"`
	AnalysisID string `json:"analysisId"`
	Message    string `json:"message"`
}

// AnalysisResult is returned once a job completes and its report is still
// within the retention window.
type AnalysisResult struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"originalFilename"`
	AnalysisMarkdown string    `json:"analysisMarkdown"`
	AnalysisDate     time.Time `json:"analysisDate"`
	ProcessingTime   float64   `json:"processingTime"`
	ReportURL        string    `json:"reportUrl"`
	PreviewURL       string    `json:"previewUrl"`
}

type AnalysisPreview struct {
	ID       string         `json:"id"`
	Markdown string         `json:"markdown"`
	Metadata map[string]any `json:"metadata"`
}

// ReportAvailability is the download surface's view of a tracked report.
type ReportAvailability struct {
	AnalysisID string  `json:"analysisId"`
	Exists     bool    `json:"exists"`
	Expired    bool    `json:"expired"`
	AgeMinutes float64 `json:"ageMinutes"`
	Downloaded bool    `json:"downloaded"`
	ExpiresIn  float64 `json:"expiresIn"`
}
