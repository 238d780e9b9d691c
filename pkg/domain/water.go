package domain

// WaterParameter is a single measured value extracted from a lab report.
type WaterParameter struct {
	Name       string   `json:"name"`
	Value      string   `json:"value"`
	Unit       string   `json:"unit,omitempty"`
	Acceptable *bool    `json:"acceptable,omitempty"`
	Range      *MinMax  `json:"range,omitempty"`
	Notes      []string `json:"notes,omitempty"`
}

type MinMax struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// WaterTestData is the structured form of a parsed lab report.
type WaterTestData struct {
	TestDate       string           `json:"testDate,omitempty"`
	Laboratory     string           `json:"laboratory,omitempty"`
	SampleLocation string           `json:"sampleLocation,omitempty"`
	Parameters     []WaterParameter `json:"parameters"`
	Summary        string           `json:"summary,omitempty"`
}
