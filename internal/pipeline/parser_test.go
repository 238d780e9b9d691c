package pipeline

import (
	"testing"
)

const sampleReportText = `
Laboratory: AquaLab Ltd.
Test date: 12.03.2024
Sample location: Well no. 4, Springfield

pH: 7,2
Conductivity: 540 uS/cm
Iron: 0,3 mg/l
Nitrates: 12.5 mg/l

twardość: 280 mgCaCO3/l

Manganese | 0,05 | mg/l
`

func TestParseWaterData(t *testing.T) {
	p := NewRegexDataParser()
	data, err := p.Parse(sampleReportText)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if data.Laboratory != "AquaLab Ltd." {
		t.Errorf("laboratory = %q", data.Laboratory)
	}
	if data.TestDate != "12.03.2024" {
		t.Errorf("test date = %q", data.TestDate)
	}
	if data.SampleLocation != "Well no. 4, Springfield" {
		t.Errorf("sample location = %q", data.SampleLocation)
	}

	byName := map[string]string{}
	for _, p := range data.Parameters {
		byName[p.Name] = p.Value
	}

	want := map[string]string{
		"pH":           "7.2",
		"conductivity": "540",
		"iron":         "0.3",
		"nitrates":     "12.5",
		"hardness":     "280",
		"Manganese":    "0.05",
	}
	for name, value := range want {
		if got := byName[name]; got != value {
			t.Errorf("parameter %s = %q, want %q", name, got, value)
		}
	}
}

func TestParseDecimalCommaNormalized(t *testing.T) {
	p := NewRegexDataParser()
	data, err := p.Parse("pH: 6,8")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(data.Parameters) != 1 || data.Parameters[0].Value != "6.8" {
		t.Fatalf("parameters = %+v, want single pH 6.8", data.Parameters)
	}
}

func TestParseEmptyText(t *testing.T) {
	p := NewRegexDataParser()
	data, err := p.Parse("")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(data.Parameters) != 0 {
		t.Errorf("parameters = %+v, want none", data.Parameters)
	}
}

func TestParseTableRowRejectsNonNumeric(t *testing.T) {
	p := NewRegexDataParser()
	data, err := p.Parse("Color | acceptable | -\nIron | 0.2 | mg/l")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(data.Parameters) != 1 || data.Parameters[0].Name != "Iron" {
		t.Fatalf("parameters = %+v, want single Iron row", data.Parameters)
	}
}
