package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/osvaldoandrade/aquaq/pkg/domain"
)

// RegexDataParser extracts structured water test data from lab report text
// with pattern matching. Lab reports come in both English and Polish, so
// every pattern carries both spellings.
type RegexDataParser struct{}

func NewRegexDataParser() *RegexDataParser {
	return &RegexDataParser{}
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:test\s+date|data\s+badania)[:\s]+(\d{1,2}[.\-/]\d{1,2}[.\-/]\d{2,4})`),
	regexp.MustCompile(`(?i)(?:date|data)[:\s]+(\d{1,2}[.\-/]\d{1,2}[.\-/]\d{2,4})`),
	regexp.MustCompile(`(\d{1,2}[.\-/]\d{1,2}[.\-/]\d{2,4})`),
	regexp.MustCompile(`(\d{2,4}[.\-/]\d{1,2}[.\-/]\d{1,2})`),
}

var labPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)laborator(?:y|ium)[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)lab[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)wykonawca[:\s]+([^\n]+)`),
}

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:sample\s+location|miejsce\s+poboru)[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)(?:location|lokalizacja)[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)(?:address|adres)[:\s]+([^\n]+)`),
}

var parameterPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"pH", regexp.MustCompile(`(?i)pH[:\s]+(\d+[,.]?\d*)`)},
	{"conductivity", regexp.MustCompile(`(?i)(?:conductivity|przewodność)[:\s]+(\d+[,.]?\d*)\s*([µμ]?[\w/]+)?`)},
	{"turbidity", regexp.MustCompile(`(?i)(?:turbidity|mętność)[:\s]+(\d+[,.]?\d*)\s*([\w/]+)?`)},
	{"chlorides", regexp.MustCompile(`(?i)(?:chlorides?|chlorki)[:\s]+(\d+[,.]?\d*)\s*([\w/]+)?`)},
	{"sulphates", regexp.MustCompile(`(?i)(?:sulphates?|sulfates?|siarczany)[:\s]+(\d+[,.]?\d*)\s*([\w/]+)?`)},
	{"nitrates", regexp.MustCompile(`(?i)(?:nitrates?|azotany)[:\s]+(\d+[,.]?\d*)\s*([\w/]+)?`)},
	{"nitrites", regexp.MustCompile(`(?i)(?:nitrites?|azotyny)[:\s]+(\d+[,.]?\d*)\s*([\w/]+)?`)},
	{"iron", regexp.MustCompile(`(?i)(?:iron|żelazo)[:\s]+(\d+[,.]?\d*)\s*([\w/]+)?`)},
	{"manganese", regexp.MustCompile(`(?i)(?:manganese|mangan)[:\s]+(\d+[,.]?\d*)\s*([\w/]+)?`)},
	{"hardness", regexp.MustCompile(`(?i)(?:hardness|twardość)[:\s]+(\d+[,.]?\d*)\s*([\w/]+)?`)},
	{"fluoride", regexp.MustCompile(`(?i)(?:fluorides?|fluor)[:\s]+(\d+[,.]?\d*)\s*([\w/]+)?`)},
}

func (p *RegexDataParser) Parse(text string) (*domain.WaterTestData, error) {
	data := &domain.WaterTestData{
		TestDate:       firstMatch(datePatterns, text),
		Laboratory:     firstMatch(labPatterns, text),
		SampleLocation: firstMatch(locationPatterns, text),
		Parameters:     []domain.WaterParameter{},
	}

	for _, pp := range parameterPatterns {
		for _, m := range pp.re.FindAllStringSubmatch(text, -1) {
			value, ok := normalizeValue(m[1])
			if !ok {
				continue
			}
			param := domain.WaterParameter{Name: pp.name, Value: value}
			if len(m) > 2 {
				param.Unit = strings.TrimSpace(m[2])
			}
			data.Parameters = append(data.Parameters, param)
		}
	}

	data.Parameters = append(data.Parameters, parseTableRows(text)...)
	return data, nil
}

func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// parseTableRows picks up "name | value | unit" rows from tabular report
// layouts the line patterns miss.
func parseTableRows(text string) []domain.WaterParameter {
	var params []domain.WaterParameter
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, "|") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 3 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		value, ok := normalizeValue(strings.TrimSpace(parts[1]))
		if name == "" || !ok {
			continue
		}
		params = append(params, domain.WaterParameter{
			Name:  name,
			Value: value,
			Unit:  strings.TrimSpace(parts[2]),
		})
	}
	return params
}

// normalizeValue converts a decimal-comma value to decimal-point form and
// rejects anything that is not a number.
func normalizeValue(raw string) (string, bool) {
	v := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if _, err := strconv.ParseFloat(v, 64); err != nil {
		return "", false
	}
	return v, true
}
