package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medai-lab/labdash/internal/domain/analysis"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func rec(disease, result string) *analysis.Analysis {
	return &analysis.Analysis{
		ID:              uuid.New(),
		PatientName:     "Jane Doe",
		DiseaseType:     disease,
		AIResult:        result,
		ConfidenceScore: 95.5,
		AnalyzedBy:      "tech@lab.example",
		AnalyzedAt:      baseTime,
	}
}

func TestSummarize(t *testing.T) {
	rows := []*analysis.Analysis{
		rec(analysis.DiseaseMalaria, "Positive"),
		rec(analysis.DiseaseMalaria, "Negative"),
		rec(analysis.DiseaseLeptospirosis, "Negative"),
	}
	s := Summarize(rows)

	if s.Total != 3 {
		t.Errorf("expected 3 total records, got %d", s.Total)
	}
	if len(s.Diseases) != 2 {
		t.Fatalf("expected 2 disease rows, got %d", len(s.Diseases))
	}
	malaria, lepto := s.Diseases[0], s.Diseases[1]
	if malaria.Disease != analysis.DiseaseMalaria || malaria.Total != 2 || malaria.Positive != 1 || malaria.Negative != 1 {
		t.Errorf("unexpected malaria counts: %+v", malaria)
	}
	if lepto.Disease != analysis.DiseaseLeptospirosis || lepto.Total != 1 || lepto.Positive != 0 || lepto.Negative != 1 {
		t.Errorf("unexpected leptospirosis counts: %+v", lepto)
	}
}

func TestSummarizeOrderIsFixed(t *testing.T) {
	// Leptospirosis first in the input must not change the output order.
	rows := []*analysis.Analysis{
		rec(analysis.DiseaseLeptospirosis, "Positive"),
		rec(analysis.DiseaseMalaria, "Positive"),
	}
	s := Summarize(rows)
	if s.Diseases[0].Disease != analysis.DiseaseMalaria {
		t.Errorf("malaria must come first, got %s", s.Diseases[0].Disease)
	}
}

func TestSummarizeUnclassifiedCountsTowardTotalOnly(t *testing.T) {
	rows := []*analysis.Analysis{
		rec(analysis.DiseaseMalaria, "inconclusive"),
		rec(analysis.DiseaseMalaria, "Positive"),
	}
	s := Summarize(rows)
	m := s.Diseases[0]
	if m.Total != 2 || m.Positive != 1 || m.Negative != 0 {
		t.Errorf("unclassified must count in total only: %+v", m)
	}
}

func TestWriteCSV(t *testing.T) {
	rows := []*analysis.Analysis{
		rec(analysis.DiseaseMalaria, "Positive"),
		rec(analysis.DiseaseMalaria, "Negative"),
		rec(analysis.DiseaseLeptospirosis, "Negative"),
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows, Filter{}, "ho@lab.example", baseTime); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"MedAI Laboratory Analysis Export",
		"Filter,All records",
		"Generated By,ho@lab.example",
		"No.,Patient Name,Disease Type,Result,Confidence,Analyzed By,Date",
		"1,Jane Doe,Malaria,Positive,95.5%,tech@lab.example,2025-06-01",
		"SUMMARY STATISTICS",
		"Malaria,2,1 Positive,1 Negative",
		"Leptospirosis,1,0 Positive,1 Negative",
		"Total Records,3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q\n%s", want, out)
		}
	}
}

func TestWriteCSVQuotesCommas(t *testing.T) {
	a := rec(analysis.DiseaseMalaria, "Positive")
	a.PatientName = `Doe, Jane "JD"`

	var buf bytes.Buffer
	if err := WriteCSV(&buf, []*analysis.Analysis{a}, Filter{}, "ho@lab.example", baseTime); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"Doe, Jane ""JD"""`) {
		t.Errorf("patient name not quoted:\n%s", buf.String())
	}
}

func TestFilterApply(t *testing.T) {
	rows := []*analysis.Analysis{
		rec(analysis.DiseaseMalaria, "Positive"),
		rec(analysis.DiseaseMalaria, "Not Detected"),
		rec(analysis.DiseaseLeptospirosis, "Positive"),
	}

	f := Filter{Disease: analysis.DiseaseMalaria}
	if got := f.Apply(rows); len(got) != 2 {
		t.Errorf("disease filter: expected 2 rows, got %d", len(got))
	}

	f = Filter{Polarity: analysis.PolarityNegative}
	if got := f.Apply(rows); len(got) != 1 || got[0].AIResult != "Not Detected" {
		t.Errorf("polarity filter: unexpected rows %v", got)
	}

	f = Filter{Disease: analysis.DiseaseLeptospirosis, Polarity: analysis.PolarityNegative}
	if got := f.Apply(rows); len(got) != 0 {
		t.Errorf("combined filter: expected no rows, got %d", len(got))
	}

	if got := (Filter{}).Apply(rows); len(got) != 3 {
		t.Errorf("zero filter must pass everything, got %d rows", len(got))
	}
}

func TestFilterFilename(t *testing.T) {
	cases := []struct {
		f    Filter
		want string
	}{
		{Filter{}, "analysis_all_2025-06-01.csv"},
		{Filter{Disease: analysis.DiseaseMalaria}, "analysis_filtered_malaria_any_2025-06-01.csv"},
		{Filter{Polarity: analysis.PolarityPositive}, "analysis_filtered_any_positive_2025-06-01.csv"},
		{
			Filter{Disease: analysis.DiseaseLeptospirosis, Polarity: analysis.PolarityNegative},
			"analysis_filtered_leptospirosis_negative_2025-06-01.csv",
		},
	}
	for _, tc := range cases {
		if got := tc.f.Filename(baseTime); got != tc.want {
			t.Errorf("Filename(%+v) = %q, want %q", tc.f, got, tc.want)
		}
	}
}
