// Package export renders analysis data into downloadable files for
// surveillance and record keeping.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/medai-lab/labdash/internal/domain/analysis"
)

// Filter narrows an export to one disease type or result polarity. The zero
// value matches everything.
type Filter struct {
	Disease  string
	Polarity analysis.Polarity
}

func (f Filter) IsZero() bool { return f.Disease == "" && f.Polarity == "" }

func (f Filter) Match(a *analysis.Analysis) bool {
	if f.Disease != "" && a.DiseaseType != f.Disease {
		return false
	}
	if f.Polarity != "" && a.Polarity() != f.Polarity {
		return false
	}
	return true
}

// Apply returns the records matching the filter, in input order.
func (f Filter) Apply(rows []*analysis.Analysis) []*analysis.Analysis {
	if f.IsZero() {
		return rows
	}
	out := make([]*analysis.Analysis, 0, len(rows))
	for _, a := range rows {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	return out
}

// Description renders the filter for the export header block.
func (f Filter) Description() string {
	if f.IsZero() {
		return "All records"
	}
	var parts []string
	if f.Disease != "" {
		parts = append(parts, label(f.Disease))
	}
	if f.Polarity != "" {
		parts = append(parts, string(f.Polarity)+" results")
	}
	return strings.Join(parts, ", ")
}

// Filename suggests a download name describing the filter and export date.
func (f Filter) Filename(date time.Time) string {
	day := date.UTC().Format("2006-01-02")
	if f.IsZero() {
		return "analysis_all_" + day + ".csv"
	}
	disease := f.Disease
	if disease == "" {
		disease = "any"
	}
	result := string(f.Polarity)
	if result == "" {
		result = "any"
	}
	return fmt.Sprintf("analysis_filtered_%s_%s_%s.csv", disease, result, day)
}

// DiseaseCount is the per-disease breakdown in the summary block. Only
// records actually classified positive or negative contribute to the split;
// the total counts every record of the disease.
type DiseaseCount struct {
	Disease  string `json:"disease"`
	Total    int    `json:"total"`
	Positive int    `json:"positive"`
	Negative int    `json:"negative"`
}

// Summary is the trailing statistics block of an export.
type Summary struct {
	Diseases []DiseaseCount `json:"diseases"`
	Total    int            `json:"total"`
}

var diseaseOrder = []string{analysis.DiseaseMalaria, analysis.DiseaseLeptospirosis}

var diseaseLabels = map[string]string{
	analysis.DiseaseMalaria:       "Malaria",
	analysis.DiseaseLeptospirosis: "Leptospirosis",
}

// Summarize counts records per disease and polarity. Diseases appear in a
// fixed order regardless of input order; diseases with no records are
// omitted.
func Summarize(rows []*analysis.Analysis) Summary {
	byDisease := make(map[string]*DiseaseCount)
	for _, a := range rows {
		c, ok := byDisease[a.DiseaseType]
		if !ok {
			c = &DiseaseCount{Disease: a.DiseaseType}
			byDisease[a.DiseaseType] = c
		}
		c.Total++
		switch a.Polarity() {
		case analysis.PolarityPositive:
			c.Positive++
		case analysis.PolarityNegative:
			c.Negative++
		}
	}

	s := Summary{Total: len(rows)}
	for _, d := range diseaseOrder {
		if c, ok := byDisease[d]; ok {
			s.Diseases = append(s.Diseases, *c)
		}
	}
	// Unknown disease types sort after the known ones.
	for d, c := range byDisease {
		if _, known := diseaseLabels[d]; !known {
			s.Diseases = append(s.Diseases, *c)
		}
	}
	return s
}

func label(disease string) string {
	if l, ok := diseaseLabels[disease]; ok {
		return l
	}
	return disease
}

// WriteCSV writes the full export: a header block describing the filter, the
// record table, and the summary statistics. Quoting is handled by the csv
// writer. The rows must already be filtered.
func WriteCSV(w io.Writer, rows []*analysis.Analysis, f Filter, generatedBy string, generatedAt time.Time) error {
	cw := csv.NewWriter(w)

	header := [][]string{
		{"MedAI Laboratory Analysis Export"},
		{"Filter", f.Description()},
		{"Generated", generatedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Generated By", generatedBy},
		{},
		{"No.", "Patient Name", "Disease Type", "Result", "Confidence", "Analyzed By", "Date"},
	}
	for _, rec := range header {
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	for i, a := range rows {
		rec := []string{
			fmt.Sprintf("%d", i+1),
			a.PatientName,
			label(a.DiseaseType),
			a.AIResult,
			fmt.Sprintf("%.1f%%", a.ConfidenceScore),
			a.AnalyzedBy,
			a.AnalyzedAt.UTC().Format("2006-01-02"),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	summary := Summarize(rows)
	trailer := [][]string{
		{},
		{"SUMMARY STATISTICS"},
	}
	for _, c := range summary.Diseases {
		trailer = append(trailer, []string{
			label(c.Disease),
			fmt.Sprintf("%d", c.Total),
			fmt.Sprintf("%d Positive", c.Positive),
			fmt.Sprintf("%d Negative", c.Negative),
		})
	}
	trailer = append(trailer, []string{"Total Records", fmt.Sprintf("%d", summary.Total)})
	for _, rec := range trailer {
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
