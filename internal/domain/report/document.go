package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"

	"github.com/medai-lab/labdash/internal/domain/analysis"
)

// Signature is one sign-off line on the printed report.
type Signature struct {
	RoleLabel string `json:"role_label"`
	Email     string `json:"email"`
	Decision  string `json:"decision"`
	SignedAt  string `json:"signed_at"`
}

// Document is the renderer-independent payload of a printable report. It
// carries only values actually recorded by the pipeline; nothing is derived
// or estimated at render time.
type Document struct {
	Filename     string           `json:"filename"`
	GeneratedAt  time.Time        `json:"generated_at"`
	ReportID     uuid.UUID        `json:"report_id"`
	State        State            `json:"state"`
	Patient      string           `json:"patient"`
	Demographics analysis.Patient `json:"demographics"`
	Disease      string           `json:"disease"`
	Result       string           `json:"result"`
	Polarity     string           `json:"polarity"`
	Confidence   float64          `json:"confidence"`
	ImagePath    string           `json:"image_path,omitempty"`
	AnalyzedBy   string           `json:"analyzed_by"`
	AnalyzedAt   time.Time        `json:"analyzed_at"`
	Signatures   []Signature      `json:"signatures"`
}

// Renderer turns a document into downloadable bytes. The concrete format is
// the renderer's business.
type Renderer interface {
	Render(doc *Document) ([]byte, error)
	ContentType() string
}

// BuildDocument assembles the printable payload for a report. Each completed
// review stage contributes a signature block; pending stages are omitted
// rather than rendered blank.
func (s *Service) BuildDocument(ctx context.Context, reportID uuid.UUID) (*Document, error) {
	rp, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	a, err := s.analyses.GetByID(ctx, rp.AnalysisID)
	if err != nil {
		return nil, fmt.Errorf("load analysis: %w", err)
	}

	doc := &Document{
		Filename:     fmt.Sprintf("lab-report-%s.html", rp.ID),
		GeneratedAt:  s.now().UTC(),
		ReportID:     rp.ID,
		State:        rp.State,
		Patient:      a.PatientName,
		Demographics: a.Patient,
		Disease:      a.DiseaseType,
		Result:       a.AIResult,
		Polarity:     string(a.Polarity()),
		Confidence:   a.ConfidenceScore,
		AnalyzedBy:   a.AnalyzedBy,
		AnalyzedAt:   a.AnalyzedAt,
	}
	if a.ImagePath != nil {
		doc.ImagePath = *a.ImagePath
	}

	doc.Signatures = append(doc.Signatures, Signature{
		RoleLabel: "Lab Technician",
		Email:     rp.SubmitterEmail,
		Decision:  "Submitted",
		SignedAt:  rp.SubmittedAt.Format("2006-01-02 15:04"),
	})
	if rp.DecidedAt != nil {
		decision := "Rejected"
		if rp.State == StateMOApproved || rp.State == StatePathVerified || rp.State == StatePathRejected {
			decision = "Approved"
		}
		doc.Signatures = append(doc.Signatures, Signature{
			RoleLabel: "Medical Officer",
			Email:     rp.OfficerEmail,
			Decision:  decision,
			SignedAt:  rp.DecidedAt.Format("2006-01-02 15:04"),
		})
	}
	if rp.VerifiedAt != nil && rp.PathologistEmail != nil {
		decision := "Rejected"
		if rp.State == StatePathVerified {
			decision = "Verified"
		}
		doc.Signatures = append(doc.Signatures, Signature{
			RoleLabel: "Pathologist",
			Email:     *rp.PathologistEmail,
			Decision:  decision,
			SignedAt:  rp.VerifiedAt.Format("2006-01-02 15:04"),
		})
	}
	return doc, nil
}

var documentTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Laboratory Report</title></head>
<body>
<h1>Laboratory Diagnostic Report</h1>
<p>Report {{.ReportID}} &mdash; generated {{.GeneratedAt.Format "2006-01-02 15:04"}} UTC</p>
<h2>Patient</h2>
<table border="1" cellpadding="4">
<tr><td>Name</td><td>{{.Patient}}</td></tr>
<tr><td>Registration No.</td><td>{{.Demographics.RegistrationNumber}}</td></tr>
<tr><td>IC / Passport</td><td>{{.Demographics.ICPassport}}</td></tr>
<tr><td>Gender</td><td>{{.Demographics.Gender}}</td></tr>
<tr><td>Age</td><td>{{.Demographics.Age}}</td></tr>
<tr><td>Health Facility</td><td>{{.Demographics.HealthFacility}}</td></tr>
<tr><td>Slide No.</td><td>{{.Demographics.SlideNumber}}</td></tr>
{{if .Demographics.SmearType}}<tr><td>Smear Type</td><td>{{.Demographics.SmearType}}</td></tr>
{{end}}{{if .Demographics.CollectedAt}}<tr><td>Collected At</td><td>{{.Demographics.CollectedAt.Format "2006-01-02 15:04"}}</td></tr>
{{end}}</table>
<h2>Findings</h2>
<table border="1" cellpadding="4">
<tr><td>Disease</td><td>{{.Disease}}</td></tr>
<tr><td>Result</td><td>{{.Result}}</td></tr>
<tr><td>Interpretation</td><td>{{.Polarity}}</td></tr>
<tr><td>Confidence</td><td>{{printf "%.1f" .Confidence}}%</td></tr>
{{if .ImagePath}}<tr><td>Slide Image</td><td>{{.ImagePath}}</td></tr>
{{end}}<tr><td>Analyzed By</td><td>{{.AnalyzedBy}}</td></tr>
<tr><td>Analyzed At</td><td>{{.AnalyzedAt.Format "2006-01-02 15:04"}}</td></tr>
<tr><td>Status</td><td>{{.State}}</td></tr>
</table>
<h2>Sign-off</h2>
<table border="1" cellpadding="4">
<tr><th>Role</th><th>Email</th><th>Decision</th><th>Date</th></tr>
{{range .Signatures}}<tr><td>{{.RoleLabel}}</td><td>{{.Email}}</td><td>{{.Decision}}</td><td>{{.SignedAt}}</td></tr>
{{end}}</table>
</body>
</html>
`))

// HTMLRenderer renders documents as standalone HTML pages suitable for
// printing or conversion downstream.
type HTMLRenderer struct{}

func NewHTMLRenderer() *HTMLRenderer { return &HTMLRenderer{} }

func (HTMLRenderer) Render(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := documentTmpl.Execute(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (HTMLRenderer) ContentType() string { return "text/html; charset=utf-8" }
