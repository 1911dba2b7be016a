package analysis

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Disease types the detector produces analyses for.
const (
	DiseaseMalaria       = "malaria"
	DiseaseLeptospirosis = "leptospirosis"
)

// ValidDisease reports whether d is a supported disease type.
func ValidDisease(d string) bool {
	return d == DiseaseMalaria || d == DiseaseLeptospirosis
}

// Patient is the demographic block captured on the sample collection form.
// These fields identify the patient on the signed report; the smear type is
// only recorded for malaria slides.
type Patient struct {
	RegistrationNumber string     `db:"registration_number" json:"registration_number"`
	ICPassport         string     `db:"ic_passport" json:"ic_passport"`
	Gender             string     `db:"gender" json:"gender"`
	Age                int        `db:"age" json:"age"`
	HealthFacility     string     `db:"health_facility" json:"health_facility"`
	SlideNumber        string     `db:"slide_number" json:"slide_number"`
	SmearType          string     `db:"smear_type" json:"smear_type,omitempty"`
	CollectedAt        *time.Time `db:"collected_at" json:"collected_at,omitempty"`
}

// Analysis is a single AI-assisted diagnostic result for one patient sample.
// The result text and confidence come from the detector and are treated as
// opaque here; only polarity is derived from them.
type Analysis struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	AccountID       uuid.UUID  `db:"account_id" json:"account_id"`
	AnalyzedBy      string     `db:"analyzed_by" json:"analyzed_by"`
	PatientName     string     `db:"patient_name" json:"patient_name"`
	Patient         Patient    `json:"patient"`
	DiseaseType     string     `db:"disease_type" json:"disease_type"`
	AIResult        string     `db:"ai_result" json:"ai_result"`
	ConfidenceScore float64    `db:"confidence_score" json:"confidence_score"`
	ImagePath       *string    `db:"image_path" json:"image_path,omitempty"`
	AnalyzedAt      time.Time  `db:"analyzed_at" json:"analyzed_at"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Polarity buckets a free-text AI result as positive, negative, or
// unclassified.
type Polarity string

const (
	PolarityPositive     Polarity = "positive"
	PolarityNegative     Polarity = "negative"
	PolarityUnclassified Polarity = "unclassified"
)

// PolarityOf classifies a result string. Negative markers are checked first
// so that "Not Detected" never matches the "detected" positive marker.
func PolarityOf(result string) Polarity {
	r := strings.ToLower(result)
	if r == "" {
		return PolarityUnclassified
	}
	for _, marker := range []string{"not detected", "negative", "no"} {
		if strings.Contains(r, marker) {
			return PolarityNegative
		}
	}
	for _, marker := range []string{"positive", "detected"} {
		if strings.Contains(r, marker) {
			return PolarityPositive
		}
	}
	return PolarityUnclassified
}

// Polarity returns the polarity of the analysis result.
func (a *Analysis) Polarity() Polarity {
	return PolarityOf(a.AIResult)
}
