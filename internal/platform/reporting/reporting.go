package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/medai-lab/labdash/internal/platform/auth"
)

// MeasureDefinition defines a surveillance measure with its SQL query.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"sql"`
	Parameters  []string `json:"parameters"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
}

// PredefinedMeasures is the list of available surveillance measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "analysis-volume-by-disease",
		Name:        "Analysis Volume by Disease",
		Description: "Number of analyses recorded, grouped by disease type",
		SQL:         `SELECT disease_type, COUNT(*) AS total FROM analyses GROUP BY disease_type ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "positivity-by-disease",
		Name:        "Positivity by Disease",
		Description: "Positive and negative result counts per disease type",
		SQL: `SELECT disease_type,
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN ai_result ILIKE '%not detected%' OR ai_result ILIKE '%negative%' OR ai_result ILIKE '%no%' THEN 1 ELSE 0 END), 0) AS negative,
			COALESCE(SUM(CASE WHEN (ai_result ILIKE '%positive%' OR ai_result ILIKE '%detected%')
				AND NOT (ai_result ILIKE '%not detected%' OR ai_result ILIKE '%negative%' OR ai_result ILIKE '%no%') THEN 1 ELSE 0 END), 0) AS positive
			FROM analyses GROUP BY disease_type ORDER BY disease_type`,
		Parameters: []string{},
	},
	{
		ID:          "report-pipeline",
		Name:        "Report Pipeline",
		Description: "Number of reports in each review state",
		SQL:         `SELECT state, COUNT(*) AS total FROM reports GROUP BY state ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "review-turnaround",
		Name:        "Review Turnaround",
		Description: "Average hours from submission to final pathologist decision",
		SQL: `SELECT COUNT(*) AS completed,
			COALESCE(AVG(EXTRACT(EPOCH FROM (verified_at - submitted_at)) / 3600), 0) AS avg_hours
			FROM reports WHERE verified_at IS NOT NULL`,
		Parameters: []string{},
	},
	{
		ID:          "activity-by-action",
		Name:        "Activity by Action",
		Description: "Audit trail volume grouped by action kind",
		SQL:         `SELECT action, COUNT(*) AS total FROM activity_events GROUP BY action ORDER BY total DESC`,
		Parameters:  []string{},
	},
}

// Handler provides HTTP handlers for the surveillance measures API.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler creates a new reporting handler.
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// RegisterRoutes registers the measures API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	group := api.Group("/measures", auth.RequireRole(auth.RoleAdmin, auth.RoleHealthOfficer))
	group.GET("", h.ListMeasures)
	group.GET("/:id/evaluate", h.EvaluateMeasure)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	params := map[string]string{}
	for _, p := range measure.Parameters {
		if v := c.QueryParam(p); v != "" {
			params[p] = v
		}
	}

	results, err := h.executeSQL(c.Request().Context(), measure.SQL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now(),
		Results:     results,
		Parameters:  params,
	})
}

// executeSQL runs a SQL query and returns results as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string) ([]map[string]interface{}, error) {
	rows, err := h.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	var results []map[string]interface{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}

	if results == nil {
		results = []map[string]interface{}{}
	}

	return results, nil
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
