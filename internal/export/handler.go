package export

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medai-lab/labdash/internal/domain/analysis"
	"github.com/medai-lab/labdash/internal/domain/event"
	"github.com/medai-lab/labdash/internal/platform/auth"
)

const pageSize = 500

// AnalysisLister is the slice of the analysis store exports read from.
type AnalysisLister interface {
	List(ctx context.Context, limit, offset int) ([]*analysis.Analysis, int, error)
}

type Handler struct {
	analyses AnalysisLister
	events   *event.Service
	logger   zerolog.Logger
	now      func() time.Time
}

func NewHandler(analyses AnalysisLister, events *event.Service, logger zerolog.Logger) *Handler {
	return &Handler{analyses: analyses, events: events, logger: logger, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	guard := auth.RequireRole(auth.RoleHealthOfficer, auth.RoleAdmin)
	api.GET("/export/analyses.csv", h.ExportCSV, guard)
	api.GET("/export/summary", h.GetSummary, guard)
}

// collect pages through the store until every record is loaded.
func (h *Handler) collect(ctx context.Context) ([]*analysis.Analysis, error) {
	var all []*analysis.Analysis
	for offset := 0; ; offset += pageSize {
		page, total, err := h.analyses.List(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(all) >= total || len(page) == 0 {
			return all, nil
		}
	}
}

// filterFromQuery builds the export filter from ?disease= and ?polarity=.
func filterFromQuery(c echo.Context) (Filter, error) {
	var f Filter
	if d := c.QueryParam("disease"); d != "" {
		if !analysis.ValidDisease(d) {
			return f, echo.NewHTTPError(http.StatusBadRequest, "unknown disease type")
		}
		f.Disease = d
	}
	switch p := analysis.Polarity(c.QueryParam("polarity")); p {
	case "", analysis.PolarityPositive, analysis.PolarityNegative, analysis.PolarityUnclassified:
		f.Polarity = p
	default:
		return f, echo.NewHTTPError(http.StatusBadRequest, "unknown polarity")
	}
	return f, nil
}

// ExportCSV streams the analysis table, optionally filtered by disease or
// polarity, as a CSV download and records the export in the audit trail.
func (h *Handler) ExportCSV(c echo.Context) error {
	viewer, ok := auth.ViewerFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	rows, err := h.collect(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	rows = f.Apply(rows)

	now := h.now().UTC()
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+f.Filename(now)+`"`)
	c.Response().WriteHeader(http.StatusOK)

	if err := WriteCSV(c.Response(), rows, f, viewer.Email, now); err != nil {
		// Headers are already gone; all we can do is log.
		h.logger.Error().Err(err).Msg("csv export failed mid-stream")
		return err
	}
	h.events.LogDataExported(c.Request().Context(), viewer, "analysis")
	return nil
}

// GetSummary returns the summary statistics block as JSON, for dashboards
// that want the numbers without the file. Accepts the same filters as the
// CSV export.
func (h *Handler) GetSummary(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	rows, err := h.collect(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, Summarize(f.Apply(rows)))
}
