package report

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medai-lab/labdash/internal/domain/analysis"
	"github.com/medai-lab/labdash/internal/platform/auth"
	"github.com/medai-lab/labdash/pkg/pagination"
)

type Handler struct {
	svc      *Service
	renderer Renderer
}

func NewHandler(svc *Service, renderer Renderer) *Handler {
	return &Handler{svc: svc, renderer: renderer}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/reports", h.Submit, auth.RequireRole(auth.RoleLabTechnician))
	api.GET("/reports", h.List)
	api.GET("/reports/:id", h.Get)
	api.POST("/reports/:id/decision", h.Decide, auth.RequireRole(auth.RoleMedicalOfficer))
	api.POST("/reports/:id/verification", h.Verify, auth.RequireRole(auth.RolePathologist))
	api.GET("/reports/:id/document", h.Document)
	api.GET("/analyses/:id/report-status", h.Status)
}

type submitRequest struct {
	AnalysisID   uuid.UUID `json:"analysis_id"`
	OfficerEmail string    `json:"officer_email"`
}

func (h *Handler) Submit(c echo.Context) error {
	viewer, ok := auth.ViewerFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rp, err := h.svc.Submit(c.Request().Context(), viewer, req.AnalysisID, req.OfficerEmail)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, rp)
}

type decisionRequest struct {
	Approve          bool    `json:"approve"`
	PathologistEmail string  `json:"pathologist_email,omitempty"`
	Comment          *string `json:"comment,omitempty"`
}

func (h *Handler) Decide(c echo.Context) error {
	viewer, ok := auth.ViewerFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rp, err := h.svc.Decide(c.Request().Context(), viewer, id, req.Approve, req.PathologistEmail, req.Comment)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rp)
}

type verificationRequest struct {
	Approve bool    `json:"approve"`
	Comment *string `json:"comment,omitempty"`
}

func (h *Handler) Verify(c echo.Context) error {
	viewer, ok := auth.ViewerFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req verificationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rp, err := h.svc.Verify(c.Request().Context(), viewer, id, req.Approve, req.Comment)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rp)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rp, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rp)
}

func (h *Handler) List(c echo.Context) error {
	viewer, ok := auth.ViewerFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	state := State(c.QueryParam("state"))
	if state != "" && !state.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown state")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), viewer, state, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Status(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	status, err := h.svc.StatusFor(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": status})
}

// Document renders the printable report for download.
func (h *Handler) Document(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	doc, err := h.svc.BuildDocument(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	body, err := h.renderer.Render(doc)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "document rendering failed")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+doc.Filename+`"`)
	return c.Blob(http.StatusOK, h.renderer.ContentType(), body)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	case errors.Is(err, analysis.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "analysis not found")
	case errors.Is(err, ErrDuplicateSubmission):
		return echo.NewHTTPError(http.StatusConflict, "a report already exists for this analysis")
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotAssigned):
		return echo.NewHTTPError(http.StatusForbidden, "report is assigned to another reviewer")
	case errors.Is(err, ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, "analysis belongs to another account")
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		// Anything unrecognized is a storage or infrastructure failure.
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
