package event

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medai-lab/labdash/internal/platform/auth"
	"github.com/medai-lab/labdash/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// The feed is available to every authenticated role.
	api.GET("/feed", h.GetFeed)
	api.DELETE("/feed/:id", h.DismissOne)
	api.DELETE("/feed", h.DismissAll)

	// The raw audit trail is an admin surface.
	api.GET("/events", h.ListEvents, auth.RequireRole(auth.RoleAdmin))
}

type feedResponse struct {
	Entries     []FeedEntry `json:"entries"`
	UnreadCount int         `json:"unread_count"`
}

func (h *Handler) GetFeed(c echo.Context) error {
	viewer, ok := auth.ViewerFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	entries, unread, err := h.svc.Feed(c.Request().Context(), viewer)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, feedResponse{Entries: entries, UnreadCount: unread})
}

func (h *Handler) DismissOne(c echo.Context) error {
	viewer, ok := auth.ViewerFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Dismiss(c.Request().Context(), viewer, id); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "event not found")
		case errors.Is(err, ErrNotVisible):
			return echo.NewHTTPError(http.StatusForbidden, "event is not in your feed")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DismissAll(c echo.Context) error {
	viewer, ok := auth.ViewerFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	removed, err := h.svc.DismissAll(c.Request().Context(), viewer)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"dismissed": removed})
}

func (h *Handler) ListEvents(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
