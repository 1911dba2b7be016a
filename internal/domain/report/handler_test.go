package report

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/medai-lab/labdash/internal/domain/analysis"
)

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("load analysis: %w", analysis.ErrNotFound), http.StatusNotFound},
		{ErrDuplicateSubmission, http.StatusConflict},
		{fmt.Errorf("%w: pending to path_verified", ErrInvalidTransition), http.StatusConflict},
		{ErrNotAssigned, http.StatusForbidden},
		{ErrNotOwner, http.StatusForbidden},
		{fmt.Errorf("%w: officer email is required", ErrInvalidInput), http.StatusBadRequest},
		// Wrapped storage failures are server faults, never client errors.
		{fmt.Errorf("update report: %w", errors.New("connection refused")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		var he *echo.HTTPError
		if !errors.As(mapError(tc.err), &he) {
			t.Fatalf("mapError(%v) did not return an HTTP error", tc.err)
		}
		if he.Code != tc.want {
			t.Errorf("mapError(%v) = %d, want %d", tc.err, he.Code, tc.want)
		}
	}
}
