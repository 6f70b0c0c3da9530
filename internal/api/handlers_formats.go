// handlers_formats.go - Supported format listing
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/marker-visualizer/backend/internal/models"
	"github.com/marker-visualizer/backend/internal/parser"
)

// FormatHandlerImpl implements the FormatHandler interface
type FormatHandlerImpl struct {
	registry *parser.Registry
}

// NewFormatHandler creates a format handler. A nil registry means the global one.
func NewFormatHandler(registry *parser.Registry) FormatHandler {
	if registry == nil {
		registry = parser.GetGlobalRegistry()
	}
	return &FormatHandlerImpl{registry: registry}
}

type formatInfo struct {
	Name       string        `json:"name"`
	Format     models.Format `json:"format"`
	Extensions []string      `json:"extensions"`
}

// HandleListFormats returns every registered interpreter
func (h *FormatHandlerImpl) HandleListFormats(c echo.Context) error {
	interps := h.registry.List()
	out := make([]formatInfo, 0, len(interps))
	for _, i := range interps {
		out = append(out, formatInfo{
			Name:       i.Name(),
			Format:     i.Format(),
			Extensions: i.Extensions(),
		})
	}
	return c.JSON(http.StatusOK, out)
}
