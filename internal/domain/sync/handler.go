package sync

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/sync/batch", h.ProcessBatch)
	api.POST("/sync/feed", h.ProcessFeed)
	api.GET("/sync/checkpoint", h.GetCheckpoint)
}

type batchResponse struct {
	Received int `json:"received"`
	Applied  int `json:"applied"`
}

// ProcessBatch ingests an array of raw documents. Per-document failures are
// logged server-side and reflected only in the applied count; the endpoint
// itself never fails on bad documents.
func (h *Handler) ProcessBatch(c echo.Context) error {
	var docs []RawDocument
	if err := c.Bind(&docs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	applied := h.engine.ProcessBatch(c.Request().Context(), docs)
	return c.JSON(http.StatusOK, batchResponse{Received: len(docs), Applied: applied})
}

// ProcessFeed ingests a change-feed page and advances the stored checkpoint.
func (h *Handler) ProcessFeed(c echo.Context) error {
	var page FeedPage
	if err := c.Bind(&page); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	applied, err := h.engine.ProcessFeed(c.Request().Context(), page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"received": len(page.Docs),
		"applied":  applied,
		"seq":      page.Seq,
	})
}

func (h *Handler) GetCheckpoint(c echo.Context) error {
	seq, err := h.engine.store.Checkpoint(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"seq": seq})
}
