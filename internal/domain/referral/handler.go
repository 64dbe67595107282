package referral

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinsync/clinsync/internal/platform/middleware"
	"github.com/clinsync/clinsync/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/referrals", h.ListReferrals)
	api.GET("/referrals/:id", h.GetReferral)
	api.GET("/sessions/:id/referrals", h.ListBySession)
	api.POST("/referrals/:id/accept", h.Accept)
	api.POST("/referrals/:id/reject", h.Reject)
	api.POST("/referrals/:id/complete", h.Complete)
	api.POST("/referrals/:id/cancel", h.Cancel)
}

func (h *Handler) GetReferral(c echo.Context) error {
	id, err := referralID(c)
	if err != nil {
		return err
	}
	ref, err := h.svc.Get(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "referral not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ref)
}

func (h *Handler) ListReferrals(c echo.Context) error {
	status := Status(c.QueryParam("status"))
	if status == "" {
		status = StatusPending
	}
	pg := pagination.FromContext(c)
	referrals, total, err := h.svc.ListByStatus(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(referrals, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListBySession(c echo.Context) error {
	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	referrals, err := h.svc.ListBySession(c.Request().Context(), sessionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, referrals)
}

func (h *Handler) Accept(c echo.Context) error {
	id, err := referralID(c)
	if err != nil {
		return err
	}
	return statusResult(c, h.svc.Accept(c.Request().Context(), id, middleware.Actor(c)))
}

// rejectRequest carries the optional justification. An empty body is fine.
type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Reject(c echo.Context) error {
	id, err := referralID(c)
	if err != nil {
		return err
	}
	var req rejectRequest
	if err := c.Bind(&req); err != nil && !errors.Is(err, io.EOF) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return statusResult(c, h.svc.Reject(c.Request().Context(), id, req.Reason))
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := referralID(c)
	if err != nil {
		return err
	}
	return statusResult(c, h.svc.Complete(c.Request().Context(), id))
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := referralID(c)
	if err != nil {
		return err
	}
	return statusResult(c, h.svc.Cancel(c.Request().Context(), id))
}

func referralID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func statusResult(c echo.Context, err error) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return echo.NewHTTPError(http.StatusConflict, statusErr.Error())
	}
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "referral not found")
	}
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
