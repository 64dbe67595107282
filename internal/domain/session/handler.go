package session

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
	api.POST("/sessions", h.OpenSession)
	api.GET("/sessions/:id", h.GetSession)
	api.GET("/sessions/:id/transitions", h.GetTransitions)
	api.GET("/sessions/:id/allowed-transitions", h.GetAllowedTransitions)
	api.POST("/sessions/:id/transitions", h.Transition)

	// Named business actions. All funnel through the same guarded
	// transition path.
	api.POST("/sessions/:id/accept-referral", h.AcceptReferral)
	api.POST("/sessions/:id/reject-referral", h.RejectReferral)
	api.POST("/sessions/:id/start-treatment", h.StartTreatment)
	api.POST("/sessions/:id/refer", h.Refer)
	api.POST("/sessions/:id/close", h.Close)

	api.GET("/patients/:id/sessions", h.ListByPatient)
	api.GET("/workflow/config", h.WorkflowConfig)
}

// transitionRequest is the generic transition body. The actor comes from the
// calling layer via header, never from the body.
type transitionRequest struct {
	ToState  string            `json:"to_state"`
	Reason   string            `json:"reason"`
	Metadata map[string]string `json:"metadata"`
}

type actionRequest struct {
	Reason    string `json:"reason"`
	Specialty string `json:"specialty"`
}

func (h *Handler) OpenSession(c echo.Context) error {
	var s Session
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Open(c.Request().Context(), &s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) GetSession(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	s, err := h.svc.Get(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) GetTransitions(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	history, err := h.svc.TransitionHistory(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, history)
}

func (h *Handler) GetAllowedTransitions(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	s, err := h.svc.Get(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"state":               s.State,
		"allowed_transitions": h.svc.AllowedTransitions(s),
	})
}

func (h *Handler) Transition(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	record, err := h.svc.Transition(c.Request().Context(), id, State(req.ToState), req.Reason, req.Metadata, middleware.Actor(c))
	if err != nil {
		return transitionHTTPError(err)
	}
	return c.JSON(http.StatusOK, record)
}

func (h *Handler) AcceptReferral(c echo.Context) error {
	return h.action(c, func(ctx echo.Context, id int64, _ actionRequest) (*Transition, error) {
		return h.svc.AcceptReferral(ctx.Request().Context(), id, middleware.Actor(ctx))
	})
}

func (h *Handler) RejectReferral(c echo.Context) error {
	return h.action(c, func(ctx echo.Context, id int64, req actionRequest) (*Transition, error) {
		return h.svc.RejectReferral(ctx.Request().Context(), id, req.Reason, middleware.Actor(ctx))
	})
}

func (h *Handler) StartTreatment(c echo.Context) error {
	return h.action(c, func(ctx echo.Context, id int64, _ actionRequest) (*Transition, error) {
		return h.svc.StartTreatment(ctx.Request().Context(), id, middleware.Actor(ctx))
	})
}

func (h *Handler) Refer(c echo.Context) error {
	return h.action(c, func(ctx echo.Context, id int64, req actionRequest) (*Transition, error) {
		return h.svc.RequestSpecialistReferral(ctx.Request().Context(), id, req.Specialty, req.Reason, middleware.Actor(ctx))
	})
}

func (h *Handler) Close(c echo.Context) error {
	return h.action(c, func(ctx echo.Context, id int64, req actionRequest) (*Transition, error) {
		return h.svc.CloseSession(ctx.Request().Context(), id, req.Reason, middleware.Actor(ctx))
	})
}

func (h *Handler) action(c echo.Context, fn func(echo.Context, int64, actionRequest) (*Transition, error)) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	// The body is optional. An empty one decodes to io.EOF, which also
	// covers chunked requests where ContentLength is unknown.
	var req actionRequest
	if err := c.Bind(&req); err != nil && !errors.Is(err, io.EOF) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	record, err := fn(c, id, req)
	if err != nil {
		return transitionHTTPError(err)
	}
	return c.JSON(http.StatusOK, record)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	sessions, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(sessions, total, pg.Limit, pg.Offset))
}

// WorkflowConfig exposes the read-only transition table so callers can
// render legal next actions without duplicating it.
func (h *Handler) WorkflowConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Workflow().Config())
}

func sessionID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// transitionHTTPError maps domain errors to status codes: an illegal edge is
// a conflict with the session's current state, a missing reason is a
// validation failure, and both are recoverable by the caller.
func transitionHTTPError(err error) error {
	var transitionErr *TransitionError
	if errors.As(err, &transitionErr) {
		return echo.NewHTTPError(http.StatusConflict, transitionErr.Error())
	}
	var reasonErr *ReasonRequiredError
	if errors.As(err, &reasonErr) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, reasonErr.Error())
	}
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return err
}
