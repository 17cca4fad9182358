package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/librakeeper/lending/internal/errs"
	"github.com/Astemirdum/librakeeper/lending/internal/model"
	"github.com/Astemirdum/librakeeper/pkg/auth"
	md "github.com/Astemirdum/librakeeper/pkg/middleware"
	"github.com/Astemirdum/librakeeper/pkg/validate"
)

type Handler struct {
	lendingSvc LendingService
	authCfg    auth.Config
	log        *zap.Logger
}

func New(lendingSvc LendingService, authCfg auth.Config, log *zap.Logger) *Handler {
	return &Handler{
		lendingSvc: lendingSvc,
		authCfg:    authCfg,
		log:        log.Named("handler"),
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
	)
	api.GET("/items", h.ListItems)
	api.GET("/items/:id", h.GetItem)
	api.GET("/items/:id/waitlist", h.ListWaitlist)

	api = api.Group("", md.JwtAuthentication(h.authCfg))
	api.POST("/items", h.CreateItem)
	api.PATCH("/items/:id", h.UpdateItem)
	api.DELETE("/items/:id", h.DeleteItem)

	api.POST("/items/:id/waitlist", h.JoinWaitlist)
	api.DELETE("/items/:id/waitlist", h.LeaveWaitlist)

	api.GET("/loans", h.ListLoans)
	api.POST("/loans", h.CreateLoan)
	api.PATCH("/loans/:id", h.UpdateLoan)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

type listItemsQuery struct {
	Page   int              `query:"page" validate:"gte=0"`
	Size   int              `query:"size" validate:"gte=0,lte=100"`
	Status model.ItemStatus `query:"status" validate:"omitempty,oneof=AVAILABLE BORROWED RESERVED UNAVAILABLE GIVEN_AWAY LOST"`
}

func (h *Handler) ListItems(c echo.Context) error {
	var q listItemsQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(q); err != nil {
		return validationError(c, err)
	}
	items, err := h.lendingSvc.ListItems(c.Request().Context(), model.ItemFilter{
		Status: q.Status,
		Page:   q.Page,
		Size:   q.Size,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetItem(c echo.Context) error {
	item, err := h.lendingSvc.GetItem(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) CreateItem(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	var req model.CreateItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return validationError(c, err)
	}
	item, err := h.lendingSvc.CreateItem(c.Request().Context(), actor, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) UpdateItem(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	var req model.UpdateItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return validationError(c, err)
	}
	item, err := h.lendingSvc.UpdateItem(c.Request().Context(), actor, c.Param("id"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) DeleteItem(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	if err := h.lendingSvc.DeleteItem(c.Request().Context(), actor, c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreateLoan(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	var req model.CreateLoanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return validationError(c, err)
	}
	loan, err := h.lendingSvc.RequestLoan(c.Request().Context(), actor, req.ItemID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, loan)
}

type listLoansQuery struct {
	Status model.LoanStatus `query:"status" validate:"omitempty,oneof=PENDING APPROVED REJECTED RETURNED"`
}

func (h *Handler) ListLoans(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	var q listLoansQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(q); err != nil {
		return validationError(c, err)
	}
	loans, err := h.lendingSvc.ListLoans(c.Request().Context(), actor, q.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

// UpdateLoan decides a pending loan or, with status RETURNED, closes an approved one.
func (h *Handler) UpdateLoan(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	var req model.UpdateLoanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return validationError(c, err)
	}

	ctx := c.Request().Context()
	var loan model.Loan
	if req.Status == model.LoanReturned {
		loan, err = h.lendingSvc.ReturnLoan(ctx, actor, c.Param("id"))
	} else {
		loan, err = h.lendingSvc.DecideLoan(ctx, actor, c.Param("id"), req.Status, req.DueAt)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) JoinWaitlist(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	entry, err := h.lendingSvc.JoinWaitlist(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		// repeated joins are reported as 400
		if errors.Is(err, errs.ErrConflict) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *Handler) LeaveWaitlist(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	if err := h.lendingSvc.LeaveWaitlist(c.Request().Context(), actor, c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListWaitlist(c echo.Context) error {
	entries, err := h.lendingSvc.ListWaitlist(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

func identity(c echo.Context) (auth.Identity, error) {
	id, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return auth.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, errs.ErrNoIdentity.Error())
	}
	return id, nil
}

func validationError(c echo.Context, err error) error {
	return c.JSON(http.StatusUnprocessableEntity, errs.ValidationErrorResponse{
		Message: errs.ErrValidation.Error(),
		Errors:  validate.Fields(err),
	})
}

func httpError(err error) *echo.HTTPError {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidState):
		code = http.StatusBadRequest
	case errors.Is(err, errs.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, errs.ErrValidation):
		code = http.StatusUnprocessableEntity
	}
	return echo.NewHTTPError(code, err.Error())
}
