// Package httpapi exposes the sign-out service over a JSON HTTP API.
package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"signout/internal/core"
	"signout/pkg/domain"
)

// BasePath is the route prefix of the sign-out API.
const BasePath = "/api/v1/signout"

type Handler struct {
	svc *core.Service
}

func NewHandler(svc *core.Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("", h.GetRecord)
	api.PUT("", h.ReplaceRecord)
	api.PUT("/staff/:role", h.SetStaff)
	api.GET("/summary", h.Summary)

	api.GET("/operations", h.ListOperations)
	api.GET("/operations/:patientId", h.GetOperation)
	api.POST("/operations", h.SubmitOperation)
	api.DELETE("/operations/:patientId", h.DeleteOperation)

	api.GET("/collections/:collection", h.ListAdmissions)
	api.GET("/collections/:collection/:patientId", h.GetAdmission)
	api.POST("/collections/:collection", h.SubmitAdmission)
	api.DELETE("/collections/:collection/:patientId", h.DeleteAdmission)

	api.GET("/export.xlsx", h.ExportWorkbook)
	api.POST("/export/archive", h.ArchiveWorkbook)
	api.GET("/export/archives", h.ListArchives)
}

type staffRequest struct {
	Name string `json:"name"`
}

func (h *Handler) GetRecord(c echo.Context) error {
	rec, err := h.svc.GetRecord(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ReplaceRecord(c echo.Context) error {
	var rec domain.SignOutRecord
	if err := bindBody(c, &rec); err != nil {
		return err
	}
	if err := h.svc.ReplaceRecord(c.Request().Context(), rec); err != nil {
		return httpError(err)
	}
	return h.GetRecord(c)
}

func (h *Handler) SetStaff(c echo.Context) error {
	role, err := domain.ParseStaffRole(c.Param("role"))
	if err != nil {
		return httpError(err)
	}
	var req staffRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	if err := h.svc.SetStaff(c.Request().Context(), role, req.Name); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"role": string(role), "name": req.Name})
}

func (h *Handler) Summary(c echo.Context) error {
	s, err := h.svc.Summary(c.Request().Context(), h.svc.Now())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListOperations(c echo.Context) error {
	ops, err := h.svc.ListOperations(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ops)
}

func (h *Handler) GetOperation(c echo.Context) error {
	op, err := h.svc.FindOperation(c.Request().Context(), c.Param("patientId"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, op)
}

func (h *Handler) SubmitOperation(c echo.Context) error {
	var form domain.OperationRecord
	if err := bindBody(c, &form); err != nil {
		return err
	}
	rec, err := h.svc.SubmitOperation(c.Request().Context(), form)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) DeleteOperation(c echo.Context) error {
	return h.delete(c, domain.OperationsCollection)
}

func (h *Handler) ListAdmissions(c echo.Context) error {
	col, err := domain.ParseCollection(c.Param("collection"))
	if err != nil {
		return httpError(err)
	}
	list, err := h.svc.ListAdmissions(c.Request().Context(), col)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetAdmission(c echo.Context) error {
	col, err := domain.ParseCollection(c.Param("collection"))
	if err != nil {
		return httpError(err)
	}
	a, err := h.svc.FindAdmission(c.Request().Context(), col, c.Param("patientId"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) SubmitAdmission(c echo.Context) error {
	col, err := domain.ParseCollection(c.Param("collection"))
	if err != nil {
		return httpError(err)
	}
	var form domain.AEAdmission
	if err := bindBody(c, &form); err != nil {
		return err
	}
	rec, err := h.svc.SubmitAdmission(c.Request().Context(), col, form)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) DeleteAdmission(c echo.Context) error {
	col, err := domain.ParseCollection(c.Param("collection"))
	if err != nil {
		return httpError(err)
	}
	return h.delete(c, string(col))
}

func (h *Handler) delete(c echo.Context, collection string) error {
	patientID := c.Param("patientId")
	removed, err := h.svc.DeleteRecord(c.Request().Context(), collection, patientID)
	if err != nil {
		return httpError(err)
	}
	if !removed {
		return httpError(domain.NotFoundError{Collection: collection, PatientID: patientID})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ExportWorkbook(c echo.Context) error {
	now := h.svc.Now()
	// Rendered in memory so a failure still reaches the error handler.
	var buf bytes.Buffer
	if err := h.svc.ExportWorkbook(c.Request().Context(), &buf, now); err != nil {
		return httpError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", workbookFilename(now)))
	return c.Blob(http.StatusOK, core.WorkbookContentType, buf.Bytes())
}

func (h *Handler) ArchiveWorkbook(c echo.Context) error {
	archive, err := h.svc.ArchiveWorkbook(c.Request().Context(), h.svc.Now())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, archive)
}

func (h *Handler) ListArchives(c echo.Context) error {
	infos, err := h.svc.ListArchives(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, infos)
}

func workbookFilename(now time.Time) string {
	return "signout-" + now.UTC().Format("20060102-1504") + ".xlsx"
}

// errEmptyBody rejects writes without a payload; echo's binder treats them as
// a successful bind of the zero value.
var errEmptyBody = errors.New("request body is empty")

func bindBody(c echo.Context, v any) error {
	if c.Request().ContentLength == 0 {
		return malformed(errEmptyBody)
	}
	if err := c.Bind(v); err != nil {
		return malformed(err)
	}
	return nil
}

func malformed(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, "malformed body").SetInternal(err)
}

// httpError maps service errors onto HTTP statuses.
func httpError(err error) error {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error()).SetInternal(err)
	case errors.Is(err, core.ErrNoWorkbookRenderer), errors.Is(err, core.ErrNoBlobStore):
		return echo.NewHTTPError(http.StatusNotImplemented, err.Error()).SetInternal(err)
	case core.IsClientError(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}
