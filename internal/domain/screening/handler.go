package screening

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/screening/registry/internal/platform/calendar"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the patient endpoints under g/patients. Static
// segments (count, stats, bin, record, ...) take precedence over :category.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	p := g.Group("/patients")

	p.GET("", h.Search)
	p.GET("/count", h.Count)
	p.GET("/stats", h.Stats)
	p.GET("/centers", h.CenterRollup)
	p.GET("/bin", h.Bin)
	p.GET("/export", h.Export)
	p.PATCH("/bulk", h.BulkUpdate)

	p.GET("/record/:id", h.GetByID)
	p.PATCH("/record/:id", h.UpdateByID)
	p.DELETE("/record/:id", h.DeleteByID)

	p.POST("/:category", h.Create)
	p.GET("/:category", h.Search)
	p.GET("/:category/count", h.Count)
	p.GET("/:category/stats", h.Stats)
	p.GET("/:category/centers", h.CenterRollup)
	p.GET("/:category/bin", h.Bin)
	p.GET("/:category/export", h.Export)
}

// category reads the optional :category parameter. Empty means every
// category.
func category(c echo.Context) (Category, error) {
	slug := c.Param("category")
	if slug == "" {
		return "", nil
	}
	cat, err := ParseCategory(slug)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusNotFound, echo.Map{"message": fmt.Sprintf("Unknown category %q", slug)})
	}
	return cat, nil
}

func recordID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": "Invalid patient id"})
	}
	return id, nil
}

// httpError maps domain errors to responses. Anything unrecognised becomes
// a 500 with a fixed message; the cause is attached for the request log only.
func httpError(err error, message string) error {
	var ve *ValidationError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": ve.Message})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, echo.Map{"message": "Patient not found in any records"})
	case errors.Is(err, ErrDuplicate):
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": "A patient with this Aadhaar number already exists"})
	case errors.Is(err, ErrUnknownCategory):
		return echo.NewHTTPError(http.StatusNotFound, echo.Map{"message": err.Error()})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, echo.Map{
			"message": message,
			"error":   "internal error",
		}).SetInternal(err)
	}
}

func (h *Handler) filter(c echo.Context) (*Filter, error) {
	f, err := FilterFromQuery(c.QueryParams(), h.svc.Location())
	if err != nil {
		return nil, httpError(err, "")
	}
	return f, nil
}

func (h *Handler) Create(c echo.Context) error {
	cat, err := category(c)
	if err != nil {
		return err
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": "Invalid request body"})
	}
	if err := h.svc.Create(c.Request().Context(), cat, &p); err != nil {
		return httpError(err, "Error creating patient record")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Patient registered successfully",
		"data":    p,
	})
}

// Search answers both the all-category listing ({totalCount, totalData})
// and the single-category listing ({totalCount, data}).
func (h *Handler) Search(c echo.Context) error {
	cat, err := category(c)
	if err != nil {
		return err
	}
	f, err := h.filter(c)
	if err != nil {
		return err
	}
	patients, err := h.svc.Search(c.Request().Context(), cat, f)
	if err != nil {
		return httpError(err, "Error retrieving patient records")
	}
	key := "totalData"
	if cat != "" {
		key = "data"
	}
	return c.JSON(http.StatusOK, echo.Map{"totalCount": len(patients), key: patients})
}

func (h *Handler) Count(c echo.Context) error {
	cat, err := category(c)
	if err != nil {
		return err
	}
	f, err := h.filter(c)
	if err != nil {
		return err
	}
	res, err := h.svc.Count(c.Request().Context(), cat, f)
	if err != nil {
		return httpError(err, "Error counting patient records")
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Stats(c echo.Context) error {
	cat, err := category(c)
	if err != nil {
		return err
	}
	tf, err := calendar.ParseTimeFrame(c.QueryParam("timeFrame"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": err.Error()})
	}
	st, err := h.svc.Stats(c.Request().Context(), cat, tf)
	if err != nil {
		return httpError(err, "Error computing patient statistics")
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) CenterRollup(c echo.Context) error {
	cat, err := category(c)
	if err != nil {
		return err
	}
	rows, err := h.svc.CenterRollup(c.Request().Context(), cat)
	if err != nil {
		return httpError(err, "Error computing center counts")
	}
	total := 0
	for _, r := range rows {
		total += r.TotalCount
	}
	return c.JSON(http.StatusOK, echo.Map{"totalCount": total, "data": rows})
}

func (h *Handler) Bin(c echo.Context) error {
	cat, err := category(c)
	if err != nil {
		return err
	}
	f, err := h.filter(c)
	if err != nil {
		return err
	}
	patients, err := h.svc.Bin(c.Request().Context(), cat, f)
	if err != nil {
		return httpError(err, "Error retrieving deleted records")
	}
	return c.JSON(http.StatusOK, echo.Map{"totalCount": len(patients), "totalData": patients})
}

func (h *Handler) Export(c echo.Context) error {
	cat, err := category(c)
	if err != nil {
		return err
	}
	f, err := h.filter(c)
	if err != nil {
		return err
	}
	patients, err := h.svc.Search(c.Request().Context(), cat, f)
	if err != nil {
		return httpError(err, "Error exporting patient records")
	}

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, patients, h.svc.Location()); err != nil {
		return httpError(err, "Error exporting patient records")
	}

	scope := "all"
	if cat != "" {
		scope = string(cat)
	}
	filename := fmt.Sprintf("patients-%s-%s.xlsx", scope, h.svc.now().In(h.svc.Location()).Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, XLSXContentType, buf.Bytes())
}

func (h *Handler) GetByID(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Lookup(c.Request().Context(), id)
	if err != nil {
		return httpError(err, "Error retrieving patient record")
	}
	return c.JSON(http.StatusOK, echo.Map{"category": p.Category, "data": p})
}

func (h *Handler) UpdateByID(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	var patch PatientPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": "Invalid request body"})
	}
	p, err := h.svc.UpdateByID(c.Request().Context(), id, &patch)
	if err != nil {
		return httpError(err, "Error updating patient data")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":  "Patient updated successfully",
		"category": p.Category,
		"data":     p,
	})
}

func (h *Handler) DeleteByID(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.SoftDelete(c.Request().Context(), id)
	if err != nil {
		return httpError(err, "Error deleting patient record")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":  "Patient moved to bin",
		"category": p.Category,
	})
}

func (h *Handler) BulkUpdate(c echo.Context) error {
	var items []BulkItem
	if err := c.Bind(&items); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": "Invalid request body"})
	}
	res, err := h.svc.BulkUpdate(c.Request().Context(), items)
	if err != nil {
		return httpError(err, "Error updating patient data")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":   fmt.Sprintf("%d of %d patients updated", res.Updated, res.Requested),
		"requested": res.Requested,
		"updated":   res.Updated,
		"data":      res.Patients,
	})
}
