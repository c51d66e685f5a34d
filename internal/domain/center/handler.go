package center

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/centers", h.Create)
	g.GET("/centers", h.List)
	g.GET("/centers/:code", h.Get)
}

type createRequest struct {
	CenterName string `json:"centerName"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": "Invalid request body"})
	}

	center, err := h.svc.Create(c.Request().Context(), req.CenterName)
	switch {
	case errors.Is(err, ErrNameRequired):
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": "Center name is required."})
	case errors.Is(err, ErrNameTaken):
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": "Center name already exists."})
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, echo.Map{
			"message": "Error generating center code",
			"error":   "internal error",
		}).SetInternal(err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Center code generated successfully",
		"data":    center,
	})
}

func (h *Handler) List(c echo.Context) error {
	centers, err := h.svc.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, echo.Map{
			"message": "Error retrieving centers",
			"error":   "internal error",
		}).SetInternal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"totalCount": len(centers), "data": centers})
}

func (h *Handler) Get(c echo.Context) error {
	center, err := h.svc.Get(c.Request().Context(), c.Param("code"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, echo.Map{"message": "Center not found"})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, echo.Map{
			"message": "Error retrieving center",
			"error":   "internal error",
		}).SetInternal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": center})
}
