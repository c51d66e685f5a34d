package admin

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

// RegisterRoutes mounts /register and /login on g. Extra middleware (rate
// limiting) applies to login only.
func (h *Handler) RegisterRoutes(g *echo.Group, loginMiddleware ...echo.MiddlewareFunc) {
	g.POST("/register", h.Register)
	g.POST("/login", h.Login, loginMiddleware...)
}

func badRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": message})
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid Input")
	}

	_, err := h.svc.Register(c.Request().Context(), &req)
	var inputErr *InputError
	switch {
	case errors.As(err, &inputErr):
		return badRequest(inputErr.Message)
	case errors.Is(err, ErrUserExists):
		return badRequest("Username already exists")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, echo.Map{
			"message": "Error while saving user",
			"error":   "internal error",
		}).SetInternal(err)
	}

	return c.JSON(http.StatusCreated, echo.Map{"message": "User registered successfully"})
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid Username/password")
	}

	session, err := h.svc.Login(c.Request().Context(), &req)
	var inputErr *InputError
	switch {
	case errors.As(err, &inputErr):
		return badRequest(inputErr.Message)
	case errors.Is(err, ErrUserNotFound):
		return badRequest("No user found! Please register")
	case errors.Is(err, ErrWrongPassword):
		return badRequest("Incorrect Password")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, echo.Map{
			"message": "Error while fetching user data",
			"error":   "internal error",
		}).SetInternal(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "User Logged in successfully",
		"data":    session,
	})
}
