package rest

import (
	"net/http"
	"qittMarket/domain"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
)

// CatalogHandler serves the option lists of the registration form.
type CatalogHandler struct{}

func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

func (h *CatalogHandler) GetDepartments(c echo.Context) error {
	return c.JSON(http.StatusOK, fres.Response.StatusOK(domain.Departments))
}

func (h *CatalogHandler) GetLevels(c echo.Context) error {
	return c.JSON(http.StatusOK, fres.Response.StatusOK(domain.Levels))
}
