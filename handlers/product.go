package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"goflare.io/paysync"
	"goflare.io/paysync/config"
	"goflare.io/paysync/resource"
)

type ProductHandler interface {
	SyncProduct(c echo.Context) error
	PlanProduct(c echo.Context) error
}

type productHandler struct {
	Reconciler paysync.Reconciler
	Config     *config.Config
	Logger     *zap.Logger
}

func NewProductHandler(reconciler paysync.Reconciler, appConfig *config.Config, logger *zap.Logger) ProductHandler {
	return &productHandler{
		Reconciler: reconciler,
		Config:     appConfig,
		Logger:     logger,
	}
}

// SyncProduct handles POST /sync/products/:id
func (ph *productHandler) SyncProduct(c echo.Context) error {
	id := c.Param("id")
	if err := ph.Reconciler.Enqueue(c.Request().Context(), paysync.JobProductSync, id); err != nil {
		ph.Logger.Error("failed to queue product sync", zap.String("product_id", id), zap.Error(err))
		return errorResponse(c, ph.Config.Debug, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// PlanProduct handles GET /sync/products/:id
func (ph *productHandler) PlanProduct(c echo.Context) error {
	plan, err := ph.Reconciler.PlanProduct(c.Request().Context(), c.Param("id"))
	if errors.Is(err, resource.ErrIneligibleProduct) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "Product type cannot be synced"})
	}
	if err != nil {
		return errorResponse(c, ph.Config.Debug, err)
	}
	return c.JSON(http.StatusOK, plan)
}
