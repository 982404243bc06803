package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"goflare.io/paysync"
	"goflare.io/paysync/config"
)

type CheckoutHandler interface {
	CreateCheckout(c echo.Context) error
	CompleteCheckout(c echo.Context) error
}

type checkoutHandler struct {
	Reconciler paysync.Reconciler
	Config     *config.Config
	Logger     *zap.Logger
}

func NewCheckoutHandler(reconciler paysync.Reconciler, appConfig *config.Config, logger *zap.Logger) CheckoutHandler {
	return &checkoutHandler{
		Reconciler: reconciler,
		Config:     appConfig,
		Logger:     logger,
	}
}

// CreateCheckout handles POST /checkout/:order_id
func (ch *checkoutHandler) CreateCheckout(c echo.Context) error {
	orderID := c.Param("order_id")

	url, err := ch.Reconciler.CreateCheckout(c.Request().Context(), orderID)
	if err != nil {
		ch.Logger.Error("failed to create checkout", zap.String("order_id", orderID), zap.Error(err))
		return errorResponse(c, ch.Config.Debug, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"result": "success", "redirect": url})
}

// CompleteCheckout handles GET /checkout/:order_id/complete
func (ch *checkoutHandler) CompleteCheckout(c echo.Context) error {
	target := ch.Reconciler.CompleteCheckout(c.Request().Context(), c.Param("order_id"))
	return c.Redirect(http.StatusFound, target)
}
