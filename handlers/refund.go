package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"goflare.io/paysync"
	"goflare.io/paysync/config"
)

type RefundHandler interface {
	CreateRefund(c echo.Context) error
}

type refundHandler struct {
	Reconciler paysync.Reconciler
	Config     *config.Config
	Logger     *zap.Logger
}

func NewRefundHandler(reconciler paysync.Reconciler, appConfig *config.Config, logger *zap.Logger) RefundHandler {
	return &refundHandler{
		Reconciler: reconciler,
		Config:     appConfig,
		Logger:     logger,
	}
}

// CreateRefund handles POST /refunds/:id. With ?async=true the refund is
// queued and retried in the background.
func (rh *refundHandler) CreateRefund(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	if c.QueryParam("async") == "true" {
		if err := rh.Reconciler.Enqueue(ctx, paysync.JobRefundCreate, id); err != nil {
			return errorResponse(c, rh.Config.Debug, err)
		}
		return c.NoContent(http.StatusAccepted)
	}

	if err := rh.Reconciler.CreateRefund(ctx, id); err != nil {
		rh.Logger.Error("failed to create refund", zap.String("refund_id", id), zap.Error(err))
		return errorResponse(c, rh.Config.Debug, err)
	}
	return c.NoContent(http.StatusCreated)
}
