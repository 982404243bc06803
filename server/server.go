package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"goflare.io/paysync"
	"goflare.io/paysync/config"
	"goflare.io/paysync/handlers"
	"goflare.io/paysync/remote"
)

type Server struct {
	echo       *echo.Echo
	Address    string
	Reconciler paysync.Reconciler
	Checkout   handlers.CheckoutHandler
	Product    handlers.ProductHandler
	Refund     handlers.RefundHandler
	Webhook    handlers.WebhookHandler
	Logger     *zap.Logger
}

func NewServer(
	appConfig *config.Config,
	Reconciler paysync.Reconciler,
	Checkout handlers.CheckoutHandler,
	Product handlers.ProductHandler,
	Refund handlers.RefundHandler,
	Webhook handlers.WebhookHandler,
	Logger *zap.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true

	s := &Server{
		echo:       e,
		Address:    appConfig.Address,
		Reconciler: Reconciler,
		Checkout:   Checkout,
		Product:    Product,
		Refund:     Refund,
		Webhook:    Webhook,
		Logger:     Logger,
	}
	s.registerMiddlewares()
	s.registerRoutes()
	return s
}

// Handler exposes the routes for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the job workers and listens on address.
func (s *Server) Start(address string) error {
	if err := s.Reconciler.Start(); err != nil {
		return err
	}
	return s.echo.Start(address)
}

// Run starts the server and shuts it down gracefully on SIGINT or SIGTERM,
// draining running jobs before returning.
func (s *Server) Run(address string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		s.Reconciler.Close()
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.echo.Shutdown(ctx)
	s.Reconciler.Close()
	return err
}

func (s *Server) registerMiddlewares() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(s.traceRequest)
}

// traceRequest forwards the request id to outgoing platform calls.
func (s *Server) traceRequest(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		if id != "" {
			req := c.Request()
			c.SetRequest(req.WithContext(remote.WithTraceID(req.Context(), id)))
		}
		return next(c)
	}
}

func (s *Server) registerRoutes() {
	s.echo.POST("/checkout/:order_id", s.Checkout.CreateCheckout)
	s.echo.GET("/checkout/:order_id/complete", s.Checkout.CompleteCheckout)

	s.echo.POST("/refunds/:id", s.Refund.CreateRefund)

	s.echo.POST("/sync/products/:id", s.Product.SyncProduct)
	s.echo.GET("/sync/products/:id", s.Product.PlanProduct)
	s.echo.POST("/sync/webhooks", s.Webhook.SyncWebhooks)

	s.echo.POST("/paysync/events", s.Webhook.ReceiveEvent)
}
