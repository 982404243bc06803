package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"goflare.io/paysync"
	"goflare.io/paysync/config"
	"goflare.io/paysync/event"
)

// maxEventSize caps inbound event bodies.
const maxEventSize = 1 << 20

type WebhookHandler interface {
	// ReceiveEvent is the endpoint the platform posts events to.
	ReceiveEvent(c echo.Context) error
	SyncWebhooks(c echo.Context) error
}

type webhookHandler struct {
	Reconciler paysync.Reconciler
	Config     *config.Config
	Logger     *zap.Logger
	now        func() time.Time
}

func NewWebhookHandler(reconciler paysync.Reconciler, appConfig *config.Config, logger *zap.Logger) WebhookHandler {
	return &webhookHandler{
		Reconciler: reconciler,
		Config:     appConfig,
		Logger:     logger,
		now:        time.Now,
	}
}

func (wh *webhookHandler) ReceiveEvent(c echo.Context) error {
	req := c.Request()
	payload, err := io.ReadAll(io.LimitReader(req.Body, maxEventSize))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to read request body"})
	}

	ctx := req.Context()
	id := req.Header.Get(event.HeaderID)
	timestamp := req.Header.Get(event.HeaderTimestamp)
	signature := req.Header.Get(event.HeaderSignature)
	if id == "" || timestamp == "" || signature == "" {
		wh.Logger.Warn("rejected unsigned event")
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
	}

	// The signature must come from the secret of the mode the event claims.
	ev, err := event.Parse(id, payload)
	if err == nil {
		err = wh.Reconciler.ResolveEvent(ctx, ev)
	}
	if err == nil {
		err = wh.verify(ctx, ev, timestamp, payload, signature)
	}
	if errors.Is(err, errUnauthorized) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
	}
	if err == nil {
		err = wh.Reconciler.HandleEvent(ctx, ev)
	}

	var ve *event.ValidationError
	switch {
	case err == nil:
		return c.NoContent(http.StatusOK)
	case errors.As(err, &ve):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": ve.Message})
	default:
		return errorResponse(c, wh.Config.Debug, err)
	}
}

var errUnauthorized = errors.New("unauthorized")

func (wh *webhookHandler) verify(ctx context.Context, ev *event.Event, timestamp string, payload []byte, signature string) error {
	secrets, err := wh.Reconciler.WebhookSecrets(ctx)
	if err != nil {
		wh.Logger.Error("failed to load webhook secrets", zap.Error(err))
		return err
	}

	var candidates []string
	if secret := secrets[ev.Mode]; secret != "" {
		candidates = append(candidates, secret)
	}
	err = event.Verify(candidates, ev.ID, timestamp, payload, signature, wh.Config.Webhook.Tolerance, wh.now())
	if err != nil {
		wh.Logger.Warn("rejected event",
			zap.String("event_id", ev.ID),
			zap.String("mode", string(ev.Mode)),
			zap.Error(err))
		return errUnauthorized
	}
	return nil
}

// SyncWebhooks handles POST /sync/webhooks
func (wh *webhookHandler) SyncWebhooks(c echo.Context) error {
	if err := wh.Reconciler.Enqueue(c.Request().Context(), paysync.JobWebhookSync, ""); err != nil {
		wh.Logger.Error("failed to queue webhook sync", zap.Error(err))
		return errorResponse(c, wh.Config.Debug, err)
	}
	return c.NoContent(http.StatusAccepted)
}
