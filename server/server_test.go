package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"goflare.io/paysync"
	"goflare.io/paysync/checkout_session"
	"goflare.io/paysync/config"
	"goflare.io/paysync/event"
	"goflare.io/paysync/gateway/gatewaytest"
	"goflare.io/paysync/handlers"
	"goflare.io/paysync/models"
	"goflare.io/paysync/models/enum"
	"goflare.io/paysync/product"
	"goflare.io/paysync/refund"
	"goflare.io/paysync/remote"
	"goflare.io/paysync/store"
	"goflare.io/paysync/webhook"
)

func newTestServer(t *testing.T) (*Server, *gatewaytest.Fixture) {
	t.Helper()
	f := gatewaytest.New(t)
	logger := zaptest.NewLogger(t)

	cfg := &config.Config{
		Checkout: checkout_session.Options{
			SuccessURL: "https://api.shop.test/checkout/{order_id}/complete",
			CancelURL:  "https://shop.test/cart",
			ReturnURL:  "https://shop.test/order-received/{order_id}",
		},
		Webhook: config.WebhookConfig{
			Options:   webhook.Options{URL: "https://api.shop.test/paysync/events", Enabled: true},
			Tolerance: event.DefaultTolerance,
		},
	}

	engine := paysync.NewEngine(paysync.JobsConfig{},
		product.NewService(f.Gateway, logger),
		checkout_session.NewService(f.Gateway, f.Store, cfg.Checkout, logger),
		refund.NewService(f.Gateway, f.Store, cfg.Checkout, logger),
		webhook.NewService(f.Gateway, f.Store, cfg.Webhook.Options, logger),
		event.NewService(f.Gateway, f.Store, cfg.Checkout, nil, logger),
		nil, nil, logger)
	require.NoError(t, engine.Start())
	t.Cleanup(engine.Close)

	s := NewServer(cfg, engine,
		handlers.NewCheckoutHandler(engine, cfg, logger),
		handlers.NewProductHandler(engine, cfg, logger),
		handlers.NewRefundHandler(engine, cfg, logger),
		handlers.NewWebhookHandler(engine, cfg, logger),
		logger)
	return s, f
}

func TestServer_CheckoutToPaidOrder(t *testing.T) {
	s, f := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, f.Store.SaveProduct(ctx, &models.Product{ID: "10", Type: enum.ProductTypeSimple, Name: "Yoga Mat", Price: "25.00", Active: true}))
	require.NoError(t, f.Store.SaveOrder(ctx, &models.Order{
		ID: "100", Status: enum.OrderStatusPending, Currency: "usd", Total: "25.00",
		Items: []models.OrderItem{{ID: "1001", ProductID: "10", Name: "Yoga Mat", Quantity: 1, Subtotal: "25.00", Total: "25.00"}},
	}))

	// Register the webhook so deliveries can be verified.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync/webhooks", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool { return f.Remote.Count(http.MethodPost, "/v1/webhooks") == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		meta, err := f.Store.Meta(ctx, store.KindSettings, store.SettingsID)
		return err == nil && meta[store.MetaKey(enum.ModeTest, "webhook_secret")] != ""
	}, time.Second, 5*time.Millisecond)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/100", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Redirect string `json:"redirect"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, strings.HasPrefix(out.Redirect, "https://checkout.test/pay/fcs_"))
	sessionID := strings.TrimPrefix(out.Redirect, "https://checkout.test/pay/")

	reqs := f.Remote.Requests()
	assert.NotEmpty(t, reqs[len(reqs)-1].Header.Get(remote.TraceHeader))

	meta, err := f.Store.Meta(ctx, store.KindSettings, store.SettingsID)
	require.NoError(t, err)
	secret := meta[store.MetaKey(enum.ModeTest, "webhook_secret")]

	body := `{"event_type":"checkout.session.completed","object":{"checkout_session":{"checkout_session_id":"` + sessionID + `","client_reference_id":"100","status":"complete","test_mode":true}}}`
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/paysync/events", strings.NewReader(body))
	req.Header.Set(event.HeaderID, "evt_1")
	req.Header.Set(event.HeaderTimestamp, ts)
	req.Header.Set(event.HeaderSignature, "v1,"+base64.StdEncoding.EncodeToString(event.Sign(secret, "evt_1", ts, []byte(body))))

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	order, err := f.Store.Order(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusProcessing, order.Status)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/checkout/100/complete", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://shop.test/order-received/100", rec.Header().Get("Location"))
}

func TestServer_EventSignedForOtherModeRejected(t *testing.T) {
	s, f := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, f.Store.SaveOrder(ctx, &models.Order{ID: "100", Status: enum.OrderStatusPending, Currency: "usd", Total: "25.00"}))
	require.NoError(t, f.Store.UpdateMeta(ctx, store.KindOrder, "100", map[string]string{
		store.MetaKey(enum.ModeLive, "checkout_session_id"): "fcs_live",
	}, nil))
	testSecret := "fwhsec_" + base64.StdEncoding.EncodeToString([]byte("test-secret"))
	require.NoError(t, f.Store.UpdateMeta(ctx, store.KindSettings, store.SettingsID, map[string]string{
		store.MetaKey(enum.ModeTest, "webhook_secret"): testSecret,
	}, nil))

	body := `{"event_type":"checkout.session.completed","object":{"checkout_session":{"checkout_session_id":"fcs_live","client_reference_id":"100","status":"complete","test_mode":false}}}`
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/paysync/events", strings.NewReader(body))
	req.Header.Set(event.HeaderID, "evt_1")
	req.Header.Set(event.HeaderTimestamp, ts)
	req.Header.Set(event.HeaderSignature, "v1,"+base64.StdEncoding.EncodeToString(event.Sign(testSecret, "evt_1", ts, []byte(body))))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	order, err := f.Store.Order(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusPending, order.Status)
}

func TestServer_UnsignedEventRejected(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/paysync/events", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
