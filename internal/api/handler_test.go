package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"testing"
	"time"

	"gallery-service/config"
	"gallery-service/internal/auth"
	"gallery-service/internal/payment"
	"gallery-service/internal/pricing"
	"gallery-service/internal/service"
	"gallery-service/internal/storage"
	"gallery-service/internal/store/memory"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("connection refused") }

type testServer struct {
	router *gin.Engine
	store  *memory.Store
}

func newTestServer(t *testing.T, rateLimit config.RateLimitConfig, checks map[string]Pinger) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := memory.NewStore()
	catalog := service.NewCatalogService(db, memory.NewCache(), time.Minute, storage.NewMemoryStore("https://cdn.test"))
	orders := service.NewOrderService(db, db, db, payment.NewSandbox(true), memory.NewLocker(), nil, service.OrderOptions{
		Currency: "usd",
		Rates:    pricing.DefaultRates(),
	})
	admin := service.NewAdminService(db, nil)

	if checks == nil {
		checks = map[string]Pinger{"database": db}
	}

	router := gin.New()
	NewHandler(orders, catalog, admin, checks).SetupRoutes(router, RouterOptions{
		Auth:           auth.NewJWTProvider(testSecret, []string{"owner@gallery.test"}),
		CORSOrigins:    []string{"https://gallery.test"},
		RateLimit:      rateLimit,
		MaxUploadBytes: 1 << 20,
	})
	return &testServer{router: router, store: db}
}

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func adminToken(t *testing.T) string {
	return token(t, jwt.MapClaims{"sub": "owner", "email": "owner@gallery.test"})
}

func (s *testServer) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (s *testServer) createArtwork(t *testing.T, title string) int64 {
	t.Helper()
	w := s.do(http.MethodPost, "/api/v1/artworks", gin.H{
		"title":              title,
		"year":               2022,
		"medium":             "Oil on canvas",
		"dimensions":         "60x80 cm",
		"original_price":     "90",
		"original_available": true,
		"prints_available":   true,
		"print_options":      []gin.H{{"size": "8x10", "price": "20"}},
	}, map[string]string{"Authorization": adminToken(t)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return int64(decode(t, w)["id"].(float64))
}

func customer() gin.H {
	return gin.H{
		"email":      "ada@example.com",
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"address":    "12 St James's Square",
		"city":       "London",
		"zip_code":   "SW1Y 4JH",
		"country":    "GB",
	}
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{}, nil)

	w := s.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = s.do(http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	down := newTestServer(t, config.RateLimitConfig{}, map[string]Pinger{"redis": failingPinger{}})
	w = down.do(http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{}, nil)
	body := gin.H{"title": "Sunset"}

	w := s.do(http.MethodPost, "/api/v1/artworks", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/artworks", body, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	visitor := token(t, jwt.MapClaims{"sub": "visitor", "email": "visitor@example.com"})
	w = s.do(http.MethodPost, "/api/v1/artworks", body, map[string]string{"Authorization": visitor})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/v1/admin/orders", nil, map[string]string{"Authorization": visitor})
	assert.Equal(t, http.StatusForbidden, w.Code)

	roleAdmin := token(t, jwt.MapClaims{"sub": "curator", "role": "admin"})
	w = s.do(http.MethodGet, "/api/v1/admin/orders", nil, map[string]string{"Authorization": roleAdmin})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestArtworkEndpoints(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{}, nil)
	admin := map[string]string{"Authorization": adminToken(t)}

	first := s.createArtwork(t, "Sunset")
	second := s.createArtwork(t, "Sunset")

	w := s.do(http.MethodGet, "/api/v1/artworks/sunset-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(second), decode(t, w)["id"])

	w = s.do(http.MethodPost, "/api/v1/artworks/reorder", gin.H{"ids": []int64{second, first}}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/artworks", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode(t, w)["artworks"].([]interface{})
	require.Len(t, listed, 2)
	assert.Equal(t, float64(second), listed[0].(map[string]interface{})["id"])

	w = s.do(http.MethodPut, "/api/v1/artworks/"+strconv.FormatInt(first, 10), gin.H{"year": 0}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["fields"], "year")

	w = s.do(http.MethodDelete, "/api/v1/artworks/"+strconv.FormatInt(first, 10), nil, admin)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/api/v1/artworks/sunset", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/v1/artworks?include_archived=true", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["artworks"], 2)

	w = s.do(http.MethodDelete, "/api/v1/artworks/abc", nil, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadArtworkImage(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{}, nil)
	id := s.createArtwork(t, "Sunset")

	upload := func(contentType string, data []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="sunset.jpg"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/artworks/"+strconv.FormatInt(id, 10)+"/images", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", adminToken(t))
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w
	}

	w := upload("image/jpeg", []byte("jpeg-bytes"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["images"], 1)

	w = upload("application/pdf", []byte("%PDF"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = upload("image/png", bytes.Repeat([]byte("x"), 2<<20))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBankTransferCheckout(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{}, nil)
	id := s.createArtwork(t, "Sunset")

	order := gin.H{
		"customer":       customer(),
		"items":          []gin.H{{"artwork_id": id, "type": "print", "print_size": "8x10", "quantity": 2, "unit_price": "0.01"}},
		"payment_method": "bank_transfer",
	}
	headers := map[string]string{"Idempotency-Key": "checkout-1"}

	w := s.do(http.MethodPost, "/api/v1/orders", order, headers)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)

	created := body["order"].(map[string]interface{})
	assert.Equal(t, "pending", created["status"])
	assert.True(t, decimal.RequireFromString(created["total_amount"].(string)).Equal(decimal.NewFromInt(55)))
	assert.NotContains(t, created, "access_token")
	assert.NotEmpty(t, body["transfer_instructions"].(map[string]interface{})["reference"])
	accessToken := body["access_token"].(string)
	orderPath := "/api/v1/orders/" + strconv.FormatInt(int64(created["id"].(float64)), 10)

	w = s.do(http.MethodPost, "/api/v1/orders", order, headers)
	require.Equal(t, http.StatusOK, w.Code)
	replay := decode(t, w)
	assert.Equal(t, true, replay["replayed"])
	assert.Equal(t, created["id"], replay["order"].(map[string]interface{})["id"])
	assert.Equal(t, 1, s.store.OrderCount())

	w = s.do(http.MethodGet, orderPath, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, orderPath, nil, map[string]string{OrderTokenHeader: accessToken})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)

	w = s.do(http.MethodGet, orderPath+"?token="+accessToken, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	admin := map[string]string{"Authorization": adminToken(t)}
	w = s.do(http.MethodPatch, "/api/v1/admin/orders/"+strconv.FormatInt(int64(created["id"].(float64)), 10)+"/status",
		gin.H{"status": "cancelled"}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPatch, "/api/v1/admin/orders/"+strconv.FormatInt(int64(created["id"].(float64)), 10)+"/status",
		gin.H{"status": "completed"}, admin)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/v1/admin/orders?status=cancelled", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["orders"], 1)
}

func TestCardCheckout(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{}, nil)
	id := s.createArtwork(t, "Sunset")
	items := []gin.H{{"artwork_id": id, "type": "print", "print_size": "8x10", "quantity": 1}}

	w := s.do(http.MethodPost, "/api/v1/create-payment-intent", gin.H{"items": items, "amount": "1.00"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	intent := decode(t, w)
	assert.Equal(t, "35", intent["total"])
	intentID := intent["payment_intent_id"].(string)

	w = s.do(http.MethodPost, "/api/v1/orders", gin.H{
		"customer":          customer(),
		"items":             items,
		"payment_method":    "card",
		"payment_intent_id": intentID,
		"idempotency_key":   "card-1",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "completed", decode(t, w)["order"].(map[string]interface{})["status"])

	w = s.do(http.MethodPost, "/api/v1/orders", gin.H{
		"customer":          customer(),
		"items":             items,
		"payment_method":    "card",
		"payment_intent_id": intentID,
		"idempotency_key":   "card-2",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCheckoutErrors(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{}, nil)

	w := s.do(http.MethodPost, "/api/v1/orders", gin.H{"payment_method": "bank_transfer"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "validation_error", body["code"])
	assert.Contains(t, body["fields"], "customer.email")
	assert.Contains(t, body["fields"], "items")

	w = s.do(http.MethodPost, "/api/v1/orders", gin.H{
		"customer":       customer(),
		"items":          []gin.H{{"artwork_id": 404, "type": "print", "print_size": "8x10", "quantity": 1}},
		"payment_method": "bank_transfer",
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, s.store.OrderCount())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContactAndNewsletter(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{}, nil)
	admin := map[string]string{"Authorization": adminToken(t)}

	w := s.do(http.MethodPost, "/api/v1/contact", gin.H{
		"name": "Grace", "email": "grace@example.com", "subject": "Commission", "message": "Hello",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	msgID := strconv.FormatInt(int64(decode(t, w)["id"].(float64)), 10)

	w = s.do(http.MethodPatch, "/api/v1/admin/messages/"+msgID+"/read", nil, admin)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/admin/messages", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	messages := decode(t, w)["messages"].([]interface{})
	require.Len(t, messages, 1)
	assert.Equal(t, true, messages[0].(map[string]interface{})["read"])

	w = s.do(http.MethodDelete, "/api/v1/admin/messages/"+msgID, nil, admin)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodDelete, "/api/v1/admin/messages/"+msgID, nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/v1/newsletter/subscribe", gin.H{"email": "Reader@Example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "reader@example.com", decode(t, w)["email"])

	known := s.do(http.MethodPost, "/api/v1/newsletter/unsubscribe", gin.H{"email": "reader@example.com"}, nil)
	unknown := s.do(http.MethodPost, "/api/v1/newsletter/unsubscribe", gin.H{"email": "nobody@example.com"}, nil)
	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())

	w = s.do(http.MethodGet, "/api/v1/admin/subscribers", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["subscribers"], 1)
}

func TestSocialMediaEndpoints(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{}, nil)
	admin := map[string]string{"Authorization": adminToken(t)}

	w := s.do(http.MethodGet, "/api/v1/social-media", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["settings"], 7)

	w = s.do(http.MethodPut, "/api/v1/social-media/instagram", gin.H{"url": "https://instagram.com/gallery", "visible": true}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPut, "/api/v1/social-media/instagram", gin.H{"url": "https://instagram.com/gallery", "visible": true}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/social-media/instagram", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["visible"])

	w = s.do(http.MethodGet, "/api/v1/social-media/myspace", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPut, "/api/v1/social-media/facebook", gin.H{"visible": true}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimitOnPublicWrites(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{Enabled: true, Rate: 0.001, Burst: 1}, nil)
	body := gin.H{"email": "reader@example.com"}

	w := s.do(http.MethodPost, "/api/v1/newsletter/subscribe", body, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/v1/newsletter/subscribe", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// reads are not limited
	for i := 0; i < 3; i++ {
		w = s.do(http.MethodGet, "/api/v1/social-media", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/orders", nil)
	req.Header.Set("Origin", "https://gallery.test")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://gallery.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key")

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/orders", nil)
	req.Header.Set("Origin", "https://evil.test")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
