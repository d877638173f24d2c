package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fundi/config"
	"fundi/internal/auth"
	"fundi/internal/database/dbtest"
	"fundi/internal/domain"
	"fundi/internal/models"
	"fundi/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const callbackToken = "cb-token"

type countingProvider struct {
	payment.SandboxProvider
	pushes atomic.Int32
}

func (p *countingProvider) InitiatePush(ctx context.Context, req payment.STKPushRequest) (*payment.STKPushResponse, error) {
	p.pushes.Add(1)
	return p.SandboxProvider.InitiatePush(ctx, req)
}

type testServer struct {
	engine   *gin.Engine
	db       *gorm.DB
	cfg      *config.Config
	provider *countingProvider
	fixture  *dbtest.Fixture
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test", RateLimit: 1000, RateWindow: time.Minute},
		JWT:    config.JWTConfig{AccessSecret: "test-secret", AccessExpiry: time.Hour, Issuer: "fundi"},
		Mpesa:  config.MpesaConfig{CallbackToken: callbackToken},
	}
	db := dbtest.New(t)
	prov := &countingProvider{}
	return &testServer{
		engine:   Setup(cfg, db, prov),
		db:       db,
		cfg:      cfg,
		provider: prov,
		fixture:  dbtest.SeedBooking(t, db, 500, domain.BookingStatusPending),
	}
}

func (s *testServer) token(t *testing.T, u models.User) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(&s.cfg.JWT, u.ID, u.Email, u.Role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) initiate(t *testing.T, phone string) payment.STKPushResponse {
	t.Helper()
	w := s.do(http.MethodPost, "/api/v1/payments/initiate", s.token(t, s.fixture.Client), gin.H{
		"phoneNumber": phone,
		"amount":      500,
		"bookingId":   s.fixture.Booking.ID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp payment.STKPushResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func successBody(merchantID, checkoutID string) string {
	return fmt.Sprintf(`{"Body":{"stkCallback":{"MerchantRequestID":%q,"CheckoutRequestID":%q,"ResultCode":0,
		"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[
		{"Name":"Amount","Value":500},{"Name":"MpesaReceiptNumber","Value":"R123"},
		{"Name":"TransactionDate","Value":20240101120000},{"Name":"PhoneNumber","Value":254712345678}]}}}}`,
		merchantID, checkoutID)
}

func TestPaymentFlow(t *testing.T) {
	s := newTestServer(t)
	push := s.initiate(t, "0712345678")
	require.NotEmpty(t, push.MerchantRequestID)

	var row models.MpesaRequest
	require.NoError(t, s.db.Where("merchant_request_id = ?", push.MerchantRequestID).First(&row).Error)
	assert.Equal(t, "254712345678", row.PhoneNumber)
	assert.Equal(t, 500.0, row.Amount)

	again := gin.H{"phoneNumber": "0712345678", "amount": 500, "bookingId": s.fixture.Booking.ID}
	w := s.do(http.MethodPost, "/api/v1/payments/initiate", s.token(t, s.fixture.Client), again)
	assert.Equal(t, http.StatusConflict, w.Code)

	cbPath := "/api/v1/payments/callback?token=" + callbackToken
	w = s.do(http.MethodPost, cbPath, "", successBody(push.MerchantRequestID, push.CheckoutRequestID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, w.Body.String())

	w = s.do(http.MethodPost, cbPath, "", successBody(push.MerchantRequestID, push.CheckoutRequestID))
	assert.Equal(t, http.StatusNotFound, w.Code)

	var b models.Booking
	require.NoError(t, s.db.First(&b, s.fixture.Booking.ID).Error)
	assert.Equal(t, domain.BookingStatusConfirmed, b.Status)

	w = s.do(http.MethodPost, "/api/v1/payments/initiate", s.token(t, s.fixture.Client), again)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, int32(1), s.provider.pushes.Load())

	w = s.do(http.MethodGet, "/api/v1/payments/"+push.CheckoutRequestID+"/status", s.token(t, s.fixture.Client), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st struct {
		Processed bool             `json:"processed"`
		Payments  []models.Payment `json:"payments"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.Processed)
	require.Len(t, st.Payments, 1)
	assert.Equal(t, domain.PaymentStatusCompleted, st.Payments[0].Status)
	require.NotNil(t, st.Payments[0].MpesaReceipt)
	assert.Equal(t, "R123", *st.Payments[0].MpesaReceipt)

	providerTok := s.token(t, s.fixture.ProviderUser)
	w = s.do(http.MethodGet, "/api/v1/me/notifications", providerTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Notifications []models.Notification `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Notifications, 1)
	assert.Contains(t, list.Notifications[0].Content, "R123")
	require.NotNil(t, list.Notifications[0].BookingID)
	assert.Equal(t, s.fixture.Booking.ID, *list.Notifications[0].BookingID)

	readPath := fmt.Sprintf("/api/v1/me/notifications/%d/read", list.Notifications[0].ID)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPut, readPath, providerTok, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPut, readPath, providerTok, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPut, readPath, s.token(t, s.fixture.Client), nil).Code)
}

func TestInitiateRejectsBadInput(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, s.fixture.Client)

	w := s.do(http.MethodPost, "/api/v1/payments/initiate", tok, gin.H{
		"phoneNumber": "12345", "amount": 500, "bookingId": s.fixture.Booking.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid phone number"}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/payments/initiate", tok, `{"phoneNumber":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/payments/initiate", tok, gin.H{"phoneNumber": "0712345678", "amount": 0, "bookingId": s.fixture.Booking.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/payments/initiate", tok, gin.H{"phoneNumber": "0712345678", "amount": 500, "bookingId": 9999})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/v1/payments/initiate", "", gin.H{"phoneNumber": "0712345678", "amount": 500, "bookingId": s.fixture.Booking.ID})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Zero(t, s.provider.pushes.Load())
	var n int64
	require.NoError(t, s.db.Model(&models.MpesaRequest{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCallbackResponses(t *testing.T) {
	s := newTestServer(t)
	cbPath := "/api/v1/payments/callback?token=" + callbackToken

	w := s.do(http.MethodPost, "/api/v1/payments/callback", "", successBody("M1", "ws_CO_1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	for _, body := range []string{`{"Body":`, `{"Body":{"stkCallback":{"MerchantRequestID":"M1","ResultCode":0}}}`} {
		w = s.do(http.MethodPost, cbPath, "", body)
		assert.Equal(t, http.StatusOK, w.Code, body)
		assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Ignored: invalid payload"}`, w.Body.String())
	}

	w = s.do(http.MethodPost, cbPath, "", `{"Body":{"stkCallback":{"MerchantRequestID":"M-unknown","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var n int64
	require.NoError(t, s.db.Model(&models.Payment{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestAdminPendingRequests(t *testing.T) {
	s := newTestServer(t)
	push := s.initiate(t, "0712345678")
	require.NoError(t, s.db.Model(&models.MpesaRequest{}).
		Where("merchant_request_id = ?", push.MerchantRequestID).
		Update("created_at", time.Now().Add(-time.Hour)).Error)

	admin := models.User{Name: "Ops", Email: "ops@example.com", Role: domain.RoleAdmin}
	require.NoError(t, s.db.Create(&admin).Error)

	path := "/api/v1/admin/mpesa-requests/pending?older_than=10m"
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, path, s.token(t, s.fixture.Client), nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/v1/admin/mpesa-requests/pending?older_than=soon", s.token(t, admin), nil).Code)

	w := s.do(http.MethodGet, path, s.token(t, admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data  []models.MpesaRequest `json:"data"`
		Total int                   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, push.MerchantRequestID, resp.Data[0].MerchantRequestID)
}

func TestPaymentResultOverWebsocket(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/payments?token=" + s.token(t, s.fixture.Client)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	push := s.initiate(t, "0712345678")
	w := s.do(http.MethodPost, "/api/v1/payments/callback?token="+callbackToken, "", successBody(push.MerchantRequestID, push.CheckoutRequestID))
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev struct {
		Type              string `json:"type"`
		MerchantRequestID string `json:"merchant_request_id"`
		Status            string `json:"status"`
		Receipt           string `json:"receipt"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "payment_result", ev.Type)
	assert.Equal(t, push.MerchantRequestID, ev.MerchantRequestID)
	assert.Equal(t, domain.PaymentStatusCompleted, ev.Status)
	assert.Equal(t, "R123", ev.Receipt)
}

func TestWebsocketRequiresToken(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/payments", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
