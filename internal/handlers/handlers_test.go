package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"invoice-messaging-backend/internal/models"
	"invoice-messaging-backend/internal/repository"
	"invoice-messaging-backend/internal/services/customers"
	"invoice-messaging-backend/internal/services/invoicing"
	"invoice-messaging-backend/internal/services/pdf"
	"invoice-messaging-backend/internal/services/wati"
	"invoice-messaging-backend/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
	UseJSONFieldNames()
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
}

// newTestServer wires handlers against SQLite. A non-empty providerURL
// enables notifications through a WATI client pointed at it.
func newTestServer(t *testing.T, providerURL string) *testServer {
	t.Helper()
	db := testutil.NewDB(t)
	zl := zap.NewNop()

	renderer, err := pdf.NewRenderer(t.TempDir())
	require.NoError(t, err)

	var (
		notifier invoicing.Notifier
		api      WatiAPI
	)
	if providerURL != "" {
		client := wati.New(wati.Config{
			Endpoint:     providerURL,
			Token:        "secret",
			TemplateName: "invoice_ready",
			Timeout:      2 * time.Second,
		}, nil, zl)
		notifier, api = client, client
	}

	customerRepo := repository.NewCustomerRepository(db)
	invoiceService := invoicing.NewInvoiceService(
		customerRepo,
		repository.NewInvoiceRepository(db),
		repository.NewDeliveryMessageRepository(db),
		renderer,
		notifier,
		nil,
		invoicing.Options{
			NotifyEnabled: providerURL != "",
			PublicLinks:   true,
			BaseURL:       "http://api.test",
		},
		zl,
	)

	ch := NewCustomerHandler(customers.NewCustomerService(customerRepo, zl), zl)
	ih := NewInvoiceHandler(invoiceService, zl)
	wh := NewWatiHandler(invoiceService, api, zl)
	hh := NewHealthHandler(db, "test", zl)

	r := gin.New()
	r.GET("/health", hh.Health)
	r.GET("/ready", hh.Ready)
	r.GET("/metrics", hh.Metrics)
	r.GET("/api/customers", ch.List)
	r.POST("/api/customers", ch.Create)
	r.GET("/api/customers/:id", ch.Get)
	r.PUT("/api/customers/:id", ch.Update)
	r.DELETE("/api/customers/:id", ch.Delete)
	r.GET("/api/invoices", ih.List)
	r.POST("/api/invoices", ih.Create)
	r.GET("/api/invoices/:id", ih.Get)
	r.GET("/api/invoices/:id/pdf", ih.PDF)
	r.GET("/api/public/invoices/:token", ih.Public)
	r.GET("/api/dashboard", ih.Dashboard)
	r.POST("/api/wati/webhook", wh.Webhook)
	r.GET("/api/wati/templates", wh.Templates)
	r.POST("/api/wati/test-template", wh.TestTemplate)
	r.GET("/api/wati/messages/:messageId", wh.MessageStatus)

	return &testServer{router: r, db: db}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func invoiceBody(customerID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"customerId": customerID.String(),
		"items": []map[string]interface{}{
			{"description": "Design", "quantity": 2, "price": 10.5},
			{"description": "Hosting", "quantity": 1, "price": 4.25},
		},
	}
}

func TestCustomerCRUD(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(http.MethodPost, "/api/customers", map[string]interface{}{
		"name":           "Asha Traders",
		"email":          "asha@example.com",
		"whatsappNumber": "9876543210",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)

	w = s.do(http.MethodPut, "/api/customers/"+id, map[string]interface{}{"phone": "080-1234"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "080-1234", decode(t, w)["phone"])

	w = s.do(http.MethodGet, "/api/customers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.EqualValues(t, 0, list[0]["invoiceCount"])

	w = s.do(http.MethodDelete, "/api/customers/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/api/customers/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCustomerValidation(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(http.MethodPost, "/api/customers", map[string]interface{}{
		"email":          "not-an-email",
		"whatsappNumber": "123",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode(t, w)
	assert.Equal(t, "validation failed", body["error"])
	fields := map[string]string{}
	for _, f := range body["fields"].([]interface{}) {
		fe := f.(map[string]interface{})
		fields[fe["field"].(string)] = fe["rule"].(string)
	}
	assert.Equal(t, map[string]string{
		"name":           "required",
		"email":          "email",
		"whatsappNumber": "min",
	}, fields)

	w = s.do(http.MethodGet, "/api/customers/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteInvoicedCustomerConflicts(t *testing.T) {
	s := newTestServer(t, "")
	c := testutil.SeedCustomer(t, s.db, "Busy")
	testutil.SeedInvoice(t, s.db, c.ID, "INV-1")

	w := s.do(http.MethodDelete, "/api/customers/"+c.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateInvoiceAndFetch(t *testing.T) {
	s := newTestServer(t, "")
	c := testutil.SeedCustomer(t, s.db, "Asha")

	w := s.do(http.MethodPost, "/api/invoices", invoiceBody(c.ID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode(t, w)
	id := created["id"].(string)
	assert.InDelta(t, 25.25, created["totalAmount"], 1e-9)
	assert.Equal(t, "http://api.test/api/invoices/"+id+"/pdf", created["pdfUrl"])
	assert.NotEmpty(t, created["publicUrl"])
	assert.NotContains(t, created, "messageStatus")
	assert.Len(t, created["items"], 2)

	w = s.do(http.MethodGet, "/api/invoices/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, created["invoiceNumber"], got["invoiceNumber"])
	assert.Equal(t, "Asha", got["customer"].(map[string]interface{})["name"])

	w = s.do(http.MethodGet, "/api/invoices/"+id+"/pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="`+created["invoiceNumber"].(string)+`.pdf"`, w.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	token := created["publicToken"].(string)
	w = s.do(http.MethodGet, "/api/public/invoices/"+token, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://api.test/api/invoices/"+id+"/pdf", w.Header().Get("Location"))

	w = s.do(http.MethodGet, "/api/public/invoices/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/invoices?q=asha", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestCreateInvoiceRejectsBadInput(t *testing.T) {
	s := newTestServer(t, "")
	c := testutil.SeedCustomer(t, s.db, "Asha")

	body := invoiceBody(c.ID)
	body["items"] = []map[string]interface{}{}
	w := s.do(http.MethodPost, "/api/invoices", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = invoiceBody(c.ID)
	body["items"] = []map[string]interface{}{{"description": "x", "quantity": 1, "price": -3}}
	w = s.do(http.MethodPost, "/api/invoices", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	field := decode(t, w)["fields"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "items[0].price", field["field"])

	w = s.do(http.MethodPost, "/api/invoices", invoiceBody(uuid.New()))
	assert.Equal(t, http.StatusNotFound, w.Code)

	var n int64
	require.NoError(t, s.db.Model(&models.Invoice{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestMissingInvoice(t *testing.T) {
	s := newTestServer(t, "")

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/invoices/"+uuid.NewString(), nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/invoices/"+uuid.NewString()+"/pdf", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/invoices/42", nil).Code)
}

func TestCreateInvoiceWhenProviderFails(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer provider.Close()

	s := newTestServer(t, provider.URL)
	c := testutil.SeedCustomer(t, s.db, "Asha")

	w := s.do(http.MethodPost, "/api/invoices", invoiceBody(c.ID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	status := decode(t, w)["messageStatus"].(map[string]interface{})
	assert.Equal(t, false, status["sent"])
	assert.Equal(t, "HTTP 500: Internal Server Error", status["error"])

	var msg models.DeliveryMessage
	require.NoError(t, s.db.First(&msg).Error)
	assert.Equal(t, models.DeliveryStatusFailed, msg.Status)
}

func TestWebhookUpdatesDelivery(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"messageId":"wamid-9"}`)
	}))
	defer provider.Close()

	s := newTestServer(t, provider.URL)
	c := testutil.SeedCustomer(t, s.db, "Asha")
	w := s.do(http.MethodPost, "/api/invoices", invoiceBody(c.ID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)

	w = s.do(http.MethodPost, "/api/wati/webhook", map[string]interface{}{"status": "delivered"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/wati/webhook", map[string]interface{}{
		"messageId": "wamid-9",
		"status":    "delivered",
		"timestamp": 1714564800,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["updated"])

	w = s.do(http.MethodGet, "/api/invoices/"+id, nil)
	latest := decode(t, w)["latestDelivery"].(map[string]interface{})
	assert.Equal(t, "delivered", latest["status"])
	assert.NotEmpty(t, latest["deliveredAt"])

	w = s.do(http.MethodPost, "/api/wati/webhook", map[string]interface{}{"messageId": "unknown"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["updated"])
}

func TestParseTimestamp(t *testing.T) {
	assert.True(t, parseTimestamp(nil).IsZero())
	assert.Equal(t, int64(1714564800), parseTimestamp([]byte(`1714564800`)).Unix())
	assert.Equal(t, int64(1714564800), parseTimestamp([]byte(`1714564800000`)).Unix())
	assert.Equal(t, int64(1714564800), parseTimestamp([]byte(`"2024-05-01T12:00:00Z"`)).Unix())
	assert.Equal(t, int64(1714564800), parseTimestamp([]byte(`"1714564800"`)).Unix())
	assert.True(t, parseTimestamp([]byte(`"yesterday"`)).IsZero())
}

func TestWatiEndpointsDisabled(t *testing.T) {
	s := newTestServer(t, "")

	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/api/wati/templates", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/api/wati/messages/abc", nil).Code)
}

func TestWatiTemplates(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"messageTemplates":[
			{"elementName":"invoice_ready","status":"APPROVED","body":"Hi {{1}}, invoice {{2}}"},
			{"elementName":"promo","status":"APPROVED","body":"Sale {{name}}"}
		]}`)
	}))
	defer provider.Close()
	s := newTestServer(t, provider.URL)

	w := s.do(http.MethodGet, "/api/wati/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["found"])
	tmpl := body["template"].(map[string]interface{})
	assert.Equal(t, []interface{}{"{{1}}", "{{2}}"}, tmpl["variables"].(map[string]interface{})["body"])

	w = s.do(http.MethodGet, "/api/wati/templates?name=missing", nil)
	body = decode(t, w)
	assert.Equal(t, false, body["found"])
	assert.Len(t, body["available"], 2)
}

func TestWatiTestTemplate(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer provider.Close()
	s := newTestServer(t, provider.URL)

	w := s.do(http.MethodPost, "/api/wati/test-template", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/wati/test-template", map[string]interface{}{
		"phoneNumber": "9876543210",
		"parameters":  []interface{}{"Asha", map[string]string{"name": "2", "value": "INV"}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, string(wati.FailureTemplateNotFound), body["kind"])
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, "")

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/ready", nil).Code)

	w := s.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w), "goroutines")
}

func TestReadyHidesDatabaseError(t *testing.T) {
	s := newTestServer(t, "")
	sqlDB, err := s.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := s.do(http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"not ready","database":"disconnected"}`, w.Body.String())
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t, "")
	c := testutil.SeedCustomer(t, s.db, "Asha")
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/invoices", invoiceBody(c.ID)).Code)

	w := s.do(http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["customers"])
	assert.EqualValues(t, 1, body["invoices"])
	assert.InDelta(t, 25.25, body["revenue"], 1e-9)
}
