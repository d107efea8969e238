package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reseller-ledger/internal/app"
	"reseller-ledger/internal/core"

	"github.com/golang-jwt/jwt/v5"
	"github.com/invopop/jsonschema"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// stubService implements only what the tests call; anything else panics.
type stubService struct {
	app.ApplicationService

	pingErr   error
	saleErr   error
	batch     *core.BatchResult
	imported  []byte
	importReq app.SerialBatchRequest
	payment   *core.PaymentInput
}

func (s *stubService) Ping(context.Context) error { return s.pingErr }

func (s *stubService) AuthenticateUser(_ context.Context, username, password string) (*app.UserSession, error) {
	if username == "amine" && password == "pw" {
		return &app.UserSession{UserID: 1, Username: "amine", Role: "admin"}, nil
	}
	return nil, app.ErrInvalidCredentials
}

func (s *stubService) GetUser(_ context.Context, userID int) (*core.User, error) {
	return &core.User{ID: userID, Username: "amine", Role: "admin"}, nil
}

func (s *stubService) CreateSale(_ context.Context, in core.SaleInput) (*core.Sale, error) {
	if s.saleErr != nil {
		return nil, s.saleErr
	}
	return &core.Sale{ID: 9}, nil
}

func (s *stubService) AddSerialBatch(context.Context, app.SerialBatchRequest) (*core.BatchResult, error) {
	return s.batch, nil
}

func (s *stubService) ImportSerialBatch(_ context.Context, req app.SerialBatchRequest, r io.Reader) (*core.BatchResult, error) {
	s.importReq = req
	s.imported, _ = io.ReadAll(r)
	return s.batch, nil
}

func (s *stubService) RecordPayment(_ context.Context, invoiceID int, in core.PaymentInput) (*core.Invoice, error) {
	s.payment = &in
	return &core.Invoice{ID: invoiceID}, nil
}

func (s *stubService) GetProduct(context.Context, int) (*core.Product, error) {
	panic("boom")
}

func (s *stubService) SchemaNames() []string { return []string{"sale"} }

func (s *stubService) Schema(name string) (*jsonschema.Schema, bool) {
	if name == "sale" {
		return &jsonschema.Schema{Type: "object"}, true
	}
	return nil, false
}

func newTestHandler(svc *stubService) http.Handler {
	return NewHandler(svc, nil, Options{
		AllowedOrigins:  "http://localhost:5173",
		JWTSecret:       testSecret,
		TokenTTL:        time.Hour,
		InsecureCookies: true,
	})
}

func token(t *testing.T, secret string, expires time.Time) string {
	t.Helper()
	claims := &jwtClaims{
		UserID:   1,
		Username: "amine",
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authed(t *testing.T, method, target string, body io.Reader) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+token(t, testSecret, time.Now().Add(time.Hour)))
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(&stubService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	newTestHandler(&stubService{pingErr: errors.New("down")}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestID_Propagation(t *testing.T) {
	h := newTestHandler(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/sales/abc", nil)
	req.Header.Set("X-Request-ID", "client-id-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "client-id-123", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "client-id-123", decodeError(t, rec).RequestID)

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "bad id with spaces")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "bad id with spaces", rec.Header().Get("X-Request-ID"))
}

func TestRequireAuth(t *testing.T) {
	h := newTestHandler(&stubService{})

	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  int
	}{
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"wrong secret", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token(t, "other", time.Now().Add(time.Hour)))
		}, http.StatusUnauthorized},
		{"expired", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token(t, testSecret, time.Now().Add(-time.Minute)))
		}, http.StatusUnauthorized},
		{"bearer", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token(t, testSecret, time.Now().Add(time.Hour)))
		}, http.StatusOK},
		{"cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: authCookie, Value: token(t, testSecret, time.Now().Add(time.Hour))})
		}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestLogin(t *testing.T) {
	h := newTestHandler(&stubService{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"amine","password":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"amine","password":"pw"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		UserID int    `json:"user_id"`
		Token  string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 1, body.UserID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, authCookie, cookies[0].Name)
	assert.Equal(t, body.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"amine"`)
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"validation", core.NewValidationError("items are required"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", &core.DomainError{Kind: core.KindNotFound, Message: "product 4 not found"}, http.StatusNotFound, "NOT_FOUND"},
		{"duplicate serial", &core.DomainError{Kind: core.KindDuplicate, Code: "DUPLICATE_SERIAL", Message: "dup"}, http.StatusConflict, "DUPLICATE_SERIAL"},
		{"invalid state", &core.DomainError{Kind: core.KindInvalidState, Message: "cancelled"}, http.StatusConflict, "INVALID_STATE"},
		{"constraint", &core.DomainError{Kind: core.KindConstraintViolation, Message: "in use"}, http.StatusConflict, "CONSTRAINT_VIOLATION"},
		{"insufficient stock", &core.DomainError{Kind: core.KindInsufficientStock, Message: "only 1 left"}, http.StatusUnprocessableEntity, "INSUFFICIENT_STOCK"},
		{"negative stock", &core.DomainError{Kind: core.KindNegativeStock, Message: "below zero"}, http.StatusUnprocessableEntity, "NEGATIVE_STOCK"},
		{"wrapped", fmtWrap(&core.DomainError{Kind: core.KindNotFound, Message: "client"}), http.StatusNotFound, "NOT_FOUND"},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&stubService{saleErr: tt.err})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, authed(t, http.MethodPost, "/api/sales",
				strings.NewReader(`{"client":{"name":"Karim"},"items":[{"product_id":1,"quantity":1}],"amount_paid":"0"}`)))
			assert.Equal(t, tt.wantCode, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantBody, resp.Code)
			assert.NotContains(t, resp.Error, "connection reset")
		})
	}
}

func fmtWrap(err error) error {
	return errors.Join(errors.New("context"), err)
}

func TestServiceError_HidesDriverDetail(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "products_identity_key",
		Message:        `duplicate key value violates unique constraint "products_identity_key"`,
	}
	err := &core.DomainError{
		Kind:    core.KindDuplicate,
		Code:    "DUPLICATE_SERIAL",
		Message: "cannot create product 123456: already exists",
		Err:     pgErr,
	}

	rec := httptest.NewRecorder()
	newTestHandler(&stubService{saleErr: err}).ServeHTTP(rec, authed(t, http.MethodPost, "/api/sales",
		strings.NewReader(`{"client":{"name":"Karim"},"items":[{"product_id":1,"quantity":1}],"amount_paid":"0"}`)))

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "DUPLICATE_SERIAL", resp.Code)
	assert.Equal(t, "cannot create product 123456: already exists", resp.Error)
	assert.NotContains(t, resp.Error, "duplicate key")
	assert.NotContains(t, resp.Error, "products_identity_key")
}

func TestCreateSale_Created(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(&stubService{}).ServeHTTP(rec, authed(t, http.MethodPost, "/api/sales",
		strings.NewReader(`{"client":{"name":"Karim"},"items":[],"amount_paid":"0"}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestBadRequests(t *testing.T) {
	h := newTestHandler(&stubService{})
	tests := []struct {
		name, method, target, body string
	}{
		{"non-numeric id", http.MethodGet, "/api/invoices/abc", ""},
		{"zero id", http.MethodGet, "/api/clients/0", ""},
		{"malformed json", http.MethodPost, "/api/sales", "{"},
		{"bad date", http.MethodGet, "/api/reports/profit?day=18-10-2026", ""},
		{"bad product status", http.MethodGet, "/api/products?status=sold", ""},
		{"bad resolution", http.MethodGet, "/api/replacements?resolution=lost", ""},
		{"bad settlement", http.MethodGet, "/api/purchases?settlement=credit", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, authed(t, tt.method, tt.target, strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "BAD_REQUEST", decodeError(t, rec).Code)
		})
	}
}

func TestRecordPayment_DecodesDecimals(t *testing.T) {
	svc := &stubService{}
	rec := httptest.NewRecorder()
	newTestHandler(svc).ServeHTTP(rec, authed(t, http.MethodPut, "/api/invoices/12/payment",
		strings.NewReader(`{"amount_paid":"150.50","new_total":"300"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.payment)
	assert.Equal(t, "150.5", svc.payment.AmountPaid.String())
	require.NotNil(t, svc.payment.NewTotal)
	assert.Equal(t, "300", svc.payment.NewTotal.String())
}

func TestBatchStatus(t *testing.T) {
	ok := core.BatchItemResult{Index: 0, Key: "123456", ID: 1}
	bad := core.BatchItemResult{Index: 1, Key: "12345", Error: "bad serial", Code: "VALIDATION_ERROR"}
	tests := []struct {
		name  string
		batch *core.BatchResult
		want  int
	}{
		{"all succeeded", &core.BatchResult{Succeeded: []core.BatchItemResult{ok}, Failed: []core.BatchItemResult{}}, http.StatusCreated},
		{"mixed", &core.BatchResult{Succeeded: []core.BatchItemResult{ok}, Failed: []core.BatchItemResult{bad}}, http.StatusMultiStatus},
		{"none succeeded", &core.BatchResult{Succeeded: []core.BatchItemResult{}, Failed: []core.BatchItemResult{bad}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestHandler(&stubService{batch: tt.batch}).ServeHTTP(rec, authed(t, http.MethodPost, "/api/products/batch",
				strings.NewReader(`{"brand":"Apple","model":"iPhone 12","serials":["123456","12345"],"cost_price":"100","sale_price":"120","supplier_id":1}`)))
			assert.Equal(t, tt.want, rec.Code)

			var res core.BatchResult
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
			assert.Len(t, res.Succeeded, len(tt.batch.Succeeded))
			assert.Len(t, res.Failed, len(tt.batch.Failed))
		})
	}
}

func multipartImport(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("batch", `{"brand":"Apple","model":"iPhone 12","cost_price":"100","sale_price":"120","supplier_id":3}`))
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestImportSerialBatch(t *testing.T) {
	svc := &stubService{batch: &core.BatchResult{
		Succeeded: []core.BatchItemResult{{Key: "123456", ID: 1}},
		Failed:    []core.BatchItemResult{},
	}}
	h := newTestHandler(svc)

	body, contentType := multipartImport(t, "lot.xlsx", []byte("workbook-bytes"))
	req := authed(t, http.MethodPost, "/api/products/batch/import", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "workbook-bytes", string(svc.imported))
	assert.Equal(t, 3, svc.importReq.SupplierID)

	body, contentType = multipartImport(t, "lot.csv", []byte("123456"))
	req = authed(t, http.MethodPost, "/api/products/batch/import", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecoverer(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(&stubService{}).ServeHTTP(rec, authed(t, http.MethodGet, "/api/products/5", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rec).Code)
}

func TestCORS(t *testing.T) {
	h := newTestHandler(&stubService{})

	req := httptest.NewRequest(http.MethodOptions, "/api/sales", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSchemas(t *testing.T) {
	h := newTestHandler(&stubService{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(t, http.MethodGet, "/api/schemas/sale", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"object"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(t, http.MethodGet, "/api/schemas/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestBodyLimit(t *testing.T) {
	h := NewHandler(&stubService{}, nil, Options{JWTSecret: testSecret, BodyLimit: 32})
	big := `{"client":{"name":"` + strings.Repeat("x", 64) + `"},"items":[]}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(t, http.MethodPost, "/api/sales", strings.NewReader(big)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
