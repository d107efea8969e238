package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"reseller-ledger/internal/app"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Options configures the HTTP adapter.
type Options struct {
	AllowedOrigins string
	JWTSecret      string
	TokenTTL       time.Duration
	BodyLimit      int64
	// InsecureCookies drops the Secure flag on the auth cookie for plain-HTTP development.
	InsecureCookies bool
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	logger    *zap.Logger
	jwtSecret string
	tokenTTL  time.Duration
	secure    bool
}

// maxUploadBytes caps multipart spreadsheet uploads.
const maxUploadBytes = 10 << 20

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, logger *zap.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = 1 << 20
	}

	h := &Handler{
		svc:       svc,
		logger:    logger,
		jwtSecret: opts.JWTSecret,
		tokenTTL:  opts.TokenTTL,
		secure:    !opts.InsecureCookies,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(opts.AllowedOrigins))

	r.Route("/api", func(r chi.Router) {
		// ── Public ────────────────────────────────────────────────────────────
		r.Get("/health", h.health)
		r.With(RequestBodyLimit(opts.BodyLimit)).Post("/auth/login", h.login)
		r.Post("/auth/logout", h.logout)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)

			// Spreadsheet upload: multipart, limit managed inside the handler.
			r.Post("/products/batch/import", h.importSerialBatch)

			r.Group(func(r chi.Router) {
				r.Use(RequestBodyLimit(opts.BodyLimit))

				r.Get("/auth/me", h.me)

				// ── Inventory ─────────────────────────────────────────────────
				r.Get("/products", h.listProducts)
				r.Post("/products/batch", h.addSerialBatch)
				r.Get("/products/{id}", h.getProduct)
				r.Put("/products/{id}", h.updateProduct)
				r.Delete("/products/{id}", h.deleteProduct)
				r.Patch("/products/{id}/status", h.setProductStatus)

				// ── Reports ───────────────────────────────────────────────────
				r.Get("/reports/stock-summary", h.stockSummary)
				r.Get("/reports/profit", h.profitReport)
				r.Get("/reports/profit/daily", h.dailyProfit)

				// ── Purchases ─────────────────────────────────────────────────
				r.Get("/purchases", h.listPurchases)
				r.Post("/purchases", h.recordPurchase)
				r.Post("/purchases/direct-sale", h.recordDirectSale)
				r.Post("/purchases/intake", h.draftPurchase)

				// ── Sales & invoices ──────────────────────────────────────────
				r.Get("/sales", h.listSales)
				r.Post("/sales", h.createSale)
				r.Get("/sales/{id}", h.getSale)
				r.Get("/invoices", h.listInvoices)
				r.Post("/invoices", h.createInvoice)
				r.Get("/invoices/{id}", h.getInvoice)
				r.Put("/invoices/{id}/payment", h.recordPayment)
				r.Put("/invoices/{id}/cancel", h.cancelInvoice)
				r.Post("/invoices/{id}/return-item", h.returnItem)

				// ── Returns & replacements ────────────────────────────────────
				r.Get("/returns", h.listReturns)
				r.Post("/returns/send-to-supplier", h.sendToSupplier)
				r.Get("/replacements", h.listReplacements)
				r.Post("/replacements/resolve", h.resolveReplacement)
				r.Post("/replacements/resolve-batch", h.resolveReplacementBatch)

				// ── Clients & suppliers ───────────────────────────────────────
				r.Get("/clients", h.listClients)
				r.Post("/clients", h.createClient)
				r.Get("/clients/{id}", h.getClient)
				r.Put("/clients/{id}", h.updateClient)
				r.Delete("/clients/{id}", h.deleteClient)
				r.Get("/suppliers", h.listSuppliers)
				r.Post("/suppliers", h.createSupplier)
				r.Get("/suppliers/{id}", h.getSupplier)
				r.Put("/suppliers/{id}", h.updateSupplier)
				r.Delete("/suppliers/{id}", h.deleteSupplier)

				// ── Schemas ───────────────────────────────────────────────────
				r.Get("/schemas", h.listSchemas)
				r.Get("/schemas/{name}", h.getSchema)
			})
		})
	})

	h.router = r
	return r
}

// health reports whether the database answers.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	if err := h.svc.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeJSONStatus(w, http.StatusServiceUnavailable, response{Status: "degraded", Database: "unreachable"})
		return
	}
	writeJSON(w, response{Status: "ok", Database: "ok"})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// pathID parses the {id} URL parameter, writing a 400 when it is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid id "+strconv.Quote(chi.URLParam(r, "id")), "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryInt returns a pointer to the integer query parameter key, nil when absent.
func queryInt(r *http.Request, key string) (*int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, errors.New(key + " must be an integer")
	}
	return &n, nil
}

// queryDate parses a YYYY-MM-DD query parameter as a local-midnight time.
func queryDate(r *http.Request, key string) (*time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return nil, errors.New(key + " must be a YYYY-MM-DD date")
	}
	return &t, nil
}

// dateRange reads from/to; to is inclusive of its whole day.
func dateRange(r *http.Request) (from, to *time.Time, err error) {
	if from, err = queryDate(r, "from"); err != nil {
		return nil, nil, err
	}
	if to, err = queryDate(r, "to"); err != nil {
		return nil, nil, err
	}
	if to != nil {
		end := to.AddDate(0, 0, 1)
		to = &end
	}
	return from, to, nil
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
