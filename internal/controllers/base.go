package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/drstein77/smartbilling/internal/cart"
	"github.com/drstein77/smartbilling/internal/catalog"
	"github.com/drstein77/smartbilling/internal/checkout"
	"github.com/drstein77/smartbilling/internal/compress"
	"github.com/drstein77/smartbilling/internal/middleware"
	"github.com/drstein77/smartbilling/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const exportFileName = "catalog.csv"

// Session is the checkout flow driven by the intent endpoints.
type Session interface {
	Snapshot() checkout.Snapshot
	Scan(code string) (cart.Line, error)
	RemoveItem(productID string) (bool, error)
	Confirm() bool
	Back() error
	SelectPayment(ctx context.Context, method checkout.PaymentMethod) error
	PressDigit(d rune) (bool, error)
	Backspace() (bool, error)
	SubmitPin(ctx context.Context) (<-chan checkout.Outcome, error)
	SubmitPinValue(ctx context.Context, pin string) (<-chan checkout.Outcome, error)
	Done() error
}

// Catalog interface for product lookups and health
type Catalog interface {
	Products() []catalog.Product
	Source() string
	Ping(ctx context.Context) bool
}

// Log interface for logging
type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// BaseController struct for handling requests
type BaseController struct {
	session Session
	catalog Catalog
	metrics http.Handler
	log     Log
}

// NewBaseController creates a new BaseController instance. metrics may be nil,
// in which case /metrics is not mounted.
func NewBaseController(session Session, catalog Catalog, metrics http.Handler, log Log) *BaseController {
	return &BaseController{
		session: session,
		catalog: catalog,
		metrics: metrics,
		log:     log,
	}
}

// Route sets up the routes for the BaseController
func (h *BaseController) Route() *chi.Mux {
	r := chi.NewRouter()

	r.Route("/api/v1/session", func(r chi.Router) {
		r.Get("/", h.getSession)
		r.Post("/scan", h.postScan)
		r.Delete("/items/{productID}", h.deleteItem)
		r.Post("/confirm", h.postConfirm)
		r.Post("/back", h.postBack)
		r.Post("/payment", h.postPayment)
		r.Post("/pin/digits", h.postDigit)
		r.Delete("/pin/digits", h.deleteDigit)
		r.Post("/pin/submit", h.postPinSubmit)
		r.Post("/done", h.postDone)
	})

	r.Get("/api/v1/catalog", h.getCatalog)
	r.Group(func(r chi.Router) {
		r.Use(middleware.ArchiveTypeMiddleware)
		r.Get("/api/v1/catalog/export", h.getCatalogExport)
	})

	r.Get("/healthz", h.getHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	return r
}

func (h *BaseController) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view())
}

func (h *BaseController) postScan(w http.ResponseWriter, r *http.Request) {
	var req models.ScanRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := h.session.Scan(req.Code); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

func (h *BaseController) deleteItem(w http.ResponseWriter, r *http.Request) {
	if _, err := h.session.RemoveItem(chi.URLParam(r, "productID")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

func (h *BaseController) postConfirm(w http.ResponseWriter, r *http.Request) {
	transitioned := h.session.Confirm()
	writeJSON(w, http.StatusOK, models.ConfirmResponse{
		Transitioned: transitioned,
		Session:      h.view(),
	})
}

func (h *BaseController) postBack(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Back(); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

func (h *BaseController) postPayment(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	method, err := checkout.ParsePaymentMethod(req.Method)
	if err != nil {
		h.writeError(w, &ValidationError{Message: err.Error()})
		return
	}
	if err := h.session.SelectPayment(r.Context(), method); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

func (h *BaseController) postDigit(w http.ResponseWriter, r *http.Request) {
	var req models.DigitRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := h.session.PressDigit(rune(req.Digit[0])); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

func (h *BaseController) deleteDigit(w http.ResponseWriter, r *http.Request) {
	if _, err := h.session.Backspace(); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

// postPinSubmit blocks until the verifier answers. If the client goes away
// first, verification still completes and the outcome lands in the session.
func (h *BaseController) postPinSubmit(w http.ResponseWriter, r *http.Request) {
	var req models.PinSubmitRequest
	if r.ContentLength != 0 {
		if err := DecodeJSONBody(r, &req); err != nil {
			h.writeError(w, err)
			return
		}
	}
	var (
		done <-chan checkout.Outcome
		err  error
	)
	if req.Pin != "" {
		done, err = h.session.SubmitPinValue(r.Context(), req.Pin)
	} else {
		done, err = h.session.SubmitPin(r.Context())
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	select {
	case outcome := <-done:
		writeJSON(w, http.StatusOK, models.PinSubmitResponse{
			Outcome: outcome.String(),
			Session: h.view(),
		})
	case <-r.Context().Done():
		writeJSON(w, http.StatusAccepted, models.PinSubmitResponse{
			Outcome: checkout.OutcomePending.String(),
			Session: h.view(),
		})
	}
}

func (h *BaseController) postDone(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Done(); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

func (h *BaseController) getCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.NewProductViews(h.catalog.Products()))
}

func (h *BaseController) getCatalogExport(w http.ResponseWriter, r *http.Request) {
	archiveType := middleware.ArchiveTypeFromContext(r.Context())

	w.Header().Set("Content-Type", contentType(archiveType))
	w.Header().Set("Content-Disposition", `attachment; filename="catalog.`+string(archiveType)+`"`)

	aw, err := compress.NewWriter(archiveType, w, exportFileName)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := catalog.WriteCSV(aw, h.catalog.Products()); err != nil {
		h.log.Error("failed to export catalog", zap.Error(err))
		return
	}
	if err := aw.Close(); err != nil {
		h.log.Error("failed to finish catalog archive", zap.Error(err))
	}
}

func contentType(kind compress.ArchiveType) string {
	if kind == compress.ArchiveTar {
		return "application/x-tar"
	}
	return "application/zip"
}

func (h *BaseController) getHealth(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status:   "ok",
		Catalog:  h.catalog.Source(),
		Products: len(h.catalog.Products()),
		Database: h.catalog.Ping(r.Context()),
	}
	status := http.StatusOK
	if !resp.Database {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (h *BaseController) view() models.SessionView {
	return models.NewSessionView(h.session.Snapshot())
}

// writeError maps domain errors to a status and attaches the current session.
func (h *BaseController) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
	}

	view := h.view()
	resp := models.ErrorResponse{Error: err.Error(), Session: &view}
	var verr *ValidationError
	if errors.As(err, &verr) {
		resp.Error = verr.Message
		resp.Details = verr.Details
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrInvalidPinFormat),
		errors.Is(err, checkout.ErrInvalidPaymentMethod):
		return http.StatusBadRequest
	case errors.Is(err, checkout.ErrInvalidTransition),
		errors.Is(err, checkout.ErrVerificationInFlight),
		errors.Is(err, checkout.ErrPinIncomplete):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrPaymentNotApproved):
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}
