package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rl1809/reseller/internal/core/domain"
	"github.com/rl1809/reseller/internal/core/service"
)

// CallerHeader carries the caller address on HTTP requests.
const CallerHeader = "X-Caller-Address"

type HTTPHandler struct {
	registryService *service.RegistryService
	logger          *zap.SugaredLogger
}

type RegisterSellerHTTPRequest struct {
	RequestID string `json:"request_id"`
	Seller    string `json:"seller"`
}

type RegistryHTTPResponse struct {
	ID          string         `json:"id"`
	Owner       domain.Address `json:"owner"`
	SellerCount uint64         `json:"seller_count"`
	CreatedAt   time.Time      `json:"created_at"`
}

type OwnerHTTPResponse struct {
	Owner domain.Address `json:"owner"`
}

type SellerHTTPResponse struct {
	Index  uint64         `json:"index"`
	Seller domain.Address `json:"seller"`
}

type ErrorHTTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewHTTPHandler(registryService *service.RegistryService, logger *zap.SugaredLogger) *HTTPHandler {
	return &HTTPHandler{registryService: registryService, logger: logger}
}

// Router mounts the API. metricsHandler may be nil.
func (h *HTTPHandler) Router(metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/health", h.HealthCheck)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/registries", func(r chi.Router) {
		r.Post("/", h.Deploy)
		r.Route("/{registryID}", func(r chi.Router) {
			r.Get("/", h.GetRegistry)
			r.Get("/owner", h.Owner)
			r.Post("/sellers", h.RegisterSeller)
			r.Get("/sellers/{index}", h.Sellers)
		})
	})

	return r
}

func (h *HTTPHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debugw("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// callerFromRequest returns the zero address when the header is absent.
func callerFromRequest(r *http.Request) (domain.Address, error) {
	raw := r.Header.Get(CallerHeader)
	if raw == "" {
		return domain.ZeroAddress, nil
	}
	return domain.ParseAddress(raw)
}

func (h *HTTPHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	reg, err := h.registryService.Deploy(r.Context(), caller)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRegistryHTTPResponse(reg))
}

func (h *HTTPHandler) GetRegistry(w http.ResponseWriter, r *http.Request) {
	reg, err := h.registryService.Registry(r.Context(), chi.URLParam(r, "registryID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRegistryHTTPResponse(reg))
}

func (h *HTTPHandler) Owner(w http.ResponseWriter, r *http.Request) {
	owner, err := h.registryService.Owner(r.Context(), chi.URLParam(r, "registryID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, OwnerHTTPResponse{Owner: owner})
}

func (h *HTTPHandler) RegisterSeller(w http.ResponseWriter, r *http.Request) {
	var req RegisterSellerHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	if req.Seller == "" {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{
			Success: false,
			Message: "missing required fields",
		})
		return
	}

	caller, err := callerFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	seller, err := domain.ParseAddress(req.Seller)
	if err != nil {
		h.writeError(w, err)
		return
	}

	index, err := h.registryService.RegisterSeller(r.Context(), req.RequestID, chi.URLParam(r, "registryID"), caller, seller)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SellerHTTPResponse{Index: index, Seller: seller})
}

func (h *HTTPHandler) Sellers(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{
			Success: false,
			Message: "index must be a non-negative integer",
		})
		return
	}

	seller, err := h.registryService.Sellers(r.Context(), chi.URLParam(r, "registryID"), index)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SellerHTTPResponse{Index: index, Seller: seller})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status, _, message := classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorw("request failed", "error", err)
	}
	var authErr *domain.AuthorizationError
	if errors.As(err, &authErr) {
		h.logger.Infow("rejected non-owner write", "caller", authErr.Caller.String())
	}

	writeJSON(w, status, ErrorHTTPResponse{
		Success: false,
		Message: message,
	})
}

func toRegistryHTTPResponse(reg *domain.Registry) RegistryHTTPResponse {
	return RegistryHTTPResponse{
		ID:          reg.ID,
		Owner:       reg.Owner,
		SellerCount: reg.SellerCount,
		CreatedAt:   reg.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
