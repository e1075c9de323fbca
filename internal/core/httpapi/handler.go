// Package httpapi is the JSON/HTTP gateway over QuoteService.
//
// Routes mirror the gRPC QuoteAPI methods one to one. Errors are mapped
// through the same gRPC codes so both front ends agree on semantics:
//
//	INVALID_ARGUMENT  -> 400
//	NOT_FOUND         -> 404
//	DEADLINE_EXCEEDED -> 504
//	UNAVAILABLE       -> 503
//	anything else     -> 500
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/codes"

	"github.com/solatis/quotekeeper/internal/core/api"
	"github.com/solatis/quotekeeper/internal/quote"
	"github.com/solatis/quotekeeper/internal/types"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Pinger reports store health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the HTTP handlers.
type Handler struct {
	svc    *api.QuoteService
	health Pinger
	logger *slog.Logger
}

// NewHandler creates handlers over svc. health may be nil, in which case
// /healthz always reports ok.
func NewHandler(svc *api.QuoteService, health Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, health: health, logger: logger}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPStatus maps a gRPC code to an HTTP status.
func HTTPStatus(c codes.Code) int {
	switch c {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Canceled:
		return 499
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("write response failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := api.Code(err)
	status := HTTPStatus(code)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		if code == codes.Internal {
			msg = "internal error"
		}
	}
	h.writeJSON(w, status, errorResponse{Error: msg, Code: code.String()})
}

// decode reads a JSON body into dest. Malformed bodies are input errors.
func decode(r *http.Request, dest any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return types.InputError("body", err.Error())
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return types.InputError("body", fmt.Sprintf("malformed JSON: %v", err))
	}
	return nil
}

// decodeRule reads a rule body. Malformed bodies are rule errors.
func decodeRule(r *http.Request, dest any) error {
	if err := decode(r, dest); err != nil {
		var ve *types.ValidationError
		if errors.As(err, &ve) {
			return types.RuleError(ve.Field, ve.Reason)
		}
		return err
	}
	return nil
}

// CalculateQuote handles POST /api/quotes/calculate.
func (h *Handler) CalculateQuote(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, types.InputError("body", err.Error()))
		return
	}
	in, err := quote.DecodeInput(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.svc.CalculateQuote(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// ListQuotes handles GET /api/quotes?limit=&offset=.
func (h *Handler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	qs, err := h.svc.ListQuotes(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.ListQuotesResponse{Quotes: qs})
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, types.InputError(name, "must be an integer")
	}
	return n, nil
}

// GetQuote handles GET /api/quotes/{id}.
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.GetQuote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.QuoteResponse{Quote: q})
}

// ListRules handles GET /api/rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rs, err := h.svc.ListRules(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.ListRulesResponse{Rules: rs})
}

// GetRule handles GET /api/rules/{id}.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.svc.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.RuleResponse{Rule: rule})
}

// SaveRule handles POST /api/rules (create or update by id) and
// PUT /api/rules/{id}.
func (h *Handler) SaveRule(w http.ResponseWriter, r *http.Request) {
	var rec types.RuleRecord
	if err := decodeRule(r, &rec); err != nil {
		h.writeError(w, r, err)
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		rec.ID = id
	}
	status := http.StatusCreated
	if rec.ID != "" {
		status = http.StatusOK
	}
	rule, err := h.svc.SaveRule(r.Context(), rec)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, status, api.RuleResponse{Rule: rule})
}

// DeleteRule handles DELETE /api/rules/{id}.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteRule(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestRule handles POST /api/rules/test.
func (h *Handler) TestRule(w http.ResponseWriter, r *http.Request) {
	var req api.TestRuleRequest
	if err := decodeRule(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	traces, err := h.svc.TestRule(r.Context(), req.Rule, req.Quotes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.TestRuleResponse{Traces: traces})
}

// ListFields handles GET /api/fields.
func (h *Handler) ListFields(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Fields())
}

// FieldOptions handles GET /api/fields/{type}/options.
func (h *Handler) FieldOptions(w http.ResponseWriter, r *http.Request) {
	ft := chi.URLParam(r, "type")
	opts, err := h.svc.FieldOptions(r.Context(), ft)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.FieldOptionsResponse{FieldType: ft, Options: opts})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "health check failed", "error", err)
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
