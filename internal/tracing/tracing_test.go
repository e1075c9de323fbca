package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInit_Disabled(t *testing.T) {
	p, err := Init(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Init() error = %v, want nil", err)
	}
	ctx, span := Start(context.Background(), "calculate")
	if ctx == nil {
		t.Fatalf("Start() returned nil context")
	}
	End(span, errors.New("ignored"))
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v, want nil", err)
	}
}

func TestMiddleware_PassesStatus(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err != nil {
		t.Fatalf("Init() error = %v, want nil", err)
	}
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}
