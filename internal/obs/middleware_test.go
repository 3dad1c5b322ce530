package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/noah-isme/backend-licence/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("licence", []float64{10, 1}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/configurations", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/configurations"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rr.Code)
	}
	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodPost, "/api/v1/configurations", "201"))
	if total != 1 {
		t.Fatalf("expected counter to be 1, got %v", total)
	}
	if samples := testutil.CollectAndCount(metrics.ReqDur); samples == 0 {
		t.Fatalf("expected histogram sample")
	}
	if val := testutil.ToFloat64(metrics.InFlight); val != 0 {
		t.Fatalf("expected no in-flight requests, got %v", val)
	}
}

func TestHTTPMetricsReuseRegistered(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("licence", nil, registry)
	second := obs.NewHTTPMetrics("licence", nil, registry)
	if first.ReqTotal != second.ReqTotal {
		t.Fatalf("expected registered counter to be reused")
	}
}

func TestUnknownRouteLabel(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("licence", nil, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.NotFoundHandler())
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if got := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "unknown", "404")); got != 1 {
		t.Fatalf("expected unknown route to be counted, got %v", got)
	}
}

func TestDomainMetrics(t *testing.T) {
	obs.MustRegisterDomainMetrics("obs_test", prometheus.NewRegistry())
	before := testutil.ToFloat64(obs.CheckoutItemsTotal.WithLabelValues("stale"))
	obs.ObserveCheckoutItem("stale")
	if got := testutil.ToFloat64(obs.CheckoutItemsTotal.WithLabelValues("stale")); got != before+1 {
		t.Fatalf("expected checkout counter to increase, got %v", got)
	}
}

func TestParseBucketsCSV(t *testing.T) {
	got := obs.ParseBucketsCSV(" 5, x, -1, 25 ,0")
	if len(got) != 2 || got[0] != 5 || got[1] != 25 {
		t.Fatalf("unexpected buckets %v", got)
	}
	if obs.ParseBucketsCSV("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}
