package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrometheusHandler(t *testing.T) {
	m := New()
	m.Inc(RelayForwarded)
	m.Inc(RelayForwarded)
	m.Inc(RelayRecipientOffline)

	rec := httptest.NewRecorder()
	PrometheusHandler(m).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	if !strings.Contains(out, "# TYPE peervc_events_total counter") {
		t.Fatalf("missing TYPE line in output:\n%s", out)
	}
	if !strings.Contains(out, `peervc_events_total{event="relay_forwarded"} 2`) {
		t.Fatalf("missing relay_forwarded counter in output:\n%s", out)
	}
	if !strings.Contains(out, `peervc_events_total{event="relay_recipient_offline"} 1`) {
		t.Fatalf("missing relay_recipient_offline counter in output:\n%s", out)
	}
}

func TestPrometheusHandlerNilMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	PrometheusHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want 500", rec.Code)
	}
}
