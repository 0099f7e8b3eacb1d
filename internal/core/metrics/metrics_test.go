package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestServer_ExposesMetrics(t *testing.T) {
	StatesBuilt.Inc()
	RulesSkipped.WithLabelValues("dependee_missing").Inc()
	GuardOutcomes.WithLabelValues("stripped").Inc()

	s := NewServer("127.0.0.1", 0)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"condfields_states_built_total",
		`condfields_rules_skipped_total{reason="dependee_missing"}`,
		`condfields_guard_outcomes_total{outcome="stripped"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output misses %s", want)
		}
	}
	if s.server.Addr != "127.0.0.1:0" {
		t.Errorf("Addr = %s", s.server.Addr)
	}
}
