package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hivemindhq/decision-engine/internal/config"
)

func newTestCollector() *Collector {
	cfg := &config.MetricsConfig{Namespace: "decision", Subsystem: "engine"}
	return NewCollector(cfg, prometheus.NewRegistry(), func() float64 { return 3 })
}

func TestCollectorExposesEvaluations(t *testing.T) {
	c := newTestCollector()

	c.RecordEvaluation(OutcomeMatched, 50*time.Microsecond)
	c.RecordEvaluation(OutcomeDefault, 80*time.Microsecond)
	c.RecordEvaluation(OutcomeNoMatch, 30*time.Microsecond)

	body := scrape(t, c)

	for _, want := range []string{
		`decision_engine_evaluations_total{outcome="matched"} 1`,
		`decision_engine_evaluations_total{outcome="default"} 1`,
		`decision_engine_evaluations_total{outcome="no_match"} 1`,
		`decision_engine_tables_registered 3`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q\n%s", want, body)
		}
	}
}

func TestCollectorStatusClasses(t *testing.T) {
	c := newTestCollector()

	c.RecordResponse(200)
	c.RecordResponse(201)
	c.RecordResponse(404)
	c.RecordResponse(500)

	body := scrape(t, c)

	for _, want := range []string{
		`decision_engine_http_responses_total{class="2xx"} 2`,
		`decision_engine_http_responses_total{class="4xx"} 1`,
		`decision_engine_http_responses_total{class="5xx"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}
