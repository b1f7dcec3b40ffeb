package http

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"gastos/internal/log"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

const readyTimeout = 2 * time.Second

type statusBody struct {
	Status string `json:"status"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusBody{Status: "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, statusBody{Status: "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
		writeJSON(w, http.StatusServiceUnavailable, statusBody{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, statusBody{Status: "ready"})
}

// handleMetrics renders the in-process counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder

	tm := s.tracer.GetMetrics()
	writeMetric(&b, "gastos_http_requests_total", "counter", "HTTP requests served.", tm.TotalRequests)
	writeMetric(&b, "gastos_http_server_errors_total", "counter", "HTTP responses with a 5xx status.", tm.ServerErrors)
	writeMetric(&b, "gastos_http_response_time_avg_microseconds", "gauge", "Mean response time.", tm.AverageResponseTime)

	rm := s.limiter.GetMetrics()
	writeMetric(&b, "gastos_ratelimit_rejected_total", "counter", "Requests rejected by the auth rate limiter.", rm.Rejected)
	writeMetric(&b, "gastos_ratelimit_clients", "gauge", "Clients tracked by the auth rate limiter.", rm.ClientCount)

	dm := s.detector.GetMetrics()
	writeMetric(&b, "gastos_security_suspicious_requests_total", "counter", "Requests flagged as suspicious.", dm.SuspiciousRequests)
	writeMetric(&b, "gastos_security_blocked_requests_total", "counter", "Requests blocked by method.", dm.BlockedRequests)

	if s.caches != nil {
		stats := s.caches.Stats()
		names := make([]string, 0, len(stats))
		for name := range stats {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(&b, "# HELP gastos_cache_hits_total Cache hits.")
		fmt.Fprintln(&b, "# TYPE gastos_cache_hits_total counter")
		for _, name := range names {
			fmt.Fprintf(&b, "gastos_cache_hits_total{cache=%q} %d\n", name, stats[name].Hits)
		}
		fmt.Fprintln(&b, "# HELP gastos_cache_misses_total Cache misses.")
		fmt.Fprintln(&b, "# TYPE gastos_cache_misses_total counter")
		for _, name := range names {
			fmt.Fprintf(&b, "gastos_cache_misses_total{cache=%q} %d\n", name, stats[name].Misses)
		}
		fmt.Fprintln(&b, "# HELP gastos_cache_entries Live cache entries.")
		fmt.Fprintln(&b, "# TYPE gastos_cache_entries gauge")
		for _, name := range names {
			fmt.Fprintf(&b, "gastos_cache_entries{cache=%q} %d\n", name, stats[name].Size)
		}
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

func writeMetric(b *strings.Builder, name, kind, help string, value int64) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s %s\n%s %d\n", name, help, name, kind, name, value)
}
