package monitoring

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"
)

// Server provides HTTP endpoints for monitoring pivot operations.
type Server struct {
	collector *MetricsCollector
	mux       *http.ServeMux
	server    *http.Server
}

// NewMonitoringServer creates a new monitoring server.
func NewMonitoringServer(collector *MetricsCollector, port int) *Server {
	mux := http.NewServeMux()

	server := &Server{
		collector: collector,
		mux:       mux,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second, //nolint:mnd // Standard timeout value
		},
	}

	mux.HandleFunc("/metrics", server.handleMetrics)
	mux.HandleFunc("/metrics/summary", server.handleSummary)
	mux.HandleFunc("/health", server.handleHealth)
	mux.HandleFunc("/dashboard", server.handleDashboard)

	return server
}

// Handler exposes the monitoring routes for mounting on another mux.
func (ms *Server) Handler() http.Handler {
	return ms.mux
}

// Start starts the monitoring server.
func (ms *Server) Start() error {
	return ms.server.ListenAndServe()
}

// Stop stops the monitoring server.
func (ms *Server) Stop() error {
	return ms.server.Close()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// handleMetrics serves the metrics endpoint.
func (ms *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, ms.collector.GetMetrics())
}

// handleSummary serves aggregate statistics.
func (ms *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, ms.collector.GetSummary())
}

// handleHealth serves the health check endpoint.
func (ms *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"enabled":   ms.collector.IsEnabled(),
	})
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Crosstab Pivot Monitoring</title>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { color: #2c3e50; border-bottom: 2px solid #3498db; padding-bottom: 10px; }
        .summary { background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0; }
        .metrics-table { width: 100%; border-collapse: collapse; margin: 20px 0; }
        .metrics-table th, .metrics-table td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        .metrics-table th { background-color: #f2f2f2; }
    </style>
</head>
<body>
    <h1 class="header">Crosstab Pivot Monitoring Dashboard</h1>
    <div class="summary">
        <p><strong>Status:</strong> {{if .Enabled}}Enabled{{else}}Disabled{{end}}</p>
        <p><strong>Total Operations:</strong> {{.Summary.TotalOperations}}</p>
        <p><strong>Average Duration:</strong> {{.Summary.AverageDuration}}</p>
        <p><strong>Total Records Processed:</strong> {{.Summary.TotalRecords}}</p>
        <p><strong>Cache Hits:</strong> {{.Summary.CacheHits}}</p>
        <p><strong>Failures:</strong> {{.Summary.Failures}}</p>
    </div>
    <h2>Recent Operations</h2>
    <table class="metrics-table">
        <thead><tr><th>Operation</th><th>Duration</th><th>Records</th><th>Cached</th><th>Failed</th></tr></thead>
        <tbody>
        {{range .Metrics}}<tr><td>{{.Operation}}</td><td>{{.Duration}}</td><td>{{.RecordsProcessed}}</td><td>{{.Cached}}</td><td>{{.Failed}}</td></tr>
        {{end}}</tbody>
    </table>
</body>
</html>`))

// handleDashboard serves a simple HTML dashboard.
func (ms *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	data := struct {
		Enabled bool
		Summary MetricsSummary
		Metrics []OperationMetrics
	}{
		Enabled: ms.collector.IsEnabled(),
		Summary: ms.collector.GetSummary(),
		Metrics: ms.collector.GetMetrics(),
	}
	if err := dashboardTemplate.Execute(w, data); err != nil {
		http.Error(w, "Failed to write dashboard", http.StatusInternalServerError)
	}
}
