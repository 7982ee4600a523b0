package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ironsheep/pixel-cache/internal/logging"
)

// Handler returns the HTTP handler serving /metrics and /health.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// ServeMetrics starts an HTTP server exposing Handler on addr (e.g. ":9100")
// in the background.
func ServeMetrics(addr string) {
	logging.Logger().Info("metrics server starting", "addr", addr)
	go func() {
		if err := http.ListenAndServe(addr, Handler()); err != nil {
			logging.Logger().Error("metrics server stopped", "err", err)
		}
	}()
}
