package daemon

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// adminRouter builds the admin plane: liveness, Prometheus metrics,
// the capture log, and profile introspection.
func (d *Daemon) adminRouter() http.Handler {
	r := mux.NewRouter()
	r.Use(recoveryMiddleware(d.logger))

	r.HandleFunc("/healthz", d.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/requests", d.handleListRequests).Methods(http.MethodGet)
	r.HandleFunc("/requests", d.handleClearRequests).Methods(http.MethodDelete)
	r.HandleFunc("/profiles", d.handleProfiles).Methods(http.MethodGet)
	return r
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d *Daemon) handleListRequests(w http.ResponseWriter, r *http.Request) {
	captures := d.rec.All()
	if r.URL.Query().Get("unmatched") == "true" {
		captures = d.rec.Unmatched()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(captures),
		"requests": captures,
	})
}

func (d *Daemon) handleClearRequests(w http.ResponseWriter, _ *http.Request) {
	d.rec.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (d *Daemon) handleProfiles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active":    d.profile,
		"available": d.profiles,
	})
}
