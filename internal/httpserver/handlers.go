package httpserver

import (
	"encoding/json"
	"net/http"
	"time"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	Commit        string  `json:"commit,omitempty"`
	BuildDate     string  `json:"build_date,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
	KnownUsers    int     `json:"known_users"`
}

func healthz(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		users := 0
		if d.TokenCount != nil {
			users = d.TokenCount()
		}
		_ = json.NewEncoder(w).Encode(healthzResponse{
			Status:        "ok",
			UptimeSeconds: time.Since(d.StartTime).Seconds(),
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
			KnownUsers:    users,
		})
	}
}

type readyzResponse struct {
	Ready   bool   `json:"ready"`
	Readeck string `json:"readeck"`
}

// readyz reports ready only when the upstream Readeck instance answers.
func readyz(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		resp := readyzResponse{Ready: true, Readeck: "ok"}
		if d.CheckReadeck != nil {
			if err := d.CheckReadeck(r.Context()); err != nil {
				resp.Ready = false
				resp.Readeck = err.Error()
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
