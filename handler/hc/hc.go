package hc

import (
	"encoding/json"
	"net/http"
	"time"
)

type Info struct {
	Version    string
	Commit     string
	Collection string
}

func Handler(info Info) http.Handler {
	t := time.Now()
	fn := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"version":    info.Version,
			"commit":     info.Commit,
			"collection": info.Collection,
			"uptime":     time.Since(t).String(),
		})
	}

	return http.HandlerFunc(fn)
}
