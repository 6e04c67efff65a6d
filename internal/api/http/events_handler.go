package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/lumalearn/assess/internal/eventlog"
)

// RecentEventsHandler exposes the event log tail for dashboards.
func RecentEventsHandler(repo *eventlog.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		out, err := repo.Recent(r.Context(), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if out == nil {
			out = []eventlog.Event{}
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
