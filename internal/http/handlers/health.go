package handlers

import (
	"net/http"
)

// Health reports liveness and how queued jobs reach the worker: "redis" when
// a notifier is wired, "poll" when the worker only scans the jobs table.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	dispatch := "poll"
	if a.Notifier != nil {
		dispatch = "redis"
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok", "dispatch": dispatch})
}
