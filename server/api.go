package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/server/log"
)

func createRouter() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/triggers", handleTrigger)
	mux.HandleFunc("POST /v1/resolve", handleResolve)
	mux.HandleFunc("GET /v1/status", handleStatus)
	mux.HandleFunc("GET /v1/results", handleResults)
	mux.HandleFunc("GET /healthz", handleHealth)
	return mux
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

type triggerRequest struct {
	Action    string    `json:"action"`
	Group     string    `json:"group"`
	Timestamp time.Time `json:"timestamp"`
}

// handleTrigger runs one invocation synchronously and responds with its
// result, whatever the outcome: a group missing on the provider side is an
// error record in the result, not an HTTP error.
func handleTrigger(w http.ResponseWriter, r *http.Request) {
	var request triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	action, err := fleet.ParseAction(request.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if request.Group == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("group is required"))
		return
	}

	trigger := fleet.Trigger{Action: action, Group: request.Group, Timestamp: request.Timestamp}
	if trigger.Timestamp.IsZero() {
		trigger.Timestamp = time.Now().UTC()
	}

	log.Info("Manual trigger received", "group", trigger.Group, "action", trigger.Action)
	writeJSON(w, http.StatusOK, invokeTrigger(r.Context(), trigger))
}

type resolveRequest struct {
	Class string `json:"class"`
}

func handleResolve(w http.ResponseWriter, r *http.Request) {
	var request resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	decision, err := fleetResolver.Resolve(r.Context(), request.Class)
	if err != nil {
		var invalidClass *fleet.InvalidInstanceClassError
		if errors.As(err, &invalidClass) {
			writeError(w, http.StatusBadRequest, err)
		} else {
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

type statusResponse struct {
	Version     string        `json:"version"`
	Provider    string        `json:"provider"`
	Project     string        `json:"project"`
	Environment string        `json:"environment"`
	StartedAt   time.Time     `json:"startedAt"`
	Groups      []groupStatus `json:"groups"`
}

type groupStatus struct {
	Name           string                      `json:"name"`
	Target         int32                       `json:"target"`
	NextStart      *time.Time                  `json:"nextStart,omitempty"`
	NextStop       *time.Time                  `json:"nextStop,omitempty"`
	LastInvocation *fleet.ReconciliationResult `json:"lastInvocation,omitempty"`
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	groups := make([]groupStatus, 0, len(fleetPlan.Groups))
	for _, name := range slices.Sorted(maps.Keys(fleetPlan.Groups)) {
		status := groupStatus{
			Name:           name,
			Target:         fleetPlan.Groups[name].Target,
			LastInvocation: results.Last(name),
		}
		start, stop := dispatcher.Upcoming(name)
		if !start.IsZero() {
			status.NextStart = &start
		}
		if !stop.IsZero() {
			status.NextStop = &stop
		}
		groups = append(groups, status)
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Version:     version,
		Provider:    fleetProvider.Name(),
		Project:     fleetPlan.Project,
		Environment: fleetPlan.Environment,
		StartedAt:   startedAt,
		Groups:      groups,
	})
}

func handleResults(w http.ResponseWriter, r *http.Request) {
	limit := 32
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, results.Recent(limit))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
