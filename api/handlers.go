package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"argus/upstream"
)

// relay writes a forwarder result to the client: upstream status and body
// verbatim, or the normalized error envelope on transport failure.
func relay(w http.ResponseWriter, result *upstream.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.Status)
	_, _ = w.Write(result.Body)
}

// getAlerts godoc
//
//	@Summary	List detection alerts
//	@Tags		alerts
//	@Produce	json
//	@Param		status	query	string	false	"Filter by alert status"
//	@Param		limit	query	int		false	"Maximum alerts to return"
//	@Success	200
//	@Security	SessionCookie
//	@Router		/api/alerts [get]
func (a *API) getAlerts(w http.ResponseWriter, r *http.Request) {
	result := a.forwarder.Do(r.Context(), http.MethodGet, upstream.ResourceAlerts, r.URL.Query(), nil, "")
	relay(w, result)
}

type alertStatusRequest struct {
	AlertID string `json:"alertId"`
	Status  string `json:"status"`
}

// updateAlertStatus godoc
//
//	@Summary	Update an alert's triage status
//	@Tags		alerts
//	@Accept		json
//	@Produce	json
//	@Param		update	body	alertStatusRequest	true	"Alert status update"
//	@Success	200
//	@Failure	400	{object}	map[string]string
//	@Security	SessionCookie
//	@Router		/api/alerts [put]
func (a *API) updateAlertStatus(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.config.Security.JSONBodyLimit))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	var req alertStatusRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}
	if req.AlertID == "" || req.Status == "" {
		writeError(w, http.StatusBadRequest, "alertId and status are required")
		return
	}

	result := a.forwarder.Do(r.Context(), http.MethodPut, upstream.ResourceAlerts, r.URL.Query(),
		bytes.NewReader(raw), "application/json")
	relay(w, result)
}

// runDetection godoc
//
//	@Summary	Trigger a detection run (admin only)
//	@Tags		alerts
//	@Produce	json
//	@Success	200
//	@Security	SessionCookie
//	@Router		/api/alerts [post]
func (a *API) runDetection(w http.ResponseWriter, r *http.Request) {
	result := a.forwarder.Do(r.Context(), http.MethodPost, upstream.ResourceDetectionRun, r.URL.Query(),
		http.MaxBytesReader(w, r.Body, a.config.Security.JSONBodyLimit), "application/json")
	relay(w, result)
}

// getEntityScores godoc
//
//	@Summary	List entity risk scores
//	@Tags		entities
//	@Produce	json
//	@Param		entity_type	query	string	false	"Entity type filter, e.g. IP or user"
//	@Success	200
//	@Security	SessionCookie
//	@Router		/api/entities [get]
func (a *API) getEntityScores(w http.ResponseWriter, r *http.Request) {
	result := a.forwarder.Do(r.Context(), http.MethodGet, upstream.ResourceEntityScores, r.URL.Query(), nil, "")
	relay(w, result)
}

type riskRecalcRequest struct {
	EntityType string `json:"entityType"`
}

// recalculateRisk godoc
//
//	@Summary	Trigger a risk recalculation (admin only)
//	@Tags		entities
//	@Accept		json
//	@Produce	json
//	@Param		scope	body	riskRecalcRequest	false	"Optional entity type scope"
//	@Success	200
//	@Security	SessionCookie
//	@Router		/api/entities [post]
func (a *API) recalculateRisk(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.config.Security.JSONBodyLimit))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(raw) > 0 {
		var req riskRecalcRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			writeError(w, http.StatusBadRequest, "request body is not valid JSON")
			return
		}
		// The upstream takes the scope as a query parameter, not a body.
		if req.EntityType != "" {
			params.Set("entity_type", req.EntityType)
		}
	}

	result := a.forwarder.Do(r.Context(), http.MethodPost, upstream.ResourceRiskRecalc, params, nil, "")
	relay(w, result)
}

// getLogs godoc
//
//	@Summary	Query ingested logs by type
//	@Tags		logs
//	@Produce	json
//	@Param		type	path	string	true	"Log type: network, auth, assets, threat_intel"
//	@Success	200
//	@Failure	400	{object}	map[string]string
//	@Security	SessionCookie
//	@Router		/api/logs/{type} [get]
func (a *API) getLogs(w http.ResponseWriter, r *http.Request) {
	logType := mux.Vars(r)["type"]
	resource, err := upstream.LogResource(logType)
	if err != nil {
		// Reject before any upstream traffic happens.
		writeError(w, http.StatusBadRequest, "unknown log type: "+logType)
		return
	}
	result := a.forwarder.Do(r.Context(), http.MethodGet, resource, r.URL.Query(), nil, "")
	relay(w, result)
}

// uploadLogs godoc
//
//	@Summary	Upload a log file for ingestion (admin only)
//	@Tags		logs
//	@Accept		multipart/form-data
//	@Produce	json
//	@Success	200
//	@Security	SessionCookie
//	@Router		/api/logs/upload [post]
func (a *API) uploadLogs(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > a.config.Security.MaxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
		return
	}
	// The multipart body streams through untouched; the upstream parses it.
	// MaxBytesReader backstops requests that undeclare their length.
	body := http.MaxBytesReader(w, r.Body, a.config.Security.MaxUploadSize)
	result := a.forwarder.Do(r.Context(), http.MethodPost, upstream.ResourceLogUpload, r.URL.Query(),
		body, r.Header.Get("Content-Type"))
	relay(w, result)
}

// getThreatIntel godoc
//
//	@Summary	List threat intelligence indicators
//	@Tags		threat-intel
//	@Produce	json
//	@Success	200
//	@Security	SessionCookie
//	@Router		/api/threat-intel [get]
func (a *API) getThreatIntel(w http.ResponseWriter, r *http.Request) {
	result := a.forwarder.Do(r.Context(), http.MethodGet, upstream.ResourceThreatIntel, r.URL.Query(), nil, "")
	relay(w, result)
}

// createThreatIntel godoc
//
//	@Summary	Add a threat intelligence indicator (admin only)
//	@Tags		threat-intel
//	@Accept		json
//	@Produce	json
//	@Success	201
//	@Security	SessionCookie
//	@Router		/api/threat-intel [post]
func (a *API) createThreatIntel(w http.ResponseWriter, r *http.Request) {
	result := a.forwarder.Do(r.Context(), http.MethodPost, upstream.ResourceThreatIntel, r.URL.Query(),
		http.MaxBytesReader(w, r.Body, a.config.Security.JSONBodyLimit), "application/json")
	relay(w, result)
}

// deleteThreatIntel godoc
//
//	@Summary	Remove a threat intelligence indicator (admin only)
//	@Tags		threat-intel
//	@Produce	json
//	@Param		indicator	query	string	true	"Indicator value to remove"
//	@Success	200
//	@Failure	400	{object}	map[string]string
//	@Security	SessionCookie
//	@Router		/api/threat-intel [delete]
func (a *API) deleteThreatIntel(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	if params.Get("indicator") == "" {
		writeError(w, http.StatusBadRequest, "indicator parameter is required")
		return
	}
	result := a.forwarder.Do(r.Context(), http.MethodDelete, upstream.ResourceThreatIntel, params, nil, "")
	relay(w, result)
}

// loginPage serves the login page the edge gate redirects browsers to.
func (a *API) loginPage(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, a.config.Web.StaticDir+"/login.html")
}

// dashboardPage serves the dashboard shell. Page routes redirect instead of
// answering 401: a browser with a dead session goes back to the login page.
func (a *API) dashboardPage(w http.ResponseWriter, r *http.Request) {
	if a.verifySession(w, r) == nil {
		http.Redirect(w, r, a.config.Web.LoginPath, http.StatusFound)
		return
	}
	http.ServeFile(w, r, a.config.Web.StaticDir+"/index.html")
}

// healthCheck godoc
//
//	@Summary	Liveness and dependency health
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/healthz [get]
func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	if a.mongoPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.mongoPing(ctx); err != nil {
			status["status"] = "degraded"
			status["mongodb"] = "unreachable"
			code = http.StatusServiceUnavailable
			if !errors.Is(err, context.Canceled) {
				a.logger.Warnw("Health check: MongoDB unreachable", "error", err)
			}
		} else {
			status["mongodb"] = "ok"
		}
	}
	respondJSON(w, code, status)
}
