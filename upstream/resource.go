package upstream

import (
	"errors"
	"fmt"
)

// Resource is a logical name for an upstream analytics API endpoint. Handlers
// speak in resources; only this package knows the concrete upstream paths.
type Resource string

const (
	ResourceAlerts       Resource = "alerts"
	ResourceDetectionRun Resource = "detection_run"
	ResourceEntityScores Resource = "entity_scores"
	ResourceRiskRecalc   Resource = "risk_recalc"
	ResourceLogUpload    Resource = "log_upload"
	ResourceThreatIntel  Resource = "threat_intel"

	ResourceLogsNetwork     Resource = "logs_network"
	ResourceLogsAuth        Resource = "logs_auth"
	ResourceLogsAssets      Resource = "logs_assets"
	ResourceLogsThreatIntel Resource = "logs_threat_intel"
)

// resourcePaths maps each logical resource to its upstream path.
var resourcePaths = map[Resource]string{
	ResourceAlerts:       "/api/detection/alerts",
	ResourceDetectionRun: "/api/detection/run",
	ResourceEntityScores: "/api/risk/scores",
	ResourceRiskRecalc:   "/api/risk/calculate",
	ResourceLogUpload:    "/api/ingestion/upload",
	ResourceThreatIntel:  "/api/threat-intel",

	ResourceLogsNetwork:     "/api/ingestion/network",
	ResourceLogsAuth:        "/api/ingestion/auth",
	ResourceLogsAssets:      "/api/ingestion/assets",
	ResourceLogsThreatIntel: "/api/ingestion/threat_intel",
}

// logResources maps browser-facing log type names to log resources. Anything
// outside this fixed set is rejected before any network I/O.
var logResources = map[string]Resource{
	"network":      ResourceLogsNetwork,
	"auth":         ResourceLogsAuth,
	"assets":       ResourceLogsAssets,
	"threat_intel": ResourceLogsThreatIntel,
}

// ErrUnknownLogType is returned for log type values outside the fixed set.
var ErrUnknownLogType = errors.New("unknown log type")

// LogResource resolves a log type value from the request path to a resource.
func LogResource(logType string) (Resource, error) {
	res, ok := logResources[logType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLogType, logType)
	}
	return res, nil
}

// Path returns the upstream path for the resource.
func (r Resource) Path() (string, error) {
	p, ok := resourcePaths[r]
	if !ok {
		return "", fmt.Errorf("unmapped upstream resource: %q", r)
	}
	return p, nil
}
