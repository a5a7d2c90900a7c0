package upstream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"argus/metrics"
)

// maxResponseBytes caps how much of an upstream response is buffered before it
// is relayed to the browser.
const maxResponseBytes = 32 << 20 // 32MB

// Result is the normalized outcome of a forwarded call. Status is the upstream
// status code, or 500 when the upstream never supplied one. Body is relayed
// verbatim for real upstream responses and is an {"error": ...} document for
// transport failures.
type Result struct {
	Status int
	Body   json.RawMessage
}

// Forwarder translates BFF-facing calls into requests against the external
// analytics API. It is a single-attempt pass-through: no retries, no response
// reshaping. The shared API key is appended to every call as a query parameter;
// that key is the only inter-service authentication mechanism.
type Forwarder struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.SugaredLogger
}

// NewForwarder builds a forwarder with a dedicated HTTP client. The timeout
// bounds long-running operations such as detection runs so a hung upstream
// cannot pin request-handling capacity indefinitely.
func NewForwarder(baseURL, apiKey string, timeout time.Duration, logger *zap.SugaredLogger) *Forwarder {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	return &Forwarder{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: logger,
	}
}

// Do forwards a single request to the upstream resource. params are merged
// into the query string and the shared API key is always appended. body may be
// nil for GET/DELETE; contentType must match the body (a multipart payload is
// re-streamed with its original boundary content type). The inbound request
// context propagates, so a browser abort cancels the upstream call.
//
// Do never returns a transport error to its caller: every failure is folded
// into a Result the handler can relay as-is.
func (f *Forwarder) Do(ctx context.Context, method string, resource Resource, params url.Values, body io.Reader, contentType string) *Result {
	path, err := resource.Path()
	if err != nil {
		f.logger.Errorw("Unmapped upstream resource", "resource", resource, "error", err)
		return failure(http.StatusInternalServerError, "internal server error")
	}

	query := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	query.Set("api_key", f.apiKey)

	target := f.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		f.logger.Errorw("Failed to build upstream request",
			"resource", resource, "method", method, "error", f.redact(err))
		return failure(http.StatusInternalServerError, "internal server error")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	metrics.UpstreamRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		reason := "network"
		message := "upstream request failed"
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			reason = "timeout"
			message = "upstream request timed out"
		} else if errors.Is(err, context.Canceled) {
			reason = "canceled"
			message = "request canceled"
		}
		metrics.UpstreamFailuresTotal.WithLabelValues(string(resource), reason).Inc()
		f.logger.Errorw("Upstream call failed",
			"resource", resource,
			"method", method,
			"reason", reason,
			"error", f.redact(err))
		// The upstream supplied no status; default to 500 per the BFF contract.
		return failure(http.StatusInternalServerError, message)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.UpstreamFailuresTotal.WithLabelValues(string(resource), "read_body").Inc()
		f.logger.Errorw("Failed to read upstream response",
			"resource", resource, "status", resp.StatusCode, "error", f.redact(err))
		return failure(http.StatusInternalServerError, "upstream request failed")
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(
		string(resource), method, strconv.Itoa(resp.StatusCode)).Inc()

	if len(payload) == 0 {
		payload = []byte("{}")
	}
	return &Result{
		Status: resp.StatusCode,
		Body:   payload,
	}
}

// failure builds a normalized error result.
func failure(status int, message string) *Result {
	body, _ := json.Marshal(map[string]string{"error": message})
	return &Result{
		Status: status,
		Body:   body,
	}
}

// redact strips the shared API key out of an error before it reaches the logs.
// Transport errors embed the full request URL, query string included.
func (f *Forwarder) redact(err error) string {
	if err == nil {
		return ""
	}
	return strings.ReplaceAll(err.Error(), f.apiKey, "[REDACTED]")
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
