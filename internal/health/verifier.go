// Package health probes deployed services and classifies the result.
//
// One Verify call is one probe; retry cadence belongs to the caller.
// Classification is a pure function of the probe outcome: a 2xx response
// whose body does not report an internal failure is Up, a connection
// failure or timeout is Down, everything else is Degraded.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/todofleet/fleetctl/internal/fleet"
)

// Status classifies a probed service.
type Status string

const (
	Up       Status = "up"
	Degraded Status = "degraded"
	Down     Status = "down"
)

// Report is the outcome of one probe. Produced fresh on every pass, never
// cached across runs.
type Report struct {
	Node      fleet.Node
	Status    Status
	CheckedAt time.Time
	Detail    string
}

const (
	healthPath = "/api/health"

	// livenessPath is probed when the service predates the health
	// endpoint; any 2xx from a functional route counts as alive.
	livenessPath = "/api/todos"
)

// Verifier issues HTTP probes with a short per-probe timeout.
type Verifier struct {
	client *http.Client
}

// NewVerifier returns a Verifier whose probes time out after the given
// duration.
func NewVerifier(timeout time.Duration) *Verifier {
	return &Verifier{client: &http.Client{Timeout: timeout}}
}

// Verify probes the service rooted at baseURL and classifies the outcome.
// It never returns an error: unreachable services are a reportable state,
// not a failure of the verifier.
func (v *Verifier) Verify(ctx context.Context, node fleet.Node, baseURL string) Report {
	report := Report{Node: node, CheckedAt: time.Now()}

	status, body, err := v.probe(ctx, baseURL+healthPath)
	if err != nil {
		report.Status = Down
		report.Detail = connectionDetail(err)
		return report
	}

	if status == http.StatusNotFound {
		// No health endpoint; fall back to a known functional route.
		status, _, err = v.probe(ctx, baseURL+livenessPath)
		if err != nil {
			report.Status = Down
			report.Detail = connectionDetail(err)
			return report
		}
		if status >= 200 && status < 300 {
			report.Status = Up
			report.Detail = "liveness probe (no health endpoint)"
		} else {
			report.Status = Degraded
			report.Detail = fmt.Sprintf("liveness probe returned HTTP %d", status)
		}
		return report
	}

	report.Status, report.Detail = Classify(status, body)
	return report
}

func (v *Verifier) probe(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return resp.StatusCode, nil, nil
	}
	return resp.StatusCode, body, nil
}

// Classify maps a probe response to a status. Exported so its purity can be
// checked over simulated responses.
func Classify(httpStatus int, body []byte) (Status, string) {
	if httpStatus < 200 || httpStatus >= 300 {
		return Degraded, fmt.Sprintf("HTTP %d", httpStatus)
	}

	reported := reportedStatus(body)
	switch reported {
	case "", "UP":
		return Up, ""
	default:
		return Degraded, fmt.Sprintf("service reports %s", reported)
	}
}

// healthDocument is the machine-readable status document, either bare or
// wrapped in the API's response envelope.
type healthDocument struct {
	Status string `json:"status"`
	Data   *struct {
		Status string `json:"status"`
	} `json:"data"`
}

// reportedStatus extracts the service's own status claim from the body.
// A body that is not the expected document yields empty: the 2xx alone
// carries the verdict.
func reportedStatus(body []byte) string {
	var doc healthDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	if doc.Status != "" {
		return strings.ToUpper(doc.Status)
	}
	if doc.Data != nil && doc.Data.Status != "" {
		return strings.ToUpper(doc.Data.Status)
	}
	return ""
}

// connectionDetail trims transport errors to something an operator can
// read at a glance.
func connectionDetail(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "connection refused"
	case strings.Contains(msg, "context deadline exceeded"),
		strings.Contains(msg, "Client.Timeout"):
		return "probe timed out"
	case strings.Contains(msg, "no such host"):
		return "host not found"
	default:
		return msg
	}
}
