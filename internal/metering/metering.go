package metering

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ErrMissingParams is returned for reports lacking a required field.
var ErrMissingParams = errors.New("missing required parameters")

// Report is one usage record. MeteringID makes it idempotent upstream. Cost
// and Timestamp are kept as sent so the proxy relays them verbatim: clients
// may send fractional costs or a numeric epoch timestamp.
type Report struct {
	SessionID  string          `json:"sessionId"`
	AgentID    string          `json:"agentId"`
	Cost       json.Number     `json:"cost"`
	IsFinal    bool            `json:"isFinal"`
	MeteringID string          `json:"meteringId"`
	Timestamp  json.RawMessage `json:"timestamp"`
}

// Validate checks that every field but IsFinal is present and that the cost
// is a non-negative number.
func (r Report) Validate() error {
	if r.SessionID == "" || r.AgentID == "" || r.Cost == "" || r.MeteringID == "" {
		return ErrMissingParams
	}
	switch string(bytes.TrimSpace(r.Timestamp)) {
	case "", "null", `""`:
		return ErrMissingParams
	}
	cost, err := r.Cost.Float64()
	if err != nil {
		return fmt.Errorf("%w: cost %q is not a number", ErrMissingParams, r.Cost)
	}
	if cost < 0 {
		return fmt.Errorf("%w: negative cost", ErrMissingParams)
	}
	return nil
}

// NewReport builds a report with a fresh metering ID, stamped at now.
func NewReport(sessionID, agentID string, cost int, now time.Time) Report {
	ts, _ := json.Marshal(now.UTC().Format(time.RFC3339Nano))
	return Report{
		SessionID:  sessionID,
		AgentID:    agentID,
		Cost:       json.Number(strconv.Itoa(cost)),
		MeteringID: NewMeteringID(),
		Timestamp:  ts,
	}
}

// NewMeteringID returns a unique metering identifier.
func NewMeteringID() string {
	return uuid.NewString()
}

// Pricing converts tokens into integer cost units.
type Pricing struct {
	// Cost units per million tokens.
	InputPerMillion  float64
	OutputPerMillion float64
}

// CostFromTokens returns the rounded-up cost of a call. Any call that used
// tokens costs at least one unit.
func CostFromTokens(input, output int, p Pricing) int {
	if input <= 0 && output <= 0 {
		return 0
	}
	raw := (float64(max(input, 0))*p.InputPerMillion + float64(max(output, 0))*p.OutputPerMillion) / 1e6
	return max(int(math.Ceil(raw)), 1)
}

// Response is the billing API's answer, passed through verbatim.
type Response struct {
	Status int
	Body   json.RawMessage
}

// UpstreamError is a non-2xx answer from the billing API.
type UpstreamError struct {
	Status int
	Body   json.RawMessage
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("metering api: status %d: %s", e.Status, e.Body)
}

// Client forwards reports to the billing API.
type Client struct {
	endpoint string
	agentKey string
	http     *http.Client
}

// NewClient returns a Client posting to endpoint with agentKey as bearer token.
func NewClient(endpoint, agentKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{endpoint: endpoint, agentKey: agentKey, http: httpClient}
}

// Forward sends r and returns the upstream status and JSON body whatever the
// status. An unreachable API or a non-JSON body is an error.
func (c *Client) Forward(ctx context.Context, r Report) (*Response, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.agentKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting report: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading metering response: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("metering api: status %d: response is not json", resp.StatusCode)
	}
	return &Response{Status: resp.StatusCode, Body: body}, nil
}

// Report validates and sends r, treating non-2xx answers as *UpstreamError.
func (c *Client) Report(ctx context.Context, r Report) error {
	if err := r.Validate(); err != nil {
		return err
	}
	resp, err := c.Forward(ctx, r)
	if err != nil {
		return err
	}
	if resp.Status < 200 || resp.Status > 299 {
		return &UpstreamError{Status: resp.Status, Body: resp.Body}
	}
	return nil
}
