// Package knowledgeclient implements the Knowledge plausibility
// collaborator (spec.md §6): lab-result and lab-device plausibility
// checks, each returning PLAUSIBLE/IMPLAUSIBLE/UNKNOWN.
package knowledgeclient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"

	"github.com/aks8m/piqi-eval/pkg/pierr"
)

// Plausibility is the collaborator's three-valued verdict.
type Plausibility int

const (
	Unknown Plausibility = iota
	Plausible
	Implausible
)

func parsePlausibility(s string) Plausibility {
	switch s {
	case "PLAUSIBLE":
		return Plausible
	case "IMPLAUSIBLE":
		return Implausible
	default:
		return Unknown
	}
}

// LabResultParams are the query parameters spec.md §6 documents for
// the lab-result plausibility endpoint.
type LabResultParams struct {
	DOB         string
	TestCode    string
	ResultValue string
	Stamp       string
	Lang        string
	Nav         string
}

// LabDeviceParams are the query parameters for the lab-device
// plausibility endpoint.
type LabDeviceParams struct {
	TestCode    string
	RefRangeLow string
	RefRangeHi  string
	Unit        string
	Stamp       string
	Lang        string
	Nav         string
}

// Client is the narrow Knowledge capability spec.md §6 names.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// Config controls the circuit breaker guarding every call through a
// Client, per spec.md §5's "long-lived, shared by all SAM invocations".
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	BreakerName  string
	MaxRequests  uint32
	OpenTimeout  time.Duration
	FailureRatio float64
	MinRequests  uint32
}

func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		Timeout:      5 * time.Second,
		BreakerName:  "knowledge-plausibility",
		MaxRequests:  1,
		OpenTimeout:  30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// New builds a Client, wiring its circuit breaker from cfg.
func New(cfg Config) *Client {
	settings := gobreaker.Settings{
		Name:        cfg.BreakerName,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// LabResultPlausibility calls GET /api/plausibility/lab-result.
func (c *Client) LabResultPlausibility(ctx context.Context, p LabResultParams) (Plausibility, error) {
	q := url.Values{}
	q.Set("dob", p.DOB)
	q.Set("testCode", p.TestCode)
	q.Set("resultValue", p.ResultValue)
	q.Set("stamp", p.Stamp)
	q.Set("lang", p.Lang)
	q.Set("nav", p.Nav)
	return c.plausibility(ctx, "/api/plausibility/lab-result", q)
}

// LabDevicePlausibility calls GET /api/plausibility/lab-device.
func (c *Client) LabDevicePlausibility(ctx context.Context, p LabDeviceParams) (Plausibility, error) {
	q := url.Values{}
	q.Set("testCode", p.TestCode)
	q.Set("refRangeLow", p.RefRangeLow)
	q.Set("refRangeHigh", p.RefRangeHi)
	q.Set("unit", p.Unit)
	q.Set("stamp", p.Stamp)
	q.Set("lang", p.Lang)
	q.Set("nav", p.Nav)
	return c.plausibility(ctx, "/api/plausibility/lab-device", q)
}

func (c *Client) plausibility(ctx context.Context, path string, q url.Values) (Plausibility, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
		if err != nil {
			return nil, pierr.CollaboratorError(err, "knowledge: building request")
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, pierr.CollaboratorError(err, "knowledge: transport failure")
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, pierr.CollaboratorError(nil, "knowledge: plausibility check returned unexpected status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, pierr.CollaboratorError(err, "knowledge: reading plausibility response")
		}
		return parsePlausibility(gjson.GetBytes(body, "plausibility").String()), nil
	})
	if err != nil {
		return Unknown, err
	}
	return result.(Plausibility), nil
}
