// Package fhirclient implements the FHIR terminology collaborator
// (spec.md §6): LookupCode, the $lookup display-population call, and
// GetValueSet. It is a long-lived, shared client wrapped in a circuit
// breaker per spec.md §5, so one flaky terminology server degrades
// gracefully instead of stalling every SAM that calls it.
package fhirclient

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"github.com/yosida95/uritemplate/v3"

	"github.com/aks8m/piqi-eval/pkg/pierr"
	"github.com/aks8m/piqi-eval/pkg/refdata"
)

var (
	lookupTemplate   = uritemplate.MustNew("/CodeSystem/$lookup{?system,code}")
	valueSetTemplate = uritemplate.MustNew("/ValueSet/{id}/$expand")
)

// LookupResult is the parsed outcome of a code lookup or $lookup call.
type LookupResult struct {
	Found   bool
	Display string
}

// Client is the narrow FHIR terminology capability spec.md §6 names.
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
		BreakerName:  "fhir-terminology",
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

// LookupCode validates a (code, system) pair, per spec.md §6: 2xx is
// success (body parsed for display), 400 means not found, anything
// else is a CollaboratorError.
func (c *Client) LookupCode(ctx context.Context, code string, system string) (LookupResult, error) {
	return c.lookup(ctx, lookupTemplate, code, system)
}

// LookupDisplay is the §4.5 "reference-display population" call: the
// same $lookup endpoint, distinguished only by caller intent (the SAM
// continues rather than fails on a 400).
func (c *Client) LookupDisplay(ctx context.Context, code string, system string) (LookupResult, error) {
	return c.lookup(ctx, lookupTemplate, code, system)
}

func (c *Client) lookup(ctx context.Context, tmpl *uritemplate.Template, code, system string) (LookupResult, error) {
	values := uritemplate.Values{}
	values.Set("system", uritemplate.String(system))
	values.Set("code", uritemplate.String(code))
	path, err := tmpl.Expand(values)
	if err != nil {
		return LookupResult{}, pierr.CollaboratorError(err, "fhir: failed to build lookup URL")
	}

	result, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.get(ctx, path)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, pierr.CollaboratorError(err, "fhir: reading lookup response")
			}
			display := gjson.GetBytes(body, `parameter.#(name=="display").valueString`).String()
			return LookupResult{Found: true, Display: display}, nil
		case resp.StatusCode == http.StatusBadRequest:
			return LookupResult{Found: false}, nil
		default:
			return nil, pierr.CollaboratorError(nil, "fhir: lookup returned unexpected status %d", resp.StatusCode)
		}
	})
	if err != nil {
		return LookupResult{}, err
	}
	return result.(LookupResult), nil
}

// GetValueSet fetches/expands a value set by mnemonic or canonical
// URI, returning its expansion as codings.
func (c *Client) GetValueSet(ctx context.Context, mnemonicOrURI string) ([]refdata.Coding, error) {
	path, err := valueSetTemplate.Expand(uritemplate.Values{"id": uritemplate.String(mnemonicOrURI)})
	if err != nil {
		return nil, pierr.CollaboratorError(err, "fhir: failed to build value set URL")
	}

	result, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.get(ctx, path)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, pierr.CollaboratorError(nil, "fhir: value set expand returned unexpected status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, pierr.CollaboratorError(err, "fhir: reading value set response")
		}

		var codings []refdata.Coding
		for _, entry := range gjson.GetBytes(body, "expansion.contains").Array() {
			codings = append(codings, refdata.Coding{
				System: entry.Get("system").String(),
				Code:   entry.Get("code").String(),
			})
		}
		return codings, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]refdata.Coding), nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, pierr.CollaboratorError(err, "fhir: building request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pierr.CollaboratorError(err, "fhir: transport failure")
	}
	return resp, nil
}
