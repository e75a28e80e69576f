package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vk/paramfn/internal/model"
)

// Client talks to a server started by NewHandler.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL. A nil httpClient
// selects a client with a 5 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// APIError is a non-2xx response. It unwraps to the fault sentinel matching
// the status code, so callers can use errors.Is with the model errors.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
}

// Unwrap maps the status code back onto the fault taxonomy. A 400 cannot tell
// an invalid definition from an evaluation error, so the detail decides.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return model.ErrNotFound
	case http.StatusConflict:
		return model.ErrAlreadyExists
	case http.StatusBadRequest:
		if strings.Contains(e.Detail, "evaluation failed") {
			return model.ErrEvaluation
		}
		if strings.Contains(e.Detail, model.ErrInvalidDefinition.Error()) {
			return model.ErrInvalidDefinition
		}
		return nil
	case http.StatusInternalServerError:
		return model.ErrSerialization
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorBody
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Detail == "" {
			e.Detail = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Detail: e.Detail}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func functionPath(name string, rest ...string) string {
	return "/functions/" + url.PathEscape(name) + strings.Join(rest, "")
}

// List returns the name and description of every function.
func (c *Client) List(ctx context.Context) ([]FunctionSummary, error) {
	var out []FunctionSummary
	err := c.do(ctx, http.MethodGet, "/functions", nil, &out)
	return out, err
}

// Create registers a function.
func (c *Client) Create(ctx context.Context, req CreateRequest) error {
	return c.do(ctx, http.MethodPost, "/functions", req, nil)
}

// Get returns the full definition.
func (c *Client) Get(ctx context.Context, name string) (*model.Definition, error) {
	var out model.Definition
	if err := c.do(ctx, http.MethodGet, functionPath(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update changes a function.
func (c *Client) Update(ctx context.Context, name string, patch model.Patch) error {
	return c.do(ctx, http.MethodPut, functionPath(name), UpdateRequest{Patch: patch}, nil)
}

// Delete removes a function.
func (c *Client) Delete(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, functionPath(name), nil, nil)
}

// Compute evaluates a function at every x.
func (c *Client) Compute(ctx context.Context, name string, xs []float64, params map[string]float64) ([]float64, error) {
	var out []float64
	err := c.do(ctx, http.MethodPost, functionPath(name, "/compute"), ComputeRequest{X: &xs, Params: params}, &out)
	return out, err
}

// Data returns signatures, parameters and entry point details.
func (c *Client) Data(ctx context.Context, name string) (*FunctionData, error) {
	var out FunctionData
	if err := c.do(ctx, http.MethodGet, functionPath(name, "/data"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health reports whether the server answers its liveness probe.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}
