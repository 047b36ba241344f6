// Package client talks to a running portal over its JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sfaret/stipslite/internal/catalog"
	"github.com/sfaret/stipslite/internal/flows"
)

const (
	defaultServerURL = "http://127.0.0.1:8080"
	// Flow calls wait on the model, so this sits above the server's model timeout.
	httpTimeout = 90 * time.Second
)

// APIError is a non-2xx response from the portal.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// Client is a portal API client.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for serverURL. An empty serverURL falls back to
// STIPSLITE_URL and then http://127.0.0.1:8080.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("STIPSLITE_URL")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: strings.TrimRight(serverURL, "/"),
	}
}

// InternetSearch runs the internet search flow on the server.
func (c *Client) InternetSearch(ctx context.Context, query string) (*flows.InternetSearchOutput, error) {
	var out flows.InternetSearchOutput
	if err := c.post(ctx, "/api/flows/internet-search", flows.InternetSearchInput{Query: query}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PrintLocationSearch runs the print-location search flow on the server.
func (c *Client) PrintLocationSearch(ctx context.Context, query string) (*flows.SearchOutput, error) {
	return c.search(ctx, "/api/flows/print-location-search", query)
}

// TaskSearch runs the task search flow on the server.
func (c *Client) TaskSearch(ctx context.Context, query string) (*flows.SearchOutput, error) {
	return c.search(ctx, "/api/flows/task-search", query)
}

func (c *Client) search(ctx context.Context, path, query string) (*flows.SearchOutput, error) {
	var out flows.SearchOutput
	if err := c.post(ctx, path, flows.SearchInput{Query: query}, &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = []string{}
	}
	return &out, nil
}

// PrintCenters returns the server's directory entries matching q.
func (c *Client) PrintCenters(ctx context.Context, q string) ([]catalog.PrintCenter, error) {
	var out []catalog.PrintCenter
	path := "/api/print-centers"
	if q != "" {
		path += "?q=" + url.QueryEscape(q)
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+path, nil)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
		}
		return apiErr
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response %s: %w", req.URL.Path, err)
	}
	return nil
}
