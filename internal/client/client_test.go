package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFallsBackToEnv(t *testing.T) {
	t.Setenv("STIPSLITE_URL", "http://portal.test:9000/")
	assert.Equal(t, "http://portal.test:9000", New("").serverURL)

	t.Setenv("STIPSLITE_URL", "")
	assert.Equal(t, defaultServerURL, New("").serverURL)
	assert.Equal(t, "http://x", New("http://x").serverURL)
}

func TestFlows(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/flows/internet-search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		json.NewEncoder(w).Encode(map[string]string{"answer": "echo: " + in["query"]})
	})
	mux.HandleFunc("/api/flows/task-search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":null}`))
	})
	mux.HandleFunc("/api/flows/print-location-search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"model output does not match schema"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	ans, err := c.InternetSearch(ctx, "exam dates")
	require.NoError(t, err)
	assert.Equal(t, "echo: exam dates", ans.Answer)

	tasks, err := c.TaskSearch(ctx, "typing")
	require.NoError(t, err)
	assert.NotNil(t, tasks.Results)
	assert.Empty(t, tasks.Results)

	_, err = c.PrintLocationSearch(ctx, "accra")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "model output does not match schema", apiErr.Message)
}

func TestPrintCentersAndHealth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/print-centers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cape coast", r.URL.Query().Get("q"))
		w.Write([]byte(`[{"id":"pc-1","name":"Cape Coast Docs","city":"Cape Coast"}]`))
	})
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	pcs, err := c.PrintCenters(context.Background(), "cape coast")
	require.NoError(t, err)
	require.Len(t, pcs, 1)
	assert.Equal(t, "Cape Coast Docs", pcs[0].Name)

	assert.True(t, c.Healthy(context.Background()))
	srv.Close()
	assert.False(t, c.Healthy(context.Background()))
}
