package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	ObserveRun(Run{Verdict: "vulnerability", PayloadSize: 8, Spawned: true})

	path := filepath.Join(t.TempDir(), "fuzzbridge.prom")
	require.NoError(t, WriteTextfile(path, reg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `fuzzbridge_runs_total{verdict="vulnerability"}`)
}

func TestWriteTextfile_BadDir(t *testing.T) {
	reg := prometheus.NewRegistry()
	err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"), reg)
	require.Error(t, err)
}

func TestPush(t *testing.T) {
	var method, path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	ObserveRun(Run{Verdict: "clean", PayloadSize: 3, Spawned: true})

	require.NoError(t, Push(context.Background(), srv.URL, "fuzzbridge", reg))
	assert.Equal(t, http.MethodPost, method)
	assert.True(t, strings.HasPrefix(path, "/metrics/job/fuzzbridge"), path)
	assert.NotEmpty(t, body)
}

func TestPush_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	ObserveRun(Run{Verdict: "clean"})
	err := Push(context.Background(), srv.URL, "fuzzbridge", reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), srv.URL)
}
