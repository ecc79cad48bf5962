package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/loykin/fuzzbridge/internal/history"
)

func TestOpenSearchSink_Send(t *testing.T) {
	var receivedBody []byte
	var receivedURL string
	var receivedMethod string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		receivedURL = r.URL.Path
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"run-1","_index":"fuzz-runs","result":"created"}`))
	}))
	defer server.Close()

	sink := New(server.URL+"/", "fuzz-runs")
	event := history.Event{
		Type:       history.EventFinished,
		OccurredAt: time.Now().UTC(),
		Record:     history.Record{RunID: "run-1", Target: "python3", Verdict: "signal", Signal: 6},
	}
	if err := sink.Send(context.Background(), event); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if receivedMethod != http.MethodPut {
		t.Errorf("Expected PUT for a document with id, got: %s", receivedMethod)
	}
	if receivedURL != "/fuzz-runs/_doc/run-1" {
		t.Errorf("unexpected path: %s", receivedURL)
	}
	var got history.Event
	if err := json.Unmarshal(receivedBody, &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got.Record.Verdict != "signal" || got.Record.Signal != 6 {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestOpenSearchSink_SendWithoutRunIDPosts(t *testing.T) {
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	if err := New(server.URL, "idx").Send(context.Background(), history.Event{}); err != nil {
		t.Fatal(err)
	}
	if method != http.MethodPost || path != "/idx/_doc" {
		t.Fatalf("got %s %s", method, path)
	}
}

func TestOpenSearchSink_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	err := New(server.URL, "idx").Send(context.Background(), history.Event{})
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestOpenSearchSink_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	if err := New(url, "idx").Send(context.Background(), history.Event{}); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestOpenSearchSink_Recent(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/idx/_search" {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		query = string(b)
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_source":{"type":"finished","record":{"run_id":"b","verdict":"clean"}}},
			{"_source":{"type":"failed","record":{"run_id":"a","verdict":"tooling"}}}
		]}}`))
	}))
	defer server.Close()

	got, err := New(server.URL, "idx").Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if !strings.Contains(query, `"size":2`) {
		t.Fatalf("unexpected query %s", query)
	}
	if len(got) != 2 || got[0].Record.RunID != "b" || got[1].Type != history.EventFailed {
		t.Fatalf("unexpected events: %+v", got)
	}
}
