package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestLogging_RecordsStatusAndPath(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), log, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/messages/users", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status not propagated: %d", rr.Code)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "http.request" {
		t.Fatalf("msg=%v want http.request", entry["msg"])
	}
	if entry["path"] != "/api/messages/users" {
		t.Fatalf("path=%v", entry["path"])
	}
	if got, ok := entry["status"].(float64); !ok || int(got) != http.StatusNotFound {
		t.Fatalf("status=%v", entry["status"])
	}
}

func TestWithRequestLogging_DefaultsTo200(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}), log, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line not JSON: %v", err)
	}
	if got, ok := entry["status"].(float64); !ok || int(got) != http.StatusOK {
		t.Fatalf("status=%v want 200", entry["status"])
	}
}

func TestLoggingResponseWriter_Unwrap(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	lrw := &loggingResponseWriter{ResponseWriter: rr, status: http.StatusOK}

	if lrw.Unwrap() != http.ResponseWriter(rr) {
		t.Fatalf("Unwrap must expose the underlying writer")
	}
}
