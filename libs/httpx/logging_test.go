package httpx

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAccessLogLevels(t *testing.T) {
	cases := []struct {
		path   string
		status int
		level  string
	}{
		{"/api/v1/slots", http.StatusOK, "INFO"},
		{"/api/v1/appointments", http.StatusConflict, "WARN"},
		{"/api/v1/appointments", http.StatusInternalServerError, "ERROR"},
		{"/healthz", http.StatusOK, "DEBUG"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte("body"))
		}), WithRequestID, WithAccessLog(logger))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))

		var line map[string]any
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("%s: decode log line %q: %v", tc.path, buf.String(), err)
		}
		if line["level"] != tc.level {
			t.Fatalf("%s %d: expected level %s, got %v", tc.path, tc.status, tc.level, line["level"])
		}
		if line["status"].(float64) != float64(tc.status) || line["bytes"].(float64) != 4 {
			t.Fatalf("unexpected status/bytes in %v", line)
		}
		if line["request_id"] == "" || line["request_id"] == nil {
			t.Fatalf("missing request id in %v", line)
		}
	}
}

func TestAccessLogDefaultsStatusWhenHandlerWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := WithAccessLog(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	var line map[string]any
	_ = json.Unmarshal(buf.Bytes(), &line)
	if line["status"].(float64) != http.StatusOK {
		t.Fatalf("expected status 200, got %v", line["status"])
	}
}
