package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetStatusColor(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "\033[32m"},
		{202, "\033[32m"},
		{301, "\033[36m"},
		{404, "\033[33m"},
		{429, "\033[33m"},
		{500, "\033[31m"},
		{503, "\033[31m"},
	}

	for _, tt := range tests {
		if got := getStatusColor(tt.code); got != tt.want {
			t.Errorf("getStatusColor(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestStatusRecorder_CapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	recorder := &statusRecorder{ResponseWriter: rec, statusCode: http.StatusOK}

	recorder.WriteHeader(http.StatusTeapot)

	if recorder.statusCode != http.StatusTeapot {
		t.Errorf("Expected captured status 418, got %d", recorder.statusCode)
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("Expected forwarded status 418, got %d", rec.Code)
	}
}

func TestStatusRecorder_DefaultsTo200(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) // implicit 200
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/getLyrics", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestStatusRecorder_FlushPassthrough(t *testing.T) {
	rec := httptest.NewRecorder()
	recorder := &statusRecorder{ResponseWriter: rec, statusCode: http.StatusOK}

	// httptest.ResponseRecorder implements http.Flusher; the recorder must
	// forward so SSE handlers can stream through the middleware chain.
	var w http.ResponseWriter = recorder
	f, ok := w.(http.Flusher)
	if !ok {
		t.Fatal("Expected statusRecorder to implement http.Flusher")
	}
	f.Flush()
	if !rec.Flushed {
		t.Error("Expected Flush to reach the underlying writer")
	}
}
