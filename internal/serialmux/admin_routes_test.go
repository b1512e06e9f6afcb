package serialmux

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// localHostRequest creates a request that passes tsweb's loopback check.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func TestAdminSendCommandAPI(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		command    string
		writeErr   error
		wantStatus int
		wantBody   string
	}{
		{"valid", http.MethodPost, "vision reset", nil, http.StatusOK, `Wrote command "vision reset"`},
		{"empty", http.MethodPost, "   ", nil, http.StatusBadRequest, "Missing command"},
		{"wrong method", http.MethodGet, "vision reset", nil, http.StatusMethodNotAllowed, "Method not allowed"},
		{"write failure", http.MethodPost, "vision reset", errors.New("unplugged"), http.StatusInternalServerError, "Failed to write command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := NewMockSerialPort("")
			port.writeErr = tt.writeErr
			httpMux := http.NewServeMux()
			NewSerialMux(port).AttachAdminRoutes(httpMux)

			form := url.Values{"command": {tt.command}}.Encode()
			req := localHostRequest(tt.method, "/debug/send-command-api", strings.NewReader(form))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			httpMux.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "vision reset\n", port.Written())
			}
		})
	}
}

func TestAdminSendCommandPage(t *testing.T) {
	httpMux := http.NewServeMux()
	NewSerialMux(NewMockSerialPort("")).AttachAdminRoutes(httpMux)

	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/send-command", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "autopilot link")
	assert.Contains(t, body, "microslam transfer")
	assert.Contains(t, body, `EventSource("tail")`)
}

func TestAdminTailStreamsLines(t *testing.T) {
	d := NewDisabledSerialMux()
	httpMux := http.NewServeMux()
	d.AttachAdminRoutes(httpMux)
	srv := httptest.NewServer(httpMux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/debug/tail", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// The ping is written after the subscription exists.
	buf := make([]byte, 64)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), ": ping")

	require.NoError(t, d.SendCommand("vision enable"))
	var got strings.Builder
	for !strings.Contains(got.String(), "data: vision enable") {
		n, err := resp.Body.Read(buf)
		require.NoError(t, err)
		got.Write(buf[:n])
	}
}

func TestAdminTailRejectsPost(t *testing.T) {
	httpMux := http.NewServeMux()
	NewDisabledSerialMux().AttachAdminRoutes(httpMux)

	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodPost, "/debug/tail", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
