package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerAuth_Disabled(t *testing.T) {
	for _, keys := range [][]string{nil, {"", ""}} {
		handler := BearerAuthMiddleware(keys)(okHandler())
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/matches/m1", http.NoBody))
		if rr.Code != http.StatusOK {
			t.Errorf("keys %q: got %d, want 200", keys, rr.Code)
		}
	}
}

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"wrong key", "Bearer wrong-key", http.StatusUnauthorized},
		{"first key", "Bearer key1", http.StatusOK},
		{"second key", "Bearer key2", http.StatusOK},
		{"lowercase scheme", "bearer key1", http.StatusOK},
	}
	handler := BearerAuthMiddleware([]string{"key1", "key2"})(okHandler())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/periodic-search/stats", http.NoBody)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Errorf("got %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestBearerAuth_ErrorBody(t *testing.T) {
	handler := BearerAuthMiddleware([]string{"secret"})(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/matches/m1", http.NoBody))

	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != ErrorCodeUnauthorized {
		t.Errorf("error code: got %s, want %s", errResp.Code, ErrorCodeUnauthorized)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate challenge")
	}
}

func TestBearerAuth_ExemptPaths(t *testing.T) {
	handler := BearerAuthMiddleware([]string{"secret"})(okHandler())
	for _, path := range []string{"/health", "/metrics"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, http.NoBody))
		if rr.Code != http.StatusOK {
			t.Errorf("exempt path %s: got %d, want 200", path, rr.Code)
		}
	}
}
