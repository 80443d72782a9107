package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ndelia/wren/config"
	"github.com/ndelia/wren/internal/application"
	cacheImpl "github.com/ndelia/wren/internal/infrastructure/cache"
	"github.com/ndelia/wren/internal/infrastructure/memory"
	"github.com/ndelia/wren/internal/pkg/metrics"
)

const testUserHeader = "7"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	repo := memory.NewLinkRepository()
	service := application.NewLinkService(repo, cacheImpl.NewMemory(), metrics.NewNoOpRegistry(), application.Options{})
	handlers := NewHandlers(service, "http://localhost:8080", repo)

	cfg := &config.Config{}
	cfg.App.BaseURL = "http://localhost:8080"
	cfg.Metrics.Enabled = false

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(handlers, logger, cfg, metrics.NewNoOpRegistry())

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, userID string, body any) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(PrincipalHeader, userID)
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func createLink(t *testing.T, srv *httptest.Server, payload map[string]any) map[string]interface{} {
	t.Helper()

	resp, body := doJSON(t, srv, http.MethodPost, "/links/shorten", testUserHeader, payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%v)", resp.StatusCode, body)
	}
	return body
}

func TestHandleShorten_RequiresPrincipal(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, srv, http.MethodPost, "/links/shorten", "", map[string]any{
		"originalUrl": "https://example.com",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestHandleShorten_AliasConflict(t *testing.T) {
	srv := newTestServer(t)

	createLink(t, srv, map[string]any{"originalUrl": "https://example1.com", "customAlias": "myalias"})

	resp, _ := doJSON(t, srv, http.MethodPost, "/links/shorten", testUserHeader, map[string]any{
		"originalUrl": "https://example2.com",
		"customAlias": "myalias",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestHandleResolve_Flow(t *testing.T) {
	srv := newTestServer(t)

	created := createLink(t, srv, map[string]any{"originalUrl": "example.com"})
	code := created["shortCode"].(string)

	if created["originalUrl"] != "http://example.com" {
		t.Errorf("expected scheme prefixed, got %v", created["originalUrl"])
	}

	resp, body := doJSON(t, srv, http.MethodGet, "/"+code, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["clickCount"].(float64) != 1 {
		t.Errorf("expected clickCount 1, got %v", body["clickCount"])
	}

	resp, body = doJSON(t, srv, http.MethodGet, "/"+code, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["clickCount"].(float64) != 2 {
		t.Errorf("expected clickCount 2, got %v", body["clickCount"])
	}
}

func TestHandleResolve_NotFound(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 2; i++ {
		resp, _ := doJSON(t, srv, http.MethodGet, "/nosuch", "", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	}
}

func TestHandleResolve_Expired(t *testing.T) {
	srv := newTestServer(t)

	past := time.Now().Add(-time.Second).Format(time.RFC3339)
	created := createLink(t, srv, map[string]any{
		"originalUrl": "https://example.com",
		"expiresAt":   past,
	})
	code := created["shortCode"].(string)

	resp, _ := doJSON(t, srv, http.MethodGet, "/"+code, "", nil)
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("expected 410, got %d", resp.StatusCode)
	}

	// Counters must be untouched by expired lookups
	resp, body := doJSON(t, srv, http.MethodGet, "/"+code+"/info", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["clickCount"].(float64) != 0 {
		t.Errorf("expected clickCount 0, got %v", body["clickCount"])
	}
}

func TestHandleInfo_DoesNotCount(t *testing.T) {
	srv := newTestServer(t)

	created := createLink(t, srv, map[string]any{"originalUrl": "https://example.com", "customAlias": "infotest"})
	code := created["shortCode"].(string)

	for i := 0; i < 2; i++ {
		resp, body := doJSON(t, srv, http.MethodGet, "/"+code+"/info", "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if body["clickCount"].(float64) != 0 {
			t.Errorf("info must not count accesses, got %v", body["clickCount"])
		}
		if body["customAlias"] != "infotest" {
			t.Errorf("expected customAlias in info, got %v", body["customAlias"])
		}
	}
}

func TestHandleUpdate_Ownership(t *testing.T) {
	srv := newTestServer(t)

	created := createLink(t, srv, map[string]any{"originalUrl": "https://example.com"})
	code := created["shortCode"].(string)

	resp, _ := doJSON(t, srv, http.MethodPut, "/links/"+code, "999", map[string]any{
		"originalUrl": "https://new.example.com",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d", resp.StatusCode)
	}

	resp, body := doJSON(t, srv, http.MethodPut, "/links/"+code, testUserHeader, map[string]any{
		"originalUrl": "https://new.example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", resp.StatusCode, body)
	}
	if body["originalUrl"] != "https://new.example.com" {
		t.Errorf("expected updated URL, got %v", body["originalUrl"])
	}

	resp, _ = doJSON(t, srv, http.MethodPut, "/links/nosuch", testUserHeader, map[string]any{
		"originalUrl": "https://new.example.com",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing link, got %d", resp.StatusCode)
	}
}

func TestHandleDelete_Flow(t *testing.T) {
	srv := newTestServer(t)

	created := createLink(t, srv, map[string]any{"originalUrl": "https://example.com"})
	code := created["shortCode"].(string)

	resp, _ := doJSON(t, srv, http.MethodDelete, "/links/"+code, "999", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, srv, http.MethodDelete, "/links/"+code, testUserHeader, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, srv, http.MethodGet, "/"+code, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestHandleStats_Ownership(t *testing.T) {
	srv := newTestServer(t)

	created := createLink(t, srv, map[string]any{"originalUrl": "https://example.com"})
	code := created["shortCode"].(string)

	resp, _ := doJSON(t, srv, http.MethodGet, "/links/"+code+"/stats", "999", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d", resp.StatusCode)
	}

	resp, body := doJSON(t, srv, http.MethodGet, "/links/"+code+"/stats", testUserHeader, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["shortCode"] != code {
		t.Errorf("expected shortCode %s, got %v", code, body["shortCode"])
	}
}

func TestHandleSearch(t *testing.T) {
	srv := newTestServer(t)

	createLink(t, srv, map[string]any{"originalUrl": "https://golang.org/doc"})
	createLink(t, srv, map[string]any{"originalUrl": "https://golang.org/blog"})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/links/search?originalUrl=golang.org", nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var results []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}

	resp, _ = doJSON(t, srv, http.MethodGet, "/links/search?originalUrl=nomatch.invalid", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for empty search, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, srv, http.MethodGet, "/links/search", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing query, got %d", resp.StatusCode)
	}
}

func TestHandleShorten_ValidationErrorCasing(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name           string
		payload        map[string]any
		expectedFields []string
	}{
		{
			name:           "invalid customAlias should return customAlias in error",
			payload:        map[string]any{"originalUrl": "https://example.com", "customAlias": "ab"},
			expectedFields: []string{"customAlias"},
		},
		{
			name:           "missing originalUrl should return originalUrl in error",
			payload:        map[string]any{"customAlias": "validalias"},
			expectedFields: []string{"originalUrl"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, srv, http.MethodPost, "/links/shorten", testUserHeader, tt.payload)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}

			details, ok := body["details"].(map[string]interface{})
			if !ok {
				t.Fatalf("expected details field in response, got: %v", body)
			}

			for _, field := range tt.expectedFields {
				if _, exists := details[field]; !exists {
					t.Errorf("expected field %q in error details, got: %v", field, keys(details))
				}
			}
			for field := range details {
				found := false
				for _, expected := range tt.expectedFields {
					if field == expected {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("unexpected field %q in error details", field)
				}
			}
		})
	}
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
