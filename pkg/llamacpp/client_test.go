package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != chatEndpoint {
			http.NotFound(w, r)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Model != "qwen" || req.Stream {
			t.Errorf("Unexpected request %+v", req)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("Expected json_object response format, got %+v", req.ResponseFormat)
		}

		var parts []contentPart
		if err := json.Unmarshal(req.Messages[0].Content, &parts); err != nil {
			t.Fatalf("bad content: %v", err)
		}
		if len(parts) != 2 || parts[0].Text != "prompt" || parts[1].ImageURL.URL != "data:image/png;base64,aGVsbG8=" {
			t.Errorf("Unexpected content parts %+v", parts)
		}
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"text_visible\":false}"}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL + "/")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	reply, err := c.Query(context.Background(), "qwen", "prompt", "aGVsbG8=")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if reply != `{"text_visible":false}` {
		t.Errorf("Unexpected reply %q", reply)
	}
}

func TestQueryWithoutJSONMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.ResponseFormat != nil {
			t.Errorf("Expected no response format, got %+v", req.ResponseFormat)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"NO"}}]}`))
	}))
	defer srv.Close()

	config := DefaultConfig()
	config.JSONMode = false
	c, _ := NewClientWithConfig(srv.URL, config)
	if reply, err := c.Query(context.Background(), "m", "p", ""); err != nil || reply != "NO" {
		t.Errorf("Query() = %q, %v", reply, err)
	}
}

func TestQueryRetriesWithoutResponseFormat(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.ResponseFormat != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"response_format is not supported"}}`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"YES"}}]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	reply, err := c.Query(context.Background(), "m", "p", "")
	if err != nil || reply != "YES" {
		t.Errorf("Query() = %q, %v", reply, err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("Expected 2 requests, got %d", n)
	}
}

func TestQueryContentParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":[{"type":"text","text":"YES"}]}}]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	reply, err := c.Query(context.Background(), "m", "p", "")
	if err != nil || reply != "YES" {
		t.Errorf("Query() = %q, %v", reply, err)
	}
}

func TestQueryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"model not loaded"}}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := c.Query(context.Background(), "m", "p", "")
	if err == nil || !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("Expected status error, got %v", err)
	}
}

func TestQueryEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	if _, err := c.Query(context.Background(), "m", "p", ""); err == nil {
		t.Error("Expected error for empty choices")
	}
}

func TestNewClientRejectsSchemelessURL(t *testing.T) {
	if _, err := NewClient("localhost:8080"); err == nil {
		t.Error("Expected error for URL without scheme")
	}
}
