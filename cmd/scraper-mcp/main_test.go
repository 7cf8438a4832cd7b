package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func callTool(t *testing.T, apiURL, apiKey string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Name = "extract_attachments"
	req.Params.Arguments = args

	res, err := handleExtractAttachments(apiURL, apiKey)(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return res
}

func resultText(res *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func TestExtractAttachments_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("X-API-Key"); got != "k1" {
			t.Errorf("X-API-Key = %q, want k1", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["url"] == "" {
			t.Errorf("unexpected request body: %v %v", body, err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"nombre":"Bases","url_descarga":"https://www.mercadopublico.cl/Procurement/Modules/RFB/DownloadDoc.aspx?idlic=1&idDoc=2"}]`))
	}))
	defer srv.Close()

	res := callTool(t, srv.URL, "k1", map[string]any{"url": "https://www.mercadopublico.cl/ficha?idlicitacion=1"})
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(res))
	}
	text := resultText(res)
	if !strings.Contains(text, "Found 1 attachments") || !strings.Contains(text, "idDoc=2") {
		t.Errorf("unexpected result text:\n%s", text)
	}
}

func TestExtractAttachments_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"url is required","code":"INVALID_INPUT"}`))
	}))
	defer srv.Close()

	res := callTool(t, srv.URL, "", map[string]any{"url": "x"})
	if !res.IsError {
		t.Fatal("expected tool error")
	}
	if text := resultText(res); !strings.Contains(text, "[INVALID_INPUT]") {
		t.Errorf("error text = %q, want code prefix", text)
	}
}

func TestExtractAttachments_MissingURL(t *testing.T) {
	res := callTool(t, "http://127.0.0.1:1", "", map[string]any{})
	if !res.IsError {
		t.Fatal("expected tool error for missing url")
	}
}

func TestFormatAttachments_Empty(t *testing.T) {
	text := formatAttachments("https://example.cl", nil)
	if !strings.Contains(text, "No attachments found") {
		t.Errorf("unexpected text: %q", text)
	}
}
