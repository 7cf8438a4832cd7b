package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// attachment mirrors the service's response element.
type attachment struct {
	Name        string `json:"nombre"`
	DownloadURL string `json:"url_descarga"`
}

// errorResponse mirrors the service's error body.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func main() {
	apiURL := os.Getenv("SCRAPER_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}
	// Optional: the service runs without auth unless keys are configured.
	apiKey := os.Getenv("SCRAPER_API_KEY")

	s := server.NewMCPServer(
		"scraper-service",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	extractTool := mcp.NewTool("extract_attachments",
		mcp.WithDescription("List every downloadable attachment of a Mercado Público bid (licitación). Renders the bid page in a headless browser, reads its attachment grid and the dedicated attachments page, and returns each file's name and direct download URL."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The bid detail page URL, e.g. https://www.mercadopublico.cl/Procurement/Modules/RFB/DetailsAcquisition.aspx?idlicitacion=1509-5-L124"),
		),
	)
	s.AddTool(extractTool, handleExtractAttachments(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the service and returns the status code and body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/", bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func handleExtractAttachments(apiURL, apiKey string) server.ToolHandlerFunc {
	// Two sequential renders, each bounded by the service's navigation timeout.
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		status, respBody, err := apiPost(ctx, client, apiURL, apiKey, map[string]string{"url": url})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if status != http.StatusOK {
			var errResp errorResponse
			if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Error == "" {
				return mcp.NewToolResultError(fmt.Sprintf("extraction failed with status %d", status)), nil
			}
			if errResp.Code != "" {
				return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", errResp.Code, errResp.Error)), nil
			}
			return mcp.NewToolResultError(errResp.Error), nil
		}

		var attachments []attachment
		if err := json.Unmarshal(respBody, &attachments); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		return mcp.NewToolResultText(formatAttachments(url, attachments)), nil
	}
}

func formatAttachments(source string, attachments []attachment) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Source: %s\n", source)
	if len(attachments) == 0 {
		sb.WriteString("No attachments found (the page may have failed to render or lists none).\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Found %d attachments:\n\n", len(attachments))
	for i, a := range attachments {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, a.Name, a.DownloadURL)
	}
	return sb.String()
}
