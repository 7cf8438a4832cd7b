package models

// Attachment is one downloadable file listed on a bid page.
// The JSON field names are part of the public contract.
type Attachment struct {
	Name        string `json:"nombre"`
	DownloadURL string `json:"url_descarga"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is the response for GET /healthz.
type HealthResponse struct {
	Status         string `json:"status"` // "healthy" or "saturated"
	Uptime         string `json:"uptime"`
	ActiveSessions int    `json:"active_sessions"`
	MaxSessions    int    `json:"max_sessions"`
	Version        string `json:"version"`
}
