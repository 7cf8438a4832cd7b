package models

// ExtractRequest is the payload for POST /.
type ExtractRequest struct {
	// URL is the bid page to inspect. Required, absolute.
	URL string `json:"url" binding:"required,url"`
}
