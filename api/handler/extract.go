package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bcajales/scraper-service/models"
	"github.com/bcajales/scraper-service/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Extract returns the handler for POST on any path.
//
// Orchestration flow:
//  1. Parse the body. Syntax errors are 500, validation errors are 400.
//  2. Pipeline.Scrape renders the bid page and its attachments page.
//  3. Respond 200 with the attachment array ([] when nothing was found).
func Extract(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var req models.ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, classifyBindError(err))
			return
		}

		// ── 2. Scrape ───────────────────────────────────────────────
		records, err := p.Scrape(c.Request.Context(), req.URL)
		if err != nil {
			respondError(c, err)
			return
		}

		// ── 3. Respond ──────────────────────────────────────────────
		if records == nil {
			records = []models.Attachment{}
		}
		c.JSON(http.StatusOK, records)
	}
}

// classifyBindError separates requests that decoded but failed validation
// (client error) from bodies that could not be decoded at all.
func classifyBindError(err error) *models.ScrapeError {
	var verrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &verrs):
		return models.NewScrapeError(models.ErrCodeInvalidInput, "url is required and must be an absolute URL", nil)
	case errors.As(err, &typeErr):
		return models.NewScrapeError(models.ErrCodeInvalidInput, "url must be a string", nil)
	default:
		return models.NewScrapeError(models.ErrCodeInternal, "failed to parse request body", err)
	}
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, "internal error", err)
	}
	_ = c.Error(err)
	c.JSON(mapErrorToStatus(scrapeErr), scrapeErr.ToResponse())
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeMethod:
		return http.StatusMethodNotAllowed // 405
	case models.ErrCodeBusy:
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}
