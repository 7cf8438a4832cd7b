// Package extractor turns rendered bid pages into attachment records.
//
// A bid page lists attachments in two places: a grid embedded in the page
// itself ("primary") and, for some bids, a dedicated attachments page linked
// from it ("secondary"). Both passes share one Seen set so a file listed in
// both places is reported once, under the primary name.
package extractor

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/bcajales/scraper-service/models"
	"golang.org/x/net/html"
)

// DownloadPath is the platform endpoint that serves primary-grid documents.
const DownloadPath = "/Procurement/Modules/RFB/DownloadDoc.aspx"

var (
	primaryRows    = cascadia.MustCompile(`table[id*="grvAnexos"] tbody tr`)
	nameCell       = cascadia.MustCompile(`td:nth-child(1)`)
	downloadInput  = cascadia.MustCompile(`input[type="image"]`)
	secondaryLink  = cascadia.MustCompile(`a[href*="ViewAttachment.aspx"]`)
	secondaryRows  = cascadia.MustCompile(`table[id*="grdArchivos"] tbody tr`)
	cells          = cascadia.MustCompile(`td`)
	anchors        = cascadia.MustCompile(`a`)
	downloadHandle = regexp.MustCompile(`fn_descargar_anexo_v2\s*\(\s*['"]?(\d+)['"]?`)
)

// Seen is the set of download URLs already emitted for one request.
// It is not safe for concurrent use; each request owns its own.
type Seen map[string]struct{}

// NewSeen returns an empty Seen set.
func NewSeen() Seen {
	return make(Seen)
}

// add records u and reports whether it was new.
func (s Seen) add(u string) bool {
	if _, ok := s[u]; ok {
		return false
	}
	s[u] = struct{}{}
	return true
}

// Extractor parses attachment grids. It holds no per-request state and is
// safe for concurrent use.
type Extractor struct {
	downloadBase string
}

// New creates an Extractor that builds download links against baseURL
// (scheme and host, e.g. https://www.mercadopublico.cl).
func New(baseURL string) *Extractor {
	return &Extractor{downloadBase: strings.TrimRight(baseURL, "/") + DownloadPath}
}

// Primary extracts the embedded attachment grid of a bid page and looks for
// a link to the dedicated attachments page.
//
// secondaryURL is empty when the page has no such link. A page without the
// grid yields no records and no error.
func (e *Extractor) Primary(markup, sourceURL string, seen Seen) (records []models.Attachment, secondaryURL string, err error) {
	source, err := url.Parse(sourceURL)
	if err != nil {
		return nil, "", models.NewScrapeError(models.ErrCodeExtraction, "invalid source URL", err)
	}
	doc, err := parse(markup)
	if err != nil {
		return nil, "", err
	}

	bidID := source.Query().Get("idlicitacion")
	records = []models.Attachment{}

	doc.FindMatcher(primaryRows).Each(func(_ int, row *goquery.Selection) {
		name := strings.TrimSpace(row.FindMatcher(nameCell).Text())
		if name == "" {
			return
		}
		onclick, ok := row.FindMatcher(downloadInput).Attr("onclick")
		if !ok {
			return
		}
		docID := documentID(onclick)
		if docID == "" {
			return
		}
		link := e.downloadURL(bidID, docID)
		if seen.add(link) {
			records = append(records, models.Attachment{Name: name, DownloadURL: link})
		}
	})

	if href, ok := doc.FindMatcher(secondaryLink).Attr("href"); ok {
		if resolved, err := source.Parse(href); err == nil {
			secondaryURL = resolved.String()
		}
	}

	return records, secondaryURL, nil
}

// Secondary extracts the grid of a dedicated attachments page. Column 0
// holds the name and column 2 the download anchor, resolved against pageURL.
func (e *Extractor) Secondary(markup, pageURL string, seen Seen) ([]models.Attachment, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "invalid attachments page URL", err)
	}
	doc, err := parse(markup)
	if err != nil {
		return nil, err
	}

	records := []models.Attachment{}
	doc.FindMatcher(secondaryRows).Each(func(_ int, row *goquery.Selection) {
		tds := row.FindMatcher(cells)
		name := strings.TrimSpace(tds.Eq(0).Text())
		if name == "" {
			return
		}
		href, ok := tds.Eq(2).FindMatcher(anchors).Attr("href")
		if !ok {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		link := resolved.String()
		if seen.add(link) {
			records = append(records, models.Attachment{Name: name, DownloadURL: link})
		}
	})

	return records, nil
}

// documentID recovers the numeric document id from a download button's
// inline handler, or "" when the handler does not match.
func documentID(onclick string) string {
	m := downloadHandle.FindStringSubmatch(onclick)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func (e *Extractor) downloadURL(bidID, docID string) string {
	return fmt.Sprintf("%s?idlic=%s&idDoc=%s", e.downloadBase, url.QueryEscape(bidID), docID)
}

func parse(markup string) (*goquery.Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to parse rendered markup", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}
