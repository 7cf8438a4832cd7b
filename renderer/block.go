package renderer

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config names to protocol resource types. Scripts and
// XHR are never blockable: the attachment grid is built by them.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
}

// trackerHosts are analytics and ad hosts whose beacons keep the network
// busy long after the page content is ready.
var trackerHosts = map[string]struct{}{
	"google-analytics.com":    {},
	"googletagmanager.com":    {},
	"googletagservices.com":   {},
	"doubleclick.net":         {},
	"googlesyndication.com":   {},
	"googleadservices.com":    {},
	"facebook.net":            {},
	"facebook.com":            {},
	"hotjar.com":              {},
	"clarity.ms":              {},
	"newrelic.com":            {},
	"nr-data.net":             {},
	"scorecardresearch.com":   {},
	"analytics.twitter.com":   {},
	"static.ads-twitter.com":  {},
	"connect.facebook.net":    {},
	"stats.g.doubleclick.net": {},
}

// isTrackerHost checks host and each parent domain against trackerHosts.
func isTrackerHost(host string) bool {
	host = strings.ToLower(host)
	for {
		if _, ok := trackerHosts[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
}

// blockRules decides which intercepted requests are failed.
type blockRules struct {
	types    map[proto.NetworkResourceType]struct{}
	trackers bool
}

func newBlockRules(names []string, trackers bool) blockRules {
	rules := blockRules{
		types:    make(map[proto.NetworkResourceType]struct{}, len(names)),
		trackers: trackers,
	}
	for _, name := range names {
		if rt, ok := resourceTypes[name]; ok {
			rules.types[rt] = struct{}{}
		}
	}
	return rules
}

func (b blockRules) empty() bool {
	return len(b.types) == 0 && !b.trackers
}

func (b blockRules) blocks(rt proto.NetworkResourceType, rawURL string) bool {
	if _, ok := b.types[rt]; ok {
		return true
	}
	if b.trackers {
		if u, err := url.Parse(rawURL); err == nil && isTrackerHost(u.Hostname()) {
			return true
		}
	}
	return false
}

// setupBlocking installs a request interceptor on the page. Blocked requests
// fail with BlockedByClient, which the idle tracker sees as finished.
//
// Returns nil if there is nothing to block; otherwise the caller must Stop
// the returned router.
func setupBlocking(page *rod.Page, rules blockRules) *rod.HijackRouter {
	if rules.empty() {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if rules.blocks(ctx.Request.Type(), ctx.Request.URL().String()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()

	return router
}
