package fetch

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"

	"github.com/pagesift/pagesift/internal/content"
)

// Script-based redirect assignments: window.location = "...", location.href = '...'.
var scriptLocationRe = regexp.MustCompile(
	`(?i)(?:window\.|document\.|top\.)?location(?:\.href)?\s*=\s*["']([^"']+)["']`)

// hostRedirectPatterns maps known hosts to regexes that pull the real
// document URL out of their JavaScript viewer pages.
var hostRedirectPatterns = map[string]*regexp.Regexp{
	"docs.google.com":   regexp.MustCompile(`export\?format=\w+[^"'\s]*|["'](https://[^"']+/export[^"']*)["']`),
	"onedrive.live.com": regexp.MustCompile(`["'](https://[^"']+download[^"']*)["']`),
	"www.dropbox.com":   regexp.MustCompile(`["'](https://[^"']*dl=1[^"']*)["']`),
	"sharepoint.com":    regexp.MustCompile(`["'](https://[^"']+/download\.aspx[^"']*)["']`),
}

// embeddedRedirectTarget inspects an HTML response that arrived where a
// non-HTML document was expected (per the locator's extension) and returns
// the redirect target found in a meta-refresh tag, a script location
// assignment, or a known host-specific viewer pattern. Empty string means no
// redirect applies.
func embeddedRedirectTarget(locator string, c *Content) string {
	expected, ok := expectedTypeByExtension(locator)
	if !ok {
		return ""
	}
	declared, _ := content.ByMIME(c.MIMEType)
	if declared != content.TypeHTML {
		return ""
	}
	if expected.Type == content.TypeHTML || expected.Type == content.TypeWebpage {
		return ""
	}

	if target := metaRefreshTarget(c.Bytes); target != "" {
		return resolveAgainst(locator, target)
	}
	if m := scriptLocationRe.FindSubmatch(c.Bytes); m != nil {
		return resolveAgainst(locator, string(m[1]))
	}
	if u, err := url.Parse(locator); err == nil {
		host := strings.ToLower(u.Hostname())
		for suffix, re := range hostRedirectPatterns {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				if m := re.FindSubmatch(c.Bytes); m != nil {
					target := string(m[0])
					if len(m) > 1 && len(m[1]) > 0 {
						target = string(m[1])
					}
					return resolveAgainst(locator, target)
				}
			}
		}
	}
	return ""
}

// metaRefreshTarget parses HTML for <meta http-equiv="refresh" content="0;url=...">.
func metaRefreshTarget(body []byte) string {
	node, err := xhtml.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var target string
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if target != "" {
			return
		}
		if n.Type == xhtml.ElementNode && strings.EqualFold(n.Data, "meta") {
			var equiv, cnt string
			for _, a := range n.Attr {
				switch strings.ToLower(a.Key) {
				case "http-equiv":
					equiv = strings.ToLower(a.Val)
				case "content":
					cnt = a.Val
				}
			}
			if equiv == "refresh" {
				if i := strings.Index(strings.ToLower(cnt), "url="); i >= 0 {
					target = strings.Trim(strings.TrimSpace(cnt[i+4:]), `"'`)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return target
}

func resolveAgainst(base, ref string) string {
	bu, err := url.Parse(base)
	if err != nil {
		return ref
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	resolved := bu.ResolveReference(ru)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}
