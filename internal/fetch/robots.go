package fetch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RobotsRules is the parsed policy of one robots.txt file.
type RobotsRules struct {
	Groups []RobotsGroup
}

// RobotsGroup is one user-agent section of a robots.txt file.
type RobotsGroup struct {
	Agents     []string
	Allow      []string
	Disallow   []string
	CrawlDelay *time.Duration
}

// RobotsPolicy resolves and evaluates robots.txt rules per host. Parsed
// rules are held in memory with an expiry; the optional HTTPCache adds
// conditional revalidation across runs. Failures to obtain robots.txt are
// treated as allow-all, so an unreachable or absent file never blocks
// fetching.
type RobotsPolicy struct {
	Client      *http.Client
	Cache       *HTTPCache
	UserAgent   string
	EntryExpiry time.Duration

	mu  sync.Mutex
	mem map[string]robotsEntry
}

type robotsEntry struct {
	rules  RobotsRules
	expiry time.Time
}

// NewRobotsPolicy returns a policy with a 30 minute in-memory expiry.
func NewRobotsPolicy(userAgent string, cache *HTTPCache) *RobotsPolicy {
	return &RobotsPolicy{
		Client:      &http.Client{Timeout: 10 * time.Second},
		Cache:       cache,
		UserAgent:   userAgent,
		EntryExpiry: 30 * time.Minute,
		mem:         make(map[string]robotsEntry),
	}
}

// Allowed reports whether the URL may be fetched under the host's
// robots.txt for this policy's user agent.
func (p *RobotsPolicy) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return true, nil
	}
	rules, err := p.rulesFor(ctx, u)
	if err != nil {
		log.Debug().Str("host", u.Hostname()).Err(err).Msg("robots.txt unavailable, allowing")
		return true, nil
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return rules.IsAllowed(p.UserAgent, path), nil
}

// CrawlDelay returns the crawl delay the host requests for this policy's
// user agent, or zero when none is set.
func (p *RobotsPolicy) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return 0
	}
	rules, err := p.rulesFor(ctx, u)
	if err != nil {
		return 0
	}
	if d := rules.CrawlDelayFor(p.UserAgent); d != nil {
		return *d
	}
	return 0
}

func (p *RobotsPolicy) rulesFor(ctx context.Context, u *url.URL) (RobotsRules, error) {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	p.mu.Lock()
	if p.mem == nil {
		p.mem = make(map[string]robotsEntry)
	}
	if ent, ok := p.mem[robotsURL]; ok && time.Now().Before(ent.expiry) {
		rules := ent.rules
		p.mu.Unlock()
		return rules, nil
	}
	p.mu.Unlock()

	var etag, lastMod string
	if p.Cache != nil {
		if meta, err := p.Cache.LoadMeta(ctx, robotsURL); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return RobotsRules{}, err
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return RobotsRules{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && p.Cache != nil {
		body, err := p.Cache.LoadBody(ctx, robotsURL)
		if err != nil {
			return RobotsRules{}, fmt.Errorf("load cached robots: %w", err)
		}
		rules := ParseRobots(string(body))
		p.remember(robotsURL, rules)
		return rules, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return RobotsRules{}, fmt.Errorf("robots.txt status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return RobotsRules{}, err
	}
	if p.Cache != nil {
		_ = p.Cache.Save(ctx, robotsURL, "text/plain", resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), data)
	}
	rules := ParseRobots(string(data))
	p.remember(robotsURL, rules)
	return rules, nil
}

func (p *RobotsPolicy) remember(key string, rules RobotsRules) {
	exp := p.EntryExpiry
	if exp <= 0 {
		exp = 30 * time.Minute
	}
	p.mu.Lock()
	p.mem[key] = robotsEntry{rules: rules, expiry: time.Now().Add(exp)}
	p.mu.Unlock()
}

// ParseRobots parses robots.txt text into grouped rules. Unknown directives
// are ignored.
func ParseRobots(text string) RobotsRules {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var groups []RobotsGroup
	current := RobotsGroup{}
	flush := func() {
		if len(current.Agents) == 0 && len(current.Allow) == 0 &&
			len(current.Disallow) == 0 && current.CrawlDelay == nil {
			return
		}
		groups = append(groups, current)
		current = RobotsGroup{}
	}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:colon]))
		val := strings.TrimSpace(line[colon+1:])
		switch key {
		case "user-agent", "useragent":
			// A directive after agents means the group is complete and a
			// new one starts.
			if len(current.Agents) > 0 && (len(current.Allow) > 0 || len(current.Disallow) > 0 || current.CrawlDelay != nil) {
				flush()
			}
			current.Agents = append(current.Agents, strings.ToLower(val))
		case "allow":
			current.Allow = append(current.Allow, val)
		case "disallow":
			current.Disallow = append(current.Disallow, val)
		case "crawl-delay", "crawldelay":
			if val != "" {
				if d, err := time.ParseDuration(val + "s"); err == nil {
					delay := d
					current.CrawlDelay = &delay
				}
			}
		}
	}
	flush()
	return RobotsRules{Groups: groups}
}

// IsAllowed evaluates a path (with optional query) against the rules for a
// user agent. The most specific matching user-agent group applies; within
// it, the most specific matching directive wins, with Allow beating
// Disallow on ties. No matching directive means allow.
func (r RobotsRules) IsAllowed(userAgent, path string) bool {
	idx := r.groupFor(userAgent)
	if idx < 0 {
		return true
	}
	grp := r.Groups[idx]

	bestScore := -1
	bestAllow := true
	evaluate := func(patterns []string, isAllow bool) {
		for _, pat := range patterns {
			// An empty pattern restricts nothing.
			if pat == "" {
				continue
			}
			if !robotsPatternMatches(pat, path) {
				continue
			}
			score := robotsPatternSpecificity(pat)
			if score > bestScore || (score == bestScore && isAllow && !bestAllow) {
				bestScore = score
				bestAllow = isAllow
			}
		}
	}
	evaluate(grp.Disallow, false)
	evaluate(grp.Allow, true)

	if bestScore == -1 {
		return true
	}
	return bestAllow
}

// CrawlDelayFor returns the crawl delay of the best-matching group, or nil.
func (r RobotsRules) CrawlDelayFor(userAgent string) *time.Duration {
	idx := r.groupFor(userAgent)
	if idx < 0 {
		return nil
	}
	return r.Groups[idx].CrawlDelay
}

// groupFor picks the group whose agent token best matches the user agent:
// longest substring match, with the "*" wildcard losing to any named match.
func (r RobotsRules) groupFor(userAgent string) int {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	bestIdx := -1
	bestScore := -1
	for i, g := range r.Groups {
		for _, a := range g.Agents {
			token := strings.ToLower(strings.TrimSpace(a))
			if token == "" {
				continue
			}
			var score int
			switch {
			case token == "*":
				score = 0
			case strings.Contains(ua, token):
				score = len(token)
			default:
				continue
			}
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
	}
	return bestIdx
}

// robotsPatternMatches matches a robots pattern against a path, supporting
// '*' wildcards and a '$' end anchor, anchored at the path start.
func robotsPatternMatches(pattern, path string) bool {
	anchorEnd := strings.HasSuffix(pattern, "$")
	p := strings.TrimSuffix(pattern, "$")

	var b strings.Builder
	b.WriteString("^")
	for _, r := range p {
		if r == '*' {
			b.WriteString(".*")
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(r)))
	}
	if anchorEnd {
		b.WriteString("$")
	}
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(path)
}

// robotsPatternSpecificity scores a pattern by its concrete length, with
// wildcards and the end anchor excluded.
func robotsPatternSpecificity(pattern string) int {
	p := strings.TrimSuffix(pattern, "$")
	return len(strings.ReplaceAll(p, "*", ""))
}
