package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const robotsFixture = `# test policy
User-agent: pagesift
Disallow: /private/
Allow: /private/press/
Crawl-delay: 2

User-agent: *
Disallow: /admin
`

func TestParseRobots_Groups(t *testing.T) {
	rules := ParseRobots(robotsFixture)
	if len(rules.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(rules.Groups))
	}
	first := rules.Groups[0]
	if len(first.Agents) != 1 || first.Agents[0] != "pagesift" {
		t.Fatalf("first group agents = %v", first.Agents)
	}
	if first.CrawlDelay == nil || *first.CrawlDelay != 2*time.Second {
		t.Fatalf("crawl delay = %v, want 2s", first.CrawlDelay)
	}
}

func TestRobotsRules_IsAllowed(t *testing.T) {
	rules := ParseRobots(robotsFixture)
	cases := []struct {
		agent string
		path  string
		want  bool
	}{
		{"pagesift/1.0", "/private/report.pdf", false},
		{"pagesift/1.0", "/private/press/release.html", true},
		{"pagesift/1.0", "/public/page", true},
		{"pagesift/1.0", "/admin", true}, // named group shadows the wildcard
		{"otherbot", "/admin/users", false},
		{"otherbot", "/index.html", true},
	}
	for _, tc := range cases {
		if got := rules.IsAllowed(tc.agent, tc.path); got != tc.want {
			t.Errorf("IsAllowed(%q, %q) = %v, want %v", tc.agent, tc.path, got, tc.want)
		}
	}
}

func TestRobotsRules_Wildcards(t *testing.T) {
	rules := ParseRobots("User-agent: *\nDisallow: /*.json$\nDisallow: /tmp/*\n")
	if rules.IsAllowed("any", "/data/export.json") {
		t.Fatal("expected /data/export.json to be disallowed")
	}
	if !rules.IsAllowed("any", "/data/export.jsonl") {
		t.Fatal("expected /data/export.jsonl to be allowed (end anchor)")
	}
	if rules.IsAllowed("any", "/tmp/scratch") {
		t.Fatal("expected /tmp/scratch to be disallowed")
	}
}

func TestRobotsPolicy_Allowed(t *testing.T) {
	var robotsHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits++
			w.Write([]byte("User-agent: *\nDisallow: /blocked/\n"))
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	p := NewRobotsPolicy("pagesift/1.0", nil)
	ctx := context.Background()

	allowed, err := p.Allowed(ctx, srv.URL+"/open/page")
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if !allowed {
		t.Fatal("expected /open/page to be allowed")
	}
	allowed, err = p.Allowed(ctx, srv.URL+"/blocked/page")
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if allowed {
		t.Fatal("expected /blocked/page to be disallowed")
	}
	if robotsHits != 1 {
		t.Fatalf("robots.txt fetched %d times, want 1 (memory cache)", robotsHits)
	}
}

func TestRobotsPolicy_MissingFileAllowsAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := NewRobotsPolicy("pagesift/1.0", nil)
	allowed, err := p.Allowed(context.Background(), srv.URL+"/anything")
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if !allowed {
		t.Fatal("missing robots.txt must allow all")
	}
}

func TestHTTPFetcher_RobotsDisallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /\n"))
			return
		}
		w.Write([]byte("should not be reached"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	f.Robots = NewRobotsPolicy("pagesift/1.0", nil)
	_, err := f.Fetch(context.Background(), srv.URL+"/page", Options{})
	if err == nil {
		t.Fatal("expected error for disallowed URL")
	}
	if KindOf(err) != KindAccessDenied {
		t.Fatalf("error kind = %v, want %v", KindOf(err), KindAccessDenied)
	}
}

func TestRobotsPolicy_CrawlDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nCrawl-delay: 1\n"))
	}))
	defer srv.Close()

	p := NewRobotsPolicy("pagesift/1.0", nil)
	if d := p.CrawlDelay(context.Background(), srv.URL+"/page"); d != time.Second {
		t.Fatalf("crawl delay = %v, want 1s", d)
	}
}
