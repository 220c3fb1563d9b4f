package process

import (
	"context"
	"strings"
	"testing"

	"github.com/pagesift/pagesift/internal/content"
)

const sampleHTML = `<!DOCTYPE html>
<html lang="en">
<head><title>Annual Report</title></head>
<body>
<nav><a href="/home">Home</a></nav>
<script>console.log("tracking");</script>
<main>
<h1>Results</h1>
<p>Revenue grew by <a href="https://example.com/detail">12 percent</a>.</p>
<img src="/chart.png" alt="revenue chart">
<table>
<tr><th>Quarter</th><th>Revenue</th></tr>
<tr><td>Q1</td><td>100</td></tr>
<tr><td>Q2</td><td>112</td></tr>
</table>
<h2>Outlook</h2>
<p>Growth should continue.</p>
</main>
<footer>Copyright</footer>
</body>
</html>`

func TestHTMLProcessor_Extraction(t *testing.T) {
	p := NewHTMLProcessor()
	res, err := p.Process(context.Background(), []byte(sampleHTML), content.TypeHTML, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Title != "Annual Report" {
		t.Fatalf("unexpected title: %q", res.Title)
	}
	if strings.Contains(res.Text, "console.log") {
		t.Fatalf("script content leaked into text: %q", res.Text)
	}
	if strings.Contains(res.Text, "Copyright") {
		t.Fatalf("footer boilerplate leaked into text: %q", res.Text)
	}
	if !strings.Contains(res.Text, "Revenue grew by 12 percent.") {
		t.Fatalf("body text missing: %q", res.Text)
	}
	if len(res.Links) != 1 || res.Links[0].URL != "https://example.com/detail" {
		t.Fatalf("unexpected links: %v", res.Links)
	}
	if len(res.Images) != 1 || res.Images[0].Alt != "revenue chart" {
		t.Fatalf("unexpected images: %v", res.Images)
	}
	if len(res.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(res.Tables))
	}
	tbl := res.Tables[0]
	if strings.Join(tbl.Headers, "|") != "Quarter|Revenue" || len(tbl.Rows) != 2 {
		t.Fatalf("unexpected table: %+v", tbl)
	}
	if res.Metadata["language"] != "en" {
		t.Fatalf("expected language metadata, got %q", res.Metadata["language"])
	}
}

func TestHTMLProcessor_Outline(t *testing.T) {
	p := NewHTMLProcessor()
	res, err := p.Process(context.Background(), []byte(sampleHTML), content.TypeHTML, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Structure) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(res.Structure))
	}
	if res.Structure[0].Heading != "Results" || res.Structure[0].Level != 1 {
		t.Fatalf("unexpected first section: %+v", res.Structure[0])
	}
	if res.Structure[1].Heading != "Outlook" || res.Structure[1].Level != 2 {
		t.Fatalf("unexpected second section: %+v", res.Structure[1])
	}
}

func TestHTMLProcessor_TitleFallbacks(t *testing.T) {
	p := NewHTMLProcessor()
	og := `<html><head><meta property="og:title" content="From OG"></head><body><p>x</p></body></html>`
	res, err := p.Process(context.Background(), []byte(og), content.TypeHTML, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Title != "From OG" {
		t.Fatalf("expected og:title fallback, got %q", res.Title)
	}

	h1 := `<html><body><h1>From H1</h1><p>x</p></body></html>`
	res, err = p.Process(context.Background(), []byte(h1), content.TypeHTML, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Title != "From H1" {
		t.Fatalf("expected h1 fallback, got %q", res.Title)
	}
}

func TestHTMLProcessor_SkipsAnchorAndJavascriptLinks(t *testing.T) {
	page := `<html><body><main><p>text</p>
<a href="#section">in-page</a>
<a href="javascript:void(0)">js</a>
<a href="/real">real</a>
</main></body></html>`
	p := NewHTMLProcessor()
	res, err := p.Process(context.Background(), []byte(page), content.TypeHTML, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Links) != 1 || res.Links[0].URL != "/real" {
		t.Fatalf("unexpected links: %v", res.Links)
	}
}
