package process

import (
	"context"
	"strings"
	"testing"

	"github.com/pagesift/pagesift/internal/content"
)

// buildDOC fakes an OLE container: the compound file signature followed by
// padding and a UTF-16LE text stream, the way Word lays out most documents.
func buildDOC(text string) []byte {
	data := append([]byte{}, oleSignature...)
	data = append(data, make([]byte, 64)...)
	for _, r := range text {
		data = append(data, byte(r), 0x00)
	}
	data = append(data, 0x00, 0x00)
	return data
}

func TestDOCProcessor_UTF16Runs(t *testing.T) {
	data := buildDOC("Meeting minutes from the planning session.")
	p := NewDOCProcessor()
	res, err := p.Process(context.Background(), data, content.TypeDOC, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Text, "Meeting minutes") {
		t.Fatalf("expected extracted run, got %q", res.Text)
	}
}

func TestDOCProcessor_DropsShortRuns(t *testing.T) {
	data := buildDOC("short")
	p := NewDOCProcessor()
	res, err := p.Process(context.Background(), data, content.TypeDOC, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(res.Text, "short") {
		t.Fatalf("run below threshold should be dropped, got %q", res.Text)
	}
}

func TestDOCProcessor_RejectsNonOLE(t *testing.T) {
	p := NewDOCProcessor()
	if _, err := p.Process(context.Background(), []byte("just some plain bytes"), content.TypeDOC, DefaultOptions()); err == nil {
		t.Fatalf("expected signature error")
	}
}
