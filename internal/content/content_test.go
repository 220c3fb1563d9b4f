package content

import "testing"

func TestByExtension_CaseAndDotInsensitive(t *testing.T) {
	for _, ext := range []string{"pdf", ".pdf", "PDF", " .PDF "} {
		tm, ok := ByExtension(ext)
		if !ok {
			t.Fatalf("expected %q to resolve", ext)
		}
		if tm.Type != TypePDF || tm.MIME != "application/pdf" {
			t.Fatalf("unexpected mapping for %q: %+v", ext, tm)
		}
	}
}

func TestByExtension_Unknown(t *testing.T) {
	if _, ok := ByExtension("xyzzy"); ok {
		t.Fatalf("did not expect xyzzy to resolve")
	}
}

func TestByMIME_StripsParameters(t *testing.T) {
	typ, ok := ByMIME("text/html; charset=utf-8")
	if !ok || typ != TypeHTML {
		t.Fatalf("expected html, got %v (ok=%v)", typ, ok)
	}
}

func TestByMIME_OfficeTypes(t *testing.T) {
	typ, ok := ByMIME("application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	if !ok || typ != TypeDOCX {
		t.Fatalf("expected docx, got %v", typ)
	}
	typ, ok = ByMIME("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if !ok || typ != TypeXLSX {
		t.Fatalf("expected xlsx, got %v", typ)
	}
}

func TestClampConfidence(t *testing.T) {
	c := Classification{Confidence: 1.7}
	c.ClampConfidence()
	if c.Confidence != 1 {
		t.Fatalf("expected clamp to 1, got %f", c.Confidence)
	}
	c.Confidence = -0.2
	c.ClampConfidence()
	if c.Confidence != 0 {
		t.Fatalf("expected clamp to 0, got %f", c.Confidence)
	}
}

func TestParseType_RoundTrip(t *testing.T) {
	if got := ParseType("PDF"); got != TypePDF {
		t.Fatalf("expected pdf, got %v", got)
	}
	if got := ParseType("nonsense"); got != TypeUnknown {
		t.Fatalf("expected unknown, got %v", got)
	}
}

func TestUnknown_ZeroConfidence(t *testing.T) {
	u := Unknown()
	if u.Type != TypeUnknown || u.Confidence != 0 {
		t.Fatalf("unexpected unknown classification: %+v", u)
	}
}
