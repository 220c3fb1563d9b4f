// Package content holds the shared content model: the content type
// enumeration, classification results, and the extracted artifact types
// (links, images, tables, sections) that processors produce.
package content

import "strings"

// Type enumerates the content types the pipeline understands.
type Type string

const (
	TypePDF      Type = "pdf"
	TypeHTML     Type = "html"
	TypeWebpage  Type = "webpage"
	TypeMarkdown Type = "markdown"
	TypeDOC      Type = "doc"
	TypeDOCX     Type = "docx"
	TypeRTF      Type = "rtf"
	TypeXLSX     Type = "xlsx"
	TypeCSV      Type = "csv"
	TypeTXT      Type = "txt"
	TypeText     Type = "text"
	TypeJSON     Type = "json"
	TypeXML      Type = "xml"
	TypeImage    Type = "image"
	TypeVideo    Type = "video"
	TypeAudio    Type = "audio"
	TypeArchive  Type = "archive"
	TypeUnknown  Type = "unknown"
)

// String returns the canonical lower-case name of the type.
func (t Type) String() string { return string(t) }

// ParseType resolves a type name back to a Type. Unrecognized names map to
// TypeUnknown rather than failing.
func ParseType(s string) Type {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypePDF, TypeHTML, TypeWebpage, TypeMarkdown, TypeDOC, TypeDOCX,
		TypeRTF, TypeXLSX, TypeCSV, TypeTXT, TypeText, TypeJSON, TypeXML,
		TypeImage, TypeVideo, TypeAudio, TypeArchive:
		return Type(strings.ToLower(strings.TrimSpace(s)))
	default:
		return TypeUnknown
	}
}

// Classification is the outcome of a content type detection.
type Classification struct {
	Type       Type              `json:"type"`
	MIMEType   string            `json:"mimeType"`
	Confidence float64           `json:"confidence"`
	SizeBytes  int64             `json:"sizeBytes,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Unknown returns the explicit fallback classification with zero confidence.
func Unknown() Classification {
	return Classification{
		Type:       TypeUnknown,
		MIMEType:   "application/octet-stream",
		Confidence: 0,
	}
}

// ClampConfidence forces the confidence into [0,1].
func (c *Classification) ClampConfidence() {
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
}

// TypeAndMIME pairs a content type with its canonical MIME type.
type TypeAndMIME struct {
	Type Type
	MIME string
}

// extensionTable maps lower-case file extensions (without the dot) to their
// expected content type and MIME type. It is internal static configuration,
// shared by the extension detector and by MIME mismatch checks in the fetcher.
var extensionTable = map[string]TypeAndMIME{
	"pdf":      {TypePDF, "application/pdf"},
	"html":     {TypeHTML, "text/html"},
	"htm":      {TypeHTML, "text/html"},
	"xhtml":    {TypeHTML, "application/xhtml+xml"},
	"md":       {TypeMarkdown, "text/markdown"},
	"markdown": {TypeMarkdown, "text/markdown"},
	"doc":      {TypeDOC, "application/msword"},
	"docx":     {TypeDOCX, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	"rtf":      {TypeRTF, "application/rtf"},
	"xlsx":     {TypeXLSX, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	"xls":      {TypeXLSX, "application/vnd.ms-excel"},
	"csv":      {TypeCSV, "text/csv"},
	"txt":      {TypeTXT, "text/plain"},
	"text":     {TypeText, "text/plain"},
	"json":     {TypeJSON, "application/json"},
	"xml":      {TypeXML, "application/xml"},
	"png":      {TypeImage, "image/png"},
	"jpg":      {TypeImage, "image/jpeg"},
	"jpeg":     {TypeImage, "image/jpeg"},
	"gif":      {TypeImage, "image/gif"},
	"webp":     {TypeImage, "image/webp"},
	"svg":      {TypeImage, "image/svg+xml"},
	"mp4":      {TypeVideo, "video/mp4"},
	"webm":     {TypeVideo, "video/webm"},
	"mov":      {TypeVideo, "video/quicktime"},
	"mp3":      {TypeAudio, "audio/mpeg"},
	"wav":      {TypeAudio, "audio/wav"},
	"ogg":      {TypeAudio, "audio/ogg"},
	"zip":      {TypeArchive, "application/zip"},
	"tar":      {TypeArchive, "application/x-tar"},
	"gz":       {TypeArchive, "application/gzip"},
	"7z":       {TypeArchive, "application/x-7z-compressed"},
	"rar":      {TypeArchive, "application/vnd.rar"},
}

// ByExtension looks up the expected type for a file extension. The extension
// may be passed with or without a leading dot and in any case.
func ByExtension(ext string) (TypeAndMIME, bool) {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	tm, ok := extensionTable[ext]
	return tm, ok
}

// ByMIME resolves a MIME type (optionally with parameters, e.g.
// "text/html; charset=utf-8") to a content type.
func ByMIME(mime string) (Type, bool) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch {
	case mime == "":
		return TypeUnknown, false
	case mime == "application/pdf":
		return TypePDF, true
	case mime == "text/html" || mime == "application/xhtml+xml":
		return TypeHTML, true
	case mime == "text/markdown" || mime == "text/x-markdown":
		return TypeMarkdown, true
	case mime == "application/msword":
		return TypeDOC, true
	case strings.Contains(mime, "wordprocessingml"):
		return TypeDOCX, true
	case mime == "application/rtf" || mime == "text/rtf":
		return TypeRTF, true
	case strings.Contains(mime, "spreadsheetml") || mime == "application/vnd.ms-excel":
		return TypeXLSX, true
	case mime == "text/csv":
		return TypeCSV, true
	case mime == "application/json":
		return TypeJSON, true
	case mime == "application/xml" || mime == "text/xml":
		return TypeXML, true
	case mime == "text/plain":
		return TypeTXT, true
	case strings.HasPrefix(mime, "text/"):
		return TypeText, true
	case strings.HasPrefix(mime, "image/"):
		return TypeImage, true
	case strings.HasPrefix(mime, "video/"):
		return TypeVideo, true
	case strings.HasPrefix(mime, "audio/"):
		return TypeAudio, true
	case mime == "application/zip" || mime == "application/gzip" ||
		mime == "application/x-tar" || mime == "application/x-7z-compressed":
		return TypeArchive, true
	default:
		return TypeUnknown, false
	}
}

// IsTextual reports whether the type is extracted as text rather than parsed
// from a binary container.
func (t Type) IsTextual() bool {
	switch t {
	case TypeHTML, TypeWebpage, TypeMarkdown, TypeCSV, TypeTXT, TypeText, TypeJSON, TypeXML, TypeRTF:
		return true
	default:
		return false
	}
}
